package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kitbuilder587/support-assistant/internal/domain"
	"github.com/kitbuilder587/support-assistant/internal/repository"
	"github.com/kitbuilder587/support-assistant/internal/repository/postgres"
)

var errNoDatabase = errors.New("DATABASE_URL is not set, usage ledger is disabled")

func newUsageCmd(ro *rootOptions) *cobra.Command {
	var (
		limit     int
		sessionID string
	)

	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Show recorded chat completion calls from the usage ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := ro.bootstrap(false)
			if err != nil {
				return err
			}
			defer logger.Sync()

			if cfg.Database.URL == "" {
				return errNoDatabase
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			db, err := openUsageDB(ctx, cfg.Database.URL)
			if err != nil {
				return fmt.Errorf("open usage ledger: %w", err)
			}
			defer db.Close()

			return printUsage(ctx, cmd.OutOrStdout(), postgres.NewUsageRepo(db), sessionID, limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "number of recent calls to show")
	cmd.Flags().StringVar(&sessionID, "session", "", "show the summary of a single session")
	return cmd
}

func printUsage(ctx context.Context, w io.Writer, repo repository.UsageRepository, sessionID string, limit int) error {
	if sessionID != "" {
		summary, err := repo.SummaryBySession(ctx, sessionID)
		if err != nil {
			return fmt.Errorf("session %s: %w", sessionID, err)
		}
		printSummary(w, summary)
		return nil
	}

	records, err := repo.ListRecent(ctx, limit)
	if err != nil {
		return fmt.Errorf("list usage: %w", err)
	}
	if len(records) == 0 {
		fmt.Fprintln(w, "No calls recorded yet.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tSESSION\tMODE\tPROVIDER\tMODEL\tSTATUS\tTOKENS\tCOST\tLATENCY")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%d\t$%.6f\t%s\n",
			r.CreatedAt.Format(time.DateTime),
			shortID(r.SessionID),
			r.Mode,
			r.Provider,
			r.Model,
			r.Status,
			r.Usage.TotalTokens,
			r.Cost,
			r.Latency.Truncate(time.Millisecond),
		)
	}
	return tw.Flush()
}

func printSummary(w io.Writer, s *domain.UsageSummary) {
	fmt.Fprintf(w, "Session:           %s\n", s.SessionID)
	fmt.Fprintf(w, "Calls:             %d (%d failed)\n", s.Calls, s.Failed)
	fmt.Fprintf(w, "Prompt tokens:     %d\n", s.Usage.PromptTokens)
	fmt.Fprintf(w, "Completion tokens: %d\n", s.Usage.CompletionTokens)
	fmt.Fprintf(w, "Total tokens:      %d\n", s.Usage.TotalTokens)
	fmt.Fprintf(w, "Estimated cost:    $%.6f\n", s.Cost)
	fmt.Fprintf(w, "Avg response time: %s\n", s.AvgLatency.Truncate(time.Millisecond))
	fmt.Fprintf(w, "First call:        %s\n", s.FirstCall.Format(time.DateTime))
	fmt.Fprintf(w, "Last call:         %s\n", s.LastCall.Format(time.DateTime))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
