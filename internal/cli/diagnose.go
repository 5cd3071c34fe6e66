package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/kitbuilder587/support-assistant/internal/diagnostics"
	"github.com/kitbuilder587/support-assistant/internal/llm"
	"github.com/kitbuilder587/support-assistant/internal/llm/provider"
)

var errSetupIncomplete = errors.New("setup incomplete")

func newDiagnoseCmd(ro *rootOptions) *cobra.Command {
	var url string

	cmd := &cobra.Command{
		Use:   "diagnose",
		Short: "Check the web process, the chat completion service and observability settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := ro.bootstrap(false)
			if err != nil {
				return err
			}
			defer logger.Sync()

			if url == "" {
				url = cfg.Health.URL
			}

			runner := diagnostics.NewRunner(diagnostics.Config{
				HealthURL:         url,
				HealthTimeout:     cfg.Health.Timeout,
				Model:             cfg.Model(),
				Temperature:       cfg.LLM.Temperature,
				LLMTimeout:        cfg.LLM.Timeout,
				ObservabilityKey:  cfg.Observability.APIKey,
				ObservabilitySite: cfg.Observability.Site,
			}, func() (llm.Client, error) {
				return provider.NewInstrumented(cfg, nil, logger)
			}, logger)

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			report := runner.Run(ctx)
			diagnostics.Render(cmd.OutOrStdout(), report)
			if !report.Ready() {
				return errSetupIncomplete
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "web application URL to probe (default HEALTH_URL)")
	return cmd
}
