package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kitbuilder587/support-assistant/internal/session"
	"github.com/kitbuilder587/support-assistant/internal/task"
)

var errInputConflict = errors.New("pass the input either as arguments or with --file, not both")

type taskOptions struct {
	file  string
	model string
}

func newSummarizeCmd(ro *rootOptions) *cobra.Command {
	return newTaskCmd(ro, task.Summarize, &cobra.Command{
		Use:   "summarize [text]",
		Short: "Summarize text from arguments, a file or stdin",
		Example: `  assistant summarize "Our sofas ship within two weeks..."
  assistant summarize --file policy.txt
  cat faq.md | assistant summarize`,
	})
}

func newCodegenCmd(ro *rootOptions) *cobra.Command {
	return newTaskCmd(ro, task.Codegen, &cobra.Command{
		Use:   "codegen [request]",
		Short: "Generate code for a request from arguments, a file or stdin",
		Example: `  assistant codegen "a Go function that validates an order number"
  assistant codegen --file request.txt`,
	})
}

func newTaskCmd(ro *rootOptions, t task.Task, cmd *cobra.Command) *cobra.Command {
	o := &taskOptions{}
	cmd.Args = cobra.ArbitraryArgs
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runTask(cmd, ro, o, t, args)
	}

	cmd.Flags().StringVarP(&o.file, "file", "f", "", "read the input from a file, '-' for stdin")
	cmd.Flags().StringVar(&o.model, "model", "", "model name (default from provider configuration)")
	return cmd
}

// readTaskInput: аргументы, затем --file, иначе stdin.
func readTaskInput(cmd *cobra.Command, o *taskOptions, args []string) (string, error) {
	switch {
	case len(args) > 0 && o.file != "":
		return "", errInputConflict
	case len(args) > 0:
		return strings.Join(args, " "), nil
	case o.file != "" && o.file != "-":
		data, err := os.ReadFile(o.file)
		if err != nil {
			return "", fmt.Errorf("read input: %w", err)
		}
		return string(data), nil
	default:
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read input: %w", err)
		}
		return string(data), nil
	}
}

func runTask(cmd *cobra.Command, ro *rootOptions, o *taskOptions, t task.Task, args []string) error {
	input, err := readTaskInput(cmd, o, args)
	if err != nil {
		return err
	}
	message, err := t.Message(input)
	if err != nil {
		return err
	}

	cfg, logger, err := ro.bootstrap(true)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	deps, err := openSessionDeps(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	model := o.model
	if model == "" {
		model = cfg.Model()
	}

	sess := session.New(session.Config{
		SystemPrompt: t.SystemPrompt,
		Provider:     cfg.LLM.Provider,
		Model:        model,
		Mode:         t.Mode,
		Temperature:  cfg.LLM.Temperature,
		Timeout:      cfg.LLM.Timeout,
	}, deps.client, deps.opts...)

	logger.Debug("task started",
		zap.String("session_id", sess.ID()),
		zap.String("mode", string(t.Mode)),
		zap.Int("input_len", len(input)),
	)

	reply, err := sess.Submit(ctx, message)
	logSessionStats(logger, sess)
	if err != nil {
		return fmt.Errorf("%s: %w", t.Mode, err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), reply)

	stats := sess.Stats()
	fmt.Fprintf(cmd.ErrOrStderr(), "Tokens used: %d, estimated cost: $%.6f\n",
		stats.Usage.TotalTokens, stats.Cost)
	return nil
}
