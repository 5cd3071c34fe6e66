package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/kitbuilder587/support-assistant/internal/diagnostics"
	"github.com/kitbuilder587/support-assistant/internal/llm/provider"
	"github.com/kitbuilder587/support-assistant/internal/session"
)

var errCheckFailed = errors.New("connectivity check failed")

func newCheckCmd(ro *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Send a fixed prompt to the chat completion service and report the reply",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := ro.bootstrap(false)
			if err != nil {
				return err
			}
			defer logger.Sync()

			// ключ проверяем здесь, а не в bootstrap: отказ тоже печатается отчетом
			if err := cfg.ValidateCredentials(); err != nil {
				err = session.ClientInitError(err)
				diagnostics.RenderConnectivity(cmd.OutOrStdout(), nil, err)
				return err
			}

			client, err := provider.NewInstrumented(cfg, nil, logger)
			if err != nil {
				err = session.ClientInitError(err)
				diagnostics.RenderConnectivity(cmd.OutOrStdout(), nil, err)
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if cfg.LLM.Timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, cfg.LLM.Timeout)
				defer cancel()
			}

			res, err := diagnostics.CheckConnectivity(ctx, client, cfg.Model(), cfg.LLM.Temperature)
			diagnostics.RenderConnectivity(cmd.OutOrStdout(), res, err)
			if err != nil {
				return errCheckFailed
			}
			return nil
		},
	}
}
