// Package cli defines the cobra commands of the assistant binary.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kitbuilder587/support-assistant/internal/config"
	"github.com/kitbuilder587/support-assistant/internal/session"
)

var version = "dev" // задается через ldflags

type rootOptions struct {
	envFiles []string
	logLevel string
}

// NewRootCmd собирает дерево команд заново, чтобы тесты не делили состояние флагов.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "assistant",
		Short: "The Furnish Hub customer support assistant",
		Long: `assistant is a command-line customer support assistant for The Furnish Hub.
It keeps a conversation transcript, forwards each message to a chat completion
service and prints the reply. One-shot summarize and codegen commands reuse the
same service. It also ships connectivity checks and a small companion web
process used by the setup diagnostics.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	cmd.PersistentFlags().StringSliceVar(&opts.envFiles, "env-file", nil, "dotenv file to load, repeatable (default .env and .env.local)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error), overrides LOG_LEVEL")

	cmd.AddCommand(
		newChatCmd(opts),
		newSummarizeCmd(opts),
		newCodegenCmd(opts),
		newCheckCmd(opts),
		newDiagnoseCmd(opts),
		newServeCmd(opts),
		newUsageCmd(opts),
	)

	return cmd
}

// bootstrap читает конфиг и поднимает логгер; общее начало всех команд.
// requireKey - команде нужен ключ сервиса, без него она не стартует.
func (o *rootOptions) bootstrap(requireKey bool) (*config.Config, *zap.Logger, error) {
	var (
		cfg *config.Config
		err error
	)
	if len(o.envFiles) > 0 {
		cfg, err = config.LoadFrom(o.envFiles...)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	if requireKey {
		if err := cfg.ValidateCredentials(); err != nil {
			return nil, nil, session.ClientInitError(err)
		}
	}

	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}

	return cfg, logger, nil
}
