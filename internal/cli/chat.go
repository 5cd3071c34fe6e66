package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kitbuilder587/support-assistant/internal/config"
	"github.com/kitbuilder587/support-assistant/internal/console"
	"github.com/kitbuilder587/support-assistant/internal/domain"
	"github.com/kitbuilder587/support-assistant/internal/llm"
	"github.com/kitbuilder587/support-assistant/internal/llm/provider"
	"github.com/kitbuilder587/support-assistant/internal/metrics"
	"github.com/kitbuilder587/support-assistant/internal/ratelimit"
	"github.com/kitbuilder587/support-assistant/internal/repository/postgres"
	"github.com/kitbuilder587/support-assistant/internal/server"
	"github.com/kitbuilder587/support-assistant/internal/session"
)

type chatOptions struct {
	systemPrompt   string
	noSystemPrompt bool
	model          string
}

func newChatCmd(ro *rootOptions) *cobra.Command {
	o := &chatOptions{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive conversation with the assistant",
		Long: `Start an interactive conversation. Each line you type is sent to the
assistant together with the conversation so far. Type 'exit' to quit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, ro, o)
		},
	}

	cmd.Flags().StringVar(&o.systemPrompt, "system-prompt", "", "system prompt for the session (default ASSISTANT_SYSTEM_PROMPT)")
	cmd.Flags().BoolVar(&o.noSystemPrompt, "no-system-prompt", false, "start the session without a system prompt")
	cmd.Flags().StringVar(&o.model, "model", "", "model name (default from provider configuration)")
	cmd.MarkFlagsMutuallyExclusive("system-prompt", "no-system-prompt")

	return cmd
}

func (o *chatOptions) resolvePrompt(cmd *cobra.Command, cfg *config.Config) string {
	switch {
	case o.noSystemPrompt:
		return ""
	case cmd.Flags().Changed("system-prompt"):
		return o.systemPrompt
	default:
		return cfg.Assistant.SystemPrompt
	}
}

func runChat(cmd *cobra.Command, ro *rootOptions, o *chatOptions) error {
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
		SystemPrompt: o.resolvePrompt(cmd, cfg),
		Provider:     cfg.LLM.Provider,
		Model:        model,
		Mode:         domain.ModeChat,
		Temperature:  cfg.LLM.Temperature,
		Timeout:      cfg.LLM.Timeout,
	}, deps.client, deps.opts...)

	logger.Info("chat session started",
		zap.String("session_id", sess.ID()),
		zap.String("provider", cfg.LLM.Provider),
		zap.String("model", model),
	)

	con := console.New(cmd.InOrStdin(), cmd.OutOrStdout(), sess, console.Options{
		Greeting: cfg.Assistant.Greeting,
		Farewell: cfg.Assistant.Farewell,
		Logger:   logger,
	})

	err = con.Run(ctx)
	logSessionStats(logger, sess)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("chat: %w", err)
	}
	return nil
}

// sessionDeps - клиент и опции сессии, общие для chat и разовых задач.
type sessionDeps struct {
	client  llm.Client
	opts    []session.Option
	closers []func()
}

func openSessionDeps(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*sessionDeps, error) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg, reg)
	if cfg.Metrics.Addr != "" {
		srv := server.New(server.Config{
			Addr:    cfg.Metrics.Addr,
			Service: cfg.Observability.Service,
		}, m.Handler(), logger)
		go func() {
			if err := srv.Run(ctx); err != nil {
				logger.Warn("metrics server stopped", zap.Error(err))
			}
		}()
	}

	client, err := provider.NewInstrumented(cfg, m, logger)
	if err != nil {
		return nil, session.ClientInitError(err)
	}

	d := &sessionDeps{
		client: client,
		opts: []session.Option{
			session.WithLogger(logger),
			session.WithMetrics(m),
		},
	}

	// 0 и меньше - лимит выключен
	if rpm := cfg.RateLimit.RequestsPerMinute; rpm > 0 {
		limiter := ratelimit.New(ratelimit.Config{RequestsPerMinute: rpm})
		d.closers = append(d.closers, limiter.Stop)
		d.opts = append(d.opts, session.WithLimiter(limiter))
	}

	if cfg.Database.URL != "" {
		db, err := openUsageDB(ctx, cfg.Database.URL)
		if err != nil {
			// журнал расхода опционален, сессия работает и без него
			logger.Warn("usage ledger disabled", zap.Error(err))
		} else {
			d.closers = append(d.closers, db.Close)
			d.opts = append(d.opts, session.WithUsageRepository(postgres.NewUsageRepo(db)))
		}
	}

	return d, nil
}

func (d *sessionDeps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

func logSessionStats(logger *zap.Logger, sess *session.Session) {
	stats := sess.Stats()
	logger.Info("session metrics",
		zap.String("session_id", sess.ID()),
		zap.Int("request_count", stats.Requests),
		zap.Int("failed_count", stats.Failed),
		zap.Int("token_count", stats.Usage.TotalTokens),
		zap.Float64("total_cost", stats.Cost),
		zap.Duration("avg_response_time", stats.AvgLatency),
	)
}

func openUsageDB(ctx context.Context, url string) (*postgres.DB, error) {
	db, err := postgres.New(ctx, url)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
