package cli

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/kitbuilder587/support-assistant/internal/metrics"
	"github.com/kitbuilder587/support-assistant/internal/server"
)

func newServeCmd(ro *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the companion web process (status page, health and metrics)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := ro.bootstrap(false)
			if err != nil {
				return err
			}
			defer logger.Sync()

			if addr == "" {
				addr = cfg.Server.Addr
			}

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			m := metrics.NewWithRegistry(reg, reg)

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			srv := server.New(server.Config{
				Addr:    addr,
				Service: cfg.Observability.Service,
			}, m.Handler(), logger)

			cmd.Printf("Serving on %s, press Ctrl+C to stop\n", addr)
			return srv.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default SERVER_ADDR)")
	return cmd
}
