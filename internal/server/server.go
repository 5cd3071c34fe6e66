// Package server is the companion web process probed by diagnostics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const defaultShutdownTimeout = 10 * time.Second

type Config struct {
	Addr            string
	Service         string
	ShutdownTimeout time.Duration
}

type Server struct {
	cfg     Config
	http    *http.Server
	logger  *zap.Logger
	started time.Time
}

var indexTmpl = template.Must(template.New("index").Parse(`<!doctype html>
<html>
<head><title>{{.Service}}</title></head>
<body>
<h1>The Furnish Hub assistant</h1>
<p>Service <b>{{.Service}}</b> is running, uptime {{.Uptime}}.</p>
<p>Start a conversation from the terminal: <code>assistant chat</code></p>
</body>
</html>
`))

// New собирает сервер. metrics может быть nil, тогда /metrics не отдается.
func New(cfg Config, metrics http.Handler, logger *zap.Logger) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8000"
	}
	if cfg.Service == "" {
		cfg.Service = "support-assistant"
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		cfg:     cfg,
		logger:  logger,
		started: time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	if metrics != nil {
		mux.Handle("/metrics", metrics)
	}
	mux.HandleFunc("/", s.handleIndex)

	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Run слушает адрес до отмены ctx, затем мягко гасит сервер.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server started", zap.String("addr", s.cfg.Addr))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("http server stopping")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}

type healthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Uptime  string `json:"uptime"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(healthResponse{
		Status:  "ok",
		Service: s.cfg.Service,
		Uptime:  s.uptime(),
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := indexTmpl.Execute(w, struct {
		Service string
		Uptime  string
	}{s.cfg.Service, s.uptime()})
	if err != nil {
		s.logger.Error("failed to render index", zap.Error(err))
	}
}

func (s *Server) uptime() string {
	return time.Since(s.started).Truncate(time.Second).String()
}
