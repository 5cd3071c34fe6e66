package llm

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/kitbuilder587/support-assistant/internal/domain"
)

type Recorder interface {
	RecordLLMRequest(provider, status string, duration time.Duration)
	RecordTokens(provider string, usage domain.Usage)
}

type instrumented struct {
	next     Client
	provider string
	recorder Recorder
	logger   *zap.Logger
}

// Instrument оборачивает клиента логированием и метриками. recorder может быть nil.
func Instrument(next Client, provider string, recorder Recorder, logger *zap.Logger) Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &instrumented{
		next:     next,
		provider: provider,
		recorder: recorder,
		logger:   logger,
	}
}

func (c *instrumented) Complete(ctx context.Context, req Request) (*Completion, error) {
	start := time.Now()
	resp, err := c.next.Complete(ctx, req)
	elapsed := time.Since(start)

	status := statusOf(err)
	if c.recorder != nil {
		c.recorder.RecordLLMRequest(c.provider, status, elapsed)
	}

	if err != nil {
		c.logger.Warn("chat completion failed",
			zap.String("provider", c.provider),
			zap.String("model", req.Model),
			zap.String("status", status),
			zap.Duration("latency", elapsed),
			zap.Error(err),
		)
		return nil, err
	}

	if c.recorder != nil {
		c.recorder.RecordTokens(c.provider, resp.Usage)
	}
	c.logger.Debug("chat completion",
		zap.String("provider", c.provider),
		zap.String("model", resp.Model),
		zap.Int("messages", len(req.Messages)),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
		zap.Duration("latency", elapsed),
	)
	return resp, nil
}

func statusOf(err error) string {
	switch {
	case err == nil:
		return "success"
	case IsCredentialError(err):
		return "auth_error"
	case errors.Is(err, ErrRateLimit):
		return "rate_limited"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}
