package llm

import (
	"context"
	"errors"

	"github.com/kitbuilder587/support-assistant/internal/domain"
)

var (
	ErrAuthFailed      = errors.New("authentication failed")
	ErrRequestFailed   = errors.New("request failed")
	ErrEmptyResponse   = errors.New("empty response")
	ErrRateLimit       = errors.New("rate limit exceeded")
	ErrMissingAPIKey   = errors.New("api key is not set")
	ErrUnknownProvider = errors.New("unknown llm provider")
)

const DefaultTemperature = 0.7

type Request struct {
	Model       string
	Messages    []domain.Message
	Temperature float64
	N           int
}

type Completion struct {
	Model   string
	Message domain.Message
	Usage   domain.Usage
}

type Client interface {
	Complete(ctx context.Context, req Request) (*Completion, error)
}

// IsCredentialError - ключ отсутствует или отвергнут сервисом.
func IsCredentialError(err error) bool {
	return errors.Is(err, ErrAuthFailed) || errors.Is(err, ErrMissingAPIKey)
}
