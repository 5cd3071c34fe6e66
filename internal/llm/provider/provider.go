// Package provider builds the chat completion client selected by configuration.
package provider

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/kitbuilder587/support-assistant/internal/config"
	"github.com/kitbuilder587/support-assistant/internal/llm"
	"github.com/kitbuilder587/support-assistant/internal/llm/gigachat"
	"github.com/kitbuilder587/support-assistant/internal/llm/mock"
	"github.com/kitbuilder587/support-assistant/internal/llm/openai"
	"github.com/kitbuilder587/support-assistant/internal/llm/openrouter"
)

// New returns the raw provider client. Missing credentials yield llm.ErrMissingAPIKey,
// an unsupported provider name yields llm.ErrUnknownProvider.
func New(cfg *config.Config, logger *zap.Logger) (llm.Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch cfg.LLM.Provider {
	case config.ProviderOpenAI:
		client, err := openai.New(openai.Config{
			APIKey:     cfg.LLM.OpenAI.APIKey,
			Model:      cfg.LLM.OpenAI.Model,
			BaseURL:    cfg.LLM.OpenAI.BaseURL,
			Timeout:    cfg.LLM.Timeout,
			MaxRetries: cfg.LLM.MaxRetries,
		}, logger)
		if err != nil {
			return nil, err
		}
		return client, nil

	case config.ProviderOpenRouter:
		if cfg.LLM.OpenRouter.APIKey == "" {
			return nil, llm.ErrMissingAPIKey
		}
		return openrouter.New(openrouter.Config{
			APIKey:  cfg.LLM.OpenRouter.APIKey,
			Model:   cfg.LLM.OpenRouter.Model,
			BaseURL: cfg.LLM.OpenRouter.BaseURL,
			Timeout: cfg.LLM.Timeout,
		}, logger), nil

	case config.ProviderGigaChat:
		gc := cfg.LLM.GigaChat
		if gc.AuthKey == "" && (gc.ClientID == "" || gc.ClientSecret == "") {
			return nil, llm.ErrMissingAPIKey
		}
		return gigachat.New(gigachat.Config{
			AuthKey:      gc.AuthKey,
			ClientID:     gc.ClientID,
			ClientSecret: gc.ClientSecret,
			Scope:        gc.Scope,
			Model:        gc.Model,
			AuthURL:      gc.AuthURL,
			BaseURL:      gc.BaseURL,
			Timeout:      cfg.LLM.Timeout,
		}, logger), nil

	case config.ProviderMock:
		logger.Warn("using mock llm provider, replies are canned")
		return mock.New(), nil

	default:
		return nil, fmt.Errorf("%w: %q", llm.ErrUnknownProvider, cfg.LLM.Provider)
	}
}

// NewInstrumented is New wrapped with logging and, when recorder is not nil, metrics.
func NewInstrumented(cfg *config.Config, recorder llm.Recorder, logger *zap.Logger) (llm.Client, error) {
	client, err := New(cfg, logger)
	if err != nil {
		return nil, err
	}
	return llm.Instrument(client, cfg.LLM.Provider, recorder, logger), nil
}
