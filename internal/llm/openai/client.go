// Package openai talks to the OpenAI Chat Completions API through the official SDK.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"

	"github.com/kitbuilder587/support-assistant/internal/domain"
	"github.com/kitbuilder587/support-assistant/internal/llm"
)

const DefaultModel = "gpt-4o-mini"

type Config struct {
	APIKey     string
	Model      string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

type Client struct {
	client openai.Client
	model  string
	logger *zap.Logger
}

func New(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, llm.ErrMissingAPIKey
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
		option.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Client{
		client: openai.NewClient(opts...),
		model:  cfg.Model,
		logger: logger,
	}, nil
}

func (c *Client) Complete(ctx context.Context, req llm.Request) (*llm.Completion, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case domain.RoleSystem:
			messages = append(messages, openai.SystemMessage(m.Content))
		case domain.RoleUser:
			messages = append(messages, openai.UserMessage(m.Content))
		case domain.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(m.Content))
		default:
			return nil, fmt.Errorf("%w: unsupported role %q", llm.ErrRequestFailed, m.Role)
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(model),
		Messages:    messages,
		Temperature: openai.Float(req.Temperature),
	}
	if req.N > 0 {
		params.N = openai.Int(int64(req.N))
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, c.mapError(err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, llm.ErrEmptyResponse
	}

	completion := &llm.Completion{
		Model:   model,
		Message: domain.AssistantMessage(resp.Choices[0].Message.Content),
		Usage: domain.Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}
	if resp.Model != "" {
		completion.Model = resp.Model
	}
	return completion, nil
}

func (c *Client) mapError(err error) error {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		// контекстные ошибки сохраняем в цепочке, по ним считается timeout
		return fmt.Errorf("%w: %w", llm.ErrRequestFailed, err)
	}

	switch apiErr.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", llm.ErrAuthFailed, apiErr.Message)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", llm.ErrRateLimit, apiErr.Message)
	default:
		c.logger.Error("openai request failed",
			zap.Int("status", apiErr.StatusCode),
			zap.String("type", apiErr.Type),
			zap.String("message", apiErr.Message),
		)
		return fmt.Errorf("%w: status %d: %s", llm.ErrRequestFailed, apiErr.StatusCode, apiErr.Message)
	}
}

var _ llm.Client = (*Client)(nil)
