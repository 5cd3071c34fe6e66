package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/kitbuilder587/support-assistant/internal/llm"
)

type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

type Client struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://openrouter.ai/api/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "openai/gpt-4o-mini"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}

	return &Client{
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
	}
}

type openRouterResponse struct {
	llm.ChatResponse
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code"`
}

func (c *Client) Complete(ctx context.Context, req llm.Request) (*llm.Completion, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	body, err := json.Marshal(llm.NewChatRequest(model, req))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("HTTP-Referer", "https://github.com/kitbuilder587/support-assistant")
	httpReq.Header.Set("X-Title", "The Furnish Hub Assistant")

	respBody, statusCode, err := llm.DoRequest(c.client, httpReq)
	if err != nil {
		return nil, err
	}

	if statusCode != http.StatusOK {
		return nil, llm.HandleHTTPError(statusCode, respBody, c.logger, "openrouter")
	}

	var chatResp openRouterResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, fmt.Errorf("%w: unmarshal response: %v", llm.ErrRequestFailed, err)
	}

	// openrouter иногда отдает 200 с ошибкой в теле
	if chatResp.Error != nil {
		return nil, fmt.Errorf("%w: %s", llm.ErrRequestFailed, chatResp.Error.Message)
	}

	return llm.ExtractCompletion(&chatResp.ChatResponse, model)
}

var _ llm.Client = (*Client)(nil)
