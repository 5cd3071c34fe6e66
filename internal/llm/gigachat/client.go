// Package gigachat is a chat completion provider for Sber GigaChat. Requests
// are authorized with a short-lived OAuth token exchanged for the auth key.
package gigachat

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/kitbuilder587/support-assistant/internal/llm"
)

const (
	DefaultModel   = "GigaChat"
	defaultAuthURL = "https://ngw.devices.sberbank.ru:9443/api/v2/oauth"
	defaultBaseURL = "https://gigachat.devices.sberbank.ru/api/v1"
	defaultScope   = "GIGACHAT_API_PERS"
)

type Config struct {
	AuthKey      string // base64(client_id:client_secret), если есть - берется он
	ClientID     string
	ClientSecret string
	Scope        string
	Model        string
	AuthURL      string
	BaseURL      string
	Timeout      time.Duration
}

type Client struct {
	baseURL string
	model   string
	http    *http.Client
	tokens  *tokenSource
	logger  *zap.Logger
}

func New(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.AuthURL == "" {
		cfg.AuthURL = defaultAuthURL
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Scope == "" {
		cfg.Scope = defaultScope
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}

	authKey := cfg.AuthKey
	if authKey == "" && cfg.ClientID != "" && cfg.ClientSecret != "" {
		authKey = base64.StdEncoding.EncodeToString([]byte(cfg.ClientID + ":" + cfg.ClientSecret))
	}

	// сертификат GigaChat подписан российским УЦ, которого нет в системном пуле
	httpClient := &http.Client{
		Timeout: cfg.Timeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}

	return &Client{
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		http:    httpClient,
		logger:  logger,
		tokens: &tokenSource{
			authKey: authKey,
			scope:   cfg.Scope,
			authURL: cfg.AuthURL,
			client:  httpClient,
			logger:  logger,
			now:     time.Now,
		},
	}
}

// Complete отправляет транскрипт. Протухший токен (401) обновляется
// один раз, повторный 401 считается отказом в авторизации.
func (c *Client) Complete(ctx context.Context, req llm.Request) (*llm.Completion, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	payload, err := json.Marshal(llm.NewChatRequest(model, req))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	for attempt := 0; ; attempt++ {
		body, status, err := c.post(ctx, payload)
		if err != nil {
			return nil, err
		}

		if status == http.StatusUnauthorized && attempt == 0 {
			c.logger.Debug("gigachat token rejected, refreshing")
			c.tokens.Invalidate()
			continue
		}
		if status != http.StatusOK {
			return nil, llm.HandleHTTPError(status, body, c.logger, "gigachat")
		}

		chatResp, err := llm.ParseChatResponse(body)
		if err != nil {
			return nil, err
		}
		return llm.ExtractCompletion(chatResp, model)
	}
}

func (c *Client) post(ctx context.Context, payload []byte) ([]byte, int, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, 0, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	return llm.DoRequest(c.http, httpReq)
}

var _ llm.Client = (*Client)(nil)
