package gigachat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kitbuilder587/support-assistant/internal/llm"
)

// tokenLeeway - токен обновляется заранее, чтобы не истек посреди запроса.
const tokenLeeway = 5 * time.Minute

type oauthToken struct {
	AccessToken string `json:"access_token"`
	ExpiresAt   int64  `json:"expires_at"` // unix ms
}

// tokenSource выдает OAuth-токен и держит его до истечения.
type tokenSource struct {
	authKey string
	scope   string
	authURL string
	client  *http.Client
	logger  *zap.Logger
	now     func() time.Time

	mu     sync.Mutex
	token  string
	expiry time.Time
}

func (s *tokenSource) valid() bool {
	return s.token != "" && s.now().Before(s.expiry.Add(-tokenLeeway))
}

// Token отдает закешированный токен или запрашивает новый.
// Лок держится на время запроса, так что параллельные вызовы делают один обмен.
func (s *tokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.valid() {
		return s.token, nil
	}

	tok, err := s.exchange(ctx)
	if err != nil {
		return "", err
	}

	s.token = tok.AccessToken
	s.expiry = time.UnixMilli(tok.ExpiresAt)
	s.logger.Debug("gigachat token refreshed", zap.Time("expires", s.expiry))

	return s.token, nil
}

func (s *tokenSource) Invalidate() {
	s.mu.Lock()
	s.token = ""
	s.expiry = time.Time{}
	s.mu.Unlock()
}

func (s *tokenSource) exchange(ctx context.Context) (*oauthToken, error) {
	form := url.Values{"scope": {s.scope}}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.authURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create auth request: %w", err)
	}
	req.Header.Set("Authorization", "Basic "+s.authKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("RqUID", uuid.New().String()) // обязателен, уникален на запрос

	body, status, err := llm.DoRequest(s.client, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", llm.ErrAuthFailed, err)
	}
	if status != http.StatusOK {
		s.logger.Error("gigachat auth failed",
			zap.Int("status", status),
			zap.String("body", string(body)),
		)
		return nil, fmt.Errorf("%w: oauth status %d", llm.ErrAuthFailed, status)
	}

	var tok oauthToken
	if err := json.Unmarshal(body, &tok); err != nil {
		return nil, fmt.Errorf("%w: decode oauth response: %v", llm.ErrRequestFailed, err)
	}
	if tok.AccessToken == "" {
		return nil, fmt.Errorf("%w: empty access token", llm.ErrAuthFailed)
	}
	return &tok, nil
}
