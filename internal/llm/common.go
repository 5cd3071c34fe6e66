package llm

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/kitbuilder587/support-assistant/internal/domain"
)

type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
	N           int       `json:"n,omitempty"`
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatResponse struct {
	Model   string   `json:"model,omitempty"`
	Choices []Choice `json:"choices"`
	Usage   *Usage   `json:"usage,omitempty"`
}

type Choice struct {
	Message Message `json:"message"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

func NewChatRequest(model string, req Request) ChatRequest {
	msgs := make([]Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, Message{Role: m.Role.String(), Content: m.Content})
	}

	temp := req.Temperature
	return ChatRequest{
		Model:       model,
		Messages:    msgs,
		Temperature: &temp,
		N:           req.N,
	}
}

func HandleHTTPError(statusCode int, body []byte, logger *zap.Logger, provider string) error {
	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrAuthFailed
	case http.StatusTooManyRequests:
		return ErrRateLimit
	default:
		logger.Error(provider+" request failed",
			zap.Int("status", statusCode),
			zap.String("body", string(body)),
		)
		return fmt.Errorf("%w: status %d", ErrRequestFailed, statusCode)
	}
}

func ParseChatResponse(body []byte) (*ChatResponse, error) {
	var resp ChatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: unmarshal response: %v", ErrRequestFailed, err)
	}
	return &resp, nil
}

// ExtractCompletion берет первый choice; пустой ответ считается ошибкой.
func ExtractCompletion(resp *ChatResponse, model string) (*Completion, error) {
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, ErrEmptyResponse
	}

	c := &Completion{
		Model:   model,
		Message: domain.AssistantMessage(resp.Choices[0].Message.Content),
	}
	if resp.Model != "" {
		c.Model = resp.Model
	}
	if resp.Usage != nil {
		c.Usage = domain.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}
	return c, nil
}

func DoRequest(client *http.Client, req *http.Request) ([]byte, int, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("%w: read response: %v", ErrRequestFailed, err)
	}

	return body, resp.StatusCode, nil
}
