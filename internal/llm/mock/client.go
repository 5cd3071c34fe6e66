package mock

import (
	"context"
	"sync"
	"time"

	"github.com/kitbuilder587/support-assistant/internal/domain"
	"github.com/kitbuilder587/support-assistant/internal/llm"
)

// Client - скриптуемый клиент для тестов и офлайн-демо.
// Ответы из Script отдаются по очереди, дальше повторяется Response.
type Client struct {
	mu sync.Mutex

	Response string
	Script   []Reply
	Error    error
	Delay    time.Duration
	Usage    domain.Usage

	CallCount int
	LastModel string
	AllCalls  []llm.Request
}

type Reply struct {
	Text  string
	Err   error
	Usage domain.Usage
}

func New() *Client {
	return &Client{
		Response: "Thanks for reaching out to The Furnish Hub! How can I help?",
		Usage:    domain.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}
}

func (c *Client) WithResponse(response string) *Client {
	c.Response = response
	return c
}

func (c *Client) WithError(err error) *Client {
	c.Error = err
	return c
}

func (c *Client) WithDelay(delay time.Duration) *Client {
	c.Delay = delay
	return c
}

func (c *Client) WithUsage(usage domain.Usage) *Client {
	c.Usage = usage
	return c
}

func (c *Client) WithScript(replies ...Reply) *Client {
	c.Script = append(c.Script, replies...)
	return c
}

func (c *Client) Complete(ctx context.Context, req llm.Request) (*llm.Completion, error) {
	c.mu.Lock()
	c.CallCount++
	c.LastModel = req.Model
	// копируем, чтобы тест видел ровно то, что ушло в запрос
	snapshot := req
	snapshot.Messages = append([]domain.Message(nil), req.Messages...)
	c.AllCalls = append(c.AllCalls, snapshot)

	text, usage, err := c.Response, c.Usage, c.Error
	if len(c.Script) > 0 {
		next := c.Script[0]
		c.Script = c.Script[1:]
		text, err = next.Text, next.Err
		if next.Usage != (domain.Usage{}) {
			usage = next.Usage
		}
	}
	delay := c.Delay
	c.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	if err != nil {
		return nil, err
	}
	if text == "" {
		return nil, llm.ErrEmptyResponse
	}

	return &llm.Completion{
		Model:   req.Model,
		Message: domain.AssistantMessage(text),
		Usage:   usage,
	}, nil
}

func (c *Client) Calls() []llm.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]llm.Request(nil), c.AllCalls...)
}

func (c *Client) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CallCount = 0
	c.LastModel = ""
	c.AllCalls = nil
	c.Script = nil
}

var _ llm.Client = (*Client)(nil)
