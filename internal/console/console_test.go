package console

import (
	"bytes"
	"context"
	"errors"
	"io"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kitbuilder587/support-assistant/internal/domain"
	"github.com/kitbuilder587/support-assistant/internal/llm"
	"github.com/kitbuilder587/support-assistant/internal/llm/mock"
	"github.com/kitbuilder587/support-assistant/internal/session"
)

func TestIsExit(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"exit", true},
		{"EXIT", true},
		{"Exit", true},
		{"exit\n", true},
		{"exit\r\n", true},
		{" exit", false},
		{"exit ", false},
		{"exit now", false},
		{"quit", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.want, IsExit(tt.line))
		})
	}
}

func newSession(client llm.Client) *session.Session {
	return session.New(session.NewConfig("You are a test assistant.", "gpt-4o-mini"), client)
}

func TestRun_ExitWithoutCall(t *testing.T) {
	for _, input := range []string{"exit\n", "EXIT\n", "Exit\n"} {
		t.Run(strings.TrimSpace(input), func(t *testing.T) {
			client := mock.New()
			s := newSession(client)
			before := s.Transcript()
			var out bytes.Buffer

			c := New(strings.NewReader(input), &out, s, Options{Farewell: "Goodbye!"})
			require.NoError(t, c.Run(context.Background()))

			assert.Equal(t, 0, client.CallCount)
			assert.True(t, before.Equal(s.Transcript()))
			assert.Contains(t, out.String(), "Goodbye!")
			assert.NotContains(t, out.String(), "Requests:")
		})
	}
}

func TestRun_Conversation(t *testing.T) {
	client := mock.New().WithScript(mock.Reply{Text: "pong", Usage: domain.Usage{TotalTokens: 5}})
	s := newSession(client)
	var out bytes.Buffer

	c := New(strings.NewReader("ping\nexit\n"), &out, s, Options{
		Greeting: "Welcome!",
		Farewell: "Goodbye!",
	})
	require.NoError(t, c.Run(context.Background()))

	got := out.String()
	assert.True(t, strings.HasPrefix(got, "Welcome!\n"))
	assert.Contains(t, got, "\nYou: Assistant: pong\n")
	assert.Contains(t, got, "Total tokens used this session: 5")
	assert.Contains(t, got, "Estimated cost: $0.000010")
	assert.Contains(t, got, "Requests: 1, average response time: ")
	assert.True(t, strings.HasSuffix(got, "Goodbye!\n"))
	assert.Equal(t, 3, s.Transcript().Len())
}

func TestRun_ErrorKeepsLoopAlive(t *testing.T) {
	client := mock.New().WithScript(
		mock.Reply{Err: errors.New("connection refused")},
		mock.Reply{Text: "pong"},
	)
	s := newSession(client)
	var out bytes.Buffer

	c := New(strings.NewReader("ping\nping\nexit\n"), &out, s, Options{})
	require.NoError(t, c.Run(context.Background()))

	got := out.String()
	assert.Contains(t, got, "An error occurred while communicating with the assistant service: service call failed: connection refused")
	assert.Contains(t, got, "Assistant: pong")
	assert.Equal(t, 2, client.CallCount)
	assert.Equal(t, 3, s.Transcript().Len())
}

func TestRun_CredentialHint(t *testing.T) {
	s := newSession(mock.New().WithError(llm.ErrAuthFailed))
	var out bytes.Buffer

	c := New(strings.NewReader("hello\nexit\n"), &out, s, Options{})
	require.NoError(t, c.Run(context.Background()))

	assert.Contains(t, out.String(), "credential error: authentication failed")
	assert.Contains(t, out.String(), "OPENAI_KEY")
}

func TestRun_BlankLinesSkipped(t *testing.T) {
	client := mock.New()
	s := newSession(client)
	var out bytes.Buffer

	c := New(strings.NewReader("\n   \nexit\n"), &out, s, Options{})
	require.NoError(t, c.Run(context.Background()))

	assert.Equal(t, 0, client.CallCount)
	assert.Equal(t, 3, strings.Count(out.String(), "You: "))
}

func TestRun_EOFEndsSession(t *testing.T) {
	client := mock.New().WithResponse("hi there")
	s := newSession(client)
	var out bytes.Buffer

	c := New(strings.NewReader("hello"), &out, s, Options{Farewell: "Goodbye!"})
	require.NoError(t, c.Run(context.Background()))

	assert.Equal(t, 1, client.CallCount)
	assert.Contains(t, out.String(), "Assistant: hi there")
	assert.Contains(t, out.String(), "Goodbye!")
}

func TestRun_ContextCancel(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	s := newSession(mock.New())
	var out bytes.Buffer
	c := New(pr, &out, s, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("tty closed")
}

func TestRun_ReadError(t *testing.T) {
	c := New(failingReader{}, io.Discard, newSession(mock.New()), Options{})

	err := c.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tty closed")
}

func TestRun_ExitReleasesReader(t *testing.T) {
	base := runtime.NumGoroutine()

	for i := 0; i < 50; i++ {
		c := New(strings.NewReader("exit\nmore\nlines\n"), io.Discard, newSession(mock.New()), Options{})
		require.NoError(t, c.Run(context.Background()))
	}

	// читатели выходят асинхронно после cancel
	require.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= base+2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRun_FailedRequestsCounted(t *testing.T) {
	client := mock.New().WithScript(mock.Reply{Err: llm.ErrRequestFailed})
	var out bytes.Buffer

	c := New(strings.NewReader("ping\nexit\n"), &out, newSession(client), Options{})
	require.NoError(t, c.Run(context.Background()))

	got := out.String()
	assert.NotContains(t, got, "Total tokens used")
	assert.Contains(t, got, "Requests: 1, average response time: 0s")
}
