// Package console runs the interactive read-eval-print loop over a session.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kitbuilder587/support-assistant/internal/domain"
	"github.com/kitbuilder587/support-assistant/internal/llm"
	"github.com/kitbuilder587/support-assistant/internal/session"
)

// ExitCommand завершает диалог, регистр не важен.
const ExitCommand = "exit"

const (
	promptText = "\nYou: "
	errorText  = "An error occurred while communicating with the assistant service"
)

type Submitter interface {
	Submit(ctx context.Context, userText string) (string, error)
	Stats() domain.SessionStats
}

type Options struct {
	Greeting string
	Farewell string
	Logger   *zap.Logger
}

type Console struct {
	in       io.Reader
	out      io.Writer
	session  Submitter
	greeting string
	farewell string
	logger   *zap.Logger
}

func New(in io.Reader, out io.Writer, s Submitter, opts Options) *Console {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Console{
		in:       in,
		out:      out,
		session:  s,
		greeting: opts.Greeting,
		farewell: opts.Farewell,
		logger:   logger,
	}
}

// IsExit сравнивает строку без разделителя строки с ExitCommand.
// Пробелы вокруг слова значимы: " exit" уходит ассистенту как обычный текст.
func IsExit(line string) bool {
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")
	return strings.EqualFold(line, ExitCommand)
}

type readResult struct {
	line string
	err  error
}

// Run крутит цикл до exit, EOF на входе или отмены ctx.
// Ошибки сервиса печатаются и цикл продолжается.
func (c *Console) Run(ctx context.Context) error {
	// читатель живет не дольше Run
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if c.greeting != "" {
		fmt.Fprintln(c.out, c.greeting)
	}

	lines := make(chan readResult)
	go c.readLines(ctx, lines)

	for {
		fmt.Fprint(c.out, promptText)

		var res readResult
		var ok bool
		select {
		case <-ctx.Done():
			fmt.Fprintln(c.out)
			c.goodbye()
			return ctx.Err()
		case res, ok = <-lines:
		}

		if !ok {
			// EOF ведет себя как exit
			fmt.Fprintln(c.out)
			c.goodbye()
			return nil
		}
		if res.err != nil {
			return fmt.Errorf("read input: %w", res.err)
		}

		if IsExit(res.line) {
			c.goodbye()
			return nil
		}
		if strings.TrimSpace(res.line) == "" {
			continue
		}

		reply, err := c.session.Submit(ctx, res.line)
		if err != nil {
			c.logger.Debug("turn failed", zap.Error(err))
			fmt.Fprintln(c.out, errorMessage(err))
			continue
		}

		fmt.Fprintf(c.out, "Assistant: %s\n", reply)
	}
}

func (c *Console) readLines(ctx context.Context, out chan<- readResult) {
	defer close(out)

	scanner := bufio.NewScanner(c.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		select {
		case out <- readResult{line: scanner.Text()}:
		case <-ctx.Done():
			return
		}
	}
	if err := scanner.Err(); err != nil {
		select {
		case out <- readResult{err: err}:
		case <-ctx.Done():
		}
	}
}

func (c *Console) goodbye() {
	stats := c.session.Stats()
	if stats.Usage.TotalTokens > 0 {
		fmt.Fprintf(c.out, "Total tokens used this session: %d\n", stats.Usage.TotalTokens)
		fmt.Fprintf(c.out, "Estimated cost: $%.6f\n", stats.Cost)
	}
	if stats.Requests > 0 {
		fmt.Fprintf(c.out, "Requests: %d, average response time: %s\n",
			stats.Requests, stats.AvgLatency.Round(time.Millisecond))
	}
	if c.farewell != "" {
		fmt.Fprintln(c.out, c.farewell)
	}
}

func errorMessage(err error) string {
	msg := fmt.Sprintf("%s: %v", errorText, err)

	switch {
	case session.KindOf(err) == session.KindCredential:
		return msg + "\nCheck that OPENAI_KEY is set and valid in .env.local."
	case errors.Is(err, llm.ErrRateLimit):
		return msg + "\nPlease wait a moment and try again."
	default:
		return msg
	}
}
