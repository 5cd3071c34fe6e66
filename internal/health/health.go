// Package health probes the companion web process over HTTP.
package health

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const DefaultTimeout = 5 * time.Second

var ErrUnexpectedStatus = errors.New("unexpected status code")

// StatusError - ответ пришел, но не 200.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %d", ErrUnexpectedStatus, e.Code)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrUnexpectedStatus
}

type Prober struct {
	client *http.Client
}

func NewProber(timeout time.Duration) *Prober {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Prober{client: &http.Client{Timeout: timeout}}
}

// Probe делает GET и ждет ровно 200. Ошибка транспорта возвращается обернутой.
func (p *Prober) Probe(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", url, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))

	if resp.StatusCode != http.StatusOK {
		return &StatusError{Code: resp.StatusCode}
	}
	return nil
}

// Probe - разовая проверка без переиспользования клиента.
func Probe(ctx context.Context, url string, timeout time.Duration) error {
	return NewProber(timeout).Probe(ctx, url)
}
