package ratelimit

import (
	"sync"
	"time"
)

// Limiter - sliding window rate limiter на ключ (id сессии).
// Ограничивает исходящие запросы к LLM, чтобы не упираться в квоту провайдера.
type Limiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int
	window   time.Duration
	now      func() time.Time

	stopOnce sync.Once
	stop     chan struct{}
}

type Config struct {
	RequestsPerMinute int
	Window            time.Duration
}

func New(cfg Config) *Limiter {
	limit := cfg.RequestsPerMinute
	if limit <= 0 {
		limit = 10
	}
	window := cfg.Window
	if window <= 0 {
		window = time.Minute
	}

	l := &Limiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	go l.cleanup()
	return l
}

func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	fresh := l.freshLocked(key, now)

	if len(fresh) >= l.limit {
		l.requests[key] = fresh
		return false
	}

	l.requests[key] = append(fresh, now)
	return true
}

func (l *Limiter) RemainingRequests(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.window)
	cnt := 0
	for _, t := range l.requests[key] {
		if t.After(cutoff) {
			cnt++
		}
	}

	if rem := l.limit - cnt; rem > 0 {
		return rem
	}
	return 0
}

// ResetTime - когда освободится место в окне (приблизительно)
func (l *Limiter) ResetTime(key string) time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()

	ts := l.requests[key]
	if len(ts) == 0 {
		return l.now()
	}

	oldest := ts[0]
	for _, t := range ts[1:] {
		if t.Before(oldest) {
			oldest = t
		}
	}
	return oldest.Add(l.window)
}

func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *Limiter) freshLocked(key string, now time.Time) []time.Time {
	cutoff := now.Add(-l.window)
	old := l.requests[key]
	fresh := old[:0] // reuse underlying array
	for _, t := range old {
		if t.After(cutoff) {
			fresh = append(fresh, t)
		}
	}
	return fresh
}

func (l *Limiter) cleanup() {
	tick := time.NewTicker(5 * time.Minute)
	defer tick.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-tick.C:
			l.removeStale()
		}
	}
}

func (l *Limiter) removeStale() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for key := range l.requests {
		fresh := l.freshLocked(key, now)
		if len(fresh) == 0 {
			delete(l.requests, key)
		} else {
			l.requests[key] = fresh
		}
	}
}
