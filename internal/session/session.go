package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kitbuilder587/support-assistant/internal/domain"
	"github.com/kitbuilder587/support-assistant/internal/llm"
	"github.com/kitbuilder587/support-assistant/internal/repository"
)

type Config struct {
	SystemPrompt string
	Provider     string
	Model        string
	// Mode помечает вызовы в журнале расхода, пустой - ModeChat.
	Mode        domain.Mode
	Temperature float64
	// Timeout ограничивает один вызов сервиса, 0 - без ограничения.
	Timeout time.Duration
}

// NewConfig - конфиг с температурой по умолчанию (0.7).
func NewConfig(systemPrompt, model string) Config {
	return Config{
		SystemPrompt: systemPrompt,
		Model:        model,
		Mode:         domain.ModeChat,
		Temperature:  llm.DefaultTemperature,
	}
}

type Limiter interface {
	Allow(key string) bool
}

type Recorder interface {
	RecordTurn(status string, duration time.Duration)
	RecordRateLimitHit()
	SetTranscriptSize(n int)
}

type Option func(*Session)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m Recorder) Option {
	return func(s *Session) { s.metrics = m }
}

func WithUsageRepository(repo repository.UsageRepository) Option {
	return func(s *Session) { s.usageRepo = repo }
}

func WithLimiter(l Limiter) Option {
	return func(s *Session) { s.limiter = l }
}

func WithID(id string) Option {
	return func(s *Session) {
		if id != "" {
			s.id = id
		}
	}
}

// Session держит транскрипт одного диалога. Submit строит транскрипт-кандидат,
// вызывает сервис и подменяет видимый транскрипт только при успехе,
// так что откатывать при ошибке нечего.
type Session struct {
	mu sync.Mutex

	id         string
	cfg        Config
	client     llm.Client
	transcript domain.Transcript
	usage      domain.Usage
	cost       float64
	turns      int
	failed     int
	latency    time.Duration // сумма по успешным ходам

	logger    *zap.Logger
	metrics   Recorder
	usageRepo repository.UsageRepository
	limiter   Limiter
}

func New(cfg Config, client llm.Client, opts ...Option) *Session {
	if cfg.Mode == "" {
		cfg.Mode = domain.ModeChat
	}
	s := &Session{
		id:         uuid.New().String(),
		cfg:        cfg,
		client:     client,
		transcript: domain.NewTranscript(cfg.SystemPrompt),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.logger = s.logger.With(zap.String("session_id", s.id), zap.String("mode", string(s.cfg.Mode)))
	if s.metrics != nil {
		s.metrics.SetTranscriptSize(s.transcript.Len())
	}
	return s
}

// Submit отправляет реплику пользователя и возвращает ответ ассистента.
// При ошибке транскрипт остается ровно таким, каким был до вызова.
func (s *Session) Submit(ctx context.Context, userText string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	candidate := s.transcript.Append(domain.UserMessage(userText))

	if s.limiter != nil && !s.limiter.Allow(s.id) {
		if s.metrics != nil {
			s.metrics.RecordRateLimitHit()
		}
		return "", s.fail(start, &Error{Kind: KindServiceCall, Err: llm.ErrRateLimit})
	}

	callCtx := ctx
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	resp, err := s.client.Complete(callCtx, llm.Request{
		Model:       s.cfg.Model,
		Messages:    candidate.Messages(),
		Temperature: s.cfg.Temperature,
		N:           1,
	})
	latency := time.Since(start)

	if err == nil && (resp == nil || resp.Message.Content == "") {
		err = llm.ErrEmptyResponse
	}
	if err != nil {
		s.failed++
		s.recordUsage(ctx, domain.UsageRecord{
			Model:     s.cfg.Model,
			Status:    domain.CallFailed,
			Latency:   latency,
			ErrorText: err.Error(),
		})
		return "", s.fail(start, &Error{Kind: classify(err), Err: err})
	}

	model := resp.Model
	if model == "" {
		model = s.cfg.Model
	}
	cost := domain.EstimateCost(model, resp.Usage.TotalTokens)

	reply := resp.Message.Content
	s.transcript = candidate.Append(domain.AssistantMessage(reply))
	s.usage = s.usage.Add(resp.Usage)
	s.cost += cost
	s.latency += latency
	s.turns++

	s.recordUsage(ctx, domain.UsageRecord{
		Model:   model,
		Status:  domain.CallSuccess,
		Usage:   resp.Usage,
		Cost:    cost,
		Latency: latency,
	})
	if s.metrics != nil {
		s.metrics.RecordTurn("success", latency)
		s.metrics.SetTranscriptSize(s.transcript.Len())
	}

	s.logger.Debug("turn completed",
		zap.Int("turn", s.turns),
		zap.Int("transcript_len", s.transcript.Len()),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
		zap.Float64("cost_usd", cost),
		zap.Duration("latency", latency),
	)

	return reply, nil
}

func (s *Session) fail(start time.Time, err *Error) error {
	if s.metrics != nil {
		s.metrics.RecordTurn("failed", time.Since(start))
	}
	s.logger.Warn("turn failed, transcript unchanged",
		zap.String("kind", err.Kind.String()),
		zap.Int("transcript_len", s.transcript.Len()),
		zap.Error(err.Err),
	)
	return err
}

// recordUsage пишет метаданные вызова; ошибка хранилища ход не ломает.
func (s *Session) recordUsage(ctx context.Context, rec domain.UsageRecord) {
	if s.usageRepo == nil {
		return
	}

	rec.SessionID = s.id
	rec.Provider = s.cfg.Provider
	rec.Mode = s.cfg.Mode
	if rec.Model == "" {
		rec.Model = s.cfg.Model
	}
	// отмена родительского контекста не должна терять запись
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := s.usageRepo.Record(ctx, &rec); err != nil {
		s.logger.Warn("failed to record llm usage", zap.Error(err))
	}
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Transcript() domain.Transcript {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript
}

func (s *Session) Messages() []domain.Message {
	return s.Transcript().Messages()
}

func (s *Session) Usage() domain.Usage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usage
}

// Stats - сводка по вызовам сервиса; отказ лимитера вызовом не считается.
func (s *Session) Stats() domain.SessionStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := domain.SessionStats{
		Requests: s.turns + s.failed,
		Failed:   s.failed,
		Usage:    s.usage,
		Cost:     s.cost,
	}
	if s.turns > 0 {
		stats.AvgLatency = s.latency / time.Duration(s.turns)
	}
	return stats
}

func (s *Session) Turns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turns
}
