package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kitbuilder587/support-assistant/internal/domain"
)

type Metrics struct {
	TurnsTotal   *prometheus.CounterVec
	TurnDuration prometheus.Histogram

	LLMRequestsTotal   *prometheus.CounterVec
	LLMRequestDuration *prometheus.HistogramVec
	LLMTokensTotal     *prometheus.CounterVec

	RateLimitHitsTotal prometheus.Counter

	TranscriptMessages prometheus.Gauge

	gatherer prometheus.Gatherer
}

// New регистрирует метрики в дефолтном registry prometheus.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
}

// NewWithRegistry нужен тестам и второму экземпляру в одном процессе,
// повторная регистрация в дефолтном registry паникует.
func NewWithRegistry(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	factory := promauto.With(reg)

	m := &Metrics{
		TurnsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assistant_turns_total",
				Help: "Total number of conversation turns submitted",
			},
			[]string{"status"},
		),
		TurnDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "assistant_turn_duration_seconds",
				Help:    "Turn duration in seconds, from user input to assistant reply",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
		),

		LLMRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assistant_llm_requests_total",
				Help: "Total number of chat completion requests",
			},
			[]string{"provider", "status"},
		),
		LLMRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "assistant_llm_request_duration_seconds",
				Help:    "Chat completion request duration in seconds",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"provider"},
		),
		LLMTokensTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assistant_llm_tokens_total",
				Help: "Total number of tokens reported by the chat completion service",
			},
			[]string{"provider", "type"},
		),

		RateLimitHitsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "assistant_rate_limit_hits_total",
				Help: "Total number of turns refused by the local rate limiter",
			},
		),

		TranscriptMessages: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "assistant_transcript_messages",
				Help: "Number of messages in the current session transcript",
			},
		),

		gatherer: gatherer,
	}

	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) RecordTurn(status string, duration time.Duration) {
	m.TurnsTotal.WithLabelValues(status).Inc()
	m.TurnDuration.Observe(duration.Seconds())
}

func (m *Metrics) RecordLLMRequest(provider, status string, duration time.Duration) {
	m.LLMRequestsTotal.WithLabelValues(provider, status).Inc()
	m.LLMRequestDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

func (m *Metrics) RecordTokens(provider string, usage domain.Usage) {
	m.LLMTokensTotal.WithLabelValues(provider, "prompt").Add(float64(usage.PromptTokens))
	m.LLMTokensTotal.WithLabelValues(provider, "completion").Add(float64(usage.CompletionTokens))
	m.LLMTokensTotal.WithLabelValues(provider, "total").Add(float64(usage.TotalTokens))
}

func (m *Metrics) RecordRateLimitHit() {
	m.RateLimitHitsTotal.Inc()
}

func (m *Metrics) SetTranscriptSize(n int) {
	m.TranscriptMessages.Set(float64(n))
}
