package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kitbuilder587/support-assistant/internal/domain"
)

func newTestMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	return NewWithRegistry(reg, reg)
}

func TestMetrics_Record(t *testing.T) {
	m := newTestMetrics()

	m.RecordTurn("success", 200*time.Millisecond)
	m.RecordTurn("failed", time.Second)
	m.RecordLLMRequest("openai", "success", time.Second)
	m.RecordTokens("openai", domain.Usage{PromptTokens: 3, CompletionTokens: 2, TotalTokens: 5})
	m.RecordRateLimitHit()
	m.SetTranscriptSize(3)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.TurnsTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TurnsTotal.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LLMRequestsTotal.WithLabelValues("openai", "success")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.LLMTokensTotal.WithLabelValues("openai", "total")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RateLimitHitsTotal))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.TranscriptMessages))
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	a := newTestMetrics()
	b := newTestMetrics()

	a.RecordRateLimitHit()

	assert.Equal(t, 0.0, testutil.ToFloat64(b.RateLimitHitsTotal))
}

func TestMetrics_Handler(t *testing.T) {
	m := newTestMetrics()
	m.RecordTurn("success", time.Second)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `assistant_turns_total{status="success"} 1`))
}
