package diagnostics

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kitbuilder587/support-assistant/internal/domain"
	"github.com/kitbuilder587/support-assistant/internal/llm"
	"github.com/kitbuilder587/support-assistant/internal/llm/mock"
)

func TestMaskKey(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"", "Not set"},
		{"abc", "***"},
		{"abcd", "****"},
		{"abcde", "*bcde"},
		{"dd-0123456789", "*********6789"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.want, MaskKey(tt.key))
		})
	}
}

func healthyServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	t.Cleanup(server.Close)
	return server
}

func factoryFor(client llm.Client) ClientFactory {
	return func() (llm.Client, error) { return client, nil }
}

func TestRunner_AllPass(t *testing.T) {
	server := healthyServer(t, http.StatusOK)
	client := mock.New().WithScript(mock.Reply{Text: "LLM Observability Test", Usage: domain.Usage{TotalTokens: 12}})

	r := NewRunner(Config{
		HealthURL:         server.URL,
		HealthTimeout:     time.Second,
		Model:             "gpt-4o-mini",
		Temperature:       llm.DefaultTemperature,
		ObservabilityKey:  "dd-secret-1234",
		ObservabilitySite: "datadoghq.eu",
	}, factoryFor(client), nil)

	report := r.Run(context.Background())

	assert.True(t, report.Ready())
	assert.Equal(t, StatusPass, report.Web.Status)
	assert.Equal(t, StatusPass, report.LLM.Status)
	assert.Contains(t, report.LLM.Details, "Response: LLM Observability Test")
	assert.Contains(t, report.LLM.Details, "Tokens used: 12")
	assert.Equal(t, StatusPass, report.Observability.Status)
	assert.Contains(t, report.Observability.Details, "Site: datadoghq.eu")
	assert.Contains(t, report.Observability.Details, "API Key: **********1234")

	calls := client.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, []domain.Message{domain.UserMessage(ObservabilityPrompt)}, calls[0].Messages)
	assert.Equal(t, llm.DefaultTemperature, calls[0].Temperature)
}

func TestRunner_ZeroTemperatureKept(t *testing.T) {
	server := healthyServer(t, http.StatusOK)
	client := mock.New()

	NewRunner(Config{HealthURL: server.URL, Temperature: 0}, factoryFor(client), nil).Run(context.Background())

	calls := client.Calls()
	require.Len(t, calls, 1)
	assert.Zero(t, calls[0].Temperature)
}

func TestRunner_ObservabilityMissingIsWarning(t *testing.T) {
	server := healthyServer(t, http.StatusOK)

	report := NewRunner(Config{HealthURL: server.URL}, factoryFor(mock.New()), nil).Run(context.Background())

	assert.Equal(t, StatusWarn, report.Observability.Status)
	assert.True(t, report.Ready(), "missing observability must not block readiness")
}

func TestRunner_WebDown(t *testing.T) {
	server := healthyServer(t, http.StatusServiceUnavailable)

	report := NewRunner(Config{HealthURL: server.URL}, factoryFor(mock.New()), nil).Run(context.Background())

	assert.Equal(t, StatusFail, report.Web.Status)
	assert.Contains(t, report.Web.Message, "503")
	assert.False(t, report.Ready())
}

func TestRunner_LLMFailures(t *testing.T) {
	server := healthyServer(t, http.StatusOK)

	tests := []struct {
		name    string
		factory ClientFactory
		wantMsg string
	}{
		{
			name:    "missing key",
			factory: func() (llm.Client, error) { return nil, llm.ErrMissingAPIKey },
			wantMsg: "API key not found",
		},
		{
			name:    "init failure",
			factory: func() (llm.Client, error) { return nil, llm.ErrUnknownProvider },
			wantMsg: "Client initialization failed",
		},
		{
			name:    "call failure",
			factory: factoryFor(mock.New().WithError(llm.ErrAuthFailed)),
			wantMsg: "API test failed",
		},
		{
			name:    "no factory",
			factory: nil,
			wantMsg: "not configured",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := NewRunner(Config{HealthURL: server.URL}, tt.factory, nil).Run(context.Background())

			assert.Equal(t, StatusFail, report.LLM.Status)
			assert.Contains(t, report.LLM.Message, tt.wantMsg)
			assert.Error(t, report.LLM.Err)
			assert.False(t, report.Ready())
		})
	}
}

func TestRunner_LLMTimeout(t *testing.T) {
	server := healthyServer(t, http.StatusOK)
	client := mock.New().WithDelay(time.Second)

	report := NewRunner(Config{
		HealthURL:  server.URL,
		LLMTimeout: 20 * time.Millisecond,
	}, factoryFor(client), nil).Run(context.Background())

	assert.Equal(t, StatusFail, report.LLM.Status)
	assert.ErrorIs(t, report.LLM.Err, context.DeadlineExceeded)
}

func TestCheckConnectivity(t *testing.T) {
	client := mock.New().WithScript(mock.Reply{Text: "Hello, The Furnish Hub!", Usage: domain.Usage{TotalTokens: 21}})

	res, err := CheckConnectivity(context.Background(), client, "gpt-4o-mini", 0.7)
	require.NoError(t, err)
	assert.Equal(t, "Hello, The Furnish Hub!", res.Reply)
	assert.Equal(t, 21, res.TotalTokens)

	calls := client.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, []domain.Message{
		domain.SystemMessage(ConnectivitySystemPrompt),
		domain.UserMessage(ConnectivityPrompt),
	}, calls[0].Messages)
}

func TestCheckConnectivity_Error(t *testing.T) {
	_, err := CheckConnectivity(context.Background(), mock.New().WithError(llm.ErrRateLimit), "gpt-4o-mini", 0.7)
	require.Error(t, err)
	assert.True(t, errors.Is(err, llm.ErrRateLimit))
}

func TestRender(t *testing.T) {
	ready := Report{
		URL:           "http://localhost:8000",
		Web:           CheckResult{Status: StatusPass, Message: "Web application is running on http://localhost:8000"},
		LLM:           CheckResult{Status: StatusPass, Message: "API connection successful", Details: []string{"Tokens used: 7"}},
		Observability: CheckResult{Status: StatusWarn, Message: "Observability API key not found"},
	}

	var buf bytes.Buffer
	Render(&buf, ready)
	out := buf.String()

	assert.Contains(t, out, "Web Application: ✅ Running")
	assert.Contains(t, out, "Chat Completion API: ✅ Working")
	assert.Contains(t, out, "Observability Config: ⚠️  Not Configured")
	assert.Contains(t, out, "   Tokens used: 7")
	assert.Contains(t, out, "is ready!")
	assert.Contains(t, out, "Add observability credentials")

	notReady := ready
	notReady.Web = CheckResult{Status: StatusFail, Message: "Web application not accessible"}
	buf.Reset()
	Render(&buf, notReady)

	assert.Contains(t, buf.String(), "Web Application: ❌ Not Running")
	assert.Contains(t, buf.String(), "Setup incomplete")
}

func TestRenderConnectivity(t *testing.T) {
	var buf bytes.Buffer
	RenderConnectivity(&buf, &ConnectivityResult{Reply: "Hello, The Furnish Hub!", TotalTokens: 21}, nil)
	assert.Contains(t, buf.String(), "Response: Hello, The Furnish Hub!")
	assert.Contains(t, buf.String(), "Tokens used: 21")

	buf.Reset()
	RenderConnectivity(&buf, nil, llm.ErrAuthFailed)
	assert.Contains(t, buf.String(), "Error: authentication failed")
	assert.Contains(t, buf.String(), "failed!")
}
