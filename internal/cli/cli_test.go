package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kitbuilder587/support-assistant/internal/config"
	"github.com/kitbuilder587/support-assistant/internal/domain"
	"github.com/kitbuilder587/support-assistant/internal/llm"
	"github.com/kitbuilder587/support-assistant/internal/repository"
	"github.com/kitbuilder587/support-assistant/internal/session"
)

// isolatedEnv отрезает тест от окружения разработчика и .env в рабочей папке.
func isolatedEnv(t *testing.T, contents string) string {
	t.Helper()
	for _, key := range []string{
		"LLM_PROVIDER", "OPENAI_KEY", "OPENAI_API_KEY", "OPENAI_MODEL",
		"DATABASE_URL", "METRICS_ADDR", "DD_API_KEY", "LOG_LEVEL",
		"ASSISTANT_SYSTEM_PROMPT", "ASSISTANT_GREETING", "ASSISTANT_FAREWELL",
		"RATE_LIMIT_PER_MINUTE",
	} {
		t.Setenv(key, "")
	}

	path := filepath.Join(t.TempDir(), ".env.test")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func TestChat_MockProvider(t *testing.T) {
	env := isolatedEnv(t, "LLM_PROVIDER=mock\nASSISTANT_GREETING=Hi there\nASSISTANT_FAREWELL=Bye\n")

	out, err := execute(t, "hello\nexit\n", "chat", "--env-file", env)
	require.NoError(t, err)

	assert.Contains(t, out, "Hi there")
	assert.Contains(t, out, "You: ")
	assert.Contains(t, out, "Assistant: Thanks for reaching out to The Furnish Hub!")
	assert.Contains(t, out, "Bye")
}

func TestChat_ExitImmediately(t *testing.T) {
	env := isolatedEnv(t, "LLM_PROVIDER=mock\n")

	out, err := execute(t, "EXIT\n", "chat", "--env-file", env, "--no-system-prompt")
	require.NoError(t, err)
	assert.NotContains(t, out, "Assistant:")
}

func TestChat_GoodbyeReportsCost(t *testing.T) {
	env := isolatedEnv(t, "LLM_PROVIDER=mock\n")

	out, err := execute(t, "hello\nexit\n", "chat", "--env-file", env)
	require.NoError(t, err)
	assert.Contains(t, out, "Total tokens used this session: 15")
	assert.Contains(t, out, "Estimated cost: $0.000030")
	assert.Contains(t, out, "Requests: 1, average response time: ")
}

func TestChat_RateLimitDisabled(t *testing.T) {
	env := isolatedEnv(t, "LLM_PROVIDER=mock\nRATE_LIMIT_PER_MINUTE=0\n")

	input := strings.Repeat("hello\n", 12) + "exit\n"
	out, err := execute(t, input, "chat", "--env-file", env)
	require.NoError(t, err)
	assert.Equal(t, 12, strings.Count(out, "Assistant: "))
	assert.NotContains(t, out, "rate limit")
}

func TestChat_RateLimitApplied(t *testing.T) {
	env := isolatedEnv(t, "LLM_PROVIDER=mock\nRATE_LIMIT_PER_MINUTE=1\n")

	out, err := execute(t, "hello\nhello again\nexit\n", "chat", "--env-file", env)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "Assistant: "))
	assert.Contains(t, out, "rate limit exceeded")
	assert.Contains(t, out, "Please wait a moment and try again.")
}

func TestSummarize_FromArgs(t *testing.T) {
	env := isolatedEnv(t, "LLM_PROVIDER=mock\n")

	out, err := execute(t, "", "summarize", "--env-file", env, "Sofas", "ship", "in", "two", "weeks.")
	require.NoError(t, err)
	assert.Contains(t, out, "Thanks for reaching out to The Furnish Hub!")
	assert.Contains(t, out, "Tokens used: 15, estimated cost: $0.000030")
}

func TestSummarize_FromStdin(t *testing.T) {
	env := isolatedEnv(t, "LLM_PROVIDER=mock\n")

	out, err := execute(t, "Returns are accepted within 30 days.\n", "summarize", "--env-file", env)
	require.NoError(t, err)
	assert.Contains(t, out, "Tokens used: 15")
}

func TestSummarize_EmptyInput(t *testing.T) {
	env := isolatedEnv(t, "LLM_PROVIDER=mock\n")

	_, err := execute(t, "  \n", "summarize", "--env-file", env)
	assert.ErrorIs(t, err, domain.ErrEmptyInput)
}

func TestCodegen_FromFile(t *testing.T) {
	env := isolatedEnv(t, "LLM_PROVIDER=mock\n")
	path := filepath.Join(t.TempDir(), "request.txt")
	require.NoError(t, os.WriteFile(path, []byte("a Go function that validates an order number"), 0o600))

	out, err := execute(t, "", "codegen", "--env-file", env, "--file", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Thanks for reaching out")
}

func TestCodegen_InputConflict(t *testing.T) {
	env := isolatedEnv(t, "LLM_PROVIDER=mock\n")

	_, err := execute(t, "", "codegen", "--env-file", env, "--file", "x.txt", "inline request")
	assert.ErrorIs(t, err, errInputConflict)
}

func TestCodegen_MissingKey(t *testing.T) {
	env := isolatedEnv(t, "LLM_PROVIDER=openai\n")

	_, err := execute(t, "", "codegen", "--env-file", env, "hello")
	require.Error(t, err)
	assert.Equal(t, session.KindCredential, session.KindOf(err))
}

func TestChat_MissingKeyAborts(t *testing.T) {
	env := isolatedEnv(t, "LLM_PROVIDER=openai\n")

	out, err := execute(t, "hello\n", "chat", "--env-file", env)
	require.Error(t, err)
	assert.Equal(t, session.KindCredential, session.KindOf(err))
	assert.ErrorIs(t, err, llm.ErrMissingAPIKey)
	assert.Contains(t, err.Error(), "OPENAI_KEY or OPENAI_API_KEY is required")
	assert.NotContains(t, out, "Welcome", "session must not start without a key")
}

func TestChat_InvalidProvider(t *testing.T) {
	env := isolatedEnv(t, "LLM_PROVIDER=nope\n")

	_, err := execute(t, "", "chat", "--env-file", env)
	assert.ErrorIs(t, err, config.ErrInvalidProvider)
}

func TestChat_PromptFlagsExclusive(t *testing.T) {
	env := isolatedEnv(t, "LLM_PROVIDER=mock\n")

	_, err := execute(t, "", "chat", "--env-file", env, "--system-prompt", "x", "--no-system-prompt")
	assert.Error(t, err)
}

func TestCheck_MockProvider(t *testing.T) {
	env := isolatedEnv(t, "LLM_PROVIDER=mock\n")

	out, err := execute(t, "", "check", "--env-file", env)
	require.NoError(t, err)
	assert.Contains(t, out, "API call successful")
	assert.Contains(t, out, "Tokens used: 15")
}

func TestCheck_MissingKey(t *testing.T) {
	env := isolatedEnv(t, "LLM_PROVIDER=openai\n")

	out, err := execute(t, "", "check", "--env-file", env)
	require.Error(t, err)
	assert.Equal(t, session.KindCredential, session.KindOf(err))
	assert.Contains(t, out, "Connectivity test failed")
}

func TestDiagnose_WebDown(t *testing.T) {
	env := isolatedEnv(t, "LLM_PROVIDER=mock\nHEALTH_TIMEOUT_SEC=1\n")

	out, err := execute(t, "", "diagnose", "--env-file", env, "--url", "http://127.0.0.1:1")
	assert.ErrorIs(t, err, errSetupIncomplete)
	assert.Contains(t, out, "Web Application: ❌ Not Running")
	assert.Contains(t, out, "Chat Completion API: ✅ Working")
}

func TestUsage_NoDatabase(t *testing.T) {
	env := isolatedEnv(t, "LLM_PROVIDER=mock\n")

	_, err := execute(t, "", "usage", "--env-file", env)
	assert.ErrorIs(t, err, errNoDatabase)
}

func TestPrintUsage(t *testing.T) {
	repo := repository.NewMockUsageRepository()
	ctx := context.Background()
	require.NoError(t, repo.Record(ctx, &domain.UsageRecord{
		SessionID: "0123456789abcdef",
		Provider:  "openai",
		Model:     "gpt-4o-mini",
		Status:    domain.CallSuccess,
		Mode:      domain.ModeCodegen,
		Usage:     domain.Usage{PromptTokens: 3, CompletionTokens: 2, TotalTokens: 5},
		Cost:      0.00001,
		Latency:   1500 * time.Millisecond,
	}))

	var buf bytes.Buffer
	require.NoError(t, printUsage(ctx, &buf, repo, "", 10))
	assert.Contains(t, buf.String(), "PROVIDER")
	assert.Contains(t, buf.String(), "01234567")
	assert.Contains(t, buf.String(), "gpt-4o-mini")
	assert.Contains(t, buf.String(), "codegen")
	assert.Contains(t, buf.String(), "$0.000010")

	buf.Reset()
	require.NoError(t, printUsage(ctx, &buf, repo, "0123456789abcdef", 10))
	assert.Contains(t, buf.String(), "Total tokens:      5")
	assert.Contains(t, buf.String(), "1 (0 failed)")
	assert.Contains(t, buf.String(), "Estimated cost:    $0.000010")
	assert.Contains(t, buf.String(), "Avg response time: 1.5s")

	err := printUsage(ctx, &buf, repo, "missing", 10)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestPrintUsage_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printUsage(context.Background(), &buf, repository.NewMockUsageRepository(), "", 10))
	assert.Contains(t, buf.String(), "No calls recorded yet.")
}
