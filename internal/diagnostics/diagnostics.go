// Package diagnostics smoke-tests the assistant setup: the companion web
// process, the chat completion service and the observability credentials.
package diagnostics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kitbuilder587/support-assistant/internal/domain"
	"github.com/kitbuilder587/support-assistant/internal/health"
	"github.com/kitbuilder587/support-assistant/internal/llm"
)

const (
	ConnectivitySystemPrompt = "You are a helpful assistant."
	ConnectivityPrompt       = "Say 'Hello, The Furnish Hub!' and nothing else."
	ObservabilityPrompt      = "Say 'LLM Observability Test' and nothing else."

	notSet = "Not set"
)

type Status int

const (
	StatusFail Status = iota
	StatusPass
	StatusWarn
)

func (s Status) String() string {
	switch s {
	case StatusPass:
		return "pass"
	case StatusWarn:
		return "warn"
	default:
		return "fail"
	}
}

type CheckResult struct {
	Name    string
	Status  Status
	Message string
	Details []string
	Err     error
}

func (r CheckResult) OK() bool {
	return r.Status == StatusPass
}

type Report struct {
	URL           string
	Web           CheckResult
	LLM           CheckResult
	Observability CheckResult
}

// Ready - можно запускать демо: веб-процесс отвечает и сервис модели работает.
// Наблюдаемость на готовность не влияет.
func (r Report) Ready() bool {
	return r.Web.OK() && r.LLM.OK()
}

// MaskKey оставляет видимыми последние четыре символа.
// Ключ из четырех символов и короче маскируется целиком.
func MaskKey(key string) string {
	if key == "" {
		return notSet
	}
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", len(key)-4) + key[len(key)-4:]
}

// ClientFactory строит клиента лениво, чтобы ошибка сборки стала
// результатом проверки, а не падением всей диагностики.
type ClientFactory func() (llm.Client, error)

type Config struct {
	HealthURL     string
	HealthTimeout time.Duration
	Model         string
	Temperature   float64
	LLMTimeout    time.Duration

	ObservabilityKey  string
	ObservabilitySite string
}

type Runner struct {
	cfg     Config
	prober  *health.Prober
	factory ClientFactory
	logger  *zap.Logger
}

func NewRunner(cfg Config, factory ClientFactory, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:     cfg,
		prober:  health.NewProber(cfg.HealthTimeout),
		factory: factory,
		logger:  logger,
	}
}

// Run выполняет три проверки параллельно. Провал отдельной проверки
// фиксируется в отчете и остальные не прерывает.
func (r *Runner) Run(ctx context.Context) Report {
	report := Report{URL: r.cfg.HealthURL}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		report.Web = r.checkWeb(ctx)
		return nil
	})
	g.Go(func() error {
		report.LLM = r.checkLLM(ctx)
		return nil
	})
	g.Go(func() error {
		report.Observability = r.checkObservability()
		return nil
	})
	g.Wait()

	r.logger.Info("diagnostics finished",
		zap.String("web", report.Web.Status.String()),
		zap.String("llm", report.LLM.Status.String()),
		zap.String("observability", report.Observability.Status.String()),
		zap.Bool("ready", report.Ready()),
	)

	return report
}

func (r *Runner) checkWeb(ctx context.Context) CheckResult {
	res := CheckResult{Name: "Web Application"}

	if err := r.prober.Probe(ctx, r.cfg.HealthURL); err != nil {
		res.Err = err
		res.Message = fmt.Sprintf("Web application not accessible: %v", err)
		return res
	}

	res.Status = StatusPass
	res.Message = fmt.Sprintf("Web application is running on %s", r.cfg.HealthURL)
	return res
}

func (r *Runner) checkLLM(ctx context.Context) CheckResult {
	res := CheckResult{Name: "Chat Completion API"}

	if r.factory == nil {
		res.Err = llm.ErrMissingAPIKey
		res.Message = "Chat completion client is not configured"
		return res
	}

	client, err := r.factory()
	if err != nil {
		res.Err = err
		if llm.IsCredentialError(err) {
			res.Message = "API key not found in environment"
		} else {
			res.Message = fmt.Sprintf("Client initialization failed: %v", err)
		}
		return res
	}

	if r.cfg.LLMTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.LLMTimeout)
		defer cancel()
	}

	resp, err := client.Complete(ctx, llm.Request{
		Model:       r.cfg.Model,
		Messages:    []domain.Message{domain.UserMessage(ObservabilityPrompt)},
		Temperature: r.cfg.Temperature,
		N:           1,
	})
	if err != nil {
		res.Err = err
		res.Message = fmt.Sprintf("API test failed: %v", err)
		return res
	}

	res.Status = StatusPass
	res.Message = "API connection successful"
	res.Details = []string{
		fmt.Sprintf("Response: %s", resp.Message.Content),
		fmt.Sprintf("Tokens used: %d", resp.Usage.TotalTokens),
	}
	return res
}

func (r *Runner) checkObservability() CheckResult {
	res := CheckResult{Name: "Observability Config"}

	if r.cfg.ObservabilityKey == "" {
		res.Status = StatusWarn
		res.Message = "Observability API key not found - observability will be limited"
		return res
	}

	site := r.cfg.ObservabilitySite
	if site == "" {
		site = "datadoghq.com"
	}

	res.Status = StatusPass
	res.Message = "Observability configuration found"
	res.Details = []string{
		fmt.Sprintf("Site: %s", site),
		fmt.Sprintf("API Key: %s", MaskKey(r.cfg.ObservabilityKey)),
	}
	return res
}

type ConnectivityResult struct {
	Reply       string
	TotalTokens int
}

// CheckConnectivity отправляет фиксированный запрос из двух сообщений
// и возвращает ответ с расходом токенов.
func CheckConnectivity(ctx context.Context, client llm.Client, model string, temperature float64) (*ConnectivityResult, error) {
	resp, err := client.Complete(ctx, llm.Request{
		Model: model,
		Messages: []domain.Message{
			domain.SystemMessage(ConnectivitySystemPrompt),
			domain.UserMessage(ConnectivityPrompt),
		},
		Temperature: temperature,
		N:           1,
	})
	if err != nil {
		return nil, fmt.Errorf("connectivity check: %w", err)
	}

	return &ConnectivityResult{
		Reply:       resp.Message.Content,
		TotalTokens: resp.Usage.TotalTokens,
	}, nil
}
