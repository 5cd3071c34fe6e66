package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/kitbuilder587/support-assistant/internal/llm"
)

var (
	ErrInvalidProvider    = errors.New("invalid llm provider")
	ErrInvalidTemperature = errors.New("temperature must be between 0 and 2")
)

const (
	ProviderOpenAI     = "openai"
	ProviderOpenRouter = "openrouter"
	ProviderGigaChat   = "gigachat"
	ProviderMock       = "mock"
)

const DefaultSystemPrompt = `You are a helpful customer assistant for The Furnish Hub, a furniture store.
You can help customers with:
- Product information and recommendations
- Pricing and availability
- Store policies (returns, shipping, etc.)
- General questions about furniture

Be friendly, helpful, and professional. If you don't know something specific about our products,
let the customer know you'll connect them with a human specialist.`

// DefaultEnvFiles - .env.local читается последним и перекрывает .env.
var DefaultEnvFiles = []string{".env", ".env.local"}

type Config struct {
	LLM           LLMConfig
	Assistant     AssistantConfig
	Observability ObservabilityConfig
	Log           LogConfig
	RateLimit     RateLimitConfig
	Database      DatabaseConfig
	Metrics       MetricsConfig
	Health        HealthConfig
	Server        ServerConfig
}

type LLMConfig struct {
	Provider    string
	Temperature float64
	Timeout     time.Duration
	MaxRetries  int
	OpenAI      OpenAIConfig
	OpenRouter  OpenRouterConfig
	GigaChat    GigaChatConfig
}

type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

type OpenRouterConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

type GigaChatConfig struct {
	AuthKey      string
	ClientID     string
	ClientSecret string
	Scope        string
	Model        string
	AuthURL      string
	BaseURL      string
}

type AssistantConfig struct {
	SystemPrompt string
	Greeting     string
	Farewell     string
}

// ObservabilityConfig - креды платформы наблюдаемости (Datadog). Без них все работает,
// просто без внешней отправки.
type ObservabilityConfig struct {
	APIKey  string
	Site    string
	Service string
	Env     string
}

type LogConfig struct {
	Level  string
	Format string
}

type RateLimitConfig struct {
	RequestsPerMinute int
}

type DatabaseConfig struct {
	URL string
}

type MetricsConfig struct {
	Addr string
}

type HealthConfig struct {
	URL     string
	Timeout time.Duration
}

type ServerConfig struct {
	Addr string
}

func Load() (*Config, error) {
	return LoadFrom(DefaultEnvFiles...)
}

// LoadFrom читает dotenv-файлы по порядку (отсутствующие пропускаются),
// переменные окружения процесса имеют приоритет над файлами.
func LoadFrom(files ...string) (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("stat env file %s: %w", f, err)
		}
		v.SetConfigFile(f)
		v.SetConfigType("env")
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("read env file %s: %w", f, err)
		}
	}

	cfg := &Config{
		LLM: LLMConfig{
			Provider:    strings.ToLower(getOrDefault(v, "LLM_PROVIDER", ProviderOpenAI)),
			Temperature: getFloatOrDefault(v, "LLM_TEMPERATURE", 0.7),
			Timeout:     time.Duration(getIntOrDefault(v, "LLM_TIMEOUT_SEC", 60)) * time.Second,
			MaxRetries:  getIntOrDefault(v, "LLM_MAX_RETRIES", 2),
			OpenAI: OpenAIConfig{
				APIKey:  getOrDefault(v, "OPENAI_KEY", v.GetString("OPENAI_API_KEY")),
				Model:   getOrDefault(v, "OPENAI_MODEL", "gpt-4o-mini"),
				BaseURL: v.GetString("OPENAI_BASE_URL"),
			},
			OpenRouter: OpenRouterConfig{
				APIKey:  v.GetString("OPENROUTER_API_KEY"),
				Model:   getOrDefault(v, "OPENROUTER_MODEL", "openai/gpt-4o-mini"),
				BaseURL: getOrDefault(v, "OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
			},
			GigaChat: GigaChatConfig{
				AuthKey:      v.GetString("GIGACHAT_AUTH_KEY"),
				ClientID:     v.GetString("GIGACHAT_CLIENT_ID"),
				ClientSecret: v.GetString("GIGACHAT_CLIENT_SECRET"),
				Scope:        getOrDefault(v, "GIGACHAT_SCOPE", "GIGACHAT_API_PERS"),
				Model:        getOrDefault(v, "GIGACHAT_MODEL", "GigaChat"),
				AuthURL:      getOrDefault(v, "GIGACHAT_AUTH_URL", "https://ngw.devices.sberbank.ru:9443/api/v2/oauth"),
				BaseURL:      getOrDefault(v, "GIGACHAT_BASE_URL", "https://gigachat.devices.sberbank.ru/api/v1"),
			},
		},
		Assistant: AssistantConfig{
			SystemPrompt: getOrDefault(v, "ASSISTANT_SYSTEM_PROMPT", DefaultSystemPrompt),
			Greeting:     getOrDefault(v, "ASSISTANT_GREETING", "Welcome to The Furnish Hub! How can I help you today? (Type 'exit' to quit)"),
			Farewell:     getOrDefault(v, "ASSISTANT_FAREWELL", "Thank you for visiting The Furnish Hub. Goodbye!"),
		},
		Observability: ObservabilityConfig{
			APIKey:  v.GetString("DD_API_KEY"),
			Site:    getOrDefault(v, "DD_SITE", "datadoghq.com"),
			Service: getOrDefault(v, "DD_SERVICE", "llm-observability-demo"),
			Env:     getOrDefault(v, "DD_ENV", "development"),
		},
		Log: LogConfig{
			Level:  getOrDefault(v, "LOG_LEVEL", "warn"),
			Format: getOrDefault(v, "LOG_FORMAT", "json"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: getIntOrDefault(v, "RATE_LIMIT_PER_MINUTE", 10),
		},
		Database: DatabaseConfig{
			URL: v.GetString("DATABASE_URL"),
		},
		Metrics: MetricsConfig{
			Addr: v.GetString("METRICS_ADDR"),
		},
		Health: HealthConfig{
			URL:     getOrDefault(v, "HEALTH_URL", "http://localhost:8000"),
			Timeout: time.Duration(getIntOrDefault(v, "HEALTH_TIMEOUT_SEC", 5)) * time.Second,
		},
		Server: ServerConfig{
			Addr: getOrDefault(v, "SERVER_ADDR", ":8000"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate проверяет структуру конфига. Наличие ключа проверяется отдельно
// в ValidateCredentials: diagnose и serve работают и без него.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case ProviderOpenAI, ProviderOpenRouter, ProviderGigaChat, ProviderMock:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidProvider, c.LLM.Provider)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return ErrInvalidTemperature
	}
	return nil
}

// ValidateCredentials проверяет, что у выбранного провайдера есть ключ.
// Ошибка оборачивает llm.ErrMissingAPIKey, чтобы классифицироваться как credential.
func (c *Config) ValidateCredentials() error {
	if c.LLM.Provider == ProviderMock || c.APIKey() != "" {
		return nil
	}
	return fmt.Errorf("%w: %s is required", llm.ErrMissingAPIKey, c.apiKeyEnv())
}

func (c *Config) apiKeyEnv() string {
	switch c.LLM.Provider {
	case ProviderOpenRouter:
		return "OPENROUTER_API_KEY"
	case ProviderGigaChat:
		return "GIGACHAT_AUTH_KEY or GIGACHAT_CLIENT_ID/GIGACHAT_CLIENT_SECRET"
	default:
		return "OPENAI_KEY or OPENAI_API_KEY"
	}
}

// APIKey возвращает ключ выбранного провайдера.
func (c *Config) APIKey() string {
	switch c.LLM.Provider {
	case ProviderOpenRouter:
		return c.LLM.OpenRouter.APIKey
	case ProviderGigaChat:
		if c.LLM.GigaChat.AuthKey != "" {
			return c.LLM.GigaChat.AuthKey
		}
		if c.LLM.GigaChat.ClientID != "" && c.LLM.GigaChat.ClientSecret != "" {
			return c.LLM.GigaChat.ClientID
		}
		return ""
	default:
		return c.LLM.OpenAI.APIKey
	}
}

// Model возвращает модель выбранного провайдера.
func (c *Config) Model() string {
	switch c.LLM.Provider {
	case ProviderOpenRouter:
		return c.LLM.OpenRouter.Model
	case ProviderGigaChat:
		return c.LLM.GigaChat.Model
	default:
		return c.LLM.OpenAI.Model
	}
}

func (c *Config) ObservabilityConfigured() bool {
	return c.Observability.APIKey != ""
}

func getOrDefault(v *viper.Viper, key, defaultValue string) string {
	if value := v.GetString(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(v *viper.Viper, key string, defaultValue int) int {
	if value := v.GetString(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getFloatOrDefault(v *viper.Viper, key string, defaultValue float64) float64 {
	if value := v.GetString(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
