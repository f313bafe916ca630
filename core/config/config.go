package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"basegraph.app/copilot-survey/core/db"
)

type Config struct {
	OTel        OTelConfig
	GitHub      GitHubConfig
	Store       StoreConfig
	Pipeline    PipelineConfig
	LanguageLLM LLMConfig
	RateLimit   RateLimitConfig
	Env         string
	Port        string
	// DefaultLocale is used when language detection is unavailable or unsure.
	DefaultLocale string
	DB            db.Config
}

type OTelConfig struct {
	Endpoint       string
	Headers        string
	ServiceName    string
	ServiceVersion string
}

type GitHubConfig struct {
	Token string
	// BaseURL points at a GitHub Enterprise API, e.g. https://ghe.example.com/api/v3/.
	BaseURL       string
	WebhookSecret string
}

type StoreConfig struct {
	Backend       string // "branch" or "postgres"
	ResultsBranch string
	ResultsPath   string
	LockTTL       time.Duration
}

type PipelineConfig struct {
	Mode            string // "inline" or "queue"
	RedisURL        string
	RedisStream     string
	RedisGroup      string
	RedisDLQStream  string
	RedisConsumer   string
	MaxAttempts     int
	TraceHeaderName string
}

type LLMConfig struct {
	APIKey  string
	BaseURL string // Optional: for custom endpoints
	Model   string
}

type RateLimitConfig struct {
	RPS   float64
	Burst int
}

type ServiceType string

const (
	ServiceTypeServer ServiceType = "server"
	ServiceTypeWorker ServiceType = "worker"
	ServiceTypeCLI    ServiceType = "cli"
)

const (
	StoreBackendBranch   = "branch"
	StoreBackendPostgres = "postgres"

	ProcessingModeInline = "inline"
	ProcessingModeQueue  = "queue"
)

// Load loads configuration from environment variables.
// In development, it loads from service-specific .env files:
//   - .env.server for the webhook server
//   - .env.worker for the queue worker
//
// Falls back to .env if service-specific file doesn't exist.
func Load(serviceType ServiceType) (Config, error) {
	if getEnv("SURVEY_ENV", "development") == "development" {
		envFile := fmt.Sprintf(".env.%s", serviceType)
		if err := godotenv.Load(envFile); err != nil {
			_ = godotenv.Load(".env")
		}
	}

	cfg := Config{
		Env:           getEnv("SURVEY_ENV", "development"),
		Port:          getEnv("PORT", "8080"),
		DefaultLocale: getEnv("DEFAULT_LOCALE", "en"),
		DB: db.Config{
			DSN:      getEnv("DATABASE_URL", ""),
			MaxConns: getEnvInt32("DB_MAX_CONNS", 10),
			MinConns: getEnvInt32("DB_MIN_CONNS", 2),
		},
		OTel: OTelConfig{
			Endpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Headers:        getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "copilot-survey"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "dev"),
		},
		GitHub: GitHubConfig{
			Token:         getEnv("GITHUB_TOKEN", ""),
			BaseURL:       getEnv("GITHUB_BASE_URL", ""),
			WebhookSecret: getEnv("GITHUB_WEBHOOK_SECRET", ""),
		},
		Store: StoreConfig{
			Backend:       getEnv("STORE_BACKEND", StoreBackendBranch),
			ResultsBranch: getEnv("RESULTS_BRANCH", "copilot-survey-engine-results"),
			ResultsPath:   getEnv("RESULTS_PATH", "results.csv"),
			LockTTL:       getEnvDuration("LOCK_TTL", 30*time.Second),
		},
		Pipeline: PipelineConfig{
			Mode:            getEnv("PROCESSING_MODE", ProcessingModeInline),
			RedisURL:        getEnv("REDIS_URL", ""),
			RedisStream:     getEnv("REDIS_STREAM", "survey_events"),
			RedisGroup:      getEnv("REDIS_CONSUMER_GROUP", "survey_group"),
			RedisDLQStream:  getEnv("REDIS_DLQ_STREAM", "survey_events_dlq"),
			RedisConsumer:   getEnv("REDIS_CONSUMER_NAME", string(serviceType)),
			MaxAttempts:     getEnvInt("QUEUE_MAX_ATTEMPTS", 1),
			TraceHeaderName: getEnv("TRACE_HEADER_NAME", "X-Trace-Id"),
		},
		LanguageLLM: LLMConfig{
			APIKey:  getEnv("LANGUAGE_LLM_API_KEY", ""),
			BaseURL: getEnv("LANGUAGE_LLM_BASE_URL", ""),
			Model:   getEnv("LANGUAGE_LLM_MODEL", "gpt-4o-mini"),
		},
		RateLimit: RateLimitConfig{
			RPS:   getEnvFloat("RATE_LIMIT_RPS", 20),
			Burst: getEnvInt("RATE_LIMIT_BURST", 40),
		},
	}

	if err := cfg.validate(serviceType); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) validate(serviceType ServiceType) error {
	if serviceType != ServiceTypeCLI && c.GitHub.Token == "" {
		return fmt.Errorf("GITHUB_TOKEN is required")
	}

	switch c.Store.Backend {
	case StoreBackendBranch:
	case StoreBackendPostgres:
		if c.DB.DSN == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_BACKEND=postgres")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.Store.Backend)
	}

	switch c.Pipeline.Mode {
	case ProcessingModeInline:
	case ProcessingModeQueue:
		if c.Pipeline.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when PROCESSING_MODE=queue")
		}
	default:
		return fmt.Errorf("unknown PROCESSING_MODE %q", c.Pipeline.Mode)
	}

	if serviceType == ServiceTypeWorker && c.Pipeline.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required for the worker")
	}

	if c.Pipeline.MaxAttempts < 1 {
		return fmt.Errorf("QUEUE_MAX_ATTEMPTS must be at least 1")
	}

	return nil
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c OTelConfig) Enabled() bool {
	return c.Endpoint != ""
}

func (c LLMConfig) Enabled() bool {
	return c.APIKey != ""
}

func (c PipelineConfig) RedisEnabled() bool {
	return c.RedisURL != ""
}

func (c PipelineConfig) Queued() bool {
	return c.Mode == ProcessingModeQueue
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt32(key string, fallback int32) int32 {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(i)
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
