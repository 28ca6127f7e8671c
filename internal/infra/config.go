package infra

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"promptfusion/internal/domain"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	Port        string `envconfig:"PORT" default:"8080"`
	DatabaseURL string `envconfig:"DATABASE_URL"`
	StoreDriver string `envconfig:"STORE_DRIVER" default:"postgres"`

	QueueDriver        string `envconfig:"QUEUE_DRIVER" default:"pgmq"`
	QueueName          string `envconfig:"QUEUE_NAME" default:"promptfusion_jobs"`
	QueueDLQName       string `envconfig:"QUEUE_DLQ_NAME" default:"promptfusion_jobs_dlq"`
	QueueVisibilitySec int    `envconfig:"QUEUE_VISIBILITY_SEC" default:"900"`
	QueuePollSec       int    `envconfig:"QUEUE_POLL_SEC" default:"5"`

	WorkerConcurrency       int           `envconfig:"WORKER_CONCURRENCY" default:"2"`
	WorkerRateLimit         int           `envconfig:"WORKER_RATE_LIMIT" default:"10"`
	WorkerRateWindow        time.Duration `envconfig:"WORKER_RATE_WINDOW" default:"60s"`
	WorkerGradingIterations int           `envconfig:"WORKER_GRADING_ITERATIONS" default:"3"`
	WorkerMaxDeliveries     int           `envconfig:"WORKER_MAX_DELIVERIES" default:"5"`

	ProviderNames     []string      `envconfig:"PROVIDERS"`
	ProviderTimeout   time.Duration `envconfig:"PROVIDER_TIMEOUT" default:"5m"`
	FanOutConcurrency int           `envconfig:"FANOUT_CONCURRENCY" default:"0"`
	FluxPollInterval  time.Duration `envconfig:"FLUX_POLL_INTERVAL" default:"2s"`
	FluxPollAttempts  int           `envconfig:"FLUX_POLL_ATTEMPTS" default:"30"`

	TextGenProvider string `envconfig:"TEXTGEN_PROVIDER" default:"anthropic"`
	AnthropicAPIKey string `envconfig:"ANTHROPIC_API_KEY"`
	AnthropicModel  string `envconfig:"ANTHROPIC_MODEL" default:"claude-sonnet-4-20250514"`
	OpenAIAPIKey    string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL   string `envconfig:"OPENAI_BASE_URL"`
	OpenAITextModel string `envconfig:"OPENAI_TEXT_MODEL" default:"gpt-4o-mini"`
	GeminiAPIKey    string `envconfig:"GEMINI_API_KEY"`
	GeminiModel     string `envconfig:"GEMINI_IMAGE_MODEL" default:"imagen-4.0-generate-001"`
	FluxAPIKey      string `envconfig:"FLUX_API_KEY"`
	FluxBaseURL     string `envconfig:"FLUX_BASE_URL" default:"https://api.bfl.ml/v1"`
	IdeogramAPIKey  string `envconfig:"IDEOGRAM_API_KEY"`
	IdeogramBaseURL string `envconfig:"IDEOGRAM_BASE_URL" default:"https://api.ideogram.ai"`

	BlobDriver     string `envconfig:"BLOB_DRIVER" default:"inline"`
	StoragePath    string `envconfig:"STORAGE_PATH" default:"./storage"`
	StorageBaseURL string `envconfig:"STORAGE_BASE_URL"`
	S3Bucket       string `envconfig:"S3_BUCKET"`
	S3Region       string `envconfig:"S3_REGION" default:"us-east-1"`
	S3Endpoint     string `envconfig:"S3_ENDPOINT"`
	S3AccessKey    string `envconfig:"S3_ACCESS_KEY"`
	S3SecretKey    string `envconfig:"S3_SECRET_KEY"`

	SignupGrant          int `envconfig:"SIGNUP_GRANT" default:"500"`
	SessionReloadCredits int `envconfig:"SESSION_RELOAD_CREDITS" default:"500"`

	HTTPReadTimeout  time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"15s"`
	HTTPWriteTimeout time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"30s"`
	HTTPIdleTimeout  time.Duration `envconfig:"HTTP_IDLE_TIMEOUT" default:"60s"`
	RateLimitPerMin  int           `envconfig:"RATE_LIMIT_PER_MINUTE" default:"30"`
	CORSOrigins      []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
	AuthJWTSecret    string        `envconfig:"AUTH_JWT_SECRET"`

	// Providers is ProviderNames parsed; all providers when the list is empty.
	Providers []domain.Provider `ignored:"true"`
}

// LoadConfig loads configuration from an optional .env file and environment
// variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	switch cfg.StoreDriver {
	case "postgres":
		if strings.TrimSpace(cfg.DatabaseURL) == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
	case "memory":
	default:
		return nil, fmt.Errorf("unsupported STORE_DRIVER %q", cfg.StoreDriver)
	}

	cfg.QueueDriver = strings.ToLower(strings.TrimSpace(cfg.QueueDriver))
	switch cfg.QueueDriver {
	case "pgmq", "memory", "none":
	default:
		return nil, fmt.Errorf("unsupported QUEUE_DRIVER %q", cfg.QueueDriver)
	}
	if cfg.QueueDriver == "pgmq" && strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, fmt.Errorf("QUEUE_DRIVER=pgmq requires DATABASE_URL")
	}

	cfg.TextGenProvider = strings.ToLower(strings.TrimSpace(cfg.TextGenProvider))
	cfg.BlobDriver = strings.ToLower(strings.TrimSpace(cfg.BlobDriver))
	if cfg.BlobDriver == "s3" && strings.TrimSpace(cfg.S3Bucket) == "" {
		return nil, fmt.Errorf("BLOB_DRIVER=s3 requires S3_BUCKET")
	}

	providers, err := domain.ParseProviders(cfg.ProviderNames)
	if err != nil {
		return nil, fmt.Errorf("PROVIDERS: %w", err)
	}
	if len(providers) == 0 {
		providers = domain.AllProviders()
	}
	cfg.Providers = providers

	if cfg.WorkerConcurrency <= 0 {
		cfg.WorkerConcurrency = 1
	}
	if cfg.WorkerGradingIterations <= 0 {
		cfg.WorkerGradingIterations = 3
	}
	if strings.TrimSpace(cfg.Port) == "" {
		cfg.Port = "8080"
	}
	if cfg.StorageBaseURL == "" {
		cfg.StorageBaseURL = fmt.Sprintf("http://localhost:%s/static", cfg.Port)
	}

	return &cfg, nil
}
