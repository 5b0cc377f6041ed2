// Package config defines configuration parsing and helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all application configuration parsed from environment variables.
type Config struct {
	AppEnv string `env:"APP_ENV" envDefault:"dev"`
	Port   int    `env:"PORT" envDefault:"8081"`

	// OpenAI-compatible LLM service.
	OpenAIAPIKey   string        `env:"OPENAI_API_KEY"`
	OpenAIBaseURL  string        `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1"`
	ChatModel      string        `env:"CHAT_MODEL" envDefault:"gpt-4o-mini"`
	EmbeddingModel string        `env:"EMBEDDING_MODEL" envDefault:"text-embedding-3-small"`
	ChatTimeout    time.Duration `env:"CHAT_TIMEOUT" envDefault:"60s"`
	EmbedTimeout   time.Duration `env:"EMBED_TIMEOUT" envDefault:"30s"`

	// Backend HTTP API owning jobs, resumes and scores.
	BackendAPIURL  string        `env:"BACKEND_API_URL" envDefault:"http://localhost:8000"`
	BackendAPIKey  string        `env:"BACKEND_API_KEY"`
	BackendTimeout time.Duration `env:"BACKEND_TIMEOUT" envDefault:"30s"`

	// Queue substrate (Redis).
	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	// Worker pools: per-queue concurrency. jd-processing is pinned to 1.
	MaxWorkers         int `env:"MAX_WORKERS" envDefault:"16"`
	RankingConcurrency int `env:"RANKING_CONCURRENCY" envDefault:"2"`

	// Embedding cache.
	CacheEnabled bool   `env:"CACHE_ENABLED" envDefault:"true"`
	CacheDir     string `env:"CACHE_DIR" envDefault:".cache"`

	// Uploaded files root: {uploads_root}/{group_id}/resumes/{filename}.
	UploadsRoot string `env:"UPLOADS_ROOT" envDefault:"uploads"`

	// Tika text extraction service.
	TikaURL string `env:"TIKA_URL" envDefault:"http://tika:9998"`

	// Retry policy for external API calls.
	RetryMaxAttempts int           `env:"RETRY_MAX_ATTEMPTS" envDefault:"3"`
	RetryInitialWait time.Duration `env:"RETRY_INITIAL_WAIT" envDefault:"1s"`
	RetryMaxWait     time.Duration `env:"RETRY_MAX_WAIT" envDefault:"10s"`

	// Circuit breaker shared by all LLM calls.
	BreakerFailureThreshold int           `env:"BREAKER_FAILURE_THRESHOLD" envDefault:"5"`
	BreakerTimeout          time.Duration `env:"BREAKER_TIMEOUT" envDefault:"60s"`

	// Shutdown grace window for in-flight handlers.
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Observability.
	OTLPEndpoint    string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:""`
	OTELServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"resume-match-pipeline"`
}

// Load parses environment variables into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("op=config.Load: %w", err)
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 16
	}
	if cfg.RankingConcurrency <= 0 {
		cfg.RankingConcurrency = 2
	}
	return cfg, nil
}

// RedisAddr formats the Redis host and port for the queue substrate.
func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// IsDev reports whether the app is running in development mode.
func (c Config) IsDev() bool { return strings.ToLower(c.AppEnv) == "dev" }

// IsProd reports whether the app is running in production mode.
func (c Config) IsProd() bool { return strings.ToLower(c.AppEnv) == "prod" }

// IsTest reports whether the app is running in test mode.
func (c Config) IsTest() bool { return strings.ToLower(c.AppEnv) == "test" }
