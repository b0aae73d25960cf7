package app

import (
	"errors"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime configuration for the dashboard and the worker.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8080"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"60s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"45s"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	APIBaseURL      string        `envconfig:"API_BASE_URL" required:"true"`
	APITimeout      time.Duration `envconfig:"API_TIMEOUT" default:"30s"`
	APIMaxRetries   int           `envconfig:"API_MAX_RETRIES" default:"2"`
	APIRetryBackoff time.Duration `envconfig:"API_RETRY_BACKOFF" default:"200ms"`

	// PGDSN is optional; an empty value disables the operator audit trail.
	PGDSN string `envconfig:"PG_DSN"`

	RedisAddr     string        `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	SessionSecret string        `envconfig:"SESSION_SECRET" required:"true"`
	SessionTTL    time.Duration `envconfig:"SESSION_TTL" default:"720h"`

	CSRFSecret string `envconfig:"CSRF_SECRET" required:"true"`

	GotenbergURL string `envconfig:"GOTENBERG_URL" default:"http://127.0.0.1:3000"`

	RecalcAllTimeout time.Duration `envconfig:"RECALC_ALL_TIMEOUT" default:"15m"`
	DraftTTL         time.Duration `envconfig:"DRAFT_TTL" default:"24h"`
	StoreCacheSize   int           `envconfig:"STORE_CACHE_SIZE" default:"1024"`
	StoreCacheTTL    time.Duration `envconfig:"STORE_CACHE_TTL" default:"2h"`
	PhoneRegion      string        `envconfig:"PHONE_REGION" default:"IN"`

	// RecalcUseQueue hands recalculate-all runs to cmd/worker; false runs them in the
	// dashboard process.
	RecalcUseQueue    bool   `envconfig:"RECALC_USE_QUEUE" default:"true"`
	WorkerConcurrency int    `envconfig:"WORKER_CONCURRENCY" default:"2"`
	WorkerMetricsAddr string `envconfig:"WORKER_METRICS_ADDR" default:":9091"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if cfg.SessionSecret == "" {
		return nil, errors.New("session secret must be provided")
	}
	if cfg.CSRFSecret == "" {
		return nil, errors.New("csrf secret must be provided")
	}
	if cfg.APIBaseURL == "" {
		return nil, errors.New("api base url must be provided")
	}
	if cfg.RecalcAllTimeout <= 0 {
		return nil, errors.New("recalculate-all timeout must be positive")
	}
	return &cfg, nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}
