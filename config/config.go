package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// API Configuration
	APIPort        string `env:"API_PORT" envDefault:"8080"`
	APIHost        string `env:"API_HOST" envDefault:"0.0.0.0"`
	APIEnvironment string `env:"API_ENVIRONMENT" envDefault:"development"`

	// Static key expected in the X-API-Key header of the lead and campaign API.
	// An empty key rejects every request.
	APIKey string `env:"API_KEY"`

	// Seals stored mail provider credentials. Either base64 of 32 bytes or a
	// passphrase. Required in production.
	CredentialsKey string `env:"CREDENTIALS_KEY"`

	// SES API endpoint override, e.g. for a local SES mock
	SESEndpoint string `env:"SES_ENDPOINT"`

	// Database
	DatabasePath string `env:"DATABASE_PATH" envDefault:"./data/leadflow.db"`

	// Redis (optional, enables lead list caching)
	RedisURL string        `env:"REDIS_URL"`
	CacheTTL time.Duration `env:"CACHE_TTL" envDefault:"5m"`

	// Effects queue: "inline" or "rabbitmq"
	EffectsQueue string `env:"EFFECTS_QUEUE" envDefault:"inline"`
	RabbitMQURL  string `env:"RABBITMQ_URL"`

	// Tracking
	TrackingBaseURL string `env:"TRACKING_BASE_URL" envDefault:"http://localhost:8080"`

	// Campaign dispatch
	SendPacingInterval time.Duration `env:"SEND_PACING_INTERVAL" envDefault:"2s"`
	SendBatchSize      int           `env:"SEND_BATCH_SIZE" envDefault:"10"`
	SendQueueSchedule  string        `env:"SEND_QUEUE_SCHEDULE" envDefault:"@every 1m"`

	// Stats
	StatsRebuildSchedule string `env:"STATS_REBUILD_SCHEDULE" envDefault:"0 3 * * *"`
	StatsPageSize        int    `env:"STATS_PAGE_SIZE" envDefault:"500"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`

	// Rate Limiting
	RateLimitRequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" envDefault:"120"`
	RateLimitBurst             int `env:"RATE_LIMIT_BURST" envDefault:"30"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"` // "json" or "text"

	// Sentry
	SentryDSN         string `env:"SENTRY_DSN"`
	SentryEnvironment string `env:"SENTRY_ENVIRONMENT"`

	// OpenAI enrichment (optional)
	OpenAIAPIKey  string `env:"OPENAI_API_KEY"`
	OpenAIModel   string `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL"`

	// Phone numbers without a country prefix are parsed in this region
	DefaultPhoneRegion string `env:"DEFAULT_PHONE_REGION" envDefault:"DE"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values env tags cannot express
func (c *Config) Validate() error {
	if c.SendBatchSize <= 0 {
		return fmt.Errorf("SEND_BATCH_SIZE must be positive, got %d", c.SendBatchSize)
	}
	if c.SendPacingInterval < 0 {
		return fmt.Errorf("SEND_PACING_INTERVAL must not be negative, got %s", c.SendPacingInterval)
	}
	if c.StatsPageSize <= 0 {
		return fmt.Errorf("STATS_PAGE_SIZE must be positive, got %d", c.StatsPageSize)
	}

	u, err := url.Parse(c.TrackingBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("TRACKING_BASE_URL must be an absolute http(s) URL, got %q", c.TrackingBaseURL)
	}

	if c.APIEnvironment == "production" && c.CredentialsKey == "" {
		return fmt.Errorf("CREDENTIALS_KEY is required in production")
	}

	switch c.EffectsQueue {
	case "inline":
	case "rabbitmq":
		if c.RabbitMQURL == "" {
			return fmt.Errorf("RABBITMQ_URL is required when EFFECTS_QUEUE=rabbitmq")
		}
	default:
		return fmt.Errorf("EFFECTS_QUEUE must be inline or rabbitmq, got %q", c.EffectsQueue)
	}
	return nil
}

// IsDevelopment reports whether the API runs in development mode
func (c *Config) IsDevelopment() bool {
	return c.APIEnvironment == "development"
}

// CacheEnabled returns true if a Redis URL is configured
func (c *Config) CacheEnabled() bool {
	return c.RedisURL != ""
}

// EnrichmentEnabled returns true if an OpenAI key is configured
func (c *Config) EnrichmentEnabled() bool {
	return c.OpenAIAPIKey != ""
}
