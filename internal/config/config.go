// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// ErrIncompleteRESTBackend is returned when only one of the REST backend
// variables is set.
var ErrIncompleteRESTBackend = errors.New("KV_REST_URL and KV_REST_TOKEN must be set together")

// Config holds all application configuration.
// No variable is required: without backend URLs the process runs memory-only.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Storage backends, tried in this order before the in-memory fallback
	RedisURL    string `env:"REDIS_URL"`
	KVRestURL   string `env:"KV_REST_URL"`
	KVRestToken string `env:"KV_REST_TOKEN"`
	DatabaseURL string `env:"DATABASE_URL"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Login tokens
	LoginTokenTTL time.Duration `env:"LOGIN_TOKEN_TTL" envDefault:"15m"`

	// Rate limiting (requests per minute per embed and IP; 0 disables)
	RateLimitEditPerMinute   int64 `env:"RATE_LIMIT_EDIT_PER_MINUTE" envDefault:"30"`
	RateLimitConfigPerMinute int64 `env:"RATE_LIMIT_CONFIG_PER_MINUTE" envDefault:"120"`

	// Usage log
	UsageEmbedCap  int `env:"USAGE_EMBED_CAP" envDefault:"1000"`
	UsageGlobalCap int `env:"USAGE_GLOBAL_CAP" envDefault:"2000"`
	UsageQueueSize int `env:"USAGE_QUEUE_SIZE" envDefault:"1024"`

	// Comma-separated origins allowed to read widget endpoints ("*" for any)
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*"`

	// In-memory backend expiry sweep
	MemorySweepInterval time.Duration `env:"MEMORY_SWEEP_INTERVAL" envDefault:"1m"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// TokenEnv returns the environment marker embedded in client tokens.
func (c *Config) TokenEnv() string {
	if c.IsProduction() {
		return "live"
	}
	return "test"
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *Config) GetCORSAllowedOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}

	origins := strings.Split(c.CORSAllowedOrigins, ",")
	result := make([]string, 0, len(origins))
	for _, origin := range origins {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// MemoryOnly reports whether no remote backend is configured.
func (c *Config) MemoryOnly() bool {
	return c.RedisURL == "" && c.KVRestURL == "" && c.DatabaseURL == ""
}

// Validate checks combinations env tags cannot express.
func (c *Config) Validate() error {
	if (c.KVRestURL == "") != (c.KVRestToken == "") {
		return ErrIncompleteRESTBackend
	}
	if c.UsageEmbedCap <= 0 || c.UsageGlobalCap <= 0 {
		return fmt.Errorf("usage caps must be positive")
	}
	if c.MemorySweepInterval <= 0 {
		return fmt.Errorf("MEMORY_SWEEP_INTERVAL must be positive")
	}
	return nil
}

// Load reads an optional .env file, parses environment variables and
// validates the result.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
