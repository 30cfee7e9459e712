package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// Config holds all configuration for the application.
type Config struct {
	Port     string `env:"PORT" envDefault:"8000"`
	Env      string `env:"ENV" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Storage. DATABASE_URL selects Postgres; otherwise SQLite at SQLITE_PATH.
	DatabaseURL string `env:"DATABASE_URL"`
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"./data/landchat.db"`
	RedisURL    string `env:"REDIS_URL"`

	// Chat list owner. Falls back to the first user with AdminRole.
	AdminUserID string `env:"ADMIN_USER_ID"`
	AdminRole   string `env:"ADMIN_ROLE" envDefault:"admin"`

	// Auth
	TokenPublicKey string `env:"TOKEN_PUBLIC_KEY"`

	// Notifications
	FirebaseCredentialsFile string        `env:"FIREBASE_CREDENTIALS_FILE"`
	PushFallbackTitle       string        `env:"PUSH_FALLBACK_TITLE" envDefault:"رسالة جديدة 📩"`
	PushTimeout             time.Duration `env:"PUSH_TIMEOUT" envDefault:"10s"`
	StoreTimeout            time.Duration `env:"STORE_TIMEOUT" envDefault:"5s"`

	// Rate limiting
	RateLimitWhitelist  []string `env:"RATE_LIMIT_WHITELIST" envSeparator:","` // IPs or CIDRs exempt from rate limiting
	AutoBlockEnabled    bool     `env:"AUTO_BLOCK_ENABLED" envDefault:"false"`
	TrustProxyHeaders   bool     `env:"TRUST_PROXY_HEADERS" envDefault:"false"` // only behind a proxy that overwrites X-Forwarded-For
	WSMessagesPerSecond float64  `env:"WS_MESSAGES_PER_SECOND" envDefault:"10"`
	WSBurst             int      `env:"WS_BURST" envDefault:"20"`
}

// Load reads configuration from the environment, after loading a .env file
// if one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.RateLimitWhitelist = lo.Compact(lo.Map(cfg.RateLimitWhitelist, func(entry string, _ int) string {
		return strings.TrimSpace(entry)
	}))

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks configuration for errors.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL is invalid: %s", c.LogLevel)
	}
	if c.StoreTimeout <= 0 || c.PushTimeout <= 0 {
		return errors.New("STORE_TIMEOUT and PUSH_TIMEOUT must be positive")
	}
	if c.WSMessagesPerSecond <= 0 || c.WSBurst < 1 {
		return fmt.Errorf("WS_MESSAGES_PER_SECOND and WS_BURST must be positive, got %.2f and %d", c.WSMessagesPerSecond, c.WSBurst)
	}

	// In production, require a real database and token verification
	if c.Env == "production" {
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required in production")
		}
		if c.TokenPublicKey == "" {
			return errors.New("TOKEN_PUBLIC_KEY is required in production")
		}
	}

	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// Level returns the configured log level.
func (c *Config) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}
