package config

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	req := require.New(t)
	t.Setenv("ENV", "development")

	cfg, err := Load()
	req.NoError(err)
	req.Equal("8000", cfg.Port)
	req.Equal("./data/landchat.db", cfg.SQLitePath)
	req.Equal("admin", cfg.AdminRole)
	req.Equal("رسالة جديدة 📩", cfg.PushFallbackTitle)
	req.Equal(5*time.Second, cfg.StoreTimeout)
	req.Equal(10*time.Second, cfg.PushTimeout)
	req.Equal(20, cfg.WSBurst)
	req.False(cfg.TrustProxyHeaders)
	req.True(cfg.IsDevelopment())
	req.Equal(zerolog.InfoLevel, cfg.Level())
}

func TestLoad_Overrides(t *testing.T) {
	req := require.New(t)
	t.Setenv("PORT", "9000")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("STORE_TIMEOUT", "2s")
	t.Setenv("RATE_LIMIT_WHITELIST", " 10.0.0.1 , ,192.168.0.0/16")
	t.Setenv("AUTO_BLOCK_ENABLED", "true")
	t.Setenv("TRUST_PROXY_HEADERS", "true")

	cfg, err := Load()
	req.NoError(err)
	req.Equal("9000", cfg.Port)
	req.Equal(zerolog.DebugLevel, cfg.Level())
	req.Equal(2*time.Second, cfg.StoreTimeout)
	req.Equal([]string{"10.0.0.1", "192.168.0.0/16"}, cfg.RateLimitWhitelist)
	req.True(cfg.AutoBlockEnabled)
	req.True(cfg.TrustProxyHeaders)
}

func TestLoad_ProductionRequirements(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("TOKEN_PUBLIC_KEY", "")

	_, err := Load()
	require.ErrorContains(t, err, "DATABASE_URL")

	t.Setenv("DATABASE_URL", "postgres://localhost/landchat")
	_, err = Load()
	require.ErrorContains(t, err, "TOKEN_PUBLIC_KEY")

	t.Setenv("TOKEN_PUBLIC_KEY", "key")
	cfg, err := Load()
	require.NoError(t, err)
	require.False(t, cfg.IsDevelopment())
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad level", "LOG_LEVEL", "loud"},
		{"bad duration", "PUSH_TIMEOUT", "soon"},
		{"zero burst", "WS_BURST", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
		})
	}
}
