package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Port)
	assert.Equal(t, "sqlite", cfg.DatabaseDriver)
	assert.Equal(t, "xlsx", cfg.ReportFormat)
	assert.Equal(t, 24*time.Hour, cfg.ReportCacheTTL)
	assert.EqualValues(t, 10<<20, cfg.MaxReceiptBytes)
	assert.Empty(t, cfg.RedisURL)
	assert.False(t, cfg.IsProduction())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("APP_ENV", "production")
	t.Setenv("DATABASE_DRIVER", "memory")
	t.Setenv("REPORT_FORMAT", "csv")
	t.Setenv("REPORT_CACHE_TTL", "90m")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("TIMEZONE", "UTC")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "memory", cfg.DatabaseDriver)
	assert.Equal(t, "csv", cfg.ReportFormat)
	assert.Equal(t, 90*time.Minute, cfg.ReportCacheTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins())
	assert.Equal(t, time.UTC, cfg.Location())
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"DATABASE_DRIVER":   "oracle",
		"REPORT_FORMAT":     "pdf",
		"MAX_RECEIPT_BYTES": "0",
		"TIMEZONE":          "Mars/Olympus",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load()
			assert.ErrorContains(t, err, key)
		})
	}
}
