package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	// Server
	Port           int    `mapstructure:"PORT"`
	Env            string `mapstructure:"APP_ENV"` // development | production
	WorkerPoolSize int    `mapstructure:"WORKER_POOL_SIZE"`

	// Storage
	DatabaseDriver string `mapstructure:"DATABASE_DRIVER"` // postgres | sqlite | memory
	DatabaseURL    string `mapstructure:"DATABASE_URL"`

	// Redis; empty disables the report cache and background exports
	RedisURL string `mapstructure:"REDIS_URL"`

	// Reports
	ArchiveStoragePath string        `mapstructure:"ARCHIVE_STORAGE_PATH"`
	ReportFormat       string        `mapstructure:"REPORT_FORMAT"` // xlsx | csv
	ReportCacheTTL     time.Duration `mapstructure:"REPORT_CACHE_TTL"`

	// Register
	MaxReceiptBytes int64  `mapstructure:"MAX_RECEIPT_BYTES"`
	Timezone        string `mapstructure:"TIMEZONE"`

	// HTTP edge
	CORSAllowedOrigins string  `mapstructure:"CORS_ALLOWED_ORIGINS"` // comma separated
	RateLimitRPS       float64 `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst     int     `mapstructure:"RATE_LIMIT_BURST"`
}

// Load reads configuration from environment variables (and optional .env file).
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	setDefaults(v)

	// Optional .env file for local development; a missing file is fine
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", 8000)
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("WORKER_POOL_SIZE", 2)
	v.SetDefault("DATABASE_DRIVER", "sqlite")
	v.SetDefault("DATABASE_URL", "caixa.db")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("ARCHIVE_STORAGE_PATH", "/tmp/caixa/archives")
	v.SetDefault("REPORT_FORMAT", "xlsx")
	v.SetDefault("REPORT_CACHE_TTL", "24h")
	v.SetDefault("MAX_RECEIPT_BYTES", 10<<20)
	v.SetDefault("TIMEZONE", "America/Sao_Paulo")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:5173")
	v.SetDefault("RATE_LIMIT_RPS", 20)
	v.SetDefault("RATE_LIMIT_BURST", 40)
}

// Validate rejects combinations the server cannot start with.
func (c *Config) Validate() error {
	switch c.DatabaseDriver {
	case "postgres", "sqlite", "memory":
	default:
		return fmt.Errorf("DATABASE_DRIVER must be postgres, sqlite or memory, got %q", c.DatabaseDriver)
	}
	switch c.ReportFormat {
	case "xlsx", "csv":
	default:
		return fmt.Errorf("REPORT_FORMAT must be xlsx or csv, got %q", c.ReportFormat)
	}
	if c.MaxReceiptBytes <= 0 {
		return fmt.Errorf("MAX_RECEIPT_BYTES must be positive")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("TIMEZONE: %w", err)
	}
	return nil
}

func (c *Config) IsProduction() bool { return c.Env == "production" }

// Location is the register's time zone; "today" is computed in it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// AllowedOrigins splits CORS_ALLOWED_ORIGINS.
func (c *Config) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
