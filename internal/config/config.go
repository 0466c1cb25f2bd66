// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/0xMilord/renderiq-sub004/internal/sybil"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port     string
	Env      string // "development", "staging", "production"
	LogLevel string

	// Database
	DatabaseURL string // PostgreSQL connection string (optional, uses in-memory if not set)

	// Rate limiting
	RateLimitRPM int

	// Tracing
	OTLPEndpoint string

	// Detection policy overrides
	MaxAccountsPerIP      int
	MaxAccountsPerIP7Days int
	RapidSignupThreshold  int
	TrustedIPPrefixes     []string // comma-separated in env
	AnalyzerTimeout       time.Duration
}

// Defaults
const (
	DefaultPort            = "8080"
	DefaultEnv             = "development"
	DefaultLogLevel        = "info"
	DefaultRateLimit       = 120
	DefaultAnalyzerTimeout = 3 * time.Second
)

// Load reads configuration from environment variables
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	cfg := &Config{
		Port:                  envOr("PORT", DefaultPort),
		Env:                   envOr("ENV", DefaultEnv),
		LogLevel:              envOr("LOG_LEVEL", DefaultLogLevel),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		OTLPEndpoint:          os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		RateLimitRPM:          envIntOr("RATE_LIMIT_RPM", DefaultRateLimit),
		MaxAccountsPerIP:      envIntOr("MAX_ACCOUNTS_PER_IP", sybil.DefaultMaxAccountsPerIP),
		MaxAccountsPerIP7Days: envIntOr("MAX_ACCOUNTS_PER_IP_7DAYS", sybil.DefaultMaxAccountsPerIP7Days),
		RapidSignupThreshold:  envIntOr("RAPID_SIGNUP_THRESHOLD", sybil.DefaultRapidSignupThreshold),
		AnalyzerTimeout:       DefaultAnalyzerTimeout,
	}

	if prefixes := os.Getenv("TRUSTED_IP_PREFIXES"); prefixes != "" {
		for _, p := range strings.Split(prefixes, ",") {
			if p = strings.TrimSpace(p); p != "" {
				cfg.TrustedIPPrefixes = append(cfg.TrustedIPPrefixes, p)
			}
		}
	}

	if t := os.Getenv("ANALYZER_TIMEOUT"); t != "" {
		d, err := time.ParseDuration(t)
		if err != nil {
			return nil, fmt.Errorf("invalid ANALYZER_TIMEOUT %q: %w", t, err)
		}
		cfg.AnalyzerTimeout = d
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SybilConfig builds the immutable engine policy from this configuration.
func (c *Config) SybilConfig() sybil.Config {
	sc := sybil.DefaultConfig()
	sc.MaxAccountsPerIP = c.MaxAccountsPerIP
	sc.MaxAccountsPerIP7Days = c.MaxAccountsPerIP7Days
	sc.RapidSignupThreshold = c.RapidSignupThreshold
	sc.TrustedIPPrefixes = c.TrustedIPPrefixes
	sc.AnalyzerTimeout = c.AnalyzerTimeout
	return sc
}

func (c *Config) validate() error {
	if c.MaxAccountsPerIP < 1 {
		return fmt.Errorf("MAX_ACCOUNTS_PER_IP must be at least 1, got %d", c.MaxAccountsPerIP)
	}
	if c.MaxAccountsPerIP7Days < c.MaxAccountsPerIP {
		return fmt.Errorf("MAX_ACCOUNTS_PER_IP_7DAYS (%d) must not be below MAX_ACCOUNTS_PER_IP (%d)",
			c.MaxAccountsPerIP7Days, c.MaxAccountsPerIP)
	}
	if c.RateLimitRPM < 1 {
		return fmt.Errorf("RATE_LIMIT_RPM must be positive, got %d", c.RateLimitRPM)
	}
	return nil
}

// IsProduction reports whether the app runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
