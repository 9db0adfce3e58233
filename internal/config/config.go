// Package config loads the service configuration from environment
// variables. Load fails fast and reports every missing variable at once.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the application configuration.
type Config struct {
	Environment string
	APIAddr     string
	DatabaseURL string

	// RedisAddr enables rate limiting when set.
	RedisAddr string

	// ReportLocation fixes the calendar day boundaries for statements.
	ReportLocation *time.Location

	RateLimitCapacity int
	RateLimitRefill   float64
	MaxBodyBytes      int64

	// IPAllowlist holds raw CIDR strings; empty means allow all.
	IPAllowlist []string

	// AuditDBPath enables the persistent audit chain when set.
	AuditDBPath string

	TLSCertFile string
	TLSKeyFile  string
	TLSCAFile   string
}

const (
	defaultAPIAddr           = ":8080"
	defaultRateLimitCapacity = 100
	defaultRateLimitRefill   = 50.0
	defaultMaxBodyBytes      = 1 << 20 // 1 MiB
)

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: os.Getenv("APP_ENV"),
		APIAddr:     envOr("API_ADDR", defaultAPIAddr),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisAddr:   os.Getenv("REDIS_ADDR"),
		AuditDBPath: os.Getenv("AUDIT_DB"),
		TLSCertFile: os.Getenv("TLS_CERT_FILE"),
		TLSKeyFile:  os.Getenv("TLS_KEY_FILE"),
		TLSCAFile:   os.Getenv("TLS_CA_FILE"),
	}

	if v := os.Getenv("IP_ALLOWLIST"); v != "" {
		for _, cidr := range strings.Split(v, ",") {
			if cidr = strings.TrimSpace(cidr); cidr != "" {
				cfg.IPAllowlist = append(cfg.IPAllowlist, cidr)
			}
		}
	}

	var err error
	if cfg.RateLimitCapacity, err = envInt("RATE_LIMIT_CAPACITY", defaultRateLimitCapacity); err != nil {
		return nil, err
	}
	if cfg.RateLimitRefill, err = envFloat("RATE_LIMIT_REFILL", defaultRateLimitRefill); err != nil {
		return nil, err
	}
	maxBody, err := envInt("MAX_BODY_BYTES", defaultMaxBodyBytes)
	if err != nil {
		return nil, err
	}
	cfg.MaxBodyBytes = int64(maxBody)

	tz := envOr("REPORT_TIMEZONE", "UTC")
	cfg.ReportLocation, err = time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("REPORT_TIMEZONE: unknown location %q: %w", tz, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the required variables are present.
func (c *Config) Validate() error {
	var missing []string

	if c.Environment == "" {
		missing = append(missing, "APP_ENV")
	}
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return errors.New("missing required environment variables: " + strings.Join(missing, ", "))
	}

	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		return errors.New("TLS_CERT_FILE and TLS_KEY_FILE must be set together")
	}
	return nil
}

// TLSEnabled reports whether the server should serve TLS.
func (c *Config) TLSEnabled() bool {
	return c.TLSCertFile != "" && c.TLSKeyFile != ""
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: expected integer, got %q", key, v)
	}
	return i, nil
}

func envFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: expected number, got %q", key, v)
	}
	return f, nil
}
