// Package config loads server configuration from YAML and environment
// variables. Environment variables override YAML values.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the server configuration.
type Config struct {
	// Addr is the HTTP listen address, e.g. ":8080".
	Addr string `yaml:"addr"`

	// DatabaseURL selects the postgres backend when the binary is built
	// with it; SQLitePath selects sqlite. Empty both means in-memory.
	DatabaseURL string `yaml:"database_url"`
	SQLitePath  string `yaml:"sqlite_path"`

	// SecretsKey is the hex-encoded 32-byte key encrypting stored
	// credentials. Empty disables encryption at rest.
	SecretsKey string `yaml:"secrets_key"`

	// SentryDSN enables error reporting when set.
	SentryDSN string `yaml:"sentry_dsn"`

	// APIKeys authorize write operations. Empty leaves the API open.
	APIKeys []string `yaml:"api_keys"`

	// RateLimitRPS/Burst bound inbound requests per client IP.
	RateLimitRPS   float64 `yaml:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst"`

	Scan ScanConfig `yaml:"scan"`
	AWS  AWSConfig  `yaml:"aws"`
}

// ScanConfig tunes the background engine.
type ScanConfig struct {
	// MaxWorkers bounds concurrent background scan/remediation runs.
	MaxWorkers int64 `yaml:"max_workers"`
	// JobTimeout bounds one background run.
	JobTimeout time.Duration `yaml:"job_timeout"`
	// SnapshotMaxAgeDays is the old-snapshot threshold.
	SnapshotMaxAgeDays int `yaml:"snapshot_max_age_days"`
	// RescanBeforeRemediate refreshes snapshots before remediating instead
	// of trusting the last stored scan.
	RescanBeforeRemediate bool `yaml:"rescan_before_remediate"`
}

// AWSConfig tunes the provider adapter.
type AWSConfig struct {
	// Regions restricts sessions to a subset. Empty means all enabled.
	Regions []string `yaml:"regions"`
	// RequestsPerSecond bounds outbound AWS calls per session.
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// Load reads configuration from the YAML file at path (optional) and applies
// CLOUDTRIM_* environment overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{
		// Defaults
		Addr:           ":8080",
		RateLimitRPS:   10,
		RateLimitBurst: 20,
		Scan: ScanConfig{
			MaxWorkers:         4,
			JobTimeout:         30 * time.Minute,
			SnapshotMaxAgeDays: 30,
		},
		AWS: AWSConfig{
			RequestsPerSecond: 10,
		},
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if v := os.Getenv("CLOUDTRIM_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("CLOUDTRIM_SQLITE_PATH"); v != "" {
		cfg.SQLitePath = v
	}
	if v := os.Getenv("CLOUDTRIM_SECRETS_KEY"); v != "" {
		cfg.SecretsKey = v
	}
	if v := os.Getenv("SENTRY_DSN"); v != "" {
		cfg.SentryDSN = v
	}
	if v := os.Getenv("CLOUDTRIM_API_KEYS"); v != "" {
		cfg.APIKeys = strings.Split(v, ",")
	}
	if v := os.Getenv("CLOUDTRIM_MAX_WORKERS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Scan.MaxWorkers = n
		}
	}
	if v := os.Getenv("CLOUDTRIM_JOB_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Scan.JobTimeout = d
		}
	}
	if v := os.Getenv("CLOUDTRIM_SNAPSHOT_MAX_AGE_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Scan.SnapshotMaxAgeDays = n
		}
	}
	if v := os.Getenv("CLOUDTRIM_RESCAN_BEFORE_REMEDIATE"); v != "" {
		cfg.Scan.RescanBeforeRemediate = strings.ToLower(v) == "true" || v == "1"
	}
	if v := os.Getenv("CLOUDTRIM_AWS_REGIONS"); v != "" {
		cfg.AWS.Regions = strings.Split(v, ",")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return errors.New("addr is required")
	}
	if c.Scan.MaxWorkers < 1 {
		return errors.New("scan.max_workers must be at least 1")
	}
	if c.Scan.JobTimeout < time.Minute {
		return errors.New("scan.job_timeout must be at least 1 minute")
	}
	if c.Scan.SnapshotMaxAgeDays < 1 {
		return errors.New("scan.snapshot_max_age_days must be at least 1")
	}
	if c.AWS.RequestsPerSecond <= 0 {
		return errors.New("aws.requests_per_second must be positive")
	}
	return nil
}

// SnapshotMaxAge returns the old-snapshot threshold as a duration.
func (c *Config) SnapshotMaxAge() time.Duration {
	return time.Duration(c.Scan.SnapshotMaxAgeDays) * 24 * time.Hour
}
