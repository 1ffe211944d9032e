package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	DataDir   string `envconfig:"CATALOG_DATA_DIR" default:"data"`
	LedgerDSN string `envconfig:"CATALOG_LEDGER_DSN" default:""`

	JWTSecret string `envconfig:"AUTH_JWT_SECRET" default:""`
	JWTIssuer string `envconfig:"AUTH_JWT_ISSUER" default:""`

	CORSAllowedOrigins    string `envconfig:"CORS_ALLOWED_ORIGINS" default:""`
	SnapshotMaxAgeSeconds int    `envconfig:"SNAPSHOT_MAX_AGE_SECONDS" default:"300"`

	FetchTimeoutSeconds int `envconfig:"FETCH_TIMEOUT_SECONDS" default:"30"`
	FetchConcurrency    int `envconfig:"FETCH_CONCURRENCY" default:"4"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("CATALOG_DATA_DIR is required")
	}
	if c.SnapshotMaxAgeSeconds < 0 {
		return fmt.Errorf("SNAPSHOT_MAX_AGE_SECONDS must be >= 0")
	}
	if c.FetchTimeoutSeconds < 1 {
		return fmt.Errorf("FETCH_TIMEOUT_SECONDS must be >= 1")
	}
	if c.FetchConcurrency < 1 {
		return fmt.Errorf("FETCH_CONCURRENCY must be >= 1")
	}
	return nil
}

// LedgerDSNOrDefault returns the run ledger DSN, falling back to a sqlite
// file inside the data directory.
func (c *Config) LedgerDSNOrDefault() string {
	if dsn := strings.TrimSpace(c.LedgerDSN); dsn != "" {
		return dsn
	}
	return filepath.Join(c.DataDir, "ingest-runs.db")
}

func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSeconds) * time.Second
}

func (c *Config) CORSAllowedOriginsList() []string {
	if c == nil {
		return nil
	}

	parts := strings.Split(c.CORSAllowedOrigins, ",")
	origins := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		origin := strings.TrimSpace(part)
		if origin == "" {
			continue
		}
		if _, exists := seen[origin]; exists {
			continue
		}
		seen[origin] = struct{}{}
		origins = append(origins, origin)
	}
	return origins
}
