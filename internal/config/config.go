// Package config loads cbtap settings from the environment and an optional
// .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/cbtap/cbtap/internal/platform"
)

// Config holds every setting cbtap reads from CBTAP_* variables.
type Config struct {
	// Prefix is the install root. Defaults to $HOME/.cbtap.
	Prefix string `env:"CBTAP_PREFIX"`
	// Cache holds downloaded archives. Defaults to <prefix>/cache/downloads.
	Cache string `env:"CBTAP_CACHE"`
	// Libc forces the libc flavor on Linux ("glibc" or "musl").
	Libc string `env:"CBTAP_LIBC"`

	Retries     int           `env:"CBTAP_RETRIES" envDefault:"3"`
	HTTPTimeout time.Duration `env:"CBTAP_HTTP_TIMEOUT" envDefault:"5m"`
	TestTimeout time.Duration `env:"CBTAP_TEST_TIMEOUT" envDefault:"30s"`

	LogLevel  string `env:"CBTAP_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"CBTAP_LOG_FORMAT" envDefault:"text"`

	AuditConcurrency int `env:"CBTAP_AUDIT_CONCURRENCY" envDefault:"4"`
}

// Load reads the .env file in the working directory, if any, then parses
// the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return Config{}, fmt.Errorf("load .env file: %w", err)
		}
	}
	return Parse(nil)
}

// LoadFile is Load with an explicit env file, which must exist.
func LoadFile(path string) (Config, error) {
	if err := godotenv.Load(path); err != nil {
		return Config{}, fmt.Errorf("load %s: %w", path, err)
	}
	return Parse(nil)
}

// Parse builds a Config from environ, or from the process environment
// when environ is nil, and fills path defaults.
func Parse(environ map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Sanitize(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Sanitize fills Prefix and Cache when unset and cleans both paths.
func (c *Config) Sanitize() error {
	if c.Prefix == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("resolve home directory: %w", err)
		}
		c.Prefix = filepath.Join(home, ".cbtap")
	}
	c.Prefix = filepath.Clean(c.Prefix)

	if c.Cache == "" {
		c.Cache = filepath.Join(c.Prefix, "cache", "downloads")
	}
	c.Cache = filepath.Clean(c.Cache)
	return nil
}

// Validate rejects values no component can use.
func (c *Config) Validate() error {
	if !filepath.IsAbs(c.Prefix) {
		return fmt.Errorf("CBTAP_PREFIX must be an absolute path, got %q", c.Prefix)
	}
	if _, err := platform.ParseLibc(c.Libc); err != nil {
		return fmt.Errorf("CBTAP_LIBC: %w", err)
	}
	if c.Retries < 0 {
		return fmt.Errorf("CBTAP_RETRIES must be >= 0, got %d", c.Retries)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("CBTAP_HTTP_TIMEOUT must be positive, got %s", c.HTTPTimeout)
	}
	if c.TestTimeout <= 0 {
		return fmt.Errorf("CBTAP_TEST_TIMEOUT must be positive, got %s", c.TestTimeout)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.LogFormat != FormatText && c.LogFormat != FormatJSON {
		return fmt.Errorf("CBTAP_LOG_FORMAT must be %q or %q, got %q", FormatText, FormatJSON, c.LogFormat)
	}
	if c.AuditConcurrency <= 0 {
		return fmt.Errorf("CBTAP_AUDIT_CONCURRENCY must be positive, got %d", c.AuditConcurrency)
	}
	return nil
}
