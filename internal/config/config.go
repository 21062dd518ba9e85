// ABOUTME: Configuration loading and parsing for the fintrack client
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete fintrack client configuration.
type Config struct {
	API     APIConfig     `yaml:"api"`
	Cache   CacheConfig   `yaml:"cache"`
	Retry   RetryConfig   `yaml:"retry"`
	Logging LoggingConfig `yaml:"logging"`
}

// APIConfig holds remote API configuration.
type APIConfig struct {
	BaseURL      string `yaml:"base_url"`
	Token        string `yaml:"token"`
	RefreshToken string `yaml:"refresh_token"`

	Timeout    time.Duration `yaml:"-"`
	TimeoutRaw string        `yaml:"timeout"`
}

// CacheConfig holds entity store configuration.
type CacheConfig struct {
	Retention    time.Duration `yaml:"-"`
	RetentionRaw string        `yaml:"retention"`
}

// RetryConfig holds the refetch retry policy.
type RetryConfig struct {
	Attempts     int           `yaml:"attempts"`
	BaseDelay    time.Duration `yaml:"-"`
	BaseDelayRaw string        `yaml:"base_delay"`
	MaxDelay     time.Duration `yaml:"-"`
	MaxDelayRaw  string        `yaml:"max_delay"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed
// Config. Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding
// environment variable values. Unset variables become empty strings.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if c.Retry.Attempts < 0 {
		return fmt.Errorf("retry.attempts must not be negative")
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values.
func parseDurations(cfg *Config) error {
	fields := []struct {
		raw  string
		name string
		dst  *time.Duration
	}{
		{cfg.API.TimeoutRaw, "api.timeout", &cfg.API.Timeout},
		{cfg.Cache.RetentionRaw, "cache.retention", &cfg.Cache.Retention},
		{cfg.Retry.BaseDelayRaw, "retry.base_delay", &cfg.Retry.BaseDelay},
		{cfg.Retry.MaxDelayRaw, "retry.max_delay", &cfg.Retry.MaxDelay},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}
	return nil
}
