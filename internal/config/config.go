// Package config provides configuration for the spanql engine and CLI.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Format selects the result encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// Config holds the engine configuration.
type Config struct {
	// Output is the result encoding: csv or json
	Output Format `yaml:"output"`

	// MaxRows caps the number of result rows returned; 0 means no cap
	MaxRows int `yaml:"max_rows"`

	// Parallelism is the number of scripts run concurrently in a batch
	Parallelism int `yaml:"parallelism"`

	// LogQueries enables per-query logging
	LogQueries bool `yaml:"log_queries"`

	// MetricsAddr, when set, serves Prometheus metrics on this address
	MetricsAddr string `yaml:"metrics_addr"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Output:      FormatCSV,
		MaxRows:     0,
		Parallelism: 4,
		LogQueries:  false,
		MetricsAddr: "",
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Output {
	case FormatCSV, FormatJSON:
	default:
		return fmt.Errorf("config: invalid output format %q (must be csv or json)", c.Output)
	}
	if c.MaxRows < 0 {
		return fmt.Errorf("config: max_rows must not be negative, got %d", c.MaxRows)
	}
	if c.Parallelism < 1 {
		return fmt.Errorf("config: parallelism must be at least 1, got %d", c.Parallelism)
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file on top of the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}
	return cfg, nil
}

// LoadFromEnv overrides configuration from SPANQL_-prefixed environment
// variables. A .env file in the working directory is read first if
// present.
func LoadFromEnv(cfg *Config) {
	_ = godotenv.Load()

	if v := os.Getenv("SPANQL_OUTPUT"); v != "" {
		cfg.Output = Format(v)
	}
	if v := os.Getenv("SPANQL_MAX_ROWS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxRows = n
		}
	}
	if v := os.Getenv("SPANQL_PARALLELISM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Parallelism = n
		}
	}
	if v := os.Getenv("SPANQL_LOG_QUERIES"); v != "" {
		cfg.LogQueries = v == "true" || v == "1"
	}
	if v := os.Getenv("SPANQL_METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
}
