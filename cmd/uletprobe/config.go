package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Target is one endpoint the probe exercises.
type Target struct {
	Name   string         `yaml:"name"`
	Method string         `yaml:"method"`
	URL    string         `yaml:"url"`
	Cache  bool           `yaml:"cache"`
	Body   map[string]any `yaml:"body"`
}

// Config holds the probe run configuration. Durations are yaml strings in
// time.ParseDuration form ("500ms", "10s").
type Config struct {
	BaseURL     string   `yaml:"base_url"`
	Timeout     string   `yaml:"timeout"`
	Retries     int      `yaml:"retries"`
	RetryDelay  string   `yaml:"retry_delay"`
	CacheTTL    string   `yaml:"cache_ttl"`
	MetricsAddr string   `yaml:"metrics_addr"`
	Debug       bool     `yaml:"debug"`
	Targets     []Target `yaml:"targets"`

	timeout    time.Duration
	retryDelay time.Duration
	cacheTTL   time.Duration
}

// DefaultConfig returns a Config with the client's stock timings.
func DefaultConfig() *Config {
	return &Config{
		Timeout:    "30s",
		Retries:    3,
		RetryDelay: "1s",
		CacheTTL:   "5m",
	}
}

// LoadConfig reads a yaml config file, applies defaults and validates it.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.finalize(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// finalize parses duration strings and checks the target list.
func (c *Config) finalize() error {
	var err error
	if c.timeout, err = time.ParseDuration(c.Timeout); err != nil {
		return fmt.Errorf("timeout: %w", err)
	}
	if c.retryDelay, err = time.ParseDuration(c.RetryDelay); err != nil {
		return fmt.Errorf("retry_delay: %w", err)
	}
	if c.cacheTTL, err = time.ParseDuration(c.CacheTTL); err != nil {
		return fmt.Errorf("cache_ttl: %w", err)
	}
	if c.Retries < 0 {
		return fmt.Errorf("retries must be non-negative, got %d", c.Retries)
	}
	if len(c.Targets) == 0 {
		return fmt.Errorf("at least one target is required")
	}
	for i, t := range c.Targets {
		if t.URL == "" {
			return fmt.Errorf("target %d: url is required", i)
		}
		switch t.Method {
		case "", "GET", "POST", "PUT", "DELETE":
		default:
			return fmt.Errorf("target %d: unsupported method %q", i, t.Method)
		}
	}
	return nil
}
