package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// AppConfig is the proxy process configuration, loaded from a YAML
// file with environment variable expansion.
type AppConfig struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`

	API struct {
		Key     string `yaml:"key"`
		BaseURL string `yaml:"base_url"`
	} `yaml:"api"`

	Limits struct {
		RequestsPerSecond      int `yaml:"requests_per_second"`
		RequestsPerMinute      int `yaml:"requests_per_minute"`
		BurstLimit             int `yaml:"burst_limit"`
		HeavyRequestsPerSecond int `yaml:"heavy_requests_per_second"`
	} `yaml:"limits"`

	Cache struct {
		DefaultTTL string `yaml:"default_ttl"`
		MaxEntries int    `yaml:"max_entries"`

		// TTLOverrides maps endpoint identifier prefixes to TTL strings,
		// e.g. "ranking" -> "1h".
		TTLOverrides map[string]string `yaml:"ttl_overrides"`
	} `yaml:"cache"`

	Logging struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"logging"`
}

// LoadConfig reads configuration from a YAML file. Environment
// variables referenced as ${VAR} in the file are expanded before
// parsing. An empty path returns a config built from environment
// variables and defaults only.
func LoadConfig(path string) (*AppConfig, error) {
	var cfg AppConfig

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.API.Key == "" {
		cfg.API.Key = os.Getenv("NEXON_API_KEY")
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = getEnv("LOG_LEVEL", "info")
	}
}

// CacheTTL parses the configured default cache TTL. An empty value
// falls back to five minutes.
func (c *AppConfig) CacheTTL() (time.Duration, error) {
	if c.Cache.DefaultTTL == "" {
		return 5 * time.Minute, nil
	}
	return time.ParseDuration(c.Cache.DefaultTTL)
}

// CacheTTLOverrides parses the per-endpoint-family TTL overrides.
func (c *AppConfig) CacheTTLOverrides() (map[string]time.Duration, error) {
	out := make(map[string]time.Duration, len(c.Cache.TTLOverrides))
	for prefix, raw := range c.Cache.TTLOverrides {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid TTL %q for prefix %q: %w", raw, prefix, err)
		}
		out[prefix] = d
	}
	return out, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
