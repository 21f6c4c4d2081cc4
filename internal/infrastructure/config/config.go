package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all configuration for the Fal MCP server
type Config struct {
	// HTTP Server - using FAL_MCP_ prefix to avoid collisions
	HTTPPort  string `env:"FAL_MCP_HTTP_PORT" envDefault:"8095"`
	LogLevel  string `env:"FAL_MCP_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"FAL_MCP_LOG_FORMAT" envDefault:"json"` // json or console

	// Fal.ai API access. The key is read once at startup and attached to
	// every outbound request.
	FalKey         string `env:"FAL_KEY"`
	PlatformAPIURL string `env:"FAL_MCP_PLATFORM_API_URL" envDefault:"https://api.fal.ai/v1"`
	QueueAPIURL    string `env:"FAL_MCP_QUEUE_API_URL" envDefault:"https://queue.fal.run"`
	RunAPIURL      string `env:"FAL_MCP_RUN_API_URL" envDefault:"https://fal.run"`
	StorageAPIURL  string `env:"FAL_MCP_STORAGE_API_URL" envDefault:"https://rest.alpha.fal.ai"`

	// HTTP Client Performance
	APITimeout      int `env:"FAL_MCP_API_TIMEOUT" envDefault:"30"`
	MaxConnsPerHost int `env:"FAL_MCP_MAX_CONNS_PER_HOST" envDefault:"50"`

	// Catalog cache. The fallback TTL is intentionally shorter than the
	// normal TTL so a degraded catalog re-attempts the remote source sooner.
	CacheTTL         int `env:"FAL_MCP_CACHE_TTL" envDefault:"3600"`
	FallbackCacheTTL int `env:"FAL_MCP_FALLBACK_CACHE_TTL" envDefault:"60"`
	CatalogPageSize  int `env:"FAL_MCP_CATALOG_PAGE_SIZE" envDefault:"100"`

	// Optional YAML file with extra alias -> model id seed mappings,
	// merged over the built-in legacy table.
	AliasSeedFile string `env:"FAL_MCP_ALIAS_SEED_FILE"`

	// Queue execution
	QueueStrategy     string `env:"FAL_MCP_QUEUE_STRATEGY" envDefault:"polling"` // subscribe, polling, blocking
	PollInterval      int    `env:"FAL_MCP_POLL_INTERVAL" envDefault:"2"`        // seconds between status checks
	DefaultJobTimeout int    `env:"FAL_MCP_JOB_TIMEOUT" envDefault:"300"`        // seconds

	// Retry Configuration (catalog page reads)
	RetryMaxAttempts   int     `env:"FAL_MCP_RETRY_MAX_ATTEMPTS" envDefault:"3"`
	RetryInitialDelay  int     `env:"FAL_MCP_RETRY_INITIAL_DELAY" envDefault:"250"` // milliseconds
	RetryMaxDelay      int     `env:"FAL_MCP_RETRY_MAX_DELAY" envDefault:"5000"`    // milliseconds
	RetryBackoffFactor float64 `env:"FAL_MCP_RETRY_BACKOFF_FACTOR" envDefault:"1.5"`
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if strings.TrimSpace(os.Getenv("FAL_MCP_LOG_LEVEL")) == "" {
		if global := strings.TrimSpace(os.Getenv("LOG_LEVEL")); global != "" {
			cfg.LogLevel = global
		}
	}
	if strings.TrimSpace(os.Getenv("FAL_MCP_LOG_FORMAT")) == "" {
		if global := strings.TrimSpace(os.Getenv("LOG_FORMAT")); global != "" {
			cfg.LogFormat = global
		}
	}

	switch cfg.QueueStrategy {
	case "subscribe", "polling", "blocking":
	default:
		return nil, fmt.Errorf("FAL_MCP_QUEUE_STRATEGY must be one of subscribe, polling, blocking (got %q)", cfg.QueueStrategy)
	}
	if cfg.FallbackCacheTTL >= cfg.CacheTTL {
		return nil, fmt.Errorf("FAL_MCP_FALLBACK_CACHE_TTL (%d) must be shorter than FAL_MCP_CACHE_TTL (%d)", cfg.FallbackCacheTTL, cfg.CacheTTL)
	}
	return cfg, nil
}

// NormalTTL returns the catalog cache TTL as a duration.
func (c *Config) NormalTTL() time.Duration { return time.Duration(c.CacheTTL) * time.Second }

// FallbackTTL returns the degraded catalog cache TTL as a duration.
func (c *Config) FallbackTTL() time.Duration {
	return time.Duration(c.FallbackCacheTTL) * time.Second
}

// PollIntervalDuration returns the queue poll interval as a duration.
func (c *Config) PollIntervalDuration() time.Duration {
	return time.Duration(c.PollInterval) * time.Second
}

// JobTimeout returns the default job timeout as a duration.
func (c *Config) JobTimeout() time.Duration {
	return time.Duration(c.DefaultJobTimeout) * time.Second
}
