package infrastructure

import (
	"time"

	"github.com/google/wire"

	"fal-mcp-server/internal/infrastructure/config"
	"fal-mcp-server/internal/infrastructure/falapi"
)

// InfrastructureProvider provides all infrastructure dependencies
var InfrastructureProvider = wire.NewSet(
	// Config
	ProvideConfig,

	// Fal.ai API client
	ProvideFalClient,

	// Retry policy for catalog reads
	ProvideRetryConfig,
)

// ProvideConfig loads and provides the application configuration
func ProvideConfig() (*config.Config, error) {
	return config.LoadConfig()
}

// ProvideFalClient provides the Fal.ai API client
func ProvideFalClient(cfg *config.Config) *falapi.Client {
	return falapi.NewClient(falapi.ClientConfig{
		FalKey:          cfg.FalKey,
		PlatformAPIURL:  cfg.PlatformAPIURL,
		QueueAPIURL:     cfg.QueueAPIURL,
		RunAPIURL:       cfg.RunAPIURL,
		StorageAPIURL:   cfg.StorageAPIURL,
		Timeout:         time.Duration(cfg.APITimeout) * time.Second,
		MaxConnsPerHost: cfg.MaxConnsPerHost,
	})
}

// ProvideRetryConfig provides the retry policy for catalog page reads
func ProvideRetryConfig(cfg *config.Config) falapi.RetryConfig {
	retry := falapi.DefaultRetryConfig()
	if cfg.RetryMaxAttempts > 0 {
		retry.MaxAttempts = cfg.RetryMaxAttempts
	}
	if cfg.RetryInitialDelay > 0 {
		retry.InitialDelay = time.Duration(cfg.RetryInitialDelay) * time.Millisecond
	}
	if cfg.RetryMaxDelay > 0 {
		retry.MaxDelay = time.Duration(cfg.RetryMaxDelay) * time.Millisecond
	}
	if cfg.RetryBackoffFactor > 0 {
		retry.BackoffFactor = cfg.RetryBackoffFactor
	}
	return retry
}
