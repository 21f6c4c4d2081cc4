package domain

import (
	"github.com/google/wire"

	"fal-mcp-server/internal/domain/queue"
	"fal-mcp-server/internal/domain/registry"
	"fal-mcp-server/internal/infrastructure/config"
	"fal-mcp-server/internal/infrastructure/falapi"
)

// DomainProvider provides all domain services
var DomainProvider = wire.NewSet(
	ProvideSeedAliases,
	ProvideFetcher,
	ProvideCache,
	ProvideRegistry,
	ProvideStrategy,
)

// ProvideSeedAliases loads the built-in alias table, merged with the
// optional override file.
func ProvideSeedAliases(cfg *config.Config) (map[string]string, error) {
	return registry.SeedAliases(cfg.AliasSeedFile)
}

// ProvideFetcher provides the paginated catalog fetcher
func ProvideFetcher(client *falapi.Client, cfg *config.Config, retry falapi.RetryConfig) *registry.Fetcher {
	return registry.NewFetcher(client, cfg.CatalogPageSize, retry)
}

// ProvideCache provides the TTL catalog cache
func ProvideCache(fetcher *registry.Fetcher, seeds map[string]string, cfg *config.Config) *registry.Cache {
	return registry.NewCache(fetcher, seeds, cfg.NormalTTL(), cfg.FallbackTTL())
}

// ProvideRegistry provides the model registry facade
func ProvideRegistry(client *falapi.Client, cache *registry.Cache) *registry.Registry {
	return registry.NewRegistry(client, cache)
}

// ProvideStrategy provides the configured queue execution strategy
func ProvideStrategy(client *falapi.Client, cfg *config.Config) (queue.Strategy, error) {
	return queue.New(cfg.QueueStrategy, client, cfg.PollIntervalDuration())
}
