package registry

import (
	"context"
	"strings"

	"fal-mcp-server/internal/infrastructure/falapi"
)

// Registry is the caller-facing facade over the catalog cache, alias
// resolution, and search. One instance is constructed at startup and
// injected into every consumer.
type Registry struct {
	client PlatformClient
	cache  *Cache
}

// NewRegistry creates a registry over the given platform client and cache.
func NewRegistry(client PlatformClient, cache *Cache) *Registry {
	return &Registry{client: client, cache: cache}
}

// Resolve turns caller input into a canonical model id. Canonical inputs
// pass through unchanged; aliases are looked up in the current snapshot.
// Returns ErrUnknownAlias when neither applies.
func (r *Registry) Resolve(ctx context.Context, input string) (string, error) {
	if IsCanonicalID(input) {
		return input, nil
	}
	return resolveIn(r.cache.Snapshot(ctx), input)
}

// ListModels returns cached models with optional category and substring
// filtering, capped at limit.
func (r *Registry) ListModels(ctx context.Context, category, search string, limit int) []ModelRecord {
	if limit <= 0 {
		limit = 50
	}
	snapshot := r.cache.Snapshot(ctx)

	var models []ModelRecord
	if category != "" {
		for _, id := range snapshot.ByCategory[category] {
			if record, ok := snapshot.Models[id]; ok {
				models = append(models, record)
			}
		}
	} else {
		models = make([]ModelRecord, 0, len(snapshot.Models))
		for _, record := range snapshot.Models {
			models = append(models, record)
		}
		sortFeaturedFirst(models)
	}

	if search != "" {
		models = filterSubstring(models, search)
	}
	if len(models) > limit {
		models = models[:limit]
	}
	return models
}

func filterSubstring(models []ModelRecord, search string) []ModelRecord {
	needle := strings.ToLower(search)
	var matched []ModelRecord
	for _, record := range models {
		if strings.Contains(strings.ToLower(record.Name), needle) ||
			strings.Contains(strings.ToLower(record.Description), needle) ||
			strings.Contains(strings.ToLower(record.ID), needle) {
			matched = append(matched, record)
		}
	}
	return matched
}

// GetModel returns the cached record for a canonical id, if present.
func (r *Registry) GetModel(ctx context.Context, id string) (ModelRecord, bool) {
	record, ok := r.cache.Snapshot(ctx).Models[id]
	return record, ok
}

// Aliases returns a copy of the current alias table.
func (r *Registry) Aliases(ctx context.Context) map[string]string {
	snapshot := r.cache.Snapshot(ctx)
	aliases := make(map[string]string, len(snapshot.Aliases))
	for alias, id := range snapshot.Aliases {
		aliases[alias] = id
	}
	return aliases
}

// Pricing passes a pricing read through to the platform API.
func (r *Registry) Pricing(ctx context.Context, endpointIDs []string) (*falapi.PricingResponse, error) {
	return r.client.GetPricing(ctx, endpointIDs)
}

// Usage passes a usage read through to the platform API.
func (r *Registry) Usage(ctx context.Context, start, end string, endpointIDs []string) (*falapi.UsageResponse, error) {
	return r.client.GetUsage(ctx, start, end, endpointIDs)
}
