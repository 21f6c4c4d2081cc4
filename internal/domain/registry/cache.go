package registry

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"fal-mcp-server/internal/infrastructure/metrics"
)

// CatalogSource produces the full normalized catalog; implemented by
// Fetcher.
type CatalogSource interface {
	FetchAll(ctx context.Context, category string) ([]ModelRecord, error)
}

// Cache owns the current catalog snapshot. Snapshot never fails: a refresh
// failure degrades to the previous snapshot or, with nothing cached, to a
// minimal fallback snapshot built from the alias seed table. Refreshes are
// single-flight: concurrent callers during a refresh share one fetch.
type Cache struct {
	source      CatalogSource
	seeds       map[string]string
	normalTTL   time.Duration
	fallbackTTL time.Duration

	mu       sync.RWMutex
	snapshot *Snapshot
	group    singleflight.Group

	now func() time.Time
}

// NewCache creates a catalog cache. The fallback TTL must be shorter than
// the normal TTL so a degraded catalog re-attempts the remote source
// sooner.
func NewCache(source CatalogSource, seeds map[string]string, normalTTL, fallbackTTL time.Duration) *Cache {
	if normalTTL <= 0 {
		normalTTL = time.Hour
	}
	if fallbackTTL <= 0 || fallbackTTL >= normalTTL {
		fallbackTTL = time.Minute
	}
	return &Cache{
		source:      source,
		seeds:       seeds,
		normalTTL:   normalTTL,
		fallbackTTL: fallbackTTL,
		now:         time.Now,
	}
}

// Snapshot returns a usable catalog snapshot, refreshing it when expired.
func (c *Cache) Snapshot(ctx context.Context) *Snapshot {
	c.mu.RLock()
	current := c.snapshot
	c.mu.RUnlock()
	if current.Valid(c.now()) {
		return current
	}

	result, _, _ := c.group.Do("refresh", func() (any, error) {
		return c.refresh(ctx), nil
	})
	return result.(*Snapshot)
}

// refresh fetches the catalog and swaps in a new snapshot. It never
// returns nil: failures degrade to the stale snapshot or the seed
// fallback.
func (c *Cache) refresh(ctx context.Context) *Snapshot {
	// Another waiter may have completed a refresh between the validity
	// check and entering the singleflight group.
	c.mu.RLock()
	current := c.snapshot
	c.mu.RUnlock()
	if current.Valid(c.now()) {
		return current
	}

	records, err := c.source.FetchAll(ctx, "")
	if err != nil {
		if current != nil {
			log.Warn().Err(err).
				Time("fetched_at", current.FetchedAt).
				Msg("Catalog refresh failed, serving stale snapshot")
			metrics.CatalogRefreshesTotal.WithLabelValues("stale_served").Inc()
			return current
		}
		log.Warn().Err(err).Msg("Catalog refresh failed with no prior snapshot, using seed fallback")
		metrics.CatalogRefreshesTotal.WithLabelValues("fallback").Inc()
		fallback := c.fallbackSnapshot()
		c.store(fallback)
		return fallback
	}

	snapshot := buildSnapshot(records, c.seeds, c.now(), c.normalTTL)
	c.store(snapshot)
	metrics.CatalogRefreshesTotal.WithLabelValues("refreshed").Inc()
	log.Info().
		Int("models", len(snapshot.Models)).
		Int("aliases", len(snapshot.Aliases)).
		Msg("Catalog snapshot refreshed")
	return snapshot
}

func (c *Cache) store(snapshot *Snapshot) {
	c.mu.Lock()
	c.snapshot = snapshot
	c.mu.Unlock()
}

// fallbackSnapshot builds the minimal catalog from the seed table. Its TTL
// is intentionally short so the remote source is retried soon.
func (c *Cache) fallbackSnapshot() *Snapshot {
	aliases := make(map[string]string, len(c.seeds))
	for alias, id := range c.seeds {
		aliases[alias] = id
	}
	return &Snapshot{
		Models:     map[string]ModelRecord{},
		Aliases:    aliases,
		ByCategory: map[string][]string{"image": {}, "video": {}, "audio": {}},
		FetchedAt:  c.now(),
		TTL:        c.fallbackTTL,
		Fallback:   true,
	}
}

// buildSnapshot assembles a full snapshot from normalized records. Seed
// aliases are registered first and always win; auto-derived aliases are
// skipped on collision.
func buildSnapshot(records []ModelRecord, seeds map[string]string, fetchedAt time.Time, ttl time.Duration) *Snapshot {
	models := make(map[string]ModelRecord, len(records))
	aliases := make(map[string]string, len(seeds)+len(records))
	for alias, id := range seeds {
		aliases[alias] = id
	}
	byCategory := map[string][]string{"image": {}, "video": {}, "audio": {}}

	for _, record := range records {
		models[record.ID] = record

		if category, ok := categoryMapping[record.Category]; ok {
			byCategory[category] = append(byCategory[category], record.ID)
		}

		if alias := GenerateAlias(record.ID); alias != "" {
			if _, taken := aliases[alias]; !taken {
				aliases[alias] = record.ID
			}
		}
	}

	return &Snapshot{
		Models:     models,
		Aliases:    aliases,
		ByCategory: byCategory,
		FetchedAt:  fetchedAt,
		TTL:        ttl,
	}
}
