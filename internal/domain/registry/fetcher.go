package registry

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"fal-mcp-server/internal/infrastructure/falapi"
)

// PlatformClient is the slice of the Fal.ai platform API the registry
// consumes.
type PlatformClient interface {
	ListModelsPage(ctx context.Context, cursor string, limit int, category string) (*falapi.ModelsPage, error)
	SearchModels(ctx context.Context, query, category string, limit int) ([]falapi.RawModel, error)
	GetPricing(ctx context.Context, endpointIDs []string) (*falapi.PricingResponse, error)
	GetUsage(ctx context.Context, start, end string, endpointIDs []string) (*falapi.UsageResponse, error)
}

// Fetcher reads the full remote catalog page by page and normalizes raw
// items into ModelRecords.
type Fetcher struct {
	client   PlatformClient
	pageSize int
	retry    falapi.RetryConfig
}

// NewFetcher creates a catalog fetcher.
func NewFetcher(client PlatformClient, pageSize int, retry falapi.RetryConfig) *Fetcher {
	if pageSize <= 0 {
		pageSize = 100
	}
	return &Fetcher{client: client, pageSize: pageSize, retry: retry}
}

// FetchAll reads every catalog page and returns the normalized records.
// Pagination stops when the page reports has_more=false or carries no
// next cursor; either condition alone terminates.
func (f *Fetcher) FetchAll(ctx context.Context, category string) ([]ModelRecord, error) {
	var records []ModelRecord
	cursor := ""
	pageNum := 0

	for {
		pageNum++
		page, err := falapi.WithRetry(ctx, f.retry, "catalog_page", func() (*falapi.ModelsPage, error) {
			return f.client.ListModelsPage(ctx, cursor, f.pageSize, category)
		})
		if err != nil {
			return nil, err
		}

		items := page.Records()
		if len(items) == 0 && pageNum == 1 {
			log.Warn().Str("category", category).Msg("Catalog returned an empty first page")
		}
		for _, raw := range items {
			record, ok := normalizeRecord(raw)
			if !ok {
				log.Warn().Msg("Skipping catalog item without an endpoint id")
				continue
			}
			records = append(records, record)
		}

		if !page.HasMore || page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	log.Debug().
		Int("models", len(records)).
		Int("pages", pageNum).
		Msg("Fetched model catalog")
	return records, nil
}

// normalizeRecord converts a raw catalog item into a ModelRecord. Items
// without an id are rejected; every other field degrades to a safe default.
func normalizeRecord(raw falapi.RawModel) (ModelRecord, bool) {
	id := raw.Identifier()
	if id == "" {
		return ModelRecord{}, false
	}

	record := ModelRecord{
		ID:          id,
		Name:        id,
		Owner:       ownerOf(id),
		Highlighted: raw.Highlighted,
		Status:      raw.Status,
	}
	if meta := raw.Metadata; meta != nil {
		if meta.DisplayName != "" {
			record.Name = meta.DisplayName
		}
		record.Description = meta.Description
		record.Category = meta.Category
		record.ThumbnailURL = meta.ThumbnailURL
		record.Tags = meta.Tags
	}
	if group := raw.Group; group != nil {
		record.GroupKey = group.Key
		record.GroupLabel = group.Label
	}
	return record, true
}

// ownerOf extracts the namespace prefix of a canonical id, empty when the
// id carries no separator.
func ownerOf(id string) string {
	if idx := strings.Index(id, "/"); idx > 0 {
		return id[:idx]
	}
	return ""
}
