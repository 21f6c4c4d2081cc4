package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fal-mcp-server/internal/infrastructure/falapi"
)

type fakePlatform struct {
	pages       []*falapi.ModelsPage
	pageCalls   int
	cursorsSeen []string

	searchResults []falapi.RawModel
	searchErr     error
	searchQuery   string
}

func (f *fakePlatform) ListModelsPage(ctx context.Context, cursor string, limit int, category string) (*falapi.ModelsPage, error) {
	f.cursorsSeen = append(f.cursorsSeen, cursor)
	page := f.pages[f.pageCalls]
	f.pageCalls++
	return page, nil
}

func (f *fakePlatform) SearchModels(ctx context.Context, query, category string, limit int) ([]falapi.RawModel, error) {
	f.searchQuery = query
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.searchResults, nil
}

func (f *fakePlatform) GetPricing(ctx context.Context, endpointIDs []string) (*falapi.PricingResponse, error) {
	return &falapi.PricingResponse{}, nil
}

func (f *fakePlatform) GetUsage(ctx context.Context, start, end string, endpointIDs []string) (*falapi.UsageResponse, error) {
	return &falapi.UsageResponse{}, nil
}

func testRetry() falapi.RetryConfig {
	cfg := falapi.DefaultRetryConfig()
	cfg.MaxAttempts = 1
	return cfg
}

func TestFetchAllTwoPages(t *testing.T) {
	client := &fakePlatform{pages: []*falapi.ModelsPage{
		{
			Models:     []falapi.RawModel{{EndpointID: "fal-ai/flux/schnell"}, {EndpointID: "fal-ai/flux/dev"}},
			NextCursor: "c1",
			HasMore:    true,
		},
		{
			Models: []falapi.RawModel{{EndpointID: "fal-ai/whisper"}},
		},
	}}
	fetcher := NewFetcher(client, 100, testRetry())

	records, err := fetcher.FetchAll(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, 2, client.pageCalls)
	assert.Equal(t, []string{"", "c1"}, client.cursorsSeen)
	require.Len(t, records, 3)
	assert.Equal(t, "fal-ai/flux/schnell", records[0].ID)
	assert.Equal(t, "fal-ai/whisper", records[2].ID)
}

func TestFetchAllStopsWhenHasMoreFalseDespiteCursor(t *testing.T) {
	// A page can carry a stale cursor with has_more=false; that must still
	// terminate pagination.
	client := &fakePlatform{pages: []*falapi.ModelsPage{
		{
			Models:     []falapi.RawModel{{EndpointID: "fal-ai/flux/dev"}},
			NextCursor: "dangling",
			HasMore:    false,
		},
	}}
	fetcher := NewFetcher(client, 100, testRetry())

	records, err := fetcher.FetchAll(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 1, client.pageCalls)
	assert.Len(t, records, 1)
}

func TestFetchAllStopsWhenCursorAbsent(t *testing.T) {
	client := &fakePlatform{pages: []*falapi.ModelsPage{
		{
			Models:  []falapi.RawModel{{EndpointID: "fal-ai/flux/dev"}},
			HasMore: true, // no cursor to follow, must still stop
		},
	}}
	fetcher := NewFetcher(client, 100, testRetry())

	records, err := fetcher.FetchAll(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 1, client.pageCalls)
	assert.Len(t, records, 1)
}

func TestFetchAllLegacyItemsKey(t *testing.T) {
	client := &fakePlatform{pages: []*falapi.ModelsPage{
		{Items: []falapi.RawModel{{EndpointID: "fal-ai/bark"}}},
	}}
	fetcher := NewFetcher(client, 100, testRetry())

	records, err := fetcher.FetchAll(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "fal-ai/bark", records[0].ID)
}

func TestFetchAllEmptyFirstPage(t *testing.T) {
	client := &fakePlatform{pages: []*falapi.ModelsPage{{}}}
	fetcher := NewFetcher(client, 100, testRetry())

	records, err := fetcher.FetchAll(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestNormalizeRecord(t *testing.T) {
	t.Run("full metadata", func(t *testing.T) {
		record, ok := normalizeRecord(falapi.RawModel{
			EndpointID: "fal-ai/flux/schnell",
			Metadata: &falapi.ModelMetadata{
				DisplayName:  "FLUX.1 [schnell]",
				Description:  "Fast text to image",
				Category:     "text-to-image",
				ThumbnailURL: "https://example.com/thumb.png",
				Tags:         []string{"fast"},
			},
			Group:       &falapi.ModelGroup{Key: "flux", Label: "FLUX"},
			Highlighted: true,
			Status:      "active",
		})
		require.True(t, ok)
		assert.Equal(t, "FLUX.1 [schnell]", record.Name)
		assert.Equal(t, "fal-ai", record.Owner)
		assert.Equal(t, "FLUX", record.GroupLabel)
		assert.True(t, record.Highlighted)
	})

	t.Run("absent metadata falls back", func(t *testing.T) {
		record, ok := normalizeRecord(falapi.RawModel{EndpointID: "fal-ai/whisper"})
		require.True(t, ok)
		assert.Equal(t, "fal-ai/whisper", record.Name)
		assert.Equal(t, "fal-ai", record.Owner)
		assert.Empty(t, record.Description)
	})

	t.Run("legacy id key", func(t *testing.T) {
		record, ok := normalizeRecord(falapi.RawModel{ID: "fal-ai/bark"})
		require.True(t, ok)
		assert.Equal(t, "fal-ai/bark", record.ID)
	})

	t.Run("missing id rejected", func(t *testing.T) {
		_, ok := normalizeRecord(falapi.RawModel{Metadata: &falapi.ModelMetadata{DisplayName: "nameless"}})
		assert.False(t, ok)
	})

	t.Run("owner empty without namespace", func(t *testing.T) {
		record, ok := normalizeRecord(falapi.RawModel{EndpointID: "standalone"})
		require.True(t, ok)
		assert.Empty(t, record.Owner)
	})
}
