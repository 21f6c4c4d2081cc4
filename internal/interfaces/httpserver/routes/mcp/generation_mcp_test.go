package mcp

import (
	"context"
	"testing"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fal-mcp-server/internal/domain/queue"
	"fal-mcp-server/internal/domain/registry"
)

// emptyCatalog satisfies registry.CatalogSource with no remote models, so
// resolution falls back to canonical passthrough and the seed aliases.
type emptyCatalog struct{}

func (emptyCatalog) FetchAll(ctx context.Context, category string) ([]registry.ModelRecord, error) {
	return nil, nil
}

type fakeUploader struct{ url string }

func (f *fakeUploader) UploadFile(ctx context.Context, path string) (string, error) {
	return f.url, nil
}

// fakeStrategy records the execution request and returns a canned outcome.
type fakeStrategy struct {
	outcome *queue.Outcome
	err     error
	payload map[string]any

	gotModel   string
	gotArgs    map[string]any
	gotTimeout time.Duration
}

func (f *fakeStrategy) Name() string { return "fake" }

func (f *fakeStrategy) Execute(ctx context.Context, modelID string, args map[string]any, timeout time.Duration) (*queue.Outcome, error) {
	f.gotModel = modelID
	f.gotArgs = args
	f.gotTimeout = timeout
	return f.outcome, f.err
}

func (f *fakeStrategy) ExecuteFast(ctx context.Context, modelID string, args map[string]any) (map[string]any, error) {
	f.gotModel = modelID
	f.gotArgs = args
	return f.payload, f.err
}

func connectToolSession(t *testing.T, strategy queue.Strategy) *sdkmcp.ClientSession {
	t.Helper()

	seeds, err := registry.SeedAliases("")
	require.NoError(t, err)
	cache := registry.NewCache(emptyCatalog{}, seeds, time.Hour, time.Minute)
	reg := registry.NewRegistry(nil, cache)

	server := NewToolServer(
		NewGenerationMCP(reg, strategy),
		NewUtilityMCP(reg, &fakeUploader{url: "https://fal.media/files/upload.png"}),
	)

	ctx := context.Background()
	serverTransport, clientTransport := sdkmcp.NewInMemoryTransports()
	serverSession, err := server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { serverSession.Close() })

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "test-client", Version: "0.0.1"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { session.Close() })
	return session
}

func toolText(t *testing.T, res *sdkmcp.CallToolResult) string {
	t.Helper()
	for _, content := range res.Content {
		if text, ok := content.(*sdkmcp.TextContent); ok {
			return text.Text
		}
	}
	t.Fatal("tool result carried no text content")
	return ""
}

func TestRemoveBackgroundTool(t *testing.T) {
	strategy := &fakeStrategy{
		outcome: &queue.Outcome{
			State:   queue.OutcomeCompleted,
			Payload: map[string]any{"image": map[string]any{"url": "https://fal.media/files/cutout.png"}},
		},
	}
	session := connectToolSession(t, strategy)

	res, err := session.CallTool(context.Background(), &sdkmcp.CallToolParams{
		Name:      "remove_background",
		Arguments: map[string]any{"image_url": "https://example.com/photo.jpg"},
	})
	require.NoError(t, err)
	require.False(t, res.IsError)

	text := toolText(t, res)
	assert.Contains(t, text, "✂️ Background removed successfully!")
	assert.Contains(t, text, "https://fal.media/files/cutout.png")

	assert.Equal(t, "fal-ai/birefnet/v2", strategy.gotModel)
	assert.Equal(t, 60*time.Second, strategy.gotTimeout)
	assert.Equal(t, "https://example.com/photo.jpg", strategy.gotArgs["image_url"])
}

func TestUpscaleImageToolDefaults(t *testing.T) {
	strategy := &fakeStrategy{
		outcome: &queue.Outcome{
			State:   queue.OutcomeCompleted,
			Payload: map[string]any{"image": map[string]any{"url": "https://fal.media/files/big.png"}},
		},
	}
	session := connectToolSession(t, strategy)

	res, err := session.CallTool(context.Background(), &sdkmcp.CallToolParams{
		Name:      "upscale_image",
		Arguments: map[string]any{"image_url": "https://example.com/small.png"},
	})
	require.NoError(t, err)
	require.False(t, res.IsError)

	text := toolText(t, res)
	assert.Contains(t, text, "🔍 Image upscaled 2x successfully!")
	assert.Contains(t, text, "https://fal.media/files/big.png")

	assert.Equal(t, "fal-ai/clarity-upscaler", strategy.gotModel)
	assert.Equal(t, 120*time.Second, strategy.gotTimeout)
	assert.Equal(t, 2, strategy.gotArgs["scale"])
}

func TestInpaintImageToolRequiresMask(t *testing.T) {
	session := connectToolSession(t, &fakeStrategy{})

	res, err := session.CallTool(context.Background(), &sdkmcp.CallToolParams{
		Name: "inpaint_image",
		Arguments: map[string]any{
			"image_url": "https://example.com/photo.jpg",
			"prompt":    "replace the sky with a sunset",
		},
	})
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, toolText(t, res), "mask_url is required")
}

func TestInpaintImageToolTimeoutIsTextResult(t *testing.T) {
	strategy := &fakeStrategy{
		outcome: &queue.Outcome{State: queue.OutcomeTimedOut},
	}
	session := connectToolSession(t, strategy)

	res, err := session.CallTool(context.Background(), &sdkmcp.CallToolParams{
		Name: "inpaint_image",
		Arguments: map[string]any{
			"image_url": "https://example.com/photo.jpg",
			"mask_url":  "https://example.com/mask.png",
			"prompt":    "a red door",
		},
	})
	require.NoError(t, err)
	require.False(t, res.IsError)

	text := toolText(t, res)
	assert.Contains(t, text, "Inpainting timed out after 90 seconds")
	assert.Contains(t, text, "fal-ai/flux-kontext-lora/inpaint")
	assert.Equal(t, 90*time.Second, strategy.gotTimeout)
}
