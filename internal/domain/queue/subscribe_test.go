package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fal-mcp-server/internal/infrastructure/falapi"
)

func TestSubscribeExecuteCompletes(t *testing.T) {
	client := &fakeQueueClient{
		subscribeStatus: &falapi.QueueStatus{Status: "COMPLETED"},
		result:          map[string]any{"video": map[string]any{"url": "https://fal.media/out.mp4"}},
	}
	strategy := NewSubscribeStrategy(client)

	outcome, err := strategy.Execute(context.Background(), "fal-ai/kling-video", map[string]any{"prompt": "waves"}, 5*time.Second)
	require.NoError(t, err)

	assert.Equal(t, OutcomeCompleted, outcome.State)
	assert.NotNil(t, outcome.Payload)
}

func TestSubscribeExecuteTimeoutIsError(t *testing.T) {
	client := &fakeQueueClient{subscribeBlocks: true}
	strategy := NewSubscribeStrategy(client)

	outcome, err := strategy.Execute(context.Background(), "fal-ai/kling-video", nil, 30*time.Millisecond)

	require.Error(t, err, "subscribe reports timeouts as errors, not outcomes")
	assert.Nil(t, outcome)
	assert.ErrorIs(t, err, ErrJobTimeout)
	assert.Contains(t, err.Error(), "30ms")
}

func TestSubscribeExecuteFailedStatus(t *testing.T) {
	client := &fakeQueueClient{
		subscribeStatus: &falapi.QueueStatus{Status: "FAILED", Error: "worker crashed"},
	}
	strategy := NewSubscribeStrategy(client)

	outcome, err := strategy.Execute(context.Background(), "fal-ai/flux/dev", nil, time.Second)
	require.NoError(t, err)

	assert.Equal(t, OutcomeFailed, outcome.State)
	assert.Contains(t, outcome.ErrorMessage, "worker crashed")
}

func TestSubscribeExecuteErrorPayloadIsFailure(t *testing.T) {
	client := &fakeQueueClient{
		subscribeStatus: &falapi.QueueStatus{Status: "COMPLETED"},
		result:          map[string]any{"error": "invalid prompt"},
	}
	strategy := NewSubscribeStrategy(client)

	outcome, err := strategy.Execute(context.Background(), "fal-ai/flux/dev", nil, time.Second)
	require.NoError(t, err)

	assert.Equal(t, OutcomeFailed, outcome.State)
	assert.Equal(t, "invalid prompt", outcome.ErrorMessage)
}
