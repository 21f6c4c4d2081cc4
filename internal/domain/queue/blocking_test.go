package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockingExecuteCompletes(t *testing.T) {
	client := &fakeQueueClient{
		result: map[string]any{"audio": map[string]any{"url": "https://fal.media/out.wav"}},
	}
	strategy := NewBlockingStrategy(client)

	outcome, err := strategy.Execute(context.Background(), "fal-ai/musicgen", map[string]any{"prompt": "lofi"}, 5*time.Second)
	require.NoError(t, err)

	assert.Equal(t, OutcomeCompleted, outcome.State)
	assert.NotNil(t, outcome.Payload)
}

func TestBlockingExecuteTimeoutIsOutcomeNotError(t *testing.T) {
	client := &fakeQueueClient{awaitBlocks: true}
	strategy := NewBlockingStrategy(client)

	outcome, err := strategy.Execute(context.Background(), "fal-ai/musicgen", nil, 30*time.Millisecond)
	require.NoError(t, err, "timeout must not surface as an error")

	assert.Equal(t, OutcomeTimedOut, outcome.State)
	assert.Nil(t, outcome.Payload)
}

func TestBlockingExecuteErrorPayloadIsFailure(t *testing.T) {
	client := &fakeQueueClient{result: map[string]any{"error": "model unavailable"}}
	strategy := NewBlockingStrategy(client)

	outcome, err := strategy.Execute(context.Background(), "fal-ai/bark", nil, time.Second)
	require.NoError(t, err)

	assert.Equal(t, OutcomeFailed, outcome.State)
	assert.Equal(t, "model unavailable", outcome.ErrorMessage)
}

func TestBlockingExecuteResultErrorPropagates(t *testing.T) {
	client := &fakeQueueClient{resultErr: errors.New("HTTP 500")}
	strategy := NewBlockingStrategy(client)

	_, err := strategy.Execute(context.Background(), "fal-ai/bark", nil, time.Second)
	assert.Error(t, err)
}
