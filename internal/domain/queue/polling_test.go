package queue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPollingExecuteCompletes(t *testing.T) {
	client := &fakeQueueClient{
		statuses: []string{"IN_QUEUE", "IN_PROGRESS", "COMPLETED"},
		result:   map[string]any{"images": []any{map[string]any{"url": "https://fal.media/out.png"}}},
	}
	strategy := NewPollingStrategy(client, 5*time.Millisecond)

	outcome, err := strategy.Execute(context.Background(), "fal-ai/flux/schnell", map[string]any{"prompt": "cat"}, 5*time.Second)
	require.NoError(t, err)

	assert.Equal(t, OutcomeCompleted, outcome.State)
	assert.NotNil(t, outcome.Payload)
	assert.EqualValues(t, 3, atomic.LoadInt32(&client.statusCalls))
}

func TestPollingExecuteTimeoutIsOutcomeNotError(t *testing.T) {
	client := &fakeQueueClient{statuses: []string{"IN_PROGRESS"}}
	strategy := NewPollingStrategy(client, 10*time.Millisecond)

	start := time.Now()
	outcome, err := strategy.Execute(context.Background(), "fal-ai/kling-video", nil, 35*time.Millisecond)
	require.NoError(t, err, "timeout must not surface as an error")

	assert.Equal(t, OutcomeTimedOut, outcome.State)
	assert.Nil(t, outcome.Payload)
	assert.Less(t, time.Since(start), 500*time.Millisecond, "must give up promptly after the deadline")
}

func TestPollingExecuteFailedStatus(t *testing.T) {
	client := &fakeQueueClient{statuses: []string{"IN_PROGRESS", "FAILED"}}
	strategy := NewPollingStrategy(client, 5*time.Millisecond)

	outcome, err := strategy.Execute(context.Background(), "fal-ai/flux/dev", nil, 5*time.Second)
	require.NoError(t, err)

	assert.Equal(t, OutcomeFailed, outcome.State)
	assert.Contains(t, outcome.ErrorMessage, "Job failed:")
}

func TestPollingExecuteErrorPayloadIsFailure(t *testing.T) {
	client := &fakeQueueClient{
		statuses: []string{"COMPLETED"},
		result:   map[string]any{"error": "content policy violation"},
	}
	strategy := NewPollingStrategy(client, 5*time.Millisecond)

	outcome, err := strategy.Execute(context.Background(), "fal-ai/flux/dev", nil, time.Second)
	require.NoError(t, err)

	assert.Equal(t, OutcomeFailed, outcome.State)
	assert.Equal(t, "content policy violation", outcome.ErrorMessage)
}

func TestPollingExecuteSubmitError(t *testing.T) {
	client := &fakeQueueClient{submitErr: errors.New("HTTP 401")}
	strategy := NewPollingStrategy(client, 5*time.Millisecond)

	_, err := strategy.Execute(context.Background(), "fal-ai/flux/dev", nil, time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "submit failed")
}

func TestPollingExecuteStatusErrorPropagates(t *testing.T) {
	client := &fakeQueueClient{statusErr: errors.New("HTTP 503")}
	strategy := NewPollingStrategy(client, 5*time.Millisecond)

	_, err := strategy.Execute(context.Background(), "fal-ai/flux/dev", nil, time.Second)
	assert.Error(t, err)
}

func TestPollingExecuteHonorsContextCancel(t *testing.T) {
	client := &fakeQueueClient{statuses: []string{"IN_PROGRESS"}}
	strategy := NewPollingStrategy(client, time.Hour) // would sleep forever without cancellation

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := strategy.Execute(ctx, "fal-ai/flux/dev", nil, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
}
