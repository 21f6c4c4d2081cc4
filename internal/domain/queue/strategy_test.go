package queue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"fal-mcp-server/internal/infrastructure/falapi"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeQueueClient scripts the queue API surface for strategy tests.
type fakeQueueClient struct {
	submitErr error

	statuses    []string // consumed one per JobStatus call; last repeats
	statusErr   error
	statusCalls int32

	result    map[string]any
	resultErr error

	subscribeStatus *falapi.QueueStatus
	subscribeErr    error
	subscribeBlocks bool

	awaitBlocks bool

	runResult map[string]any
	runErr    error
	runCalls  int32
}

func (f *fakeQueueClient) Run(ctx context.Context, modelID string, args map[string]any) (map[string]any, error) {
	atomic.AddInt32(&f.runCalls, 1)
	if f.runErr != nil {
		return nil, f.runErr
	}
	return f.runResult, nil
}

func (f *fakeQueueClient) Submit(ctx context.Context, modelID string, args map[string]any) (*falapi.QueueJob, error) {
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	return &falapi.QueueJob{RequestID: "req-1", ModelID: modelID}, nil
}

func (f *fakeQueueClient) JobStatus(ctx context.Context, job *falapi.QueueJob) (*falapi.QueueStatus, error) {
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	idx := int(atomic.AddInt32(&f.statusCalls, 1)) - 1
	if idx >= len(f.statuses) {
		idx = len(f.statuses) - 1
	}
	return &falapi.QueueStatus{Status: f.statuses[idx]}, nil
}

func (f *fakeQueueClient) JobResult(ctx context.Context, job *falapi.QueueJob) (map[string]any, error) {
	if f.resultErr != nil {
		return nil, f.resultErr
	}
	return f.result, nil
}

func (f *fakeQueueClient) AwaitResult(ctx context.Context, job *falapi.QueueJob) (map[string]any, error) {
	if f.awaitBlocks {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.resultErr != nil {
		return nil, f.resultErr
	}
	return f.result, nil
}

func (f *fakeQueueClient) SubscribeStatus(ctx context.Context, job *falapi.QueueJob) (*falapi.QueueStatus, error) {
	if f.subscribeBlocks {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.subscribeErr != nil {
		return nil, f.subscribeErr
	}
	return f.subscribeStatus, nil
}

func TestDecodeState(t *testing.T) {
	tests := []struct {
		status string
		state  JobState
	}{
		{"COMPLETED", StateCompleted},
		{"Status.Done", StateCompleted},
		{"IN_PROGRESS", StateRunning},
		{"processing", StateRunning},
		{"IN_QUEUE", StateQueued},
		{"FAILED", StateFailed},
		{"internal error", StateFailed},
		{"", StateRunning},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			assert.Equal(t, tt.state, DecodeState(tt.status))
		})
	}
}

func TestNewStrategy(t *testing.T) {
	client := &fakeQueueClient{}

	for _, name := range []string{"subscribe", "polling", "blocking"} {
		strategy, err := New(name, client, 0)
		require.NoError(t, err)
		assert.Equal(t, name, strategy.Name())
	}

	_, err := New("carrier-pigeon", client, 0)
	assert.Error(t, err)
}

func TestOutcomeFromPayload(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		outcome := outcomeFromPayload(map[string]any{"images": []any{"url"}})
		assert.Equal(t, OutcomeCompleted, outcome.State)
		assert.NotNil(t, outcome.Payload)
	})

	t.Run("remote failure payload", func(t *testing.T) {
		outcome := outcomeFromPayload(map[string]any{"error": "NSFW content detected"})
		assert.Equal(t, OutcomeFailed, outcome.State)
		assert.Equal(t, "NSFW content detected", outcome.ErrorMessage)
	})
}

func TestExecuteFastDelegatesToRun(t *testing.T) {
	client := &fakeQueueClient{runResult: map[string]any{"ok": true}}

	for _, name := range []string{"subscribe", "polling", "blocking"} {
		strategy, err := New(name, client, 0)
		require.NoError(t, err)

		payload, err := strategy.ExecuteFast(context.Background(), "fal-ai/flux/schnell", map[string]any{"prompt": "cat"})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"ok": true}, payload)
	}
	assert.EqualValues(t, 3, atomic.LoadInt32(&client.runCalls))
}

func TestExecuteFastPropagatesError(t *testing.T) {
	client := &fakeQueueClient{runErr: errors.New("HTTP 422")}
	strategy := NewPollingStrategy(client, 0)

	_, err := strategy.ExecuteFast(context.Background(), "fal-ai/flux/schnell", nil)
	assert.Error(t, err)
}
