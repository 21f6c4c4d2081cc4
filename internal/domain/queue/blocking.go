package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// BlockingStrategy submits a job and issues one blocking wait for its
// result, bounded by the timeout. Expiry is reported as a TimedOut
// outcome, not an error. The simplest strategy when per-status pacing is
// not needed.
type BlockingStrategy struct {
	client Client
}

// NewBlockingStrategy creates a blocking-wait strategy.
func NewBlockingStrategy(client Client) *BlockingStrategy {
	return &BlockingStrategy{client: client}
}

func (s *BlockingStrategy) Name() string { return "blocking" }

// Execute submits modelID with args and blocks on the result endpoint
// until completion or timeout.
func (s *BlockingStrategy) Execute(ctx context.Context, modelID string, args map[string]any, timeout time.Duration) (*Outcome, error) {
	start := time.Now()

	job, err := s.client.Submit(ctx, modelID, args)
	if err != nil {
		return nil, fmt.Errorf("submit failed: %w", err)
	}
	handle := newJobHandle(s.client, job)

	log.Debug().
		Str("model_id", modelID).
		Str("request_id", job.RequestID).
		Dur("timeout", timeout).
		Msg("Blocking on queue job result")

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	payload, err := handle.WaitResult(waitCtx)
	if err != nil {
		if isDeadline(err) {
			log.Warn().
				Str("model_id", modelID).
				Str("request_id", job.RequestID).
				Dur("timeout", timeout).
				Msg("Queue job timed out on blocking wait")
			observe(s.Name(), start, "timed_out")
			return &Outcome{State: OutcomeTimedOut}, nil
		}
		observe(s.Name(), start, "result_error")
		return nil, err
	}

	outcome := outcomeFromPayload(payload)
	observe(s.Name(), start, outcome.State.String())
	return outcome, nil
}

// ExecuteFast runs modelID directly, bypassing the queue.
func (s *BlockingStrategy) ExecuteFast(ctx context.Context, modelID string, args map[string]any) (map[string]any, error) {
	return s.client.Run(ctx, modelID, args)
}
