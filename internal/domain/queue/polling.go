package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// PollingStrategy submits a job and polls its status at a fixed interval
// until a terminal state or the timeout. Timeouts are reported as a
// TimedOut outcome, never as an error. Preferred for the HTTP transport
// where the server controls pacing.
type PollingStrategy struct {
	client   Client
	interval time.Duration
}

// NewPollingStrategy creates a polling strategy. A non-positive interval
// falls back to the 2s default.
func NewPollingStrategy(client Client, interval time.Duration) *PollingStrategy {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &PollingStrategy{client: client, interval: interval}
}

func (s *PollingStrategy) Name() string { return "polling" }

// Execute submits modelID with args and polls until completion, failure,
// or timeout. Total wall-clock wait never exceeds timeout by more than
// one status round-trip.
func (s *PollingStrategy) Execute(ctx context.Context, modelID string, args map[string]any, timeout time.Duration) (*Outcome, error) {
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
		Msg("Polling queue job")

	for {
		remaining := timeout - time.Since(start)
		if remaining <= 0 {
			log.Warn().
				Str("model_id", modelID).
				Str("request_id", job.RequestID).
				Dur("timeout", timeout).
				Msg("Queue job timed out while polling")
			observe(s.Name(), start, "timed_out")
			return &Outcome{State: OutcomeTimedOut}, nil
		}

		state, detail, err := handle.ReadState(ctx)
		if err != nil {
			observe(s.Name(), start, "status_error")
			return nil, err
		}

		switch state {
		case StateCompleted:
			payload, err := handle.ReadResult(ctx)
			if err != nil {
				observe(s.Name(), start, "result_error")
				return nil, err
			}
			outcome := outcomeFromPayload(payload)
			observe(s.Name(), start, outcome.State.String())
			return outcome, nil
		case StateFailed:
			observe(s.Name(), start, "failed")
			return &Outcome{State: OutcomeFailed, ErrorMessage: fmt.Sprintf("Job failed: %s", detail)}, nil
		}

		sleep := s.interval
		if remaining < sleep {
			sleep = remaining
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(sleep):
		}
	}
}

// ExecuteFast runs modelID directly, bypassing the queue.
func (s *PollingStrategy) ExecuteFast(ctx context.Context, modelID string, args map[string]any) (map[string]any, error) {
	return s.client.Run(ctx, modelID, args)
}
