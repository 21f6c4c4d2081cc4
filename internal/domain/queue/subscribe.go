package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"fal-mcp-server/internal/infrastructure/falapi"
)

// SubscribeStrategy submits a job and awaits a single streamed terminal
// status event. Unlike the other strategies it propagates a timeout as
// ErrJobTimeout rather than returning a sentinel outcome, matching the
// behavior stdio callers have historically depended on. Preferred for the
// stdio transport.
type SubscribeStrategy struct {
	client Client
}

// NewSubscribeStrategy creates a subscribe strategy.
func NewSubscribeStrategy(client Client) *SubscribeStrategy {
	return &SubscribeStrategy{client: client}
}

func (s *SubscribeStrategy) Name() string { return "subscribe" }

// Execute submits modelID with args and blocks on the status stream,
// racing it against the timeout.
func (s *SubscribeStrategy) Execute(ctx context.Context, modelID string, args map[string]any, timeout time.Duration) (*Outcome, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	job, err := s.client.Submit(ctx, modelID, args)
	if err != nil {
		if isDeadline(err) {
			observe(s.Name(), start, "timed_out")
			return nil, fmt.Errorf("%w after %s", ErrJobTimeout, timeout)
		}
		return nil, fmt.Errorf("submit failed: %w", err)
	}

	log.Debug().
		Str("model_id", modelID).
		Str("request_id", job.RequestID).
		Dur("timeout", timeout).
		Msg("Subscribed to queue job status stream")

	status, err := s.client.SubscribeStatus(ctx, job)
	if err != nil {
		if isDeadline(err) {
			log.Warn().
				Str("model_id", modelID).
				Str("request_id", job.RequestID).
				Dur("timeout", timeout).
				Msg("Queue job timed out on status stream")
			observe(s.Name(), start, "timed_out")
			return nil, fmt.Errorf("%w after %s", ErrJobTimeout, timeout)
		}
		observe(s.Name(), start, "stream_error")
		return nil, err
	}

	handle := newJobHandle(s.client, job)
	switch DecodeState(status.Status) {
	case StateFailed:
		detail := status.Error
		if detail == "" {
			detail = status.Status
		}
		observe(s.Name(), start, "failed")
		return &Outcome{State: OutcomeFailed, ErrorMessage: fmt.Sprintf("Job failed: %s", detail)}, nil
	default:
		payload, err := handle.ReadResult(ctx)
		if err != nil {
			if isDeadline(err) {
				observe(s.Name(), start, "timed_out")
				return nil, fmt.Errorf("%w after %s", ErrJobTimeout, timeout)
			}
			observe(s.Name(), start, "result_error")
			return nil, err
		}
		outcome := outcomeFromPayload(payload)
		observe(s.Name(), start, outcome.State.String())
		return outcome, nil
	}
}

// ExecuteFast runs modelID directly, bypassing the queue.
func (s *SubscribeStrategy) ExecuteFast(ctx context.Context, modelID string, args map[string]any) (map[string]any, error) {
	return s.client.Run(ctx, modelID, args)
}

func isDeadline(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || falapi.IsTimeout(err)
}
