// Package queue implements submit-and-await execution of Fal.ai queue
// jobs. Three interchangeable strategies observe completion differently
// (event-stream subscription, manual polling, blocking wait) behind one
// timeout-bounded contract.
package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fal-mcp-server/internal/infrastructure/falapi"
	"fal-mcp-server/internal/infrastructure/metrics"
)

// ErrJobTimeout is returned by the subscribe strategy when a job exceeds
// the caller's timeout. The polling and blocking strategies report the
// same condition as a TimedOut outcome instead; callers of each strategy
// have come to depend on its respective behavior.
var ErrJobTimeout = errors.New("job execution timed out")

// JobState is the decoded execution state of a queue job. Remote status
// text is decoded into a JobState exactly once, at the client boundary;
// everything downstream branches on the enum.
type JobState int

const (
	StateQueued JobState = iota
	StateRunning
	StateCompleted
	StateFailed
)

func (s JobState) String() string {
	switch s {
	case StateQueued:
		return "queued"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// DecodeState maps remote status text onto a JobState. The platform has
// shipped several spellings per state, so matching is case-insensitive
// and substring based.
func DecodeState(status string) JobState {
	s := strings.ToLower(status)
	switch {
	case strings.Contains(s, "completed") || strings.Contains(s, "done"):
		return StateCompleted
	case strings.Contains(s, "failed") || strings.Contains(s, "error"):
		return StateFailed
	case strings.Contains(s, "queue"):
		return StateQueued
	default:
		return StateRunning
	}
}

// OutcomeState tags the terminal result of an execution.
type OutcomeState int

const (
	OutcomeCompleted OutcomeState = iota
	OutcomeFailed
	OutcomeTimedOut
)

func (s OutcomeState) String() string {
	switch s {
	case OutcomeCompleted:
		return "completed"
	case OutcomeFailed:
		return "failed"
	case OutcomeTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// Outcome is the normalized terminal result of an execution, identical in
// shape across all strategies.
type Outcome struct {
	State        OutcomeState
	Payload      map[string]any
	ErrorMessage string
}

// Strategy submits a generation job and awaits its outcome under a
// caller-supplied timeout.
type Strategy interface {
	Name() string
	Execute(ctx context.Context, modelID string, args map[string]any, timeout time.Duration) (*Outcome, error)
	ExecuteFast(ctx context.Context, modelID string, args map[string]any) (map[string]any, error)
}

// Client is the slice of the Fal.ai queue and run APIs the strategies
// consume.
type Client interface {
	Run(ctx context.Context, modelID string, args map[string]any) (map[string]any, error)
	Submit(ctx context.Context, modelID string, args map[string]any) (*falapi.QueueJob, error)
	JobStatus(ctx context.Context, job *falapi.QueueJob) (*falapi.QueueStatus, error)
	JobResult(ctx context.Context, job *falapi.QueueJob) (map[string]any, error)
	AwaitResult(ctx context.Context, job *falapi.QueueJob) (map[string]any, error)
	SubscribeStatus(ctx context.Context, job *falapi.QueueJob) (*falapi.QueueStatus, error)
}

// New returns the strategy registered under name.
func New(name string, client Client, pollInterval time.Duration) (Strategy, error) {
	switch name {
	case "subscribe":
		return NewSubscribeStrategy(client), nil
	case "polling":
		return NewPollingStrategy(client, pollInterval), nil
	case "blocking":
		return NewBlockingStrategy(client), nil
	default:
		return nil, fmt.Errorf("unknown queue strategy %q", name)
	}
}

// Capability views of a submitted job. Each strategy adapts the native
// queue handle once, at the boundary, and uses only the view it needs.
type statusReader interface {
	ReadState(ctx context.Context) (JobState, string, error)
}

type resultReader interface {
	ReadResult(ctx context.Context) (map[string]any, error)
}

type waiter interface {
	WaitResult(ctx context.Context) (map[string]any, error)
}

// jobHandle adapts a falapi.QueueJob to the capability interfaces.
type jobHandle struct {
	client Client
	job    *falapi.QueueJob
}

func newJobHandle(client Client, job *falapi.QueueJob) *jobHandle {
	return &jobHandle{client: client, job: job}
}

func (h *jobHandle) ReadState(ctx context.Context) (JobState, string, error) {
	status, err := h.client.JobStatus(ctx, h.job)
	if err != nil {
		return StateRunning, "", err
	}
	detail := status.Error
	if detail == "" {
		detail = status.Status
	}
	return DecodeState(status.Status), detail, nil
}

func (h *jobHandle) ReadResult(ctx context.Context) (map[string]any, error) {
	return h.client.JobResult(ctx, h.job)
}

func (h *jobHandle) WaitResult(ctx context.Context) (map[string]any, error) {
	return h.client.AwaitResult(ctx, h.job)
}

// outcomeFromPayload normalizes a terminal payload: a payload carrying an
// "error" field is a remote-reported failure, not a success.
func outcomeFromPayload(payload map[string]any) *Outcome {
	if message, ok := payload["error"].(string); ok && message != "" {
		return &Outcome{State: OutcomeFailed, ErrorMessage: message}
	}
	return &Outcome{State: OutcomeCompleted, Payload: payload}
}

// observe records execution metrics for one terminal outcome.
func observe(strategy string, start time.Time, state string) {
	metrics.JobExecutionsTotal.WithLabelValues(strategy, state).Inc()
	metrics.JobDuration.WithLabelValues(strategy).Observe(time.Since(start).Seconds())
}
