package falapi

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"
)

// RetryConfig defines retry behavior for catalog reads.
type RetryConfig struct {
	MaxAttempts       int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffFactor     float64
	RetryableStatuses map[int]bool
}

// DefaultRetryConfig returns sensible defaults for retry behavior.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  250 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 1.5,
		RetryableStatuses: map[int]bool{
			429: true, // Rate limit
			500: true, // Internal server error
			502: true, // Bad gateway
			503: true, // Service unavailable
			504: true, // Gateway timeout
		},
	}
}

// RetryableFunc is a function that can be retried
type RetryableFunc[T any] func() (*T, error)

// WithRetry executes a function with exponential backoff retry logic
func WithRetry[T any](ctx context.Context, cfg RetryConfig, operation string, fn RetryableFunc[T]) (*T, error) {
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		result, err := fn()
		if err == nil {
			if attempt > 1 {
				log.Info().
					Str("operation", operation).
					Int("attempt", attempt).
					Msg("operation succeeded after retry")
			}
			return result, nil
		}

		lastErr = err

		if !cfg.isRetryable(err) {
			log.Debug().
				Err(err).
				Str("operation", operation).
				Int("attempt", attempt).
				Msg("non-retryable error, aborting")
			return nil, err
		}

		// Don't sleep after last attempt
		if attempt == cfg.MaxAttempts {
			break
		}

		delay := calculateBackoff(attempt, cfg.InitialDelay, cfg.MaxDelay, cfg.BackoffFactor)

		log.Warn().
			Err(err).
			Str("operation", operation).
			Int("attempt", attempt).
			Int("max_attempts", cfg.MaxAttempts).
			Dur("retry_delay", delay).
			Msg("retrying operation after error")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	return nil, fmt.Errorf("operation failed after %d attempts: %w", cfg.MaxAttempts, lastErr)
}

// calculateBackoff computes exponential backoff delay with jitter
func calculateBackoff(attempt int, initial, max time.Duration, factor float64) time.Duration {
	backoff := float64(initial) * math.Pow(factor, float64(attempt-1))

	if backoff > float64(max) {
		backoff = float64(max)
	}

	// Add 10% jitter to prevent thundering herd
	jitter := backoff * 0.1 * (2.0*float64(time.Now().UnixNano()%100)/100.0 - 1.0)

	return time.Duration(backoff + jitter)
}

// isRetryable classifies an error as transient or permanent. Client-side
// timeouts and transport failures are transient; an HTTP response is
// transient only when its status is in the retryable set. Everything else
// (4xx client errors, malformed payloads) aborts immediately.
func (cfg RetryConfig) isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if code, ok := StatusCodeOf(err); ok {
		return cfg.RetryableStatuses[code]
	}
	return IsTimeout(err) || IsConnectionError(err)
}
