// Package retry runs fallible operations under exponential backoff with
// downward jitter, an overall timeout guard, and per-attempt metadata capture.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// Config tunes the retry loop. MaxRetries of zero means a single attempt.
type Config struct {
	MaxRetries   int
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	JitterFactor float64
	// OverallTimeout bounds the whole loop including delays; zero disables
	// the guard.
	OverallTimeout time.Duration
}

// DefaultConfig matches the host's standard retry posture.
func DefaultConfig() Config {
	return Config{
		MaxRetries:   3,
		BaseDelay:    200 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		JitterFactor: 0.2,
	}
}

// FailedAttempt records one failed try.
type FailedAttempt struct {
	// Attempt is zero-based.
	Attempt int `json:"attempt"`
	// Error is the failure's message.
	Error string `json:"error"`
	// Delay is the backoff slept after this failure.
	Delay time.Duration `json:"delay_ms"`
}

// Metadata summarizes a completed retry loop, successful or not. It is
// embedded into the receipt when retry was used.
type Metadata struct {
	TotalAttempts  int             `json:"total_attempts"`
	FailedAttempts []FailedAttempt `json:"failed_attempts,omitempty"`
	TotalDuration  time.Duration   `json:"total_duration_ms"`
}

// TimeoutError is surfaced when the overall timeout expires with no other
// error to report.
type TimeoutError struct {
	Duration time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("retry loop timed out after %s", e.Duration)
}

// Delay computes the backoff slept after failed attempt n (zero-based),
// before attempt n+1: min(maxDelay, baseDelay·2^n), then scaled by a
// uniform factor in [1-jitter, 1].
func (c Config) Delay(attempt int, random float64) time.Duration {
	delay := c.BaseDelay
	for i := 0; i < attempt && delay < c.MaxDelay; i++ {
		delay *= 2
	}
	if c.MaxDelay > 0 && delay > c.MaxDelay {
		delay = c.MaxDelay
	}
	if c.JitterFactor > 0 {
		factor := 1 - c.JitterFactor*(1-random)
		delay = time.Duration(float64(delay) * factor)
	}
	return delay
}

// Do runs op until it succeeds, fails non-retryably, exhausts its attempts,
// or the overall timeout expires. Non-retryable errors break immediately.
// The returned metadata is populated on success and on failure alike.
func Do[T any](ctx context.Context, cfg Config, op func(ctx context.Context) (T, error), isRetryable func(error) bool) (T, Metadata, error) {
	var zero T
	meta := Metadata{}
	start := time.Now()

	if cfg.OverallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.OverallTimeout)
		defer cancel()
	}

	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			break
		}

		meta.TotalAttempts++
		value, err := op(ctx)
		if err == nil {
			meta.TotalDuration = time.Since(start)
			return value, meta, nil
		}
		lastErr = err

		retryable := isRetryable == nil || isRetryable(err)
		last := attempt == cfg.MaxRetries
		delay := time.Duration(0)
		if retryable && !last {
			delay = cfg.Delay(attempt, rand.Float64())
		}
		meta.FailedAttempts = append(meta.FailedAttempts, FailedAttempt{
			Attempt: attempt,
			Error:   err.Error(),
			Delay:   delay,
		})
		if !retryable || last {
			break
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			meta.TotalDuration = time.Since(start)
			return zero, meta, timeoutOrLast(cfg, lastErr, ctx)
		}
	}

	meta.TotalDuration = time.Since(start)
	if ctx.Err() != nil {
		return zero, meta, timeoutOrLast(cfg, lastErr, ctx)
	}
	return zero, meta, lastErr
}

// timeoutOrLast surfaces the last operation error when one exists, otherwise
// a timeout error for the configured guard.
func timeoutOrLast(cfg Config, lastErr error, ctx context.Context) error {
	if lastErr != nil {
		return lastErr
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &TimeoutError{Duration: cfg.OverallTimeout}
	}
	return ctx.Err()
}
