// Package resilience provides bounded retry for the external STT, TTS, and
// LLM calls. The pipeline's policy is: transient failures are retried a small
// number of times with backoff, then surfaced to the caller as an ordinary
// error so the stage can degrade (empty transcript, skipped sentence);
// permanent failures and context cancellation short-circuit immediately.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrPermanent marks an error that must not be retried (invalid credentials,
// quota exhausted). Wrap with [Permanent] at the call site that classifies it.
var ErrPermanent = errors.New("permanent error")

// Permanent wraps err so [Do] fails fast instead of retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

// Config controls retry behaviour.
type Config struct {
	// MaxAttempts is the total number of tries, including the first. Values
	// below 1 are treated as 1.
	MaxAttempts int

	// InitialBackoff is the delay before the second attempt; it doubles per
	// subsequent attempt. Zero defaults to 100ms.
	InitialBackoff time.Duration

	// Name identifies the operation in log output.
	Name string
}

// DefaultConfig is a sensible policy for per-utterance provider calls: three
// attempts keeps worst-case added latency well under a second.
var DefaultConfig = Config{
	MaxAttempts:    3,
	InitialBackoff: 100 * time.Millisecond,
}

// Do runs fn up to cfg.MaxAttempts times, sleeping with doubling backoff
// between attempts. It stops early when fn succeeds, when the error is marked
// [ErrPermanent], or when ctx is cancelled. The returned error is the last
// error observed.
func Do[T any](ctx context.Context, cfg Config, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := cfg.InitialBackoff
	if backoff <= 0 {
		backoff = 100 * time.Millisecond
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if errors.Is(err, ErrPermanent) || ctx.Err() != nil {
			return zero, err
		}
		if attempt == attempts {
			break
		}

		slog.Debug("retrying after transient failure",
			"op", cfg.Name, "attempt", attempt, "error", err)

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return zero, lastErr
}
