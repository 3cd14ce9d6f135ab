// Package retry provides the one bounded-retry-with-backoff primitive used
// by every stage that talks to the network: acquisition, transcription,
// embedding, and answering.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// Policy parameterizes a retry loop. The zero value is not usable; callers
// construct one per stage from configuration.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// BaseDelay is the pause after the first failure; it doubles after
	// each subsequent failure up to MaxDelay.
	BaseDelay time.Duration
	// MaxDelay caps the exponential growth. Zero means no cap.
	MaxDelay time.Duration
	// Jitter widens each pause by a random amount in [0, Jitter).
	Jitter time.Duration
	// Retryable decides whether an error is worth another attempt.
	// A nil predicate retries everything.
	Retryable func(error) bool
}

// Do runs fn until it succeeds, returns a non-retryable error, exhausts
// MaxAttempts, or the context is cancelled. The last error is returned
// unwrapped so callers can classify it.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	delay := p.BaseDelay
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, p.withJitter(delay)); err != nil {
				return err
			}
			delay *= 2
			if p.MaxDelay > 0 && delay > p.MaxDelay {
				delay = p.MaxDelay
			}
		}
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
			return lastErr
		}
		if p.Retryable != nil && !p.Retryable(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

func (p Policy) withJitter(d time.Duration) time.Duration {
	if p.Jitter <= 0 {
		return d
	}
	return d + time.Duration(rand.Int63n(int64(p.Jitter)))
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
