// Package util holds small helpers shared across services.
package util

import (
	"context"
	"math/rand/v2"
	"time"
)

// CalculateBackoff returns exponential backoff with jitter. Base delay is
// doubled each attempt, with random jitter up to 25%, capped at 30 seconds.
func CalculateBackoff(baseDelay time.Duration, attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	if attempt > 30 {
		attempt = 30
	}
	backoff := baseDelay * time.Duration(1<<uint(attempt))
	if backoff > 30*time.Second {
		backoff = 30 * time.Second
	}
	jitter := time.Duration(rand.Int64N(int64(backoff)/2)) - backoff/4
	return backoff + jitter
}

// Retry runs fn up to attempts times, sleeping an exponential backoff
// between tries. A non-retryable error (per the retryable predicate) is
// returned immediately. Context cancellation aborts the wait.
func Retry(ctx context.Context, attempts int, baseDelay time.Duration, retryable func(error) bool, fn func() error) error {
	if attempts <= 0 {
		attempts = 1
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(CalculateBackoff(baseDelay, attempt)):
			}
		}

		if err = fn(); err == nil {
			return nil
		}
		if retryable != nil && !retryable(err) {
			return err
		}
	}

	return err
}
