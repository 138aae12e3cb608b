// Package retry re-runs an operation a bounded number of times with
// exponential backoff between attempts.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Policy bounds how often an operation is retried.
type Policy struct {
	// Attempts is the total number of tries including the first. Values
	// below one behave as one.
	Attempts int
	// Delay is the wait before the first retry; it doubles after each
	// further failure. Zero disables waiting.
	Delay time.Duration
}

// Do runs op until it succeeds, returns a non-retryable error, or all
// attempts are spent. retryable decides per error; a nil retryable
// retries nothing. The error from the final attempt is returned wrapped with
// the attempt count so callers can still match it with errors.Is.
func (p Policy) Do(ctx context.Context, retryable func(error) bool, op func(context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	delay := p.Delay
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = op(ctx)
		if err == nil {
			return nil
		}
		if retryable == nil || !retryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}
		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
			delay *= 2
		} else if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
	}
	return fmt.Errorf("retries exhausted after %d attempts: %w", attempts, err)
}
