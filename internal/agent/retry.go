package agent

import (
	"context"
	"time"
)

// Backoff computes the sleep before the next attempt, given how many
// attempts have already failed (0-based).
type Backoff func(attempt int) time.Duration

// LinearBackoff waits base, 2*base, 3*base, ... between attempts.
// Used by the inner retry layer around the raw transport call.
func LinearBackoff(base time.Duration) Backoff {
	return func(attempt int) time.Duration {
		return base * time.Duration(attempt+1)
	}
}

// ExponentialBackoff waits base, 2*base, 4*base, ... between attempts.
// Used by the outer stage-level retry around structured-output calls.
func ExponentialBackoff(base time.Duration) Backoff {
	return func(attempt int) time.Duration {
		return base * time.Duration(1<<attempt)
	}
}

// Policy is a bounded retry policy. The two retry layers in the agent stack
// (inner transport retry, outer stage retry) are both instances of Policy
// composed explicitly, never merged into one loop.
type Policy struct {
	MaxAttempts int
	Backoff     Backoff

	// RetryIf decides whether an error is worth another attempt.
	// Nil retries everything.
	RetryIf func(error) bool
}

// Do executes fn up to MaxAttempts times, sleeping per Backoff between
// attempts. Context cancellation aborts the wait and returns ctx.Err().
// The last attempt's error is returned on exhaustion.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if p.RetryIf != nil && !p.RetryIf(err) {
			return err
		}
		if attempt == attempts-1 {
			break
		}

		wait := time.Duration(0)
		if p.Backoff != nil {
			wait = p.Backoff(attempt)
		}
		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
	return err
}
