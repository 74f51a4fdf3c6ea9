// Package retry provides an injectable retry policy for external calls.
// Call sites receive a Policy instead of hand-rolled sleep loops so tests
// can substitute zero-delay policies.
package retry

import (
	"context"
	"time"
)

// Policy bounds retries for one external call site.
type Policy struct {
	MaxAttempts int
	Backoff     func(attempt int) time.Duration
}

// Linear returns a backoff growing as step*attempt (attempt starts at 1).
func Linear(step time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		return time.Duration(attempt) * step
	}
}

// None is a single-attempt policy.
func None() Policy {
	return Policy{MaxAttempts: 1}
}

// Default matches the pipeline's external-call policy: 3 attempts with
// linearly increasing backoff.
func Default() Policy {
	return Policy{MaxAttempts: 3, Backoff: Linear(2 * time.Second)}
}

// Do runs op until it succeeds, attempts are exhausted, or ctx is done.
// The last error is returned after exhaustion.
func (p Policy) Do(ctx context.Context, op func(context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = op(ctx); err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		var wait time.Duration
		if p.Backoff != nil {
			wait = p.Backoff(attempt)
		}
		if wait <= 0 {
			continue
		}
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
