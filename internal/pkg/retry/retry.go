// Package retry provides exponential backoff policies for failed work.
package retry

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Policy decides whether and when failed work is retried. It is
// stateless with respect to any single unit of work: it only reads
// counters the caller tracks.
type Policy struct {
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      bool
	MaxAttempts int
}

// ExponentialBackoff returns a policy with delays doubling from base up
// to max. maxAttempts of 0 means unlimited.
func ExponentialBackoff(base, max time.Duration, jitter bool, maxAttempts int) Policy {
	return Policy{
		BaseDelay:   base,
		MaxDelay:    max,
		Jitter:      jitter,
		MaxAttempts: maxAttempts,
	}
}

// ShouldRetry reports whether work that has already been retried
// `retries` times may be retried again.
func (p Policy) ShouldRetry(retries int) bool {
	if p.MaxAttempts == 0 {
		return true
	}
	return retries < p.MaxAttempts
}

// Delay returns the backoff before retry number `retries+1`:
// min(BaseDelay * 2^retries, MaxDelay).
func (p Policy) Delay(retries int) time.Duration {
	if retries < 0 {
		retries = 0
	}
	factor := math.Pow(2, float64(retries))
	delay := time.Duration(float64(p.BaseDelay) * factor)
	if delay > p.MaxDelay || delay <= 0 {
		delay = p.MaxDelay
	}
	if p.Jitter {
		j := rand.Float64()*0.4 + 0.8 // [0.8, 1.2)
		delay = time.Duration(float64(delay) * j)
	}
	return delay
}

// nextDelay keeps the attempt-based form used by Do: attempt counts
// from 1, so attempt n waits Delay(n-1).
func (p Policy) nextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}
	return p.Delay(attempt - 1)
}

// Do runs fn with retry upon error while isRetryable(err) is true
func Do[T any](ctx context.Context, policy Policy, fn func(context.Context) (T, error), isRetryable func(error) bool) (T, error) {
	var zero T
	var lastErr error
	for attempt := 1; policy.MaxAttempts == 0 || attempt <= policy.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		default:
		}
		res, err := fn(ctx)
		if err == nil {
			return res, nil
		}
		lastErr = err
		if isRetryable != nil && !isRetryable(err) {
			break
		}
		delay := policy.nextDelay(attempt)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}
	return zero, lastErr
}
