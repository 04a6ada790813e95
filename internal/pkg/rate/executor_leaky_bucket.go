package rate

import (
	"context"
	"math"
	"time"
)

// LeakyBucketExecutor implements the leaky bucket algorithm: requests
// fill a bucket that drains at a constant rate, and requests that would
// overflow the bucket are rejected. Smooths traffic with no burst credit.
type LeakyBucketExecutor struct{}

// NewLeakyBucketExecutor creates a new leaky bucket executor
func NewLeakyBucketExecutor() *LeakyBucketExecutor {
	return &LeakyBucketExecutor{}
}

// Execute implements Executor
func (e *LeakyBucketExecutor) Execute(ctx context.Context, key string, n int, cfg *Config, storage Storage) (*Result, error) {
	now := time.Now()

	state, err := storage.Get(ctx, key)
	if err != nil && err != ErrStorageUnavailable {
		return nil, err
	}

	// A fresh bucket starts empty
	if state == nil {
		state = &State{
			Tokens:     0,
			LastUpdate: now,
		}
	}

	// Drain for the elapsed time, floored at empty
	elapsed := now.Sub(state.LastUpdate)
	leaked := elapsed.Seconds() * float64(cfg.Rate) / cfg.Interval.Seconds()
	level := math.Max(0, state.Tokens-leaked)

	// n=0 probes without consuming
	if n == 0 {
		remaining := int(math.Floor(float64(cfg.Burst) - level))
		return &Result{
			Allowed:   remaining > 0,
			Limit:     cfg.Rate,
			Remaining: remaining,
			ResetAt:   now.Add(cfg.Interval),
		}, nil
	}

	if level+float64(n) <= float64(cfg.Burst) {
		level += float64(n)
		state.Tokens = level
		state.LastUpdate = now

		if err := storage.Set(ctx, key, state, cfg.TTL); err != nil {
			return nil, err
		}

		return &Result{
			Allowed:   true,
			Limit:     cfg.Rate,
			Remaining: int(math.Floor(float64(cfg.Burst) - level)),
			ResetAt:   now.Add(cfg.Interval),
		}, nil
	}

	// Bucket would overflow; wait for the excess to drain
	overflow := (level + float64(n)) - float64(cfg.Burst)
	retryAfter := time.Duration(overflow * cfg.Interval.Seconds() / float64(cfg.Rate) * float64(time.Second))

	return &Result{
		Allowed:    false,
		Limit:      cfg.Rate,
		Remaining:  int(math.Floor(float64(cfg.Burst) - level)),
		RetryAfter: retryAfter,
		ResetAt:    now.Add(retryAfter),
	}, nil
}
