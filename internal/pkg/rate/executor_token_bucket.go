package rate

import (
	"context"
	"math"
	"time"
)

// TokenBucketExecutor implements the token bucket algorithm: tokens
// accumulate at a constant rate up to a burst capacity, and each request
// spends tokens. Short bursts up to capacity pass immediately while the
// long-run average stays at the configured rate.
type TokenBucketExecutor struct{}

// NewTokenBucketExecutor creates a new token bucket executor
func NewTokenBucketExecutor() *TokenBucketExecutor {
	return &TokenBucketExecutor{}
}

// Execute implements Executor
func (e *TokenBucketExecutor) Execute(ctx context.Context, key string, n int, cfg *Config, storage Storage) (*Result, error) {
	now := time.Now()

	state, err := storage.Get(ctx, key)
	if err != nil && err != ErrStorageUnavailable {
		return nil, err
	}

	// A fresh key starts with a full bucket
	if state == nil {
		state = &State{
			Tokens:     float64(cfg.Burst),
			LastUpdate: now,
		}
	}

	// Refill for the elapsed time, capped at burst
	elapsed := now.Sub(state.LastUpdate)
	refill := elapsed.Seconds() * float64(cfg.Rate) / cfg.Interval.Seconds()
	tokens := math.Min(state.Tokens+refill, float64(cfg.Burst))

	// n=0 probes without consuming
	if n == 0 {
		return &Result{
			Allowed:   tokens >= 1,
			Limit:     cfg.Rate,
			Remaining: int(math.Floor(tokens)),
			ResetAt:   now.Add(cfg.Interval),
		}, nil
	}

	if tokens >= float64(n) {
		tokens -= float64(n)
		state.Tokens = tokens
		state.LastUpdate = now

		if err := storage.Set(ctx, key, state, cfg.TTL); err != nil {
			return nil, err
		}

		return &Result{
			Allowed:   true,
			Limit:     cfg.Rate,
			Remaining: int(math.Floor(tokens)),
			ResetAt:   now.Add(cfg.Interval),
		}, nil
	}

	// Not enough tokens; wait for the shortfall to refill
	needed := float64(n) - tokens
	retryAfter := time.Duration(needed * cfg.Interval.Seconds() / float64(cfg.Rate) * float64(time.Second))

	return &Result{
		Allowed:    false,
		Limit:      cfg.Rate,
		Remaining:  int(math.Floor(tokens)),
		RetryAfter: retryAfter,
		ResetAt:    now.Add(retryAfter),
	}, nil
}
