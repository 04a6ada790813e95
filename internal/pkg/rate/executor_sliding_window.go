package rate

import (
	"context"
	"time"
)

// SlidingWindowExecutor implements the sliding window log algorithm: a
// log of request timestamps is pruned to the trailing interval, and the
// count of surviving entries is capped at the burst limit. Unlike the
// token bucket this enforces a hard per-window cap rather than a
// smoothed average.
type SlidingWindowExecutor struct{}

// NewSlidingWindowExecutor creates a new sliding window executor
func NewSlidingWindowExecutor() *SlidingWindowExecutor {
	return &SlidingWindowExecutor{}
}

// Execute implements Executor
func (e *SlidingWindowExecutor) Execute(ctx context.Context, key string, n int, cfg *Config, storage Storage) (*Result, error) {
	now := time.Now()
	windowStart := now.Add(-cfg.Interval)

	state, err := storage.Get(ctx, key)
	if err != nil && err != ErrStorageUnavailable {
		return nil, err
	}

	if state == nil {
		state = &State{
			Timestamps: []time.Time{},
		}
	}

	// Prune entries that left the trailing window
	valid := make([]time.Time, 0, len(state.Timestamps))
	for _, ts := range state.Timestamps {
		if ts.After(windowStart) {
			valid = append(valid, ts)
		}
	}

	count := len(valid)

	// n=0 probes without consuming
	if n == 0 {
		remaining := cfg.Burst - count
		if remaining < 0 {
			remaining = 0
		}
		return &Result{
			Allowed:   remaining > 0,
			Limit:     cfg.Burst,
			Remaining: remaining,
			ResetAt:   now.Add(cfg.Interval),
		}, nil
	}

	if count+n <= cfg.Burst {
		for i := 0; i < n; i++ {
			valid = append(valid, now)
		}
		state.Timestamps = valid

		if err := storage.Set(ctx, key, state, cfg.TTL); err != nil {
			return nil, err
		}

		return &Result{
			Allowed:   true,
			Limit:     cfg.Burst,
			Remaining: cfg.Burst - len(valid),
			ResetAt:   now.Add(cfg.Interval),
		}, nil
	}

	// Over the cap; capacity returns when the oldest entry exits the window
	var retryAfter time.Duration
	if len(valid) > 0 {
		retryAfter = valid[0].Add(cfg.Interval).Sub(now)
		if retryAfter < 0 {
			retryAfter = 0
		}
	} else {
		retryAfter = cfg.Interval
	}

	remaining := cfg.Burst - count
	if remaining < 0 {
		remaining = 0
	}

	return &Result{
		Allowed:    false,
		Limit:      cfg.Burst,
		Remaining:  remaining,
		RetryAfter: retryAfter,
		ResetAt:    now.Add(retryAfter),
	}, nil
}
