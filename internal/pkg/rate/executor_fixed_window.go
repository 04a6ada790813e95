package rate

import (
	"context"
	"time"
)

// FixedWindowExecutor implements the fixed window counter algorithm:
// time is divided into aligned windows and a counter caps requests per
// window. Cheap, but permits up to 2x burst across a window boundary.
type FixedWindowExecutor struct{}

// NewFixedWindowExecutor creates a new fixed window executor
func NewFixedWindowExecutor() *FixedWindowExecutor {
	return &FixedWindowExecutor{}
}

// Execute implements Executor
func (e *FixedWindowExecutor) Execute(ctx context.Context, key string, n int, cfg *Config, storage Storage) (*Result, error) {
	now := time.Now()
	windowStart := now.Truncate(cfg.Interval)

	state, err := storage.Get(ctx, key)
	if err != nil && err != ErrStorageUnavailable {
		return nil, err
	}

	// Start a fresh counter for a new window
	if state == nil || state.WindowStart.Before(windowStart) {
		state = &State{
			Counter:     0,
			WindowStart: windowStart,
		}
	}

	// n=0 probes without consuming
	if n == 0 {
		remaining := cfg.Burst - int(state.Counter)
		if remaining < 0 {
			remaining = 0
		}
		return &Result{
			Allowed:   remaining > 0,
			Limit:     cfg.Burst,
			Remaining: remaining,
			ResetAt:   windowStart.Add(cfg.Interval),
		}, nil
	}

	if state.Counter+int64(n) <= int64(cfg.Burst) {
		state.Counter += int64(n)

		if err := storage.Set(ctx, key, state, cfg.TTL); err != nil {
			return nil, err
		}

		return &Result{
			Allowed:   true,
			Limit:     cfg.Burst,
			Remaining: cfg.Burst - int(state.Counter),
			ResetAt:   windowStart.Add(cfg.Interval),
		}, nil
	}

	// Window full; retry when the next window opens
	nextWindow := windowStart.Add(cfg.Interval)

	remaining := cfg.Burst - int(state.Counter)
	if remaining < 0 {
		remaining = 0
	}

	return &Result{
		Allowed:    false,
		Limit:      cfg.Burst,
		Remaining:  remaining,
		RetryAfter: nextWindow.Sub(now),
		ResetAt:    nextWindow,
	}, nil
}
