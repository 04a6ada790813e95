package rate

import (
	"context"
	"sync"
	"testing"
	"time"
)

func newTestLimiter(t *testing.T, cfg *Config) Limiter {
	t.Helper()

	storage := NewMemoryStorage()
	limiter, err := New(cfg, storage)
	if err != nil {
		t.Fatalf("failed to create limiter: %v", err)
	}
	t.Cleanup(func() { limiter.Close() })
	return limiter
}

func TestTokenBucketBurst(t *testing.T) {
	limiter := newTestLimiter(t, &Config{
		Strategy: StrategyTokenBucket,
		Rate:     10,
		Burst:    20,
		Interval: 1 * time.Second,
		TTL:      5 * time.Second,
	})

	ctx := context.Background()

	// Bursts up to capacity complete without waiting
	for i := 0; i < 20; i++ {
		allowed, err := limiter.Allow(ctx, "host-a")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !allowed {
			t.Errorf("request %d should be allowed within burst", i)
		}
	}

	// Denied after burst exhausted
	allowed, err := limiter.Allow(ctx, "host-a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if allowed {
		t.Error("request should be denied after burst exhausted")
	}

	// Tokens refill over time
	time.Sleep(1 * time.Second)
	allowed, err = limiter.Allow(ctx, "host-a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !allowed {
		t.Error("request should be allowed after token refill")
	}
}

func TestTokenBucketKeysIndependent(t *testing.T) {
	limiter := newTestLimiter(t, &Config{
		Strategy: StrategyTokenBucket,
		Rate:     1,
		Burst:    1,
		Interval: 1 * time.Second,
		TTL:      5 * time.Second,
	})

	ctx := context.Background()

	if allowed, _ := limiter.Allow(ctx, "host-a"); !allowed {
		t.Error("first request on host-a should be allowed")
	}
	if allowed, _ := limiter.Allow(ctx, "host-a"); allowed {
		t.Error("second request on host-a should be denied")
	}
	if allowed, _ := limiter.Allow(ctx, "host-b"); !allowed {
		t.Error("host-b budget must be independent of host-a")
	}
}

func TestSlidingWindowCap(t *testing.T) {
	limiter := newTestLimiter(t, &Config{
		Strategy: StrategySlidingWindow,
		Rate:     3,
		Burst:    3,
		Interval: 500 * time.Millisecond,
		TTL:      5 * time.Second,
	})

	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, err := limiter.Allow(ctx, "host-a")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !allowed {
			t.Errorf("request %d should be allowed within window", i)
		}
	}

	if allowed, _ := limiter.Allow(ctx, "host-a"); allowed {
		t.Error("request should be denied once window is full")
	}

	// Oldest entries leave the trailing window
	time.Sleep(600 * time.Millisecond)
	if allowed, _ := limiter.Allow(ctx, "host-a"); !allowed {
		t.Error("request should be allowed after window slides")
	}
}

func TestFixedWindowResets(t *testing.T) {
	limiter := newTestLimiter(t, &Config{
		Strategy: StrategyFixedWindow,
		Rate:     5,
		Burst:    5,
		Interval: 1 * time.Second,
		TTL:      5 * time.Second,
	})

	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if allowed, _ := limiter.Allow(ctx, "host-a"); !allowed {
			t.Errorf("request %d should be allowed", i)
		}
	}
	if allowed, _ := limiter.Allow(ctx, "host-a"); allowed {
		t.Error("request should be denied after limit reached")
	}

	time.Sleep(1 * time.Second)
	if allowed, _ := limiter.Allow(ctx, "host-a"); !allowed {
		t.Error("request should be allowed in new window")
	}
}

func TestAcquireBlocksUntilGranted(t *testing.T) {
	limiter := newTestLimiter(t, &Config{
		Strategy: StrategyTokenBucket,
		Rate:     10,
		Burst:    2,
		Interval: 1 * time.Second,
		TTL:      5 * time.Second,
	})

	ctx := context.Background()

	// Deplete the burst
	for i := 0; i < 2; i++ {
		if err := limiter.Acquire(ctx, "host-a"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	// The third acquisition must wait roughly one refill period
	start := time.Now()
	if err := limiter.Acquire(ctx, "host-a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	elapsed := time.Since(start)

	if elapsed < 50*time.Millisecond {
		t.Errorf("Acquire returned too fast: %v", elapsed)
	}
	if elapsed > 500*time.Millisecond {
		t.Errorf("Acquire waited too long: %v", elapsed)
	}
}

func TestAcquireHonorsContext(t *testing.T) {
	limiter := newTestLimiter(t, &Config{
		Strategy: StrategyTokenBucket,
		Rate:     1,
		Burst:    1,
		Interval: 1 * time.Hour,
		TTL:      2 * time.Hour,
	})

	ctx := context.Background()
	if err := limiter.Acquire(ctx, "host-a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cancelCtx, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
	defer cancel()

	if err := limiter.Acquire(cancelCtx, "host-a"); err != context.DeadlineExceeded {
		t.Errorf("expected DeadlineExceeded, got %v", err)
	}
}

func TestAcquireLongRunRate(t *testing.T) {
	if testing.Short() {
		t.Skip("timing test")
	}

	limiter := newTestLimiter(t, &Config{
		Strategy: StrategyTokenBucket,
		Rate:     20,
		Burst:    20,
		Interval: 1 * time.Second,
		TTL:      5 * time.Second,
	})

	ctx := context.Background()
	const n = 40 // one burst plus one second of refill

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < n/8; j++ {
				if err := limiter.Acquire(ctx, "host-a"); err != nil {
					t.Errorf("unexpected error: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)

	// 40 acquisitions at 20/s with a 20-token burst need >= ~1s
	if elapsed < 800*time.Millisecond {
		t.Errorf("completion rate exceeded configured rate: %d in %v", n, elapsed)
	}
}

func TestReset(t *testing.T) {
	limiter := newTestLimiter(t, &Config{
		Strategy: StrategyTokenBucket,
		Rate:     1,
		Burst:    1,
		Interval: 1 * time.Hour,
		TTL:      2 * time.Hour,
	})

	ctx := context.Background()

	if allowed, _ := limiter.Allow(ctx, "host-a"); !allowed {
		t.Fatal("first request should be allowed")
	}
	if allowed, _ := limiter.Allow(ctx, "host-a"); allowed {
		t.Fatal("second request should be denied")
	}

	if err := limiter.Reset(ctx, "host-a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if allowed, _ := limiter.Allow(ctx, "host-a"); !allowed {
		t.Error("request after Reset should be allowed")
	}
}

func TestCheckDoesNotConsume(t *testing.T) {
	limiter := newTestLimiter(t, &Config{
		Strategy: StrategyTokenBucket,
		Rate:     1,
		Burst:    1,
		Interval: 1 * time.Hour,
		TTL:      2 * time.Hour,
	})

	ctx := context.Background()

	for i := 0; i < 5; i++ {
		ok, err := limiter.Check(ctx, "host-a")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !ok {
			t.Fatal("Check should report capacity available")
		}
	}

	if allowed, _ := limiter.Allow(ctx, "host-a"); !allowed {
		t.Error("Allow should still succeed after Check probes")
	}
}

func TestInvalidConfig(t *testing.T) {
	storage := NewMemoryStorage()
	defer storage.Close()

	bad := []*Config{
		{Strategy: StrategyTokenBucket, Rate: 0, Burst: 1, Interval: time.Second},
		{Strategy: StrategyTokenBucket, Rate: 10, Burst: 5, Interval: time.Second},
		{Strategy: StrategyTokenBucket, Rate: 10, Burst: 10, Interval: 0},
		{Strategy: "bogus", Rate: 10, Burst: 10, Interval: time.Second},
	}

	for i, cfg := range bad {
		if _, err := New(cfg, storage); err == nil {
			t.Errorf("config %d should be rejected", i)
		}
	}
}
