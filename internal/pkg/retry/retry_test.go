package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestShouldRetry(t *testing.T) {
	p := ExponentialBackoff(time.Second, time.Minute, false, 3)

	for retries := 0; retries < 3; retries++ {
		if !p.ShouldRetry(retries) {
			t.Errorf("retries=%d should be retryable with MaxAttempts=3", retries)
		}
	}
	if p.ShouldRetry(3) {
		t.Error("retries=3 should not be retryable with MaxAttempts=3")
	}

	unlimited := ExponentialBackoff(time.Second, time.Minute, false, 0)
	if !unlimited.ShouldRetry(1000) {
		t.Error("MaxAttempts=0 means unlimited retries")
	}
}

func TestBackoffGrowth(t *testing.T) {
	p := ExponentialBackoff(1*time.Second, 60*time.Second, false, 0)

	expected := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		32 * time.Second,
		60 * time.Second, // capped
		60 * time.Second,
	}

	var prev time.Duration
	for retries, want := range expected {
		got := p.Delay(retries)
		if got != want {
			t.Errorf("Delay(%d) = %v, want %v", retries, got, want)
		}
		if got < prev {
			t.Errorf("delays must be non-decreasing: Delay(%d)=%v < %v", retries, got, prev)
		}
		prev = got
	}
}

func TestBackoffJitterBounds(t *testing.T) {
	p := ExponentialBackoff(10*time.Second, time.Hour, true, 0)

	for i := 0; i < 100; i++ {
		d := p.Delay(0)
		if d < 8*time.Second || d >= 12*time.Second {
			t.Fatalf("jittered delay %v outside [0.8, 1.2) of base", d)
		}
	}
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	p := ExponentialBackoff(time.Millisecond, 10*time.Millisecond, false, 5)

	calls := 0
	result, err := Do(context.Background(), p, func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("transient")
		}
		return "ok", nil
	}, nil)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "ok" {
		t.Errorf("expected ok, got %s", result)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	p := ExponentialBackoff(time.Millisecond, 10*time.Millisecond, false, 4)

	calls := 0
	wantErr := errors.New("always fails")
	_, err := Do(context.Background(), p, func(ctx context.Context) (int, error) {
		calls++
		return 0, wantErr
	}, nil)

	if !errors.Is(err, wantErr) {
		t.Errorf("expected last error, got %v", err)
	}
	if calls != 4 {
		t.Errorf("expected 4 attempts, got %d", calls)
	}
}

func TestDoStopsOnPermanentError(t *testing.T) {
	p := ExponentialBackoff(time.Millisecond, 10*time.Millisecond, false, 10)

	calls := 0
	permanent := errors.New("permanent")
	_, err := Do(context.Background(), p, func(ctx context.Context) (int, error) {
		calls++
		return 0, permanent
	}, func(err error) bool { return false })

	if !errors.Is(err, permanent) {
		t.Errorf("expected permanent error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("non-retryable error should stop after 1 call, got %d", calls)
	}
}

func TestDoHonorsContext(t *testing.T) {
	p := ExponentialBackoff(time.Hour, time.Hour, false, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := Do(ctx, p, func(ctx context.Context) (int, error) {
		return 0, errors.New("fail")
	}, nil)

	if err != context.DeadlineExceeded {
		t.Errorf("expected DeadlineExceeded, got %v", err)
	}
}
