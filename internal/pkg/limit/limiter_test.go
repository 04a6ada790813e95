package limit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestAcquireRelease(t *testing.T) {
	l, err := New(2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx := context.Background()
	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := l.Active(); got != 2 {
		t.Errorf("expected 2 active, got %d", got)
	}

	if l.TryAcquire() {
		t.Error("TryAcquire should fail when all slots are held")
	}

	l.Release()
	if got := l.Active(); got != 1 {
		t.Errorf("expected 1 active, got %d", got)
	}

	if !l.TryAcquire() {
		t.Error("TryAcquire should succeed after Release")
	}
}

func TestInvalidLimit(t *testing.T) {
	if _, err := New(0); err != ErrInvalidLimit {
		t.Errorf("expected ErrInvalidLimit, got %v", err)
	}
	if _, err := New(-1); err != ErrInvalidLimit {
		t.Errorf("expected ErrInvalidLimit, got %v", err)
	}
}

func TestAcquireContextCancelled(t *testing.T) {
	l, _ := New(1)
	ctx := context.Background()
	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cancelCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()

	if err := l.Acquire(cancelCtx); err != context.DeadlineExceeded {
		t.Errorf("expected DeadlineExceeded, got %v", err)
	}

	// Cancelled Acquire must not have consumed the slot accounting
	if got := l.Active(); got != 1 {
		t.Errorf("expected 1 active, got %d", got)
	}
}

func TestConcurrencyBound(t *testing.T) {
	const max = 5
	l, _ := New(max)

	var inFlight, peak int64
	var wg sync.WaitGroup
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			if err := l.Acquire(ctx); err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			defer l.Release()

			n := atomic.AddInt64(&inFlight, 1)
			for {
				old := atomic.LoadInt64(&peak)
				if n <= old || atomic.CompareAndSwapInt64(&peak, old, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt64(&inFlight, -1)
		}()
	}

	wg.Wait()

	if peak > max {
		t.Errorf("observed %d concurrent holders, limit is %d", peak, max)
	}
	if got := l.Active(); got != 0 {
		t.Errorf("expected 0 active after all released, got %d", got)
	}
}
