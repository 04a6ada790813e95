package queue

import (
	"context"
	"testing"
	"time"
)

func TestFIFOOrder(t *testing.T) {
	q := NewFIFO[int]()
	defer q.Close()

	for i := 0; i < 5; i++ {
		if err := q.Put(i); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		got, err := q.Get(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != i {
			t.Errorf("expected %d, got %d", i, got)
		}
	}

	if !q.Empty() {
		t.Error("queue should be empty")
	}
}

func TestFIFOGetBlocksUntilPut(t *testing.T) {
	q := NewFIFO[string]()
	defer q.Close()

	done := make(chan string, 1)
	go func() {
		item, err := q.Get(context.Background())
		if err != nil {
			return
		}
		done <- item
	}()

	time.Sleep(20 * time.Millisecond)
	if err := q.Put("hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case item := <-done:
		if item != "hello" {
			t.Errorf("expected hello, got %s", item)
		}
	case <-time.After(time.Second):
		t.Fatal("Get did not return after Put")
	}
}

func TestFIFOGetContextCancelled(t *testing.T) {
	q := NewFIFO[int]()
	defer q.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Get(ctx)
	if err != context.DeadlineExceeded {
		t.Errorf("expected DeadlineExceeded, got %v", err)
	}
}

func TestFIFOClosedUnblocksGet(t *testing.T) {
	q := NewFIFO[int]()

	errCh := make(chan error, 1)
	go func() {
		_, err := q.Get(context.Background())
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	q.Close()

	select {
	case err := <-errCh:
		if err != ErrClosed {
			t.Errorf("expected ErrClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Get did not return after Close")
	}

	if err := q.Put(1); err != ErrClosed {
		t.Errorf("Put on closed queue should return ErrClosed, got %v", err)
	}
}

func TestPriorityOrder(t *testing.T) {
	q := NewPriority[string]()
	defer q.Close()

	// Submitted low, critical, normal; expect critical, normal, low
	q.Put("low", WithPriority(3))
	q.Put("critical", WithPriority(0))
	q.Put("normal", WithPriority(2))

	ctx := context.Background()
	expected := []string{"critical", "normal", "low"}
	for _, want := range expected {
		got, err := q.Get(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != want {
			t.Errorf("expected %s, got %s", want, got)
		}
	}
}

func TestPriorityStableTies(t *testing.T) {
	q := NewPriority[int]()
	defer q.Close()

	for i := 0; i < 10; i++ {
		q.Put(i, WithPriority(1))
	}

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		got, err := q.Get(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != i {
			t.Errorf("ties must dequeue in arrival order: expected %d, got %d", i, got)
		}
	}
}

func TestDelayedEligibility(t *testing.T) {
	q := NewDelayed[string]()
	defer q.Close()

	q.Put("later", WithDelay(150*time.Millisecond))
	q.Put("sooner", WithDelay(30*time.Millisecond))

	ctx := context.Background()
	start := time.Now()

	got, err := q.Get(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "sooner" {
		t.Errorf("expected sooner, got %s", got)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("item dequeued before its delay elapsed: %v", elapsed)
	}

	got, err = q.Get(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "later" {
		t.Errorf("expected later, got %s", got)
	}
	if elapsed := time.Since(start); elapsed < 140*time.Millisecond {
		t.Errorf("item dequeued before its delay elapsed: %v", elapsed)
	}
}

func TestDelayedZeroDelayImmediate(t *testing.T) {
	q := NewDelayed[int]()
	defer q.Close()

	q.Put(42)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	got, err := q.Get(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 42 {
		t.Errorf("expected 42, got %d", got)
	}
}

func TestNewByKind(t *testing.T) {
	kinds := []Kind{KindFIFO, KindPriority, KindDelayed}
	for _, kind := range kinds {
		q, err := New[int](kind)
		if err != nil {
			t.Fatalf("kind %s: unexpected error: %v", kind, err)
		}
		q.Close()
	}

	if _, err := New[int]("bogus"); err != ErrUnknownKind {
		t.Errorf("expected ErrUnknownKind, got %v", err)
	}
}

func TestConcurrentPutGet(t *testing.T) {
	q := NewFIFO[int]()
	defer q.Close()

	const n = 200
	ctx := context.Background()

	go func() {
		for i := 0; i < n; i++ {
			q.Put(i)
		}
	}()

	seen := make(map[int]bool, n)
	for i := 0; i < n; i++ {
		got, err := q.Get(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if seen[got] {
			t.Fatalf("item %d dequeued twice", got)
		}
		seen[got] = true
	}
}
