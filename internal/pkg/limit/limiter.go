// Package limit bounds the number of simultaneously in-flight operations
// with a counting semaphore.
package limit

import (
	"context"
	"errors"
	"sync"
)

// ErrInvalidLimit indicates a non-positive concurrency limit
var ErrInvalidLimit = errors.New("concurrency limit must be positive")

// Limiter bounds concurrent executions to a fixed maximum.
// Tokens are pre-filled up to the limit.
type Limiter struct {
	limit int
	ch    chan struct{}

	// active is tracked separately from the semaphore channel so
	// observers never race with its signaling.
	mu     sync.Mutex
	active int
}

// New creates a Limiter allowing up to max concurrent holders
func New(max int) (*Limiter, error) {
	if max <= 0 {
		return nil, ErrInvalidLimit
	}

	l := &Limiter{limit: max, ch: make(chan struct{}, max)}
	for i := 0; i < max; i++ {
		l.ch <- struct{}{}
	}
	return l, nil
}

// Acquire blocks until a slot is free or the context is cancelled.
// On success the caller must call Release exactly once, on every exit path.
func (l *Limiter) Acquire(ctx context.Context) error {
	select {
	case <-l.ch:
	case <-ctx.Done():
		return ctx.Err()
	}

	l.mu.Lock()
	l.active++
	l.mu.Unlock()
	return nil
}

// TryAcquire takes a slot without blocking, reporting whether it succeeded
func (l *Limiter) TryAcquire() bool {
	select {
	case <-l.ch:
	default:
		return false
	}

	l.mu.Lock()
	l.active++
	l.mu.Unlock()
	return true
}

// Release returns a slot. Never blocks.
func (l *Limiter) Release() {
	l.mu.Lock()
	if l.active > 0 {
		l.active--
	}
	l.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
	default:
	}
}

// Active returns the number of slots currently held
func (l *Limiter) Active() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

// Limit returns the configured maximum
func (l *Limiter) Limit() int {
	return l.limit
}
