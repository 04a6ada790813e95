package queue

import (
	"context"
	"sync"
)

// FIFO is a strict arrival-order queue
type FIFO[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []T
	closed bool
}

// NewFIFO creates an empty FIFO queue
func NewFIFO[T any]() *FIFO[T] {
	q := &FIFO[T]{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Put implements Queue.Put
func (q *FIFO[T]) Put(item T, _ ...PutOption) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrClosed
	}

	q.items = append(q.items, item)
	q.cond.Signal()
	return nil
}

// Get implements Queue.Get
func (q *FIFO[T]) Get(ctx context.Context) (T, error) {
	var zero T

	// Wake blocked waiters when the context is cancelled
	stop := context.AfterFunc(ctx, q.cond.Broadcast)
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 {
		if q.closed {
			return zero, ErrClosed
		}
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		q.cond.Wait()
	}

	item := q.items[0]
	q.items = q.items[1:]
	return item, nil
}

// Len implements Queue.Len
func (q *FIFO[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Empty implements Queue.Empty
func (q *FIFO[T]) Empty() bool {
	return q.Len() == 0
}

// Close implements Queue.Close
func (q *FIFO[T]) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	q.cond.Broadcast()
	return nil
}
