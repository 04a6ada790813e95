package queue

import (
	"container/heap"
	"context"
	"sync"
	"time"
)

// Delayed holds each item until enqueue time plus its delay has passed.
// Eligible items dequeue earliest execute-time first.
type Delayed[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	heap   delayedHeap[T]
	seq    uint64
	closed bool

	// timer wakes waiters when the head item becomes eligible
	timer *time.Timer
}

// NewDelayed creates an empty delayed queue
func NewDelayed[T any]() *Delayed[T] {
	q := &Delayed[T]{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Put implements Queue.Put
func (q *Delayed[T]) Put(item T, opts ...PutOption) error {
	var meta itemMeta
	for _, opt := range opts {
		opt(&meta)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrClosed
	}

	q.seq++
	heap.Push(&q.heap, &delayedEntry[T]{
		item: item,
		at:   time.Now().Add(meta.delay),
		seq:  q.seq,
	})
	q.rearmLocked()
	q.cond.Broadcast()
	return nil
}

// Get implements Queue.Get
func (q *Delayed[T]) Get(ctx context.Context) (T, error) {
	var zero T

	stop := context.AfterFunc(ctx, q.cond.Broadcast)
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()

	for {
		if q.closed {
			return zero, ErrClosed
		}
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		if q.heap.Len() > 0 && !q.heap[0].at.After(time.Now()) {
			entry := heap.Pop(&q.heap).(*delayedEntry[T])
			q.rearmLocked()
			return entry.item, nil
		}

		// Head not yet eligible or heap empty; the timer armed by
		// rearmLocked broadcasts when the head comes due.
		q.cond.Wait()
	}
}

// rearmLocked points the wake-up timer at the head item's execute time.
// Callers must hold q.mu.
func (q *Delayed[T]) rearmLocked() {
	if q.timer != nil {
		q.timer.Stop()
		q.timer = nil
	}
	if q.heap.Len() == 0 {
		return
	}
	wait := time.Until(q.heap[0].at)
	if wait < 0 {
		wait = 0
	}
	q.timer = time.AfterFunc(wait, q.cond.Broadcast)
}

// Len implements Queue.Len
func (q *Delayed[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.heap.Len()
}

// Empty implements Queue.Empty
func (q *Delayed[T]) Empty() bool {
	return q.Len() == 0
}

// Close implements Queue.Close
func (q *Delayed[T]) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	if q.timer != nil {
		q.timer.Stop()
		q.timer = nil
	}
	q.cond.Broadcast()
	return nil
}

type delayedEntry[T any] struct {
	item T
	at   time.Time
	seq  uint64
}

type delayedHeap[T any] []*delayedEntry[T]

func (h delayedHeap[T]) Len() int { return len(h) }

func (h delayedHeap[T]) Less(i, j int) bool {
	if !h[i].at.Equal(h[j].at) {
		return h[i].at.Before(h[j].at)
	}
	return h[i].seq < h[j].seq
}

func (h delayedHeap[T]) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *delayedHeap[T]) Push(x any) {
	*h = append(*h, x.(*delayedEntry[T]))
}

func (h *delayedHeap[T]) Pop() any {
	old := *h
	n := len(old)
	entry := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return entry
}
