package queue

import (
	"container/heap"
	"context"
	"sync"
)

// Priority dequeues the numerically lowest priority value first.
// Equal priorities dequeue in arrival order (stable).
type Priority[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	heap   priorityHeap[T]
	seq    uint64
	closed bool
}

// NewPriority creates an empty priority queue
func NewPriority[T any]() *Priority[T] {
	q := &Priority[T]{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Put implements Queue.Put
func (q *Priority[T]) Put(item T, opts ...PutOption) error {
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
	heap.Push(&q.heap, &priorityEntry[T]{
		item:     item,
		priority: meta.priority,
		seq:      q.seq,
	})
	q.cond.Signal()
	return nil
}

// Get implements Queue.Get
func (q *Priority[T]) Get(ctx context.Context) (T, error) {
	var zero T

	stop := context.AfterFunc(ctx, q.cond.Broadcast)
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()

	for q.heap.Len() == 0 {
		if q.closed {
			return zero, ErrClosed
		}
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		q.cond.Wait()
	}

	entry := heap.Pop(&q.heap).(*priorityEntry[T])
	return entry.item, nil
}

// Len implements Queue.Len
func (q *Priority[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.heap.Len()
}

// Empty implements Queue.Empty
func (q *Priority[T]) Empty() bool {
	return q.Len() == 0
}

// Close implements Queue.Close
func (q *Priority[T]) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	q.cond.Broadcast()
	return nil
}

type priorityEntry[T any] struct {
	item     T
	priority int
	seq      uint64
}

type priorityHeap[T any] []*priorityEntry[T]

func (h priorityHeap[T]) Len() int { return len(h) }

func (h priorityHeap[T]) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority < h[j].priority
	}
	return h[i].seq < h[j].seq
}

func (h priorityHeap[T]) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *priorityHeap[T]) Push(x any) {
	*h = append(*h, x.(*priorityEntry[T]))
}

func (h *priorityHeap[T]) Pop() any {
	old := *h
	n := len(old)
	entry := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return entry
}
