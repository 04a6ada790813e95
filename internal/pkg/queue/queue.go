package queue

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrClosed indicates the queue has been closed
	ErrClosed = errors.New("queue closed")
	// ErrUnknownKind indicates an unsupported queue discipline
	ErrUnknownKind = errors.New("unknown queue kind")
)

// Kind selects the queue discipline
type Kind string

const (
	// KindFIFO dequeues in strict arrival order
	KindFIFO Kind = "fifo"

	// KindPriority dequeues the numerically lowest priority first,
	// ties broken by arrival order
	KindPriority Kind = "priority"

	// KindDelayed holds each item until its enqueue time plus delay
	// has passed, earliest-eligible first
	KindDelayed Kind = "delayed"
)

// Queue holds pending items for concurrent producers and consumers.
// All implementations are safe for concurrent Put and Get.
type Queue[T any] interface {
	// Put enqueues an item. It never blocks on capacity.
	Put(item T, opts ...PutOption) error

	// Get dequeues the next eligible item, suspending until one is
	// available or the context is cancelled.
	Get(ctx context.Context) (T, error)

	// Len returns the number of queued items, eligible or not.
	Len() int

	// Empty reports whether the queue holds no items.
	Empty() bool

	// Close releases queue resources. Blocked Get calls return ErrClosed.
	Close() error
}

// PutOption carries per-item metadata used by the ordering discipline
type PutOption func(*itemMeta)

type itemMeta struct {
	priority int
	delay    time.Duration
}

// WithPriority sets the item priority; lower values dequeue first.
// Ignored by non-priority queues.
func WithPriority(p int) PutOption {
	return func(m *itemMeta) {
		m.priority = p
	}
}

// WithDelay defers the item's eligibility by d from enqueue time.
// Ignored by non-delayed queues.
func WithDelay(d time.Duration) PutOption {
	return func(m *itemMeta) {
		m.delay = d
	}
}

// New constructs a queue of the given kind
func New[T any](kind Kind) (Queue[T], error) {
	switch kind {
	case KindFIFO, "":
		return NewFIFO[T](), nil
	case KindPriority:
		return NewPriority[T](), nil
	case KindDelayed:
		return NewDelayed[T](), nil
	default:
		return nil, ErrUnknownKind
	}
}
