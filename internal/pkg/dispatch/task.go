package dispatch

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Priority orders tasks in a priority queue. Lower values dequeue first.
type Priority int

const (
	PriorityCritical Priority = iota
	PriorityHigh
	PriorityNormal
	PriorityLow
	PriorityIdle
)

// String returns a human-readable priority name
func (p Priority) String() string {
	switch p {
	case PriorityCritical:
		return "critical"
	case PriorityHigh:
		return "high"
	case PriorityNormal:
		return "normal"
	case PriorityLow:
		return "low"
	case PriorityIdle:
		return "idle"
	default:
		return "unknown"
	}
}

// Status is the lifecycle state of a task
type Status string

const (
	// StatusPending means the task has been created but not enqueued
	StatusPending Status = "pending"

	// StatusQueued means the task is waiting in a queue
	StatusQueued Status = "queued"

	// StatusRunning means a worker is executing the task
	StatusRunning Status = "running"

	// StatusSuccess means the task completed without error (terminal)
	StatusSuccess Status = "success"

	// StatusFailed means the task failed with retries exhausted (terminal)
	StatusFailed Status = "failed"

	// StatusRetry means the task failed and is waiting for its backoff
	// delay before being re-queued
	StatusRetry Status = "retry"

	// StatusCancelled means the task was cancelled before or during
	// execution (terminal)
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status is a final one
func (s Status) Terminal() bool {
	switch s {
	case StatusSuccess, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Fn is the operation a task executes. Implementations should honor ctx
// cancellation; long-running fetches that ignore it are abandoned on
// timeout, not killed.
type Fn func(ctx context.Context) (any, error)

// Task is a unit of schedulable work
type Task struct {
	// ID is the unique identifier for the task
	ID string

	// Name identifies the kind of work. When Fn is nil the dispatcher
	// resolves a handler from its registry by this name.
	Name string

	// Fn is the operation to execute
	Fn Fn

	// Metadata holds additional information about the task
	Metadata map[string]string

	// Priority orders the task in a priority queue
	Priority Priority

	// Status is the current lifecycle state, owned by the dispatcher
	// while the task is in flight
	Status Status

	// Retries is the number of retries consumed so far
	Retries int

	// MaxRetries caps retries for this task. A negative value means
	// the dispatcher default applies.
	MaxRetries int

	// Delay postpones eligibility in a delayed queue. The dispatcher
	// overwrites it with the backoff value on each retry.
	Delay time.Duration

	// Timeout bounds a single execution attempt. Zero means the
	// dispatcher default; a default of zero means no timeout.
	Timeout time.Duration

	// CreatedAt is when the task was constructed
	CreatedAt time.Time

	// StartedAt is when the most recent attempt began
	StartedAt time.Time

	// FinishedAt is when the task reached a terminal status
	FinishedAt time.Time
}

// TaskOption customizes a task at construction
type TaskOption func(*Task)

// WithPriority sets the task priority
func WithPriority(p Priority) TaskOption {
	return func(t *Task) { t.Priority = p }
}

// WithMaxRetries caps retries for this task, overriding the dispatcher
// default
func WithMaxRetries(n int) TaskOption {
	return func(t *Task) { t.MaxRetries = n }
}

// WithTimeout bounds each execution attempt
func WithTimeout(d time.Duration) TaskOption {
	return func(t *Task) { t.Timeout = d }
}

// WithDelay postpones the task's first eligibility in a delayed queue
func WithDelay(d time.Duration) TaskOption {
	return func(t *Task) { t.Delay = d }
}

// WithMetadata attaches a metadata entry
func WithMetadata(key, value string) TaskOption {
	return func(t *Task) {
		if t.Metadata == nil {
			t.Metadata = make(map[string]string)
		}
		t.Metadata[key] = value
	}
}

// NewTask creates a task wrapping fn
func NewTask(name string, fn Fn, opts ...TaskOption) *Task {
	t := &Task{
		ID:         uuid.New().String(),
		Name:       name,
		Fn:         fn,
		Priority:   PriorityNormal,
		Status:     StatusPending,
		MaxRetries: -1,
		CreatedAt:  time.Now(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// maxRetries resolves the effective retry cap for the task
func (t *Task) maxRetries(dispatcherDefault int) int {
	if t.MaxRetries >= 0 {
		return t.MaxRetries
	}
	return dispatcherDefault
}

// timeout resolves the effective per-attempt timeout for the task
func (t *Task) timeout(dispatcherDefault time.Duration) time.Duration {
	if t.Timeout > 0 {
		return t.Timeout
	}
	return dispatcherDefault
}
