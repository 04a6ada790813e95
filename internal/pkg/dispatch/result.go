package dispatch

import (
	"time"
)

// Result is the outcome of a single task
type Result struct {
	// TaskID identifies the task this result belongs to
	TaskID string

	// Name is the task name, copied for convenience
	Name string

	// Status is the terminal status of the task
	Status Status

	// Value is what the task's operation returned on success
	Value any

	// Err is the error that made the task fail or be cancelled
	Err error

	// Attempts is how many attempts were started for the task. A task
	// cancelled before its next attempt began does not count that
	// attempt; an attempt aborted mid-run still counts.
	Attempts int

	// Duration is the wall-clock time of the final attempt
	Duration time.Duration

	// FinishedAt is when the task reached its terminal status
	FinishedAt time.Time
}

// BatchResult aggregates the outcome of one Run call. It is computed
// once when the batch completes and is read-only afterward.
type BatchResult struct {
	// Total is the number of tasks submitted. Retries do not add to it.
	Total int

	// Succeeded counts tasks that ended StatusSuccess
	Succeeded int

	// Failed counts tasks that ended StatusFailed
	Failed int

	// Cancelled counts tasks that ended StatusCancelled
	Cancelled int

	// Retried is the total number of retries consumed across the batch
	Retried int

	// Duration is the wall-clock time of the whole batch
	Duration time.Duration

	// Results holds one entry per submitted task, in submission order
	Results []*Result

	// Errs collects the errors of failed and cancelled tasks
	Errs []error
}

// Complete reports whether every task reached exactly one terminal
// classification
func (r *BatchResult) Complete() bool {
	return r.Succeeded+r.Failed+r.Cancelled == r.Total
}

// Progress is invoked after every terminal task completion with the
// number of completed tasks and the batch total. It runs on the
// orchestrator goroutine and must not block.
type Progress func(completed, total int)
