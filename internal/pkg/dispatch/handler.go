package dispatch

import (
	"context"
)

// Handler defines the interface for executing tasks
type Handler interface {
	// Process executes the task logic and returns its value
	Process(ctx context.Context, task *Task) (any, error)
}

// HandlerFunc is a function adapter that implements the Handler interface
type HandlerFunc func(ctx context.Context, task *Task) (any, error)

// Process implements the Handler interface
func (f HandlerFunc) Process(ctx context.Context, task *Task) (any, error) {
	return f(ctx, task)
}
