package scheduler

import "context"

// Logger is the minimal logging surface the scheduler needs. The ctx
// lets adapters pull request-scoped values such as correlation ids.
type Logger interface {
	Debug(ctx context.Context, msg string, fields map[string]interface{})
	Info(ctx context.Context, msg string, fields map[string]interface{})
	Warn(ctx context.Context, msg string, fields map[string]interface{})
	Error(ctx context.Context, msg string, fields map[string]interface{})
}

// NoOpLogger discards all log output.
type NoOpLogger struct{}

func (n *NoOpLogger) Debug(ctx context.Context, msg string, fields map[string]interface{}) {}
func (n *NoOpLogger) Info(ctx context.Context, msg string, fields map[string]interface{})  {}
func (n *NoOpLogger) Warn(ctx context.Context, msg string, fields map[string]interface{})  {}
func (n *NoOpLogger) Error(ctx context.Context, msg string, fields map[string]interface{}) {}
