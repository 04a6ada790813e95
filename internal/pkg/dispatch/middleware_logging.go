package dispatch

import (
	"context"
	"time"

	"crawld/internal/pkg/logger"

	"go.uber.org/zap"
)

// LoggingMiddleware creates a middleware that logs task execution
func LoggingMiddleware(log *logger.Logger) Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, task *Task) (any, error) {
			taskLog := log.With(
				zap.String("task_id", task.ID),
				zap.String("task_name", task.Name),
				zap.Int("retries", task.Retries),
			)

			taskLog.Debug("Task attempt started")
			start := time.Now()

			value, err := next.Process(ctx, task)

			taskLog = taskLog.With(zap.Duration("duration", time.Since(start)))

			if err != nil {
				taskLog.Warn("Task attempt failed", zap.Error(err))
			} else {
				taskLog.Debug("Task attempt completed")
			}

			return value, err
		})
	}
}
