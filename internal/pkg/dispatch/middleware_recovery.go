package dispatch

import (
	"context"
	"fmt"
	"runtime/debug"

	"crawld/internal/pkg/logger"

	"go.uber.org/zap"
)

// RecoveryMiddleware creates a middleware that recovers from panics in
// task operations and converts them to task failures
func RecoveryMiddleware(log *logger.Logger) Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, task *Task) (value any, err error) {
			defer func() {
				if r := recover(); r != nil {
					stack := debug.Stack()

					log.Error("Task panicked",
						zap.String("task_id", task.ID),
						zap.String("task_name", task.Name),
						zap.Any("panic", r),
						zap.String("stack", string(stack)),
					)

					value = nil
					err = fmt.Errorf("panic recovered: %v", r)
				}
			}()

			return next.Process(ctx, task)
		})
	}
}
