package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"crawld/internal/pkg/logger"

	"go.uber.org/zap"
)

// ErrTimeout marks attempts that did not complete within their allotted
// time. Timed-out attempts are eligible for retry.
var ErrTimeout = errors.New("timeout")

// TimeoutMiddleware creates a middleware that enforces per-attempt
// timeouts. Tasks without their own timeout fall back to defaultTimeout;
// when that is zero too, no timeout applies.
func TimeoutMiddleware(defaultTimeout time.Duration, log *logger.Logger) Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, task *Task) (any, error) {
			timeout := task.timeout(defaultTimeout)
			if timeout <= 0 {
				return next.Process(ctx, task)
			}

			timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			type attempt struct {
				value any
				err   error
			}

			// Buffered so a late finisher does not leak this goroutine.
			// The operation itself keeps running until it observes ctx.
			done := make(chan attempt, 1)
			go func() {
				value, err := next.Process(timeoutCtx, task)
				done <- attempt{value, err}
			}()

			select {
			case a := <-done:
				return a.value, a.err
			case <-timeoutCtx.Done():
				if errors.Is(timeoutCtx.Err(), context.DeadlineExceeded) {
					log.Warn("Task attempt timed out",
						zap.String("task_id", task.ID),
						zap.String("task_name", task.Name),
						zap.Duration("timeout", timeout),
					)
					return nil, fmt.Errorf("%w after %s", ErrTimeout, timeout)
				}
				return nil, timeoutCtx.Err()
			}
		})
	}
}
