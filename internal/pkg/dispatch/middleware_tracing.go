package dispatch

import (
	"context"

	"crawld/internal/pkg/logctx"
)

// TracingMiddleware creates a middleware that adds a correlation ID to
// the attempt context so downstream fetch code logs under it
func TracingMiddleware() Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, task *Task) (any, error) {
			correlationID := task.ID

			if cid, ok := task.Metadata["correlation_id"]; ok {
				correlationID = cid
			}

			ctx = logctx.WithCorrelationID(ctx, correlationID)

			return next.Process(ctx, task)
		})
	}
}
