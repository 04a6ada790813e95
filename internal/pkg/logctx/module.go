// Package logctx carries the correlation id through the context so
// dispatch attempts and scheduler occurrences log under one id.
package logctx

import (
	"context"

	"go.uber.org/fx"
)

type correlationKeyType struct{}

var correlationKey = correlationKeyType{}

// Module placeholder (helpers only, no providers)
var Module = fx.Module("logctx")

// WithCorrelationID returns a context carrying the given id.
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, correlationKey, correlationID)
}

// CorrelationID returns the id stored in ctx, if any.
func CorrelationID(ctx context.Context) (string, bool) {
	v := ctx.Value(correlationKey)
	if v == nil {
		return "", false
	}
	if s, ok := v.(string); ok {
		return s, true
	}
	return "", false
}
