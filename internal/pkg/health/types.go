package health

import (
	"context"
	"time"
)

// HealthStatus is the reported state of one dependency or of the
// service as a whole.
type HealthStatus string

const (
	StatusUp       HealthStatus = "UP"
	StatusDown     HealthStatus = "DOWN"
	StatusDegraded HealthStatus = "DEGRADED"
)

// HealthCheckResult is the outcome of a single provider check.
type HealthCheckResult struct {
	Name      string                 `json:"name"`
	Status    HealthStatus           `json:"status"`
	Details   map[string]interface{} `json:"details,omitempty"`
	CheckedAt time.Time              `json:"checked_at"`
	Error     string                 `json:"error,omitempty"`
}

// HealthProvider checks one dependency: redis, postgres, the
// dispatcher's saturation, or an external target site.
type HealthProvider interface {
	Name() string
	Check(ctx context.Context) HealthCheckResult
}

// AggregationStrategy decides the overall status from individual
// provider results.
type AggregationStrategy string

const (
	// StrategyAll requires every provider UP.
	StrategyAll AggregationStrategy = "ALL"
	// StrategyAny requires at least one provider UP.
	StrategyAny AggregationStrategy = "ANY"
	// StrategyCritical requires the named critical providers UP;
	// failures elsewhere only degrade.
	StrategyCritical AggregationStrategy = "CRITICAL"
)

// HealthResponse is the JSON body of the health endpoints.
type HealthResponse struct {
	Status    HealthStatus           `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    []HealthCheckResult    `json:"checks"`
	Details   map[string]interface{} `json:"details,omitempty"`
}
