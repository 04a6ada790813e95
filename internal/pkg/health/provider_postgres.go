package health

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PostgresProvider pings the database holding batch history and
// reports connection pool pressure.
type PostgresProvider struct {
	name string
	db   *sql.DB
}

// NewPostgresProvider creates a new PostgreSQL health provider
func NewPostgresProvider(name string, db *sql.DB) *PostgresProvider {
	if name == "" {
		name = "postgres"
	}
	return &PostgresProvider{
		name: name,
		db:   db,
	}
}

// Name returns the provider name
func (p *PostgresProvider) Name() string {
	return p.name
}

// Check pings the database. Slow pings or an exhausted pool degrade;
// a failed ping is DOWN.
func (p *PostgresProvider) Check(ctx context.Context) HealthCheckResult {
	result := HealthCheckResult{
		Name:      p.name,
		CheckedAt: time.Now(),
		Details:   make(map[string]interface{}),
	}

	start := time.Now()
	err := p.db.PingContext(ctx)
	latency := time.Since(start)

	result.Details["latency_ms"] = latency.Milliseconds()

	if err != nil {
		result.Status = StatusDown
		result.Error = fmt.Sprintf("failed to ping database: %v", err)
		result.Details["error"] = err.Error()
		return result
	}

	stats := p.db.Stats()
	result.Details["open_connections"] = stats.OpenConnections
	result.Details["in_use"] = stats.InUse
	result.Details["idle"] = stats.Idle
	result.Details["wait_count"] = stats.WaitCount
	result.Details["wait_duration_ms"] = stats.WaitDuration.Milliseconds()

	if latency.Milliseconds() > 100 {
		result.Status = StatusDegraded
		result.Details["message"] = "high latency detected"
		return result
	}

	if stats.OpenConnections > 0 && stats.InUse == stats.OpenConnections && stats.WaitCount > 0 {
		result.Status = StatusDegraded
		result.Details["message"] = "connection pool exhausted"
		return result
	}

	result.Status = StatusUp
	return result
}
