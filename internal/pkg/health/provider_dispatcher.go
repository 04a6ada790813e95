package health

import (
	"context"
	"time"
)

// DispatcherChecker exposes the dispatcher state the health check reads
type DispatcherChecker interface {
	// Active returns the number of tasks currently executing
	Active() int
	// Concurrency returns the configured concurrency bound
	Concurrency() int
}

// DispatcherProviderConfig configures the dispatcher health provider
type DispatcherProviderConfig struct {
	// Name is the name of the provider
	Name string
	// Checker is the dispatcher being observed
	Checker DispatcherChecker
	// DegradedUtilization marks the dispatcher DEGRADED when the
	// active/concurrency ratio meets or exceeds it. Zero means 1.0
	// (degraded only at full saturation).
	DegradedUtilization float64
}

// DispatcherProvider reports dispatcher saturation as a health check
type DispatcherProvider struct {
	config DispatcherProviderConfig
}

// NewDispatcherProvider creates a new dispatcher health provider
func NewDispatcherProvider(config DispatcherProviderConfig) *DispatcherProvider {
	if config.Name == "" {
		config.Name = "dispatcher"
	}
	if config.DegradedUtilization <= 0 || config.DegradedUtilization > 1 {
		config.DegradedUtilization = 1.0
	}
	return &DispatcherProvider{config: config}
}

// Name returns the name of the provider
func (p *DispatcherProvider) Name() string {
	return p.config.Name
}

// Check reports UP while slots are free and DEGRADED at saturation
func (p *DispatcherProvider) Check(ctx context.Context) HealthCheckResult {
	result := HealthCheckResult{
		Name:      p.config.Name,
		CheckedAt: time.Now(),
		Details:   make(map[string]interface{}),
	}

	if p.config.Checker == nil {
		result.Status = StatusDown
		result.Error = "no dispatcher configured"
		return result
	}

	active := p.config.Checker.Active()
	concurrency := p.config.Checker.Concurrency()
	result.Details["active"] = active
	result.Details["concurrency"] = concurrency

	if concurrency > 0 && float64(active)/float64(concurrency) >= p.config.DegradedUtilization {
		result.Status = StatusDegraded
		result.Error = "all concurrency slots busy"
		return result
	}

	result.Status = StatusUp
	return result
}
