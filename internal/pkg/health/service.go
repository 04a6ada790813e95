package health

import (
	"context"
	"sync"
	"time"
)

// ServiceConfig configures the health service.
type ServiceConfig struct {
	// AsyncMode runs checks on a background ticker and serves cached
	// results, keeping probe latency flat.
	AsyncMode bool
	// CheckInterval is the background check cadence.
	CheckInterval time.Duration
	// DefaultTimeout bounds each individual provider check.
	DefaultTimeout time.Duration
	// AggregationStrategy decides the overall status.
	AggregationStrategy AggregationStrategy
	// CriticalProviders names providers that must be UP under
	// StrategyCritical.
	CriticalProviders []string
}

// DefaultServiceConfig returns synchronous checking with StrategyAll.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		AsyncMode:           false,
		CheckInterval:       30 * time.Second,
		DefaultTimeout:      5 * time.Second,
		AggregationStrategy: StrategyAll,
		CriticalProviders:   []string{},
	}
}

// Service runs registered providers and aggregates their results.
type Service struct {
	config    ServiceConfig
	providers []HealthProvider
	mu        sync.RWMutex

	cachedResults []HealthCheckResult
	cachedStatus  HealthStatus
	lastCheck     time.Time
	stopCh        chan struct{}
	wg            sync.WaitGroup
}

// NewService creates a health service. In async mode the background
// checker starts immediately.
func NewService(config ServiceConfig) *Service {
	if config.CheckInterval == 0 {
		config.CheckInterval = 30 * time.Second
	}
	if config.DefaultTimeout == 0 {
		config.DefaultTimeout = 5 * time.Second
	}
	if config.AggregationStrategy == "" {
		config.AggregationStrategy = StrategyAll
	}

	s := &Service{
		config:        config,
		providers:     make([]HealthProvider, 0),
		cachedResults: make([]HealthCheckResult, 0),
		cachedStatus:  StatusDown,
		stopCh:        make(chan struct{}),
	}

	if config.AsyncMode {
		s.startAsyncChecking()
	}

	return s
}

// RegisterProvider adds a provider to the check set.
func (s *Service) RegisterProvider(p HealthProvider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.providers = append(s.providers, p)
}

// Check runs every provider in parallel, each under DefaultTimeout,
// and returns the results with the aggregated status.
func (s *Service) Check(ctx context.Context) ([]HealthCheckResult, HealthStatus) {
	s.mu.RLock()
	providers := s.providers
	s.mu.RUnlock()

	if len(providers) == 0 {
		return []HealthCheckResult{}, StatusDown
	}

	results := make([]HealthCheckResult, len(providers))
	var wg sync.WaitGroup

	for i, provider := range providers {
		wg.Add(1)
		go func(idx int, p HealthProvider) {
			defer wg.Done()

			checkCtx, cancel := context.WithTimeout(ctx, s.config.DefaultTimeout)
			defer cancel()

			// The provider goroutine may outlive the timeout; the
			// buffered channel lets it finish without blocking.
			resultCh := make(chan HealthCheckResult, 1)
			go func() {
				resultCh <- p.Check(checkCtx)
			}()

			select {
			case result := <-resultCh:
				results[idx] = result
			case <-checkCtx.Done():
				results[idx] = HealthCheckResult{
					Name:      p.Name(),
					Status:    StatusDown,
					Details:   map[string]interface{}{"error": "timeout"},
					CheckedAt: time.Now(),
					Error:     "health check timeout",
				}
			}
		}(i, provider)
	}

	wg.Wait()

	overallStatus := s.aggregateStatus(results)

	if s.config.AsyncMode {
		s.mu.Lock()
		s.cachedResults = results
		s.cachedStatus = overallStatus
		s.lastCheck = time.Now()
		s.mu.Unlock()
	}

	return results, overallStatus
}

// GetCachedResults serves the last async check, or runs one
// synchronously when async mode is off.
func (s *Service) GetCachedResults() ([]HealthCheckResult, HealthStatus) {
	if !s.config.AsyncMode {
		return s.Check(context.Background())
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	resultsCopy := make([]HealthCheckResult, len(s.cachedResults))
	copy(resultsCopy, s.cachedResults)

	return resultsCopy, s.cachedStatus
}

func (s *Service) aggregateStatus(results []HealthCheckResult) HealthStatus {
	if len(results) == 0 {
		return StatusDown
	}

	switch s.config.AggregationStrategy {
	case StrategyAll:
		return s.aggregateAll(results)
	case StrategyAny:
		return s.aggregateAny(results)
	case StrategyCritical:
		return s.aggregateCritical(results)
	default:
		return s.aggregateAll(results)
	}
}

// aggregateAll: any DOWN means DOWN, any DEGRADED means DEGRADED.
func (s *Service) aggregateAll(results []HealthCheckResult) HealthStatus {
	downCount := 0
	degradedCount := 0

	for _, result := range results {
		switch result.Status {
		case StatusDown:
			downCount++
		case StatusDegraded:
			degradedCount++
		}
	}

	if downCount > 0 {
		return StatusDown
	}
	if degradedCount > 0 {
		return StatusDegraded
	}
	return StatusUp
}

// aggregateAny: one UP provider is enough.
func (s *Service) aggregateAny(results []HealthCheckResult) HealthStatus {
	for _, result := range results {
		if result.Status == StatusUp {
			return StatusUp
		}
	}

	for _, result := range results {
		if result.Status == StatusDegraded {
			return StatusDegraded
		}
	}

	return StatusDown
}

// aggregateCritical: critical provider state decides UP/DOWN;
// non-critical failures only degrade.
func (s *Service) aggregateCritical(results []HealthCheckResult) HealthStatus {
	criticalMap := make(map[string]bool)
	for _, name := range s.config.CriticalProviders {
		criticalMap[name] = true
	}

	criticalDown := false
	criticalDegraded := false
	hasNonCriticalDown := false

	for _, result := range results {
		if criticalMap[result.Name] {
			switch result.Status {
			case StatusDown:
				criticalDown = true
			case StatusDegraded:
				criticalDegraded = true
			}
		} else if result.Status == StatusDown {
			hasNonCriticalDown = true
		}
	}

	if criticalDown {
		return StatusDown
	}
	if criticalDegraded || hasNonCriticalDown {
		return StatusDegraded
	}
	return StatusUp
}

func (s *Service) startAsyncChecking() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.config.CheckInterval)
		defer ticker.Stop()

		// Populate the cache before the first tick.
		s.Check(context.Background())

		for {
			select {
			case <-ticker.C:
				s.Check(context.Background())
			case <-s.stopCh:
				return
			}
		}
	}()
}

// Stop halts the background checker in async mode.
func (s *Service) Stop() {
	if s.config.AsyncMode {
		close(s.stopCh)
		s.wg.Wait()
	}
}

// GetHealthResponse builds the JSON body for the health endpoints.
func (s *Service) GetHealthResponse(ctx context.Context) HealthResponse {
	var results []HealthCheckResult
	var status HealthStatus

	if s.config.AsyncMode {
		results, status = s.GetCachedResults()
	} else {
		results, status = s.Check(ctx)
	}

	return HealthResponse{
		Status:    status,
		Timestamp: time.Now(),
		Checks:    results,
		Details: map[string]interface{}{
			"total_checks": len(results),
			"strategy":     s.config.AggregationStrategy,
		},
	}
}
