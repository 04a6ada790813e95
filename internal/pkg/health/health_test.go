package health_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crawld/internal/pkg/health"
)

// stubProvider reports a fixed status
type stubProvider struct {
	name   string
	status health.HealthStatus
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Check(ctx context.Context) health.HealthCheckResult {
	status := s.status
	if status == "" {
		status = health.StatusUp
	}
	return health.HealthCheckResult{
		Name:      s.name,
		Status:    status,
		CheckedAt: time.Now(),
	}
}

// stubDispatcher reports fixed saturation numbers
type stubDispatcher struct {
	active      int
	concurrency int
}

func (s *stubDispatcher) Active() int      { return s.active }
func (s *stubDispatcher) Concurrency() int { return s.concurrency }

func TestCheckAggregatesProviders(t *testing.T) {
	service := health.NewService(health.DefaultServiceConfig())
	service.RegisterProvider(&stubProvider{name: "redis"})
	service.RegisterProvider(&stubProvider{name: "database"})

	results, status := service.Check(context.Background())

	assert.Equal(t, health.StatusUp, status)
	assert.Len(t, results, 2)
}

func TestAggregationStrategies(t *testing.T) {
	all := health.NewService(health.ServiceConfig{AggregationStrategy: health.StrategyAll})
	all.RegisterProvider(&stubProvider{name: "redis", status: health.StatusUp})
	all.RegisterProvider(&stubProvider{name: "database", status: health.StatusDegraded})
	_, status := all.Check(context.Background())
	assert.Equal(t, health.StatusDegraded, status)

	any := health.NewService(health.ServiceConfig{AggregationStrategy: health.StrategyAny})
	any.RegisterProvider(&stubProvider{name: "redis", status: health.StatusUp})
	any.RegisterProvider(&stubProvider{name: "database", status: health.StatusDown})
	_, status = any.Check(context.Background())
	assert.Equal(t, health.StatusUp, status)

	critical := health.NewService(health.ServiceConfig{
		AggregationStrategy: health.StrategyCritical,
		CriticalProviders:   []string{"dispatcher"},
	})
	critical.RegisterProvider(&stubProvider{name: "dispatcher", status: health.StatusUp})
	critical.RegisterProvider(&stubProvider{name: "database", status: health.StatusDown})
	_, status = critical.Check(context.Background())
	assert.Equal(t, health.StatusDegraded, status)
}

func TestDispatcherProviderSaturation(t *testing.T) {
	provider := health.NewDispatcherProvider(health.DispatcherProviderConfig{
		Checker: &stubDispatcher{active: 2, concurrency: 8},
	})

	result := provider.Check(context.Background())
	assert.Equal(t, health.StatusUp, result.Status)
	assert.Equal(t, 2, result.Details["active"])
	assert.Equal(t, 8, result.Details["concurrency"])

	saturated := health.NewDispatcherProvider(health.DispatcherProviderConfig{
		Checker: &stubDispatcher{active: 8, concurrency: 8},
	})
	result = saturated.Check(context.Background())
	assert.Equal(t, health.StatusDegraded, result.Status)

	none := health.NewDispatcherProvider(health.DispatcherProviderConfig{Name: "dispatcher"})
	result = none.Check(context.Background())
	assert.Equal(t, health.StatusDown, result.Status)
}

func TestDispatcherProviderDegradedThreshold(t *testing.T) {
	provider := health.NewDispatcherProvider(health.DispatcherProviderConfig{
		Checker:             &stubDispatcher{active: 6, concurrency: 8},
		DegradedUtilization: 0.75,
	})

	result := provider.Check(context.Background())
	assert.Equal(t, health.StatusDegraded, result.Status)
}

func TestHTTPProviderChecksTarget(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	provider := health.NewHTTPProvider(health.HTTPProviderConfig{
		Name:           "target-site",
		URL:            srv.URL,
		Method:         http.MethodGet,
		ExpectedStatus: http.StatusOK,
		Timeout:        5 * time.Second,
	})

	result := provider.Check(context.Background())
	assert.Equal(t, health.StatusUp, result.Status)
	assert.NotNil(t, result.Details["latency_ms"])

	srv.Close()
	result = provider.Check(context.Background())
	assert.Equal(t, health.StatusDown, result.Status)
}

func TestHTTPHandlerReportsStatus(t *testing.T) {
	service := health.NewService(health.DefaultServiceConfig())
	service.RegisterProvider(&stubProvider{name: "redis"})

	handler := health.HTTPHandler(service)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestReadinessHandlerDownWhenProviderDown(t *testing.T) {
	service := health.NewService(health.DefaultServiceConfig())
	service.RegisterProvider(&stubProvider{name: "redis", status: health.StatusDown})

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	rec := httptest.NewRecorder()
	health.ReadinessHandler(service).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAsyncModeServesCachedResults(t *testing.T) {
	service := health.NewService(health.ServiceConfig{
		AsyncMode:      true,
		CheckInterval:  20 * time.Millisecond,
		DefaultTimeout: time.Second,
	})
	defer service.Stop()

	service.RegisterProvider(&stubProvider{name: "redis"})

	require.Eventually(t, func() bool {
		results, status := service.GetCachedResults()
		return len(results) == 1 && status == health.StatusUp
	}, 2*time.Second, 10*time.Millisecond)
}
