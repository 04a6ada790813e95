package dispatch

import (
	appconfig "crawld/internal/pkg/config"
	"crawld/internal/pkg/logger"
	"crawld/internal/pkg/queue"
	"crawld/internal/pkg/rate"

	"go.uber.org/fx"
)

// Module exports the dispatch module for FX
var Module = fx.Module("dispatch",
	fx.Provide(
		NewDispatchConfig,
		NewRegistry,
		NewMetricsCollector,
		NewDispatcher,
	),
)

// NewDispatchConfig derives dispatcher settings from the application
// configuration
func NewDispatchConfig(cfg *appconfig.Config) Config {
	return Config{
		Concurrency:    cfg.Dispatch.Concurrency,
		RatePerSec:     cfg.Dispatch.RatePerSec,
		MaxRetries:     cfg.Dispatch.MaxRetries,
		RetryBaseDelay: cfg.Dispatch.RetryBaseDelay,
		RetryMaxDelay:  cfg.Dispatch.RetryMaxDelay,
		DefaultTimeout: cfg.Dispatch.DefaultTimeout,
		Queue:          queue.Kind(cfg.Dispatch.Queue),
		PollInterval:   cfg.Dispatch.PollInterval,
	}
}

// Params holds the dependencies for creating a dispatcher
type Params struct {
	fx.In

	Config   Config
	Logger   *logger.Logger
	Registry *Registry
	Metrics  *MetricsCollector
	Limiter  rate.Limiter     `optional:"true"`
	Provider ResourceProvider `optional:"true"`
}

// NewDispatcher creates the application dispatcher with the standard
// middleware chain
func NewDispatcher(p Params) (*Dispatcher, error) {
	opts := []Option{
		WithLogger(p.Logger),
		WithRegistry(p.Registry),
		WithMiddleware(
			TracingMiddleware(),
			LoggingMiddleware(p.Logger),
			MetricsMiddleware(p.Metrics),
		),
	}
	if p.Limiter != nil {
		opts = append(opts, WithRateLimiter(p.Limiter))
	}
	if p.Provider != nil {
		opts = append(opts, WithResourceProvider(p.Provider))
	}
	return New(p.Config, opts...)
}
