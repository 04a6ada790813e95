package rate

import (
	"context"
	"fmt"
	"time"

	appconfig "crawld/internal/pkg/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

// Module exports the rate limiter module for FX
var Module = fx.Module("rate",
	fx.Provide(
		NewLimiterConfig,
		NewLimiterFromConfig,
		NewStorageFromConfig,
	),
	fx.Invoke(registerHooks),
)

// NewLimiterConfig derives a LimiterConfig from the application config
func NewLimiterConfig(cfg *appconfig.Config) *LimiterConfig {
	lc := &LimiterConfig{
		Strategy:  cfg.Rate.Strategy,
		Rate:      cfg.Rate.Rate,
		Burst:     cfg.Rate.Burst,
		Interval:  cfg.Rate.Interval,
		TTL:       cfg.Rate.TTL,
		Storage:   cfg.Rate.Storage,
		KeyPrefix: "crawld:rate",
	}
	if lc.Interval <= 0 {
		lc.Interval = time.Second
	}
	return lc
}

// LimiterParams holds dependencies for creating a limiter
type LimiterParams struct {
	fx.In

	Config  *LimiterConfig
	Storage Storage
	Logger  Logger           `optional:"true"`
	Metrics MetricsCollector `optional:"true"`
}

// NewLimiterFromConfig creates a new limiter from configuration
func NewLimiterFromConfig(params LimiterParams) (Limiter, error) {
	if err := params.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rate limiter config: %w", err)
	}

	opts := []Option{}

	if params.Logger != nil {
		opts = append(opts, WithLogger(params.Logger))
	}

	if params.Metrics != nil {
		opts = append(opts, WithMetrics(params.Metrics))
	}

	return New(params.Config.ToConfig(), params.Storage, opts...)
}

// StorageParams holds dependencies for creating storage
type StorageParams struct {
	fx.In

	Config      *LimiterConfig
	RedisClient *redis.Client `optional:"true"`
}

// NewStorageFromConfig creates a new storage from configuration.
// The redis backend reuses the shared application client.
func NewStorageFromConfig(params StorageParams) (Storage, error) {
	if err := params.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rate limiter config: %w", err)
	}

	switch params.Config.Storage {
	case "memory":
		return NewMemoryStorage(), nil

	case "redis":
		if params.RedisClient == nil {
			return nil, fmt.Errorf("redis storage requested but no redis client available")
		}
		return NewRedisStorage(params.RedisClient, params.Config.KeyPrefix), nil

	default:
		return nil, fmt.Errorf("unsupported storage type: %s", params.Config.Storage)
	}
}

// hookParams holds dependencies for lifecycle registration
type hookParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Limiter   Limiter
	Logger    Logger `optional:"true"`
}

// registerHooks registers lifecycle hooks
func registerHooks(p hookParams) {
	logger := p.Logger
	if logger == nil {
		logger = &NoOpLogger{}
	}

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("rate limiter module started")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("closing rate limiter")
			return p.Limiter.Close()
		},
	})
}
