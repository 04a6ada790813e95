package resource

import (
	"fmt"

	appconfig "crawld/internal/pkg/config"
	"crawld/internal/pkg/dispatch"
	"crawld/internal/pkg/logger"

	redisv9 "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module exports the resource pool module for FX
var Module = fx.Module("resource",
	fx.Provide(NewProvider),
)

// Params holds the dependencies for creating a pool
type Params struct {
	fx.In

	Config *appconfig.Config
	Logger *logger.Logger
	Redis  *redisv9.Client `optional:"true"`
}

// NewProvider builds the configured pool as a dispatch.ResourceProvider
func NewProvider(p Params) (dispatch.ResourceProvider, error) {
	cfg := Config{
		Kind:       p.Config.Pool.Kind,
		Quarantine: p.Config.Pool.Quarantine,
		KeyPrefix:  p.Config.Pool.KeyPrefix,
	}
	if cfg.Quarantine <= 0 {
		cfg.Quarantine = DefaultConfig().Quarantine
	}

	switch cfg.Kind {
	case "", "memory":
		p.Logger.Info("Resource pool initialized", zap.String("kind", "memory"))
		return NewMemoryPool(cfg.Quarantine), nil
	case "redis":
		if p.Redis == nil {
			return nil, fmt.Errorf("redis pool requires a redis client")
		}
		p.Logger.Info("Resource pool initialized",
			zap.String("kind", "redis"),
			zap.String("key_prefix", cfg.KeyPrefix),
		)
		return NewRedisPool(p.Redis, cfg.KeyPrefix, cfg.Quarantine), nil
	default:
		return nil, fmt.Errorf("invalid pool kind: %s", cfg.Kind)
	}
}
