package scheduler

import (
	"context"
	"fmt"

	redisv9 "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"crawld/internal/pkg/config"
	"crawld/internal/pkg/logctx"
	"crawld/internal/pkg/logger"
)

// Module provides scheduler dependencies for fx.
var Module = fx.Module("scheduler",
	fx.Provide(
		NewSchedulerConfig,
		NewBackendFromConfig,
		NewSchedulerFromConfig,
	),
)

// NewSchedulerConfig maps the application cron section onto the scheduler.
func NewSchedulerConfig(cfg *config.Config) *SchedulerConfig {
	sc := DefaultSchedulerConfig()
	if cfg.Cron.TickInterval > 0 {
		sc.TickInterval = cfg.Cron.TickInterval
	}
	if cfg.Cron.MaxConcurrent > 0 {
		sc.MaxConcurrent = cfg.Cron.MaxConcurrent
	}
	return sc
}

// BackendParams holds dependencies for creating a backend.
type BackendParams struct {
	fx.In

	Config      *SchedulerConfig
	RedisClient *redisv9.Client `optional:"true"`
}

// NewBackendFromConfig creates a backend, preferring Redis when a shared
// client is available so that job state survives restarts.
func NewBackendFromConfig(params BackendParams) (BackendProvider, error) {
	if err := params.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if params.RedisClient != nil {
		return NewRedisBackend(params.RedisClient), nil
	}
	return NewMemoryBackend(), nil
}

// SchedulerParams holds dependencies for creating a scheduler.
type SchedulerParams struct {
	fx.In

	Config  *SchedulerConfig
	Backend BackendProvider
	Logger  *logger.Logger   `optional:"true"`
	Metrics MetricsCollector `optional:"true"`
}

// NewSchedulerFromConfig creates a new scheduler from configuration.
func NewSchedulerFromConfig(params SchedulerParams) (Scheduler, error) {
	var log Logger = &NoOpLogger{}
	if params.Logger != nil {
		log = &zapAdapter{log: params.Logger}
	}

	metrics := params.Metrics
	if metrics == nil {
		metrics = &NoOpMetrics{}
	}

	executor := NewDefaultJobExecutor(log, metrics)
	lock := NewDistributedLock(params.Backend, log, metrics).
		WithLockTTL(params.Config.LockTTL).
		WithRefreshInterval(params.Config.LockRefreshInterval)

	config := &Config{
		TickInterval:  params.Config.TickInterval,
		MaxConcurrent: params.Config.MaxConcurrent,
	}

	return NewScheduler(params.Backend, executor, lock, log, metrics, config), nil
}

// zapAdapter bridges the application logger onto the scheduler Logger
// interface.
type zapAdapter struct {
	log *logger.Logger
}

func (a *zapAdapter) fields(ctx context.Context, fields map[string]interface{}) []zap.Field {
	out := make([]zap.Field, 0, len(fields)+1)
	for k, v := range fields {
		out = append(out, zap.Any(k, v))
	}
	if id, ok := logctx.CorrelationID(ctx); ok {
		out = append(out, zap.String("correlation_id", id))
	}
	return out
}

func (a *zapAdapter) Debug(ctx context.Context, msg string, fields map[string]interface{}) {
	a.log.Debug(msg, a.fields(ctx, fields)...)
}

func (a *zapAdapter) Info(ctx context.Context, msg string, fields map[string]interface{}) {
	a.log.Info(msg, a.fields(ctx, fields)...)
}

func (a *zapAdapter) Warn(ctx context.Context, msg string, fields map[string]interface{}) {
	a.log.Warn(msg, a.fields(ctx, fields)...)
}

func (a *zapAdapter) Error(ctx context.Context, msg string, fields map[string]interface{}) {
	a.log.Error(msg, a.fields(ctx, fields)...)
}
