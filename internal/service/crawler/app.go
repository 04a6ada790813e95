package crawler

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"

	"crawld/internal/pkg/config"
	"crawld/internal/pkg/database"
	"crawld/internal/pkg/dedupe"
	"crawld/internal/pkg/dispatch"
	"crawld/internal/pkg/health"
	"crawld/internal/pkg/history"
	"crawld/internal/pkg/logctx"
	"crawld/internal/pkg/logger"
	"crawld/internal/pkg/rate"
	"crawld/internal/pkg/redis"
	"crawld/internal/pkg/redis/dlq"
	"crawld/internal/pkg/resource"
	"crawld/internal/pkg/scheduler"
	"crawld/internal/pkg/server"
)

// App provides all crawler service dependencies including infrastructure
var App = fx.Options(
	// Infrastructure modules
	config.Module,
	logger.Module,
	logctx.Module,
	redis.Module,
	database.Module,
	rate.Module,
	resource.Module,
	dedupe.Module,
	dispatch.Module,
	history.Module,
	dlq.Module,
	scheduler.Module,
	health.Module,
	server.Module,

	// Crawler service components
	fx.Provide(
		NewService,
		NewHandler,
	),

	// Register routes and start the recurring batch scheduler
	fx.Invoke(registerRoutes),
	fx.Invoke(registerSchedulerHooks),
)

// registerRoutes registers crawler routes on the Echo server, behind a
// per-client rate limit so a misbehaving caller cannot monopolize the
// dispatcher.
func registerRoutes(srv *server.Server, handler *Handler) error {
	apiLimiter, err := rate.New(&rate.Config{
		Strategy: rate.StrategyTokenBucket,
		Rate:     60,
		Burst:    120,
		Interval: time.Minute,
		TTL:      10 * time.Minute,
	}, rate.NewMemoryStorage())
	if err != nil {
		return err
	}

	e := srv.GetEcho()
	e.Use(echo.WrapMiddleware(rate.NewHTTPMiddleware(apiLimiter).Middleware))
	RegisterRoutes(e, handler)
	return nil
}

// registerSchedulerHooks ties the scheduler to the fx lifecycle
func registerSchedulerHooks(lc fx.Lifecycle, sched scheduler.Scheduler) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return sched.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			return sched.Stop(ctx)
		},
	})
}
