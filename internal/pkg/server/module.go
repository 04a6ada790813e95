package server

import (
	"context"
	"time"

	"crawld/internal/pkg/config"
	"crawld/internal/pkg/health"
	"crawld/internal/pkg/logger"

	"go.uber.org/fx"
)

// Module exports the server module for FX
var Module = fx.Module("server",
	fx.Provide(newServer),
	fx.Invoke(registerHooks),
)

// Params holds the dependencies for creating the server
type Params struct {
	fx.In

	Config *config.Config
	Logger *logger.Logger
	Health *health.Service `optional:"true"`
}

func newServer(p Params) *Server {
	return NewEchoServer(p.Config, p.Logger, p.Health)
}

// registerHooks registers lifecycle hooks for server
func registerHooks(lc fx.Lifecycle, server *Server, log *logger.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			// Start server in a goroutine
			go func() {
				if err := server.Start(); err != nil {
					log.Error("Server error")
				}
			}()
			log.Info("Server module started")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			// Create shutdown context with timeout
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()

			log.Info("Stopping server")
			return server.Shutdown(shutdownCtx)
		},
	})
}
