package history

import (
	appconfig "crawld/internal/pkg/config"
	"crawld/internal/pkg/database"
	"crawld/internal/pkg/logger"

	"go.uber.org/fx"
)

// Module exports the history module for FX
var Module = fx.Module("history",
	fx.Provide(newRecorder),
)

// Params holds the dependencies for creating a recorder
type Params struct {
	fx.In

	Config   *appconfig.Config
	Logger   *logger.Logger
	Database *database.Database `optional:"true"`
}

func newRecorder(p Params) *Recorder {
	return NewRecorder(p.Database, p.Logger, p.Config.History.Enabled)
}
