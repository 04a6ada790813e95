package logger

import "go.uber.org/fx"

// Module provides the zap-backed logger to the fx graph
var Module = fx.Module("logger",
	fx.Provide(NewLogger),
)
