package dedupe

import (
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

// Module provides the dedupe guard over redis storage
var Module = fx.Module("dedupe",
	fx.Provide(
		NewJSONCodec,
		provideStore,
		NewGuard,
	),
)

// MemoryModule provides the guard over in-process storage, for
// single-process runs and tests
var MemoryModule = fx.Module("dedupe-memory",
	fx.Provide(
		NewJSONCodec,
		NewMemoryStore,
		NewGuard,
	),
)

func provideStore(client *redis.Client) Store {
	return NewRedisStore(client, "crawld:dedupe")
}
