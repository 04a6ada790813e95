package dedupe

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Guard deduplicates fetches by key
type Guard struct {
	store Store
	codec Codec
}

// jsonCodec is the default Codec
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// NewJSONCodec returns the default JSON codec
func NewJSONCodec() Codec {
	return jsonCodec{}
}

// NewGuard creates a Guard over the given store
func NewGuard(store Store, codec Codec) *Guard {
	if codec == nil {
		codec = jsonCodec{}
	}
	return &Guard{store: store, codec: codec}
}

// Do runs fn at most once per key within ttl. A duplicate call gets the
// cached result when the first finished, ErrInFlight while it is still
// running, and ErrPreviouslyFailed when it failed.
func (g *Guard) Do(
	ctx context.Context,
	key string,
	ttl time.Duration,
	fn func(ctx context.Context) (any, error),
) (any, error) {
	entry, err := g.store.Load(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: load: %v", ErrStoreFailure, err)
	}

	if entry != nil {
		switch entry.State {
		case StateDone:
			var result any
			if err := g.codec.Unmarshal(entry.Result, &result); err != nil {
				return nil, fmt.Errorf("%w: decode cached result: %v", ErrEncodingFailure, err)
			}
			return result, nil
		case StateInFlight:
			return nil, ErrInFlight
		case StateFailed:
			return nil, fmt.Errorf("%w: %s", ErrPreviouslyFailed, entry.ErrorMsg)
		}
	}

	claimed, err := g.store.TryBegin(ctx, key, ttl)
	if err != nil {
		return nil, fmt.Errorf("%w: claim: %v", ErrStoreFailure, err)
	}
	if !claimed {
		// Another worker won the race between Load and TryBegin
		return nil, ErrInFlight
	}

	result, fetchErr := fn(ctx)
	if fetchErr != nil {
		if saveErr := g.store.SaveError(ctx, key, fetchErr.Error(), ttl); saveErr != nil {
			return nil, fmt.Errorf("%w: save error state: %v (fetch error: %v)", ErrStoreFailure, saveErr, fetchErr)
		}
		return nil, fetchErr
	}

	data, err := g.codec.Marshal(result)
	if err != nil {
		if saveErr := g.store.SaveError(ctx, key, fmt.Sprintf("encoding failed: %v", err), ttl); saveErr != nil {
			return nil, fmt.Errorf("%w: %v (save error: %v)", ErrEncodingFailure, err, saveErr)
		}
		return nil, fmt.Errorf("%w: %v", ErrEncodingFailure, err)
	}

	if err := g.store.SaveResult(ctx, key, data, ttl); err != nil {
		return nil, fmt.Errorf("%w: save result: %v", ErrStoreFailure, err)
	}
	return result, nil
}

// DoURL is Do keyed by a canonicalized URL
func (g *Guard) DoURL(
	ctx context.Context,
	rawURL string,
	ttl time.Duration,
	fn func(ctx context.Context) (any, error),
) (any, error) {
	key, err := URLKey(rawURL)
	if err != nil {
		return nil, err
	}
	return g.Do(ctx, key, ttl, fn)
}

// DoTyped wraps Do with a typed result. Cached results round-trip
// through the codec so the concrete type is preserved.
func DoTyped[T any](
	g *Guard,
	ctx context.Context,
	key string,
	ttl time.Duration,
	fn func(ctx context.Context) (T, error),
) (T, error) {
	var zero T

	entry, err := g.store.Load(ctx, key)
	if err != nil {
		return zero, fmt.Errorf("%w: load: %v", ErrStoreFailure, err)
	}

	if entry != nil {
		switch entry.State {
		case StateDone:
			var result T
			if err := g.codec.Unmarshal(entry.Result, &result); err != nil {
				return zero, fmt.Errorf("%w: decode cached result: %v", ErrEncodingFailure, err)
			}
			return result, nil
		case StateInFlight:
			return zero, ErrInFlight
		case StateFailed:
			return zero, fmt.Errorf("%w: %s", ErrPreviouslyFailed, entry.ErrorMsg)
		}
	}

	result, err := g.Do(ctx, key, ttl, func(ctx context.Context) (any, error) {
		return fn(ctx)
	})
	if err != nil {
		return zero, err
	}

	typed, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("%w: unexpected result type %T", ErrEncodingFailure, result)
	}
	return typed, nil
}
