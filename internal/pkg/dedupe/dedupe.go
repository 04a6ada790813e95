// Package dedupe prevents the same fetch from being executed twice
// within a TTL window: concurrent duplicates are rejected while the
// first is in flight, later duplicates get the cached result.
package dedupe

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrInFlight indicates another worker is currently fetching the key
	ErrInFlight = errors.New("dedupe: fetch already in flight")

	// ErrStoreFailure indicates a store operation failed
	ErrStoreFailure = errors.New("dedupe: store operation failed")

	// ErrEncodingFailure indicates result encoding or decoding failed
	ErrEncodingFailure = errors.New("dedupe: result encoding failed")

	// ErrPreviouslyFailed indicates the fetch failed within the TTL window
	ErrPreviouslyFailed = errors.New("dedupe: fetch previously failed")
)

// State is the lifecycle state of a dedupe entry
type State string

const (
	StateInFlight State = "in_flight"
	StateDone     State = "done"
	StateFailed   State = "failed"
)

// Entry records one deduplicated fetch
type Entry struct {
	Key       string
	State     State
	Result    []byte
	ErrorMsg  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store persists dedupe entries
type Store interface {
	// Load retrieves an entry by key, nil when absent or expired
	Load(ctx context.Context, key string) (*Entry, error)

	// TryBegin atomically claims the key for the calling worker. It
	// returns false when another worker already holds it.
	TryBegin(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// SaveResult records a completed fetch
	SaveResult(ctx context.Context, key string, result []byte, ttl time.Duration) error

	// SaveError records a failed fetch
	SaveError(ctx context.Context, key string, errMsg string, ttl time.Duration) error
}

// Codec encodes fetch results for storage
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}
