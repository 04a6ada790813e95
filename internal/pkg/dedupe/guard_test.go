package dedupe

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuard_Do_CachesResult(t *testing.T) {
	guard := NewGuard(NewMemoryStore(), nil)

	ctx := context.Background()
	ttl := 5 * time.Minute

	callCount := 0
	fn := func(ctx context.Context) (any, error) {
		callCount++
		return "page body", nil
	}

	result1, err := guard.Do(ctx, "key-1", ttl, fn)
	require.NoError(t, err)
	assert.Equal(t, "page body", result1)
	assert.Equal(t, 1, callCount)

	// Duplicate within TTL returns the cached result
	result2, err := guard.Do(ctx, "key-1", ttl, fn)
	require.NoError(t, err)
	assert.Equal(t, "page body", result2)
	assert.Equal(t, 1, callCount)
}

func TestGuard_Do_FailureIsRemembered(t *testing.T) {
	guard := NewGuard(NewMemoryStore(), nil)
	ctx := context.Background()

	fetchErr := errors.New("fetch blocked")
	callCount := 0
	fn := func(ctx context.Context) (any, error) {
		callCount++
		return nil, fetchErr
	}

	_, err := guard.Do(ctx, "key-2", time.Minute, fn)
	require.ErrorIs(t, err, fetchErr)

	_, err = guard.Do(ctx, "key-2", time.Minute, fn)
	assert.ErrorIs(t, err, ErrPreviouslyFailed)
	assert.Equal(t, 1, callCount)
}

func TestGuard_Do_InFlight(t *testing.T) {
	store := NewMemoryStore()
	guard := NewGuard(store, nil)
	ctx := context.Background()

	claimed, err := store.TryBegin(ctx, "key-3", time.Minute)
	require.NoError(t, err)
	require.True(t, claimed)

	_, err = guard.Do(ctx, "key-3", time.Minute, func(ctx context.Context) (any, error) {
		return nil, nil
	})
	assert.ErrorIs(t, err, ErrInFlight)
}

func TestGuard_Do_TTLExpiry(t *testing.T) {
	guard := NewGuard(NewMemoryStore(), nil)
	ctx := context.Background()

	callCount := 0
	fn := func(ctx context.Context) (any, error) {
		callCount++
		return "v", nil
	}

	_, err := guard.Do(ctx, "key-4", 20*time.Millisecond, fn)
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)

	_, err = guard.Do(ctx, "key-4", 20*time.Millisecond, fn)
	require.NoError(t, err)
	assert.Equal(t, 2, callCount)
}

func TestDoTyped(t *testing.T) {
	guard := NewGuard(NewMemoryStore(), nil)
	ctx := context.Background()

	type page struct {
		URL   string `json:"url"`
		Title string `json:"title"`
	}

	callCount := 0
	fn := func(ctx context.Context) (page, error) {
		callCount++
		return page{URL: "https://example.com", Title: "Example"}, nil
	}

	p1, err := DoTyped(guard, ctx, "key-5", time.Minute, fn)
	require.NoError(t, err)
	assert.Equal(t, "Example", p1.Title)

	// Cached hit decodes back into the concrete type
	p2, err := DoTyped(guard, ctx, "key-5", time.Minute, fn)
	require.NoError(t, err)
	assert.Equal(t, p1, p2)
	assert.Equal(t, 1, callCount)
}

func TestURLKeyCanonicalizes(t *testing.T) {
	k1, err := URLKey("https://Example.COM/path?b=2&a=1#frag")
	require.NoError(t, err)
	k2, err := URLKey("https://example.com/path?a=1&b=2")
	require.NoError(t, err)
	assert.Equal(t, k1, k2)

	k3, err := URLKey("https://example.com/path?a=1&b=3")
	require.NoError(t, err)
	assert.NotEqual(t, k1, k3)
}

func TestHashKey(t *testing.T) {
	assert.Equal(t, HashKey("ns", []byte("x")), HashKey("ns", []byte("x")))
	assert.NotEqual(t, HashKey("ns", []byte("x")), HashKey("", []byte("x")))
}
