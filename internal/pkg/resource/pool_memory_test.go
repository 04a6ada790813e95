package resource

import (
	"context"
	"testing"
	"time"

	"crawld/internal/pkg/dispatch"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryPoolRoundRobin(t *testing.T) {
	pool := NewMemoryPool(time.Minute)
	ctx := context.Background()

	require.NoError(t, pool.Add(dispatch.Resource{ID: "a", Value: "cookie-a"}))
	require.NoError(t, pool.Add(dispatch.Resource{ID: "b", Value: "cookie-b"}))
	require.NoError(t, pool.Add(dispatch.Resource{ID: "c", Value: "cookie-c"}))

	var ids []string
	for i := 0; i < 6; i++ {
		res, err := pool.Get(ctx)
		require.NoError(t, err)
		require.NotNil(t, res)
		ids = append(ids, res.ID)
	}
	assert.Equal(t, []string{"a", "b", "c", "a", "b", "c"}, ids)
}

func TestMemoryPoolDuplicateID(t *testing.T) {
	pool := NewMemoryPool(time.Minute)
	require.NoError(t, pool.Add(dispatch.Resource{ID: "a"}))
	assert.ErrorIs(t, pool.Add(dispatch.Resource{ID: "a"}), ErrDuplicateID)
}

func TestMemoryPoolEmpty(t *testing.T) {
	pool := NewMemoryPool(time.Minute)
	res, err := pool.Get(context.Background())
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestMemoryPoolQuarantine(t *testing.T) {
	pool := NewMemoryPool(50 * time.Millisecond)
	ctx := context.Background()

	require.NoError(t, pool.Add(dispatch.Resource{ID: "a"}))
	require.NoError(t, pool.Add(dispatch.Resource{ID: "b"}))

	require.NoError(t, pool.MarkFailed(ctx, "a"))
	assert.Equal(t, 1, pool.Available())

	// Only "b" rotates while "a" is quarantined
	for i := 0; i < 3; i++ {
		res, err := pool.Get(ctx)
		require.NoError(t, err)
		require.NotNil(t, res)
		assert.Equal(t, "b", res.ID)
	}

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 2, pool.Available())
}

func TestMemoryPoolAllQuarantined(t *testing.T) {
	pool := NewMemoryPool(time.Minute)
	ctx := context.Background()

	require.NoError(t, pool.Add(dispatch.Resource{ID: "a"}))
	require.NoError(t, pool.MarkFailed(ctx, "a"))

	res, err := pool.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestMemoryPoolRemove(t *testing.T) {
	pool := NewMemoryPool(time.Minute)
	ctx := context.Background()

	require.NoError(t, pool.Add(dispatch.Resource{ID: "a"}))
	require.NoError(t, pool.Add(dispatch.Resource{ID: "b"}))
	pool.Remove("a")

	assert.Equal(t, 1, pool.Len())
	res, err := pool.Get(ctx)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "b", res.ID)
}

func TestMemoryPoolMarkSuccessResetsFailures(t *testing.T) {
	pool := NewMemoryPool(time.Minute)
	ctx := context.Background()

	require.NoError(t, pool.Add(dispatch.Resource{ID: "a"}))
	require.NoError(t, pool.MarkFailed(ctx, "a"))
	require.NoError(t, pool.MarkSuccess(ctx, "a"))

	// Success clears the failure count but not an active quarantine
	assert.Equal(t, 0, pool.byID["a"].failures)
}
