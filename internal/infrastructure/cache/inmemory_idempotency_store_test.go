package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryIdempotencyStore_MarkProcessed(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	defer store.Close()

	ctx := context.Background()

	t.Run("marks new delivery as processed", func(t *testing.T) {
		newlyMarked, err := store.MarkProcessed(ctx, "delivery-1", time.Hour)
		require.NoError(t, err)
		assert.True(t, newlyMarked)
	})

	t.Run("returns false for redelivery", func(t *testing.T) {
		newlyMarked, err := store.MarkProcessed(ctx, "delivery-2", time.Hour)
		require.NoError(t, err)
		assert.True(t, newlyMarked)

		newlyMarked, err = store.MarkProcessed(ctx, "delivery-2", time.Hour)
		require.NoError(t, err)
		assert.False(t, newlyMarked, "redelivery should not be newly marked")
	})

	t.Run("allows reprocessing after expiration", func(t *testing.T) {
		newlyMarked, err := store.MarkProcessed(ctx, "delivery-3", 10*time.Millisecond)
		require.NoError(t, err)
		assert.True(t, newlyMarked)

		time.Sleep(20 * time.Millisecond)

		newlyMarked, err = store.MarkProcessed(ctx, "delivery-3", time.Hour)
		require.NoError(t, err)
		assert.True(t, newlyMarked, "expired delivery should be reprocessable")
	})
}

func TestInMemoryIdempotencyStore_IsProcessed(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	defer store.Close()

	ctx := context.Background()

	t.Run("unknown delivery", func(t *testing.T) {
		processed, err := store.IsProcessed(ctx, "never-seen")
		require.NoError(t, err)
		assert.False(t, processed)
	})

	t.Run("marked delivery", func(t *testing.T) {
		_, err := store.MarkProcessed(ctx, "delivery-4", time.Hour)
		require.NoError(t, err)

		processed, err := store.IsProcessed(ctx, "delivery-4")
		require.NoError(t, err)
		assert.True(t, processed)
	})

	t.Run("expired delivery", func(t *testing.T) {
		_, err := store.MarkProcessed(ctx, "delivery-5", 10*time.Millisecond)
		require.NoError(t, err)

		time.Sleep(20 * time.Millisecond)

		processed, err := store.IsProcessed(ctx, "delivery-5")
		require.NoError(t, err)
		assert.False(t, processed)
	})
}

func TestInMemoryIdempotencyStore_Cleanup(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	defer store.Close()

	ctx := context.Background()
	_, err := store.MarkProcessed(ctx, "old", 5*time.Millisecond)
	require.NoError(t, err)
	_, err = store.MarkProcessed(ctx, "fresh", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 2, store.Size())

	time.Sleep(10 * time.Millisecond)
	store.cleanup()
	assert.Equal(t, 1, store.Size())
}

func TestInMemoryIdempotencyStore_Close(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	require.NoError(t, store.Close())
	require.NoError(t, store.Close(), "double close must be safe")
}
