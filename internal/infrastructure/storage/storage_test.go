package storage

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/commercesync/backend/internal/infrastructure/config"
)

func TestLocalStore(t *testing.T) {
	ctx := context.Background()

	newStore := func(t *testing.T) *LocalStore {
		store, err := NewLocalStore(t.TempDir())
		require.NoError(t, err)
		return store
	}

	t.Run("upload and download round trip", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Upload(ctx, "bulk/op-1/input.csv", []byte("sku,name\nA,Widget\n"), "text/csv"))

		r, err := store.Download(ctx, "bulk/op-1/input.csv")
		require.NoError(t, err)
		defer r.Close()

		data, err := io.ReadAll(r)
		require.NoError(t, err)
		assert.Equal(t, "sku,name\nA,Widget\n", string(data))
	})

	t.Run("download missing key", func(t *testing.T) {
		store := newStore(t)
		_, err := store.Download(ctx, "bulk/nothing.csv")
		assert.ErrorIs(t, err, ErrObjectNotFound)
	})

	t.Run("exists", func(t *testing.T) {
		store := newStore(t)
		exists, err := store.Exists(ctx, "reports/r.csv")
		require.NoError(t, err)
		assert.False(t, exists)

		require.NoError(t, store.Upload(ctx, "reports/r.csv", []byte("x"), "text/csv"))
		exists, err = store.Exists(ctx, "reports/r.csv")
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Upload(ctx, "a.csv", []byte("x"), "text/csv"))
		require.NoError(t, store.Delete(ctx, "a.csv"))
		require.NoError(t, store.Delete(ctx, "a.csv"))

		exists, err := store.Exists(ctx, "a.csv")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("rejects escaping keys", func(t *testing.T) {
		store := newStore(t)
		assert.Error(t, store.Upload(ctx, "../outside.csv", []byte("x"), "text/csv"))
		assert.Error(t, store.Upload(ctx, "/etc/passwd", []byte("x"), "text/csv"))
		assert.Error(t, store.Upload(ctx, "", []byte("x"), "text/csv"))
	})
}

func TestNewFromConfig(t *testing.T) {
	t.Run("local provider", func(t *testing.T) {
		store, err := NewFromConfig(config.StorageConfig{Provider: "local", LocalDir: t.TempDir()}, zap.NewNop())
		require.NoError(t, err)
		assert.IsType(t, &LocalStore{}, store)
	})

	t.Run("s3 requires credentials", func(t *testing.T) {
		_, err := NewFromConfig(config.StorageConfig{Provider: "s3", Bucket: "b"}, zap.NewNop())
		assert.Error(t, err)
	})

	t.Run("s3 with credentials", func(t *testing.T) {
		store, err := NewFromConfig(config.StorageConfig{
			Provider:        "s3",
			Bucket:          "commercesync-bulk",
			Endpoint:        "localhost:9000",
			AccessKeyID:     "minio",
			SecretAccessKey: "minio123",
			UsePathStyle:    true,
		}, zap.NewNop())
		require.NoError(t, err)
		assert.IsType(t, &S3Store{}, store)
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, err := NewFromConfig(config.StorageConfig{Provider: "ftp"}, zap.NewNop())
		assert.Error(t, err)
	})
}
