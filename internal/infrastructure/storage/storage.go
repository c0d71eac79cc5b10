// Package storage provides object storage for bulk input files and reports.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/commercesync/backend/internal/infrastructure/config"
)

// ErrObjectNotFound is returned when a storage key does not exist
var ErrObjectNotFound = errors.New("storage: object not found")

// ObjectStore is the port for durable file storage. Implementations are
// S3-compatible object storage and a local-disk fallback for development.
type ObjectStore interface {
	// Upload stores the data under the given key
	Upload(ctx context.Context, key string, data []byte, contentType string) error

	// Download opens the object for reading. The caller closes the reader.
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// Exists reports whether the key is present
	Exists(ctx context.Context, key string) (bool, error)

	// Delete removes the object. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// NewFromConfig builds the object store selected by configuration
func NewFromConfig(cfg config.StorageConfig, logger *zap.Logger) (ObjectStore, error) {
	switch cfg.Provider {
	case "s3":
		return NewS3Store(cfg, logger)
	case "local", "":
		return NewLocalStore(cfg.LocalDir)
	default:
		return nil, fmt.Errorf("storage: unknown provider %q", cfg.Provider)
	}
}
