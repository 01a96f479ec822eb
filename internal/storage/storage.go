// Package storage holds the blob store: a flat namespace of opaque keys mapped to file bytes.
// Backends live side by side (filesystem via afero, S3-compatible via MinIO).
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"pdfvault/internal/config"
)

// ErrNotFound is returned when no blob exists under the requested key.
var ErrNotFound = errors.New("blob not found")

// ObjectInfo contains basic information about a stored blob.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
}

// Storage is the blob store used by the document service.
// Implementations are safe for concurrent use by multiple goroutines.
type Storage interface {
	// Save writes r under a freshly generated key ending in ext and returns the
	// key with the number of bytes actually written. A failed write leaves no blob behind.
	Save(ctx context.Context, r io.Reader, ext string) (ObjectInfo, error)
	// Exists reports whether a blob is stored under key.
	Exists(ctx context.Context, key string) (bool, error)
	// Open streams a blob. Missing keys return ErrNotFound.
	Open(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
	// Delete removes a blob. Missing keys return ErrNotFound so callers can treat
	// a repeated delete as already satisfied.
	Delete(ctx context.Context, key string) error
	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error
}

// NewKey returns a collision-resistant blob name: a random UUID plus the extension.
func NewKey(ext string) string {
	return uuid.NewString() + ext
}

// New builds the blob store selected by STORAGE_DRIVER.
func New(sc config.StorageConfig, mc config.MinIOConfig) (Storage, error) {
	switch sc.Driver {
	case "", "fs":
		return NewFS(afero.NewOsFs(), sc.Root)
	case "minio":
		return NewMinIO(mc)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", sc.Driver)
	}
}
