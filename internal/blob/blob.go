// Package blob abstracts the byte storage the lifecycle manager writes
// into. Blobs are addressed by the share token; the store knows nothing
// about retention or metadata.
package blob

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrBlobNotFound is returned by Get when no blob exists under the key.
var ErrBlobNotFound = errors.New("blob not found")

// ObjectInfo describes one stored blob, as reported by List.
type ObjectInfo struct {
	Key     string
	Size    int64
	ModTime time.Time
}

// Store is the blob storage contract. Delete is idempotent: deleting an
// absent key succeeds. Put must never expose a partially written blob.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, size int64) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) ([]ObjectInfo, error)
}
