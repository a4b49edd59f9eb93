package blobstore

import (
	"context"
	"io"
	"os"
)

// ErrNotFound is returned when a named blob does not exist.
//
// Implementations return an error satisfying errors.Is(err, ErrNotFound).
var ErrNotFound = os.ErrNotExist

// BlobStore is an abstraction over storage for immutable track-table
// archives.
type BlobStore interface {
	// Open opens an existing blob for reading.
	Open(ctx context.Context, name string) (Blob, error)
	// Create creates a blob for streaming writes. The blob becomes visible
	// when its Close returns nil.
	Create(ctx context.Context, name string) (WritableBlob, error)
	// Delete removes a blob. Deleting an absent blob is not an error.
	Delete(ctx context.Context, name string) error
	// List returns all blob names with the given prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Blob is a read-only handle to a stored archive.
type Blob interface {
	io.Closer
	// Size returns the blob size in bytes.
	Size() int64
	// ReadAt reads len(p) bytes starting at offset off.
	ReadAt(ctx context.Context, p []byte, off int64) (int, error)
}

// WritableBlob is a streaming write handle.
type WritableBlob interface {
	io.WriteCloser
	// Abort discards the blob instead of publishing it.
	Abort() error
}
