package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/hupe1980/respack/internal/conv"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations return an error that satisfies errors.Is(err, ErrNotFound).
// It aliases os.ErrNotExist so local and remote stores agree.
var ErrNotFound = os.ErrNotExist

// BlobStore is the storage abstraction containers and descriptors are read
// from and written to. Implementations must be safe for concurrent use.
type BlobStore interface {
	// Open opens a blob for reading.
	Open(ctx context.Context, name string) (Blob, error)
	// Create creates a blob for streaming writes. The blob becomes visible on Close.
	Create(ctx context.Context, name string) (WritableBlob, error)
	// Put writes a blob atomically.
	Put(ctx context.Context, name string, data []byte) error
	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error
	// List returns the sorted, slash-separated names of all blobs with the prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Blob is a read-only handle to a data blob.
type Blob interface {
	// ReadAt reads len(p) bytes at off. It returns io.EOF when fewer bytes remain.
	ReadAt(ctx context.Context, p []byte, off int64) (int, error)
	// ReadRange returns a reader over [off, off+length).
	ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error)
	// Size returns the size of the blob in bytes.
	Size() int64
	io.Closer
}

// WritableBlob is a blob being written.
type WritableBlob interface {
	io.Writer
	io.Closer
	// Sync flushes buffered data to stable storage, where supported.
	Sync() error
}

// Mappable is implemented by blobs whose bytes are directly addressable.
type Mappable interface {
	// Bytes returns the blob contents. The slice is valid until the Blob is closed.
	Bytes() ([]byte, error)
}

// ReadRange reads exactly length bytes at off from b.
func ReadRange(ctx context.Context, b Blob, off, length int64) ([]byte, error) {
	if !conv.RangeWithin(off, length, b.Size()) {
		return nil, fmt.Errorf("range [%d,+%d) outside blob of %d bytes: %w", off, length, b.Size(), io.ErrUnexpectedEOF)
	}
	if m, ok := b.(Mappable); ok {
		data, err := m.Bytes()
		if err != nil {
			return nil, err
		}
		out := make([]byte, length)
		copy(out, data[off:off+length])
		return out, nil
	}
	out := make([]byte, length)
	n, err := b.ReadAt(ctx, out, off)
	if err != nil && !(errors.Is(err, io.EOF) && int64(n) == length) {
		return nil, err
	}
	if int64(n) != length {
		return nil, io.ErrUnexpectedEOF
	}
	return out, nil
}

// ReadAll reads the whole blob.
func ReadAll(ctx context.Context, b Blob) ([]byte, error) {
	return ReadRange(ctx, b, 0, b.Size())
}

// ReadFile opens name in store and reads it completely.
func ReadFile(ctx context.Context, store BlobStore, name string) ([]byte, error) {
	b, err := store.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer b.Close()
	return ReadAll(ctx, b)
}
