package container

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/hupe1980/respack/blobstore"
	"github.com/hupe1980/respack/internal/conv"
	"github.com/hupe1980/respack/internal/hash"
	"github.com/hupe1980/respack/internal/resource"
	"github.com/hupe1980/respack/model"
)

// ReadRange returns length bytes of logical content starting at off.
//
// For Single containers the bytes are read from the store into a fresh
// slice. For BatchCompressed containers the result is a slice of the
// shared decompressed buffer and must not be modified.
func (c *Container) ReadRange(ctx context.Context, off, length int64) ([]byte, error) {
	if c.kind == model.KindBatchBlockCompressed {
		return nil, fmt.Errorf("%w: %s", ErrBlockCompressedUnsupported, c.key)
	}
	if !conv.RangeWithin(off, length, c.uncompSize) {
		return nil, fmt.Errorf("%w: %s [%d,+%d) of %d", ErrOutOfRange, c.key, off, length, c.uncompSize)
	}

	switch c.kind {
	case model.KindSingle:
		if err := c.rc.AcquireIO(ctx, int(length)); err != nil {
			return nil, err
		}
		var out []byte
		err := c.withBlob(ctx, func(b blobstore.Blob) error {
			if b.Size() < off+length {
				return fmt.Errorf("%w: %s is %d bytes, descriptor says %d", ErrInvalidContainer, c.key, b.Size(), c.size)
			}
			var rerr error
			out, rerr = blobstore.ReadRange(ctx, b, off, length)
			return rerr
		})
		return out, err
	case model.KindBatchCompressed:
		data, err := c.Decompressed(ctx)
		if err != nil {
			return nil, err
		}
		return data[off : off+length : off+length], nil
	default:
		return nil, fmt.Errorf("%w: %s: kind %s", ErrInvalidContainer, c.key, c.kind)
	}
}

// Decompressed returns the whole decompressed batch stream. The first call
// decodes and caches it; concurrent first calls share one decode. The
// returned buffer is shared and must not be modified.
func (c *Container) Decompressed(ctx context.Context) ([]byte, error) {
	switch c.kind {
	case model.KindBatchCompressed:
	case model.KindBatchBlockCompressed:
		return nil, fmt.Errorf("%w: %s", ErrBlockCompressedUnsupported, c.key)
	default:
		return nil, fmt.Errorf("%w: %s is not a compressed batch", ErrInvalidContainer, c.key)
	}

	if p := c.cache.Load(); p != nil {
		return *p, nil
	}

	v, err, _ := c.sf.Do("decompress", func() (any, error) {
		if p := c.cache.Load(); p != nil {
			return *p, nil
		}
		raw, err := c.readRaw(ctx)
		if err != nil {
			return nil, err
		}
		out, err := decompress(c.compression, raw, c.uncompSize)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidContainer, c.key, err)
		}
		if int64(len(out)) != c.uncompSize {
			return nil, fmt.Errorf("%w: %s decompressed to %d bytes, want %d", ErrInvalidContainer, c.key, len(out), c.uncompSize)
		}
		if err := c.rc.AcquireMemory(int64(len(out))); err != nil {
			return nil, fmt.Errorf("cache %s: %w", c.key, err)
		}
		c.cache.Store(&out)
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// ReleaseCache drops the decompressed buffer. Slices handed out earlier
// stay valid; the next read decompresses again.
func (c *Container) ReleaseCache() {
	if p := c.cache.Swap(nil); p != nil {
		c.rc.ReleaseMemory(int64(len(*p)))
	}
}

// ComputeHash recomputes the integrity hash over the raw file bytes.
func (c *Container) ComputeHash(ctx context.Context) (uint64, error) {
	if c.kind == model.KindBatchBlockCompressed {
		return 0, fmt.Errorf("%w: %s", ErrBlockCompressedUnsupported, c.key)
	}
	var sum uint64
	err := c.withBlob(ctx, func(b blobstore.Blob) error {
		rc, err := b.ReadRange(ctx, 0, b.Size())
		if err != nil {
			return err
		}
		defer rc.Close()
		sum, err = hash.Reader64(resource.NewRateLimitedReader(ctx, rc, c.rc))
		return err
	})
	return sum, err
}

// Verify recomputes the integrity hash and compares it with the stored one.
func (c *Container) Verify(ctx context.Context) error {
	sum, err := c.ComputeHash(ctx)
	if err != nil {
		return err
	}
	if sum != c.hash {
		return fmt.Errorf("%w: %s: stored %016x, computed %016x", ErrHashMismatch, c.key, c.hash, sum)
	}
	return nil
}

// readRaw reads the whole raw file.
func (c *Container) readRaw(ctx context.Context) ([]byte, error) {
	var raw []byte
	err := c.withBlob(ctx, func(b blobstore.Blob) error {
		if b.Size() != c.size {
			return fmt.Errorf("%w: %s is %d bytes, descriptor says %d", ErrInvalidContainer, c.key, b.Size(), c.size)
		}
		rc, err := b.ReadRange(ctx, 0, c.size)
		if err != nil {
			return err
		}
		defer rc.Close()
		buf := bytes.NewBuffer(make([]byte, 0, c.size))
		if _, err := io.Copy(buf, resource.NewRateLimitedReader(ctx, rc, c.rc)); err != nil {
			return err
		}
		raw = buf.Bytes()
		return nil
	})
	return raw, err
}

// withBlob runs fn with the lazily opened blob. Close waits for fn to return.
func (c *Container) withBlob(ctx context.Context, fn func(b blobstore.Blob) error) error {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return fmt.Errorf("%w: %s", ErrClosed, c.key)
	}
	if b := c.blob; b != nil {
		defer c.mu.RUnlock()
		return fn(b)
	}
	c.mu.RUnlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrClosed, c.key)
	}
	if c.blob == nil {
		b, err := c.store.Open(ctx, c.key)
		if err != nil {
			c.mu.Unlock()
			return fmt.Errorf("open %s: %w", c.key, err)
		}
		c.blob = b
	}
	c.mu.Unlock()

	return c.withBlob(ctx, fn)
}
