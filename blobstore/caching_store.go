package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/hupe1980/respack/internal/cache"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const (
	defaultCacheBlockSize = 64 << 10
	maxParallelFetches    = 8
)

// CachingStore fronts a remote BlobStore with a block cache.
//
// Packed containers are immutable, so cached blocks are only dropped when a
// blob is rewritten or deleted through this store. Concurrent readers that
// miss the same run of blocks share one backend request.
type CachingStore struct {
	inner     BlobStore
	cache     cache.BlockCache
	blockSize int64
	fetches   singleflight.Group
}

// NewCachingStore wraps inner. blockSize <= 0 selects 64KiB blocks.
func NewCachingStore(inner BlobStore, c cache.BlockCache, blockSize int64) *CachingStore {
	if blockSize <= 0 {
		blockSize = defaultCacheBlockSize
	}
	return &CachingStore{inner: inner, cache: c, blockSize: blockSize}
}

// Open opens name; reads are served from cached blocks when possible.
func (s *CachingStore) Open(ctx context.Context, name string) (Blob, error) {
	b, err := s.inner.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	return &cachedBlob{store: s, inner: b, name: name}, nil
}

func (s *CachingStore) Create(ctx context.Context, name string) (WritableBlob, error) {
	s.forget(name)
	return s.inner.Create(ctx, name)
}

func (s *CachingStore) Put(ctx context.Context, name string, data []byte) error {
	s.forget(name)
	return s.inner.Put(ctx, name, data)
}

func (s *CachingStore) Delete(ctx context.Context, name string) error {
	s.forget(name)
	return s.inner.Delete(ctx, name)
}

func (s *CachingStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.inner.List(ctx, prefix)
}

func (s *CachingStore) forget(name string) {
	s.cache.Invalidate(func(k cache.Key) bool { return k.Path == name })
}

type cachedBlob struct {
	store *CachingStore
	inner Blob
	name  string
}

func (b *cachedBlob) Size() int64  { return b.inner.Size() }
func (b *cachedBlob) Close() error { return b.inner.Close() }

func (b *cachedBlob) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	size := b.Size()
	if off >= size {
		return 0, io.EOF
	}

	bs := b.store.blockSize
	end := min(off+int64(len(p)), size)
	first, last := off/bs, (end-1)/bs

	if err := b.prefetch(ctx, first, last); err != nil {
		return 0, err
	}

	n := 0
	for blk := first; blk <= last; blk++ {
		data, err := b.block(ctx, blk)
		if err != nil {
			return n, err
		}
		start := blk * bs
		lo := max(off, start) - start
		hi := min(end, start+int64(len(data))) - start
		if hi <= lo {
			break
		}
		n += copy(p[n:], data[lo:hi])
	}

	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (b *cachedBlob) ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	return io.NopCloser(io.NewSectionReader(readerAt{ctx: ctx, blob: b}, off, length)), nil
}

// prefetch loads every missing block in [first, last], one request per
// contiguous run.
func (b *cachedBlob) prefetch(ctx context.Context, first, last int64) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelFetches)

	runStart := int64(-1)
	flush := func(endExclusive int64) {
		if runStart < 0 {
			return
		}
		start, count := runStart, endExclusive-runStart
		g.Go(func() error {
			_, err := b.fetch(gctx, start, count)
			return err
		})
		runStart = -1
	}

	for blk := first; blk <= last; blk++ {
		if _, ok := b.store.cache.Get(ctx, b.key(blk)); ok {
			flush(blk)
			continue
		}
		if runStart < 0 {
			runStart = blk
		}
	}
	flush(last + 1)

	return g.Wait()
}

// block returns one block, refetching it if it was evicted after prefetch.
func (b *cachedBlob) block(ctx context.Context, blk int64) ([]byte, error) {
	if data, ok := b.store.cache.Get(ctx, b.key(blk)); ok {
		return data, nil
	}
	blocks, err := b.fetch(ctx, blk, 1)
	if err != nil {
		return nil, err
	}
	if len(blocks) == 0 {
		return nil, nil
	}
	return blocks[0], nil
}

// fetch reads count blocks starting at start from the backend and caches them.
func (b *cachedBlob) fetch(ctx context.Context, start, count int64) ([][]byte, error) {
	flightKey := fmt.Sprintf("%s#%d+%d", b.name, start, count)
	v, err, _ := b.store.fetches.Do(flightKey, func() (any, error) {
		bs := b.store.blockSize
		off := start * bs
		length := min(count*bs, b.Size()-off)
		if length <= 0 {
			return [][]byte(nil), nil
		}

		buf := make([]byte, length)
		n, err := b.inner.ReadAt(ctx, buf, off)
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		buf = buf[:n]

		var blocks [][]byte
		for i := int64(0); i*bs < int64(len(buf)); i++ {
			chunk := buf[i*bs : min((i+1)*bs, int64(len(buf)))]
			// Copy so a single cached block does not pin the whole run.
			own := append([]byte(nil), chunk...)
			b.store.cache.Set(ctx, b.key(start+i), own)
			blocks = append(blocks, own)
		}
		return blocks, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([][]byte), nil
}

func (b *cachedBlob) key(blk int64) cache.Key {
	return cache.Key{Path: b.name, Block: uint64(blk)}
}

type readerAt struct {
	ctx  context.Context
	blob Blob
}

func (r readerAt) ReadAt(p []byte, off int64) (int, error) {
	return r.blob.ReadAt(r.ctx, p, off)
}
