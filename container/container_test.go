package container

import (
	"bytes"
	"context"
	"math"
	"sync"
	"testing"

	"github.com/hupe1980/respack/blobstore"
	"github.com/hupe1980/respack/descriptor"
	"github.com/hupe1980/respack/internal/resource"
	"github.com/hupe1980/respack/model"
	"github.com/hupe1980/respack/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// threeResources returns payloads of 100, 50 and 75 bytes (225 total).
func threeResources() []Entry {
	rng := testutil.NewRNG(42)
	return []Entry{
		{Key: "meshes/ship", Type: "mesh", Data: rng.CompressibleBytes(100)},
		{Key: "textures/hull", Type: "texture", Data: rng.CompressibleBytes(50)},
		{Key: "materials/hull", Type: "material", Data: rng.CompressibleBytes(75), Dependencies: []string{"textures/hull"}},
	}
}

func packBatch(t *testing.T, store blobstore.BlobStore, c model.Compression, rc *resource.Controller) (*Container, *descriptor.Descriptor, []Entry) {
	t.Helper()
	entries := threeResources()
	d, err := NewPacker(store, WithCompression(c)).PackBatch(context.Background(), "levels/level1.rpak", entries)
	require.NoError(t, err)
	ct, err := FromDescriptor(store, "levels/level1.rpak", model.TierCore, d, nil, rc)
	require.NoError(t, err)
	return ct, d, entries
}

func TestBatch_ThreeResourceScenario(t *testing.T) {
	for _, c := range []model.Compression{model.CompressionZstd, model.CompressionLZ4} {
		t.Run(c.String(), func(t *testing.T) {
			ctx := context.Background()
			ct, d, entries := packBatch(t, blobstore.NewMemoryStore(), c, nil)

			require.Equal(t, int64(225), d.UncompressedSize)
			assert.Equal(t, int64(0), d.Resources[0].Offset)
			assert.Equal(t, int64(100), d.Resources[1].Offset)
			assert.Equal(t, int64(50), d.Resources[1].Size)
			assert.Equal(t, int64(150), d.Resources[2].Offset)
			assert.Equal(t, int64(75), d.Resources[2].Size)

			got, err := ct.ReadRange(ctx, 100, 50)
			require.NoError(t, err)
			assert.Len(t, got, 50)
			assert.Equal(t, entries[1].Data, got)
		})
	}
}

func TestBatch_DecompressIdempotent(t *testing.T) {
	ctx := context.Background()
	ct, _, _ := packBatch(t, blobstore.NewMemoryStore(), model.CompressionZstd, nil)

	assert.False(t, ct.Cached())
	a, err := ct.Decompressed(ctx)
	require.NoError(t, err)
	assert.True(t, ct.Cached())
	b, err := ct.Decompressed(ctx)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Same(t, &a[0], &b[0])
}

func TestBatch_ConcurrentFirstAccess(t *testing.T) {
	ctx := context.Background()
	ct, _, entries := packBatch(t, blobstore.NewMemoryStore(), model.CompressionLZ4, nil)

	var wg sync.WaitGroup
	results := make([][]byte, 16)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			data, err := ct.ReadRange(ctx, 150, 75)
			if err == nil {
				results[i] = data
			}
		}()
	}
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, entries[2].Data, r)
	}
}

func TestBatch_SliceMatchesSingle(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	batch, d, entries := packBatch(t, store, model.CompressionZstd, nil)

	for i, e := range entries {
		sd, err := NewPacker(store).PackSingle(ctx, "single/"+e.Key+".bin", e)
		require.NoError(t, err)
		single, err := FromDescriptor(store, "single/"+e.Key+".bin", model.TierCore, sd, nil, nil)
		require.NoError(t, err)

		fromSingle, err := single.ReadRange(ctx, 0, single.Size())
		require.NoError(t, err)
		fromBatch, err := batch.ReadRange(ctx, d.Resources[i].Offset, d.Resources[i].Size)
		require.NoError(t, err)
		assert.Equal(t, fromSingle, fromBatch)
	}
}

func TestSingle_HashVerify(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	e := Entry{Key: "textures/brick", Type: "texture", Data: testutil.NewRNG(7).Bytes(512)}

	d, err := NewPacker(store).PackSingle(ctx, "textures/brick.png", e)
	require.NoError(t, err)
	ct, err := FromDescriptor(store, "textures/brick.png", model.TierCore, d, nil, nil)
	require.NoError(t, err)

	sum, err := ct.ComputeHash(ctx)
	require.NoError(t, err)
	assert.Equal(t, d.Hash, sum)
	require.NoError(t, ct.Verify(ctx))

	// A fresh container sees the flipped byte.
	require.True(t, store.Corrupt("textures/brick.png", 100))
	ct2, err := FromDescriptor(store, "textures/brick.png", model.TierCore, d, nil, nil)
	require.NoError(t, err)
	sum2, err := ct2.ComputeHash(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, sum, sum2)
	assert.ErrorIs(t, ct2.Verify(ctx), ErrHashMismatch)
}

func TestSingle_ReadRange(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	data := []byte("0123456789abcdef")
	d, err := NewPacker(store).PackSingle(ctx, "a.bin", Entry{Key: "a", Type: "raw", Data: data})
	require.NoError(t, err)
	ct, err := FromDescriptor(store, "a.bin", model.TierApplication, d, nil, nil)
	require.NoError(t, err)

	got, err := ct.ReadRange(ctx, 4, 6)
	require.NoError(t, err)
	assert.Equal(t, []byte("456789"), got)

	_, err = ct.ReadRange(ctx, 10, 7)
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = ct.ReadRange(ctx, -1, 2)
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = ct.ReadRange(ctx, math.MaxInt64-5, 10)
	assert.ErrorIs(t, err, ErrOutOfRange)

	_, err = ct.Decompressed(ctx)
	assert.ErrorIs(t, err, ErrInvalidContainer)
}

func TestSingle_SizeMismatch(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	require.NoError(t, store.Put(ctx, "short.bin", []byte("abc")))

	ct, err := New(Config{Key: "short.bin", Store: store, Kind: model.KindSingle, Size: 10, Resources: []string{"short"}})
	require.NoError(t, err)
	_, err = ct.ReadRange(ctx, 0, 10)
	assert.ErrorIs(t, err, ErrInvalidContainer)
}

func TestBlockCompressed_Unsupported(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	require.NoError(t, store.Put(ctx, "big.rblk", bytes.Repeat([]byte{1}, 64)))

	ct, err := New(Config{
		Key: "big.rblk", Store: store, Kind: model.KindBatchBlockCompressed,
		Size: 64, UncompressedSize: 128, BlockSize: 32, BlockCount: 4,
		Resources: []string{"a", "b"},
	})
	require.NoError(t, err)
	size, count := ct.Blocks()
	assert.Equal(t, uint32(32), size)
	assert.Equal(t, uint32(4), count)

	_, err = ct.ReadRange(ctx, 0, 16)
	assert.ErrorIs(t, err, ErrBlockCompressedUnsupported)
	_, err = ct.Decompressed(ctx)
	assert.ErrorIs(t, err, ErrBlockCompressedUnsupported)
	assert.ErrorIs(t, ct.Verify(ctx), ErrBlockCompressedUnsupported)

	_, err = NewPacker(store).Pack(ctx, model.KindBatchBlockCompressed, "x.rblk", []Entry{{Key: "a", Data: []byte{1}}})
	assert.ErrorIs(t, err, ErrBlockCompressedUnsupported)
}

func TestReleaseCache_MemoryAccounting(t *testing.T) {
	ctx := context.Background()
	rc := resource.NewController(resource.Config{MemoryLimitBytes: 1 << 20})
	ct, _, _ := packBatch(t, blobstore.NewMemoryStore(), model.CompressionZstd, rc)

	_, err := ct.Decompressed(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(225), rc.MemoryUsage())

	ct.ReleaseCache()
	assert.False(t, ct.Cached())
	assert.Zero(t, rc.MemoryUsage())

	// Decompresses again after release.
	got, err := ct.ReadRange(ctx, 0, 100)
	require.NoError(t, err)
	assert.Len(t, got, 100)
	require.NoError(t, ct.Close())
	assert.Zero(t, rc.MemoryUsage())
}

func TestDecompressed_MemoryLimit(t *testing.T) {
	rc := resource.NewController(resource.Config{MemoryLimitBytes: 100})
	ct, _, _ := packBatch(t, blobstore.NewMemoryStore(), model.CompressionZstd, rc)

	_, err := ct.Decompressed(context.Background())
	assert.ErrorIs(t, err, resource.ErrMemoryLimitExceeded)
	assert.False(t, ct.Cached())
}

func TestBatch_CorruptStream(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	_, d, _ := packBatch(t, store, model.CompressionZstd, nil)
	require.NoError(t, store.Put(ctx, "levels/level1.rpak", bytes.Repeat([]byte{0xAB}, int(d.DataSize))))

	ct, err := FromDescriptor(store, "levels/level1.rpak", model.TierCore, d, nil, nil)
	require.NoError(t, err)
	_, err = ct.ReadRange(ctx, 0, 10)
	assert.ErrorIs(t, err, ErrInvalidContainer)
	assert.ErrorIs(t, ct.Verify(ctx), ErrHashMismatch)
}

func TestClose(t *testing.T) {
	ctx := context.Background()
	ct, _, _ := packBatch(t, blobstore.NewMemoryStore(), model.CompressionZstd, nil)
	_, err := ct.Decompressed(ctx)
	require.NoError(t, err)

	require.NoError(t, ct.Close())
	require.NoError(t, ct.Close())
	_, err = ct.ComputeHash(ctx)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestNew_Validation(t *testing.T) {
	store := blobstore.NewMemoryStore()
	base := Config{Key: "a.rpak", Store: store, Kind: model.KindBatchCompressed, Size: 10, UncompressedSize: 20, Resources: []string{"a"}}

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"BlankKey", func(c *Config) { c.Key = "" }},
		{"NoStore", func(c *Config) { c.Store = nil }},
		{"KindNone", func(c *Config) { c.Kind = model.KindNone }},
		{"ZeroSize", func(c *Config) { c.Size = 0 }},
		{"NoResources", func(c *Config) { c.Resources = nil }},
		{"SingleWithTwo", func(c *Config) { c.Kind = model.KindSingle; c.Resources = []string{"a", "b"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			_, err := New(cfg)
			assert.ErrorIs(t, err, ErrInvalidContainer)
		})
	}

	ct, err := New(base)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ct.Resources())
	assert.Equal(t, model.TierCore, ct.Tier())
}
