package integration_test

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hupe1980/respack"
	"github.com/hupe1980/respack/blobstore"
	"github.com/hupe1980/respack/catalog"
	"github.com/hupe1980/respack/container"
	"github.com/hupe1980/respack/discovery"
	"github.com/hupe1980/respack/metrics"
	"github.com/hupe1980/respack/model"
	"github.com/hupe1980/respack/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	*catalog.Base
	Data []byte
}

// disposals counts Dispose calls per resource instance.
type disposals struct {
	created atomic.Int64
	twice   atomic.Int64
}

func (d *disposals) importer() catalog.Importer {
	return catalog.NewImporter(
		func(data []byte, _ string) ([]byte, error) { return data, nil },
		func(h *catalog.Handle, data []byte) (catalog.Resource, error) {
			d.created.Add(1)
			return &counted{payload: payload{Base: catalog.NewBase(h.Key()), Data: data}, d: d}, nil
		},
	)
}

type counted struct {
	payload
	d     *disposals
	calls atomic.Int32
}

func (c *counted) Dispose() {
	if c.calls.Add(1) > 1 {
		c.d.twice.Add(1)
	}
	c.Base.Dispose()
}

func packLibrary(t *testing.T, store blobstore.BlobStore, rng *testutil.RNG, prefix string, batches, perBatch int) []string {
	t.Helper()
	ctx := context.Background()
	var keys []string
	for b := range batches {
		entries := make([]container.Entry, perBatch)
		for i := range entries {
			key := fmt.Sprintf("%s/%d/%d", prefix, b, i)
			entries[i] = container.Entry{Key: key, Type: "blob", Data: rng.CompressibleBytes(512 + rng.Intn(4096))}
			if i > 0 {
				entries[i].Dependencies = []string{entries[i-1].Key}
			}
			keys = append(keys, key)
		}
		_, err := container.NewPacker(store).PackBatch(ctx, fmt.Sprintf("%02d.rpak", b), entries)
		require.NoError(t, err)
	}
	return keys
}

func TestEndToEnd_LocalTiers(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	rng := testutil.NewRNG(1)

	core := blobstore.NewLocalStore(filepath.Join(dir, "core"))
	mods := blobstore.NewLocalStore(filepath.Join(dir, "mods"))
	keys := packLibrary(t, core, rng, "core", 4, 8)

	// The mod replaces one resource of the second batch.
	_, err := container.NewPacker(mods).PackSingle(ctx, "patch.bin",
		container.Entry{Key: "core/1/3", Type: "blob", Data: []byte("patched")})
	require.NoError(t, err)

	d := &disposals{}
	mc := &metrics.Basic{}
	a, err := respack.Open(ctx, []discovery.Library{
		{Tier: model.TierCore, Store: core},
		{Tier: model.TierMod, Store: mods},
	}, respack.WithImporter("blob", d.importer()), respack.WithMetricsCollector(mc), respack.WithMemoryLimit(1<<20))
	require.NoError(t, err)

	scan := a.LastScan()
	assert.Equal(t, 5, scan.Containers)
	assert.Equal(t, len(keys), scan.Resources)
	assert.Equal(t, 1, scan.Shadowed)

	// Loading the last key of a batch pulls in the whole chain.
	last := keys[len(keys)-1]
	res, err := a.Load(ctx, last, true)
	require.NoError(t, err)
	assert.Zero(t, res.DependencyFailures)
	assert.Equal(t, 8, a.Stats().Catalog.Loaded)

	patched, err := respack.Resource[*counted](ctx, a, "core/1/3")
	require.NoError(t, err)
	assert.Equal(t, "patched", string(patched.Data))

	corrupt, err := a.Verify(ctx)
	require.NoError(t, err)
	assert.Empty(t, corrupt)
	assert.Equal(t, int64(5), mc.Verified.Load())

	require.NoError(t, a.Close(ctx))
	assert.Zero(t, d.twice.Load())
}

func TestConcurrentLoadsAndUnloads(t *testing.T) {
	ctx := context.Background()
	rng := testutil.NewRNG(2)
	store := blobstore.NewMemoryStore()
	keys := packLibrary(t, store, rng, "c", 4, 16)

	d := &disposals{}
	a, err := respack.Open(ctx, []discovery.Library{{Tier: model.TierCore, Store: store}},
		respack.WithImporter("blob", d.importer()),
		respack.WithIdleInterval(time.Millisecond),
		respack.WithLoadTimeout(10*time.Second),
	)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for w := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 200 {
				key := keys[(w*31+i*7)%len(keys)]
				switch i % 4 {
				case 0:
					_, _ = a.Load(ctx, key, false)
				case 1, 2:
					_, err := a.Load(ctx, key, true)
					assert.NoError(t, err)
				case 3:
					assert.NoError(t, a.Unload(ctx, key))
				}
			}
		}()
	}
	wg.Wait()
	require.NoError(t, a.WaitIdle(ctx))

	for h := range a.Catalog().All(false) {
		state := h.State()
		assert.True(t, state == catalog.Loaded || state == catalog.NotLoaded, "%s is %s", h.Key(), state)
		if r := h.Resource(); r != nil {
			assert.False(t, r.(*counted).Disposed(), h.Key())
		}
	}

	require.NoError(t, a.Close(ctx))
	assert.Zero(t, d.twice.Load())
	assert.Zero(t, a.Stats().Catalog.Handles)
}

func TestRescanWhileLoading(t *testing.T) {
	ctx := context.Background()
	rng := testutil.NewRNG(3)
	store := blobstore.NewMemoryStore()
	keys := packLibrary(t, store, rng, "r", 2, 8)

	d := &disposals{}
	a, err := respack.Open(ctx, []discovery.Library{{Tier: model.TierCore, Store: store}},
		respack.WithImporter("blob", d.importer()))
	require.NoError(t, err)
	defer a.Close(ctx)

	for _, k := range keys {
		_, err := a.Load(ctx, k, false)
		require.NoError(t, err)
	}

	// Replace the first batch while its imports may still be queued.
	packLibrary(t, store, testutil.NewRNG(4), "r", 1, 8)
	res, err := a.Rescan(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Kept)
	assert.Equal(t, 1, res.Removed)
	assert.Equal(t, 1, res.Added)

	require.NoError(t, a.WaitIdle(ctx))
	_, err = a.Load(ctx, keys[7], true)
	require.NoError(t, err)
	assert.Equal(t, 16, a.Catalog().Len())
}
