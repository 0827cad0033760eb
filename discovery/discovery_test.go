package discovery

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/hupe1980/respack/blobstore"
	"github.com/hupe1980/respack/catalog"
	"github.com/hupe1980/respack/container"
	"github.com/hupe1980/respack/descriptor"
	"github.com/hupe1980/respack/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const blobType = "blob"

type asset struct {
	*catalog.Base
	Data []byte
}

func newCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	imp := catalog.NewImporter(
		func(data []byte, _ string) ([]byte, error) { return slices.Clone(data), nil },
		func(h *catalog.Handle, data []byte) (catalog.Resource, error) {
			return &asset{Base: catalog.NewBase(h.Key()), Data: data}, nil
		},
	)
	cat := catalog.New(catalog.WithImporter(blobType, imp), catalog.WithImporter("shader", imp))
	t.Cleanup(func() { require.NoError(t, cat.Close(context.Background())) })
	return cat
}

func entry(key, data string, deps ...string) container.Entry {
	return container.Entry{Key: key, Type: blobType, Dependencies: deps, Data: []byte(data)}
}

func packBatch(t *testing.T, store blobstore.BlobStore, dataPath string, entries ...container.Entry) {
	t.Helper()
	_, err := container.NewPacker(store).PackBatch(context.Background(), dataPath, entries)
	require.NoError(t, err)
}

func load(t *testing.T, cat *catalog.Catalog, key string) string {
	t.Helper()
	h, ok := cat.Get(key)
	require.True(t, ok, key)
	a, err := catalog.GetResource[*asset](context.Background(), h, true, true)
	require.NoError(t, err)
	return string(a.Data)
}

func libraries(store blobstore.BlobStore) []Library {
	return []Library{
		{Name: "mods", Tier: model.TierMod, Root: "mods", Store: store},
		{Name: "core", Tier: model.TierCore, Root: "core", Store: store},
		{Name: "app", Tier: model.TierApplication, Root: "app", Store: store},
	}
}

func TestNew_Validation(t *testing.T) {
	cat := newCatalog(t)
	store := blobstore.NewMemoryStore()

	_, err := New(cat, nil)
	assert.ErrorIs(t, err, ErrNoLibraries)

	_, err = New(cat, []Library{{Tier: model.TierCore}})
	assert.ErrorIs(t, err, ErrInvalidLibrary)

	_, err = New(cat, []Library{{Tier: model.TierRuntime, Store: store}})
	assert.ErrorIs(t, err, ErrInvalidLibrary)

	g, err := New(cat, libraries(store))
	require.NoError(t, err)
	var tiers []model.Tier
	for _, l := range g.Libraries() {
		tiers = append(tiers, l.Tier)
	}
	assert.Equal(t, []model.Tier{model.TierCore, model.TierApplication, model.TierMod}, tiers)
}

func TestScan_Basic(t *testing.T) {
	ctx := context.Background()
	cat := newCatalog(t)
	store := blobstore.NewMemoryStore()

	packBatch(t, store, "core/base.rpak", entry("a", "core-a"), entry("b", "core-b", "a"))
	_, err := container.NewPacker(store).PackSingle(ctx, "app/readme.txt", entry("readme", "hello"))
	require.NoError(t, err)
	// Outside every library root.
	packBatch(t, store, "other/x.rpak", entry("x", "x"))

	g, err := New(cat, libraries(store))
	require.NoError(t, err)
	res, err := g.Scan(ctx)
	require.NoError(t, err)
	require.NoError(t, res.Err())

	assert.Equal(t, 2, res.Descriptors)
	assert.Equal(t, 2, res.Containers)
	assert.Equal(t, 3, res.Resources)
	assert.Equal(t, 2, res.Added)
	assert.Equal(t, 3, cat.Len())

	h, ok := cat.Get("b")
	require.True(t, ok)
	assert.Equal(t, "core/base.rpak", h.Container())
	assert.Equal(t, model.TierCore, h.Tier())
	assert.Equal(t, []string{"a"}, h.Dependencies())

	_, ok = cat.Get("x")
	assert.False(t, ok)

	assert.Equal(t, "hello", load(t, cat, "readme"))
	assert.Equal(t, "core-b", load(t, cat, "b"))
}

func TestScan_TierShadowing(t *testing.T) {
	ctx := context.Background()
	cat := newCatalog(t)
	store := blobstore.NewMemoryStore()

	packBatch(t, store, "core/base.rpak", entry("a", "core-a"), entry("b", "core-b"))
	packBatch(t, store, "app/game.rpak", entry("b", "app-b"), entry("c", "app-c"))
	packBatch(t, store, "mods/fix.rpak", entry("b", "mod-b"))

	g, err := New(cat, libraries(store))
	require.NoError(t, err)
	res, err := g.Scan(ctx)
	require.NoError(t, err)
	require.Empty(t, res.Collisions)

	assert.Equal(t, 2, res.Shadowed)
	assert.Equal(t, 3, cat.Len())

	h, ok := cat.Get("b")
	require.True(t, ok)
	assert.Equal(t, "mods/fix.rpak", h.Container())
	assert.Equal(t, model.TierMod, h.Tier())
	assert.Equal(t, "mod-b", load(t, cat, "b"))
	assert.Equal(t, "core-a", load(t, cat, "a"))
	assert.Equal(t, "app-c", load(t, cat, "c"))

	// The shadowed entries are not part of their containers.
	assert.Len(t, cat.HandlesOf("core/base.rpak"), 1)
	assert.Len(t, cat.HandlesOf("app/game.rpak"), 1)
}

func TestScan_SameTierCollisionKeepsFirst(t *testing.T) {
	ctx := context.Background()
	cat := newCatalog(t)
	store := blobstore.NewMemoryStore()

	packBatch(t, store, "core/a1.rpak", entry("a", "first"))
	packBatch(t, store, "core/a2.rpak", entry("a", "second"), entry("z", "z"))

	g, err := New(cat, libraries(store))
	require.NoError(t, err)
	res, err := g.Scan(ctx)
	require.NoError(t, err)

	require.Len(t, res.Collisions, 1)
	ce := res.Collisions[0]
	assert.Equal(t, "a", ce.Key)
	assert.Equal(t, "core/a1.rpak.rdesc", ce.Existing)
	assert.Equal(t, "core/a2.rpak.rdesc", ce.Rejected)
	assert.ErrorIs(t, res.Err(), catalog.ErrDuplicateKey)

	var target *CollisionError
	assert.True(t, errors.As(res.Err(), &target))

	assert.Equal(t, "first", load(t, cat, "a"))
	assert.Equal(t, "z", load(t, cat, "z"))
	assert.Equal(t, 2, res.Containers)
}

func TestScan_RuntimeResourceWins(t *testing.T) {
	ctx := context.Background()
	cat := newCatalog(t)
	store := blobstore.NewMemoryStore()

	_, err := cat.AddRuntimeResource("a", blobType, &asset{Base: catalog.NewBase("a"), Data: []byte("runtime")})
	require.NoError(t, err)
	packBatch(t, store, "mods/m.rpak", entry("a", "mod"), entry("b", "mod-b"))

	g, err := New(cat, libraries(store))
	require.NoError(t, err)
	res, err := g.Scan(ctx)
	require.NoError(t, err)

	require.Len(t, res.Collisions, 1)
	assert.Equal(t, "a", res.Collisions[0].Key)
	assert.Equal(t, "runtime", load(t, cat, "a"))
	assert.Equal(t, "mod-b", load(t, cat, "b"))
}

func TestScan_CancelledLeavesCatalogUntouched(t *testing.T) {
	cat := newCatalog(t)
	store := blobstore.NewMemoryStore()
	packBatch(t, store, "core/base.rpak", entry("a", "a"))

	g, err := New(cat, libraries(store))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = g.Scan(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, cat.Len())

	res, err := g.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Added)
	assert.Equal(t, 1, cat.Len())
}

func TestScan_Repair(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	require.NoError(t, store.Put(ctx, "app/tex.png", []byte("pixels")))
	incomplete := &descriptor.Descriptor{
		DataPath:  "tex.png",
		Resources: []descriptor.Entry{{Key: "tex", Type: blobType}, {Type: blobType}},
	}
	require.NoError(t, descriptor.Write(ctx, store, "app/tex.png.rdesc.json", incomplete))

	t.Run("enabled", func(t *testing.T) {
		cat := newCatalog(t)
		g, err := New(cat, libraries(store))
		require.NoError(t, err)
		res, err := g.Scan(ctx)
		require.NoError(t, err)

		assert.Equal(t, 1, res.Repaired)
		assert.Zero(t, res.Skipped)
		assert.Equal(t, "pixels", load(t, cat, "tex"))
	})

	t.Run("disabled", func(t *testing.T) {
		cat := newCatalog(t)
		g, err := New(cat, libraries(store), WithRepair(false))
		require.NoError(t, err)
		res, err := g.Scan(ctx)
		require.NoError(t, err)

		assert.Equal(t, 1, res.Skipped)
		assert.Zero(t, cat.Len())
	})
}

func TestScan_SkipsUnreadableDescriptor(t *testing.T) {
	ctx := context.Background()
	cat := newCatalog(t)
	store := blobstore.NewMemoryStore()

	packBatch(t, store, "core/good.rpak", entry("a", "a"))
	require.NoError(t, store.Put(ctx, "core/bad.rpak.rdesc", []byte("garbage")))

	g, err := New(cat, libraries(store))
	require.NoError(t, err)
	r := g.Start(ctx)
	res, err := r.Wait()
	require.NoError(t, err)

	assert.Equal(t, 2, res.Descriptors)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 1, cat.Len())

	parse, ok := r.Progress().Phase(PhaseParse)
	require.True(t, ok)
	assert.Equal(t, int64(2), parse.Total)
	assert.Equal(t, int64(1), parse.Done)
	assert.Equal(t, int64(1), parse.Failed)
}

func TestScan_PlatformFilter(t *testing.T) {
	ctx := context.Background()
	cat := newCatalog(t)
	store := blobstore.NewMemoryStore()

	vk := entry("vk", "vulkan only")
	vk.Platforms = model.PlatformVulkan
	packBatch(t, store, "core/gfx.rpak", vk, entry("common", "everywhere"))

	g, err := New(cat, libraries(store), WithPlatform(model.PlatformD3D12))
	require.NoError(t, err)
	res, err := g.Scan(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, res.PlatformSkipped)
	_, ok := cat.Get("vk")
	assert.False(t, ok)
	assert.Equal(t, "everywhere", load(t, cat, "common"))
}

func TestScan_PlatformVariant(t *testing.T) {
	ctx := context.Background()
	cat := newCatalog(t)
	store := blobstore.NewMemoryStore()

	_, err := container.NewPacker(store).PackSingle(ctx, "core/lit.glsl",
		container.Entry{Key: "lit", Type: "shader", Data: []byte("glsl source")})
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, "core/lit.spv", []byte("spir-v bytecode")))

	g, err := New(cat, libraries(store), WithPlatform(model.PlatformVulkan))
	require.NoError(t, err)
	_, err = g.Scan(ctx)
	require.NoError(t, err)

	h, ok := cat.Get("lit")
	require.True(t, ok)
	assert.Equal(t, "core/lit.spv", h.Container())
	_, size := h.Range()
	assert.Equal(t, int64(len("spir-v bytecode")), size)
	assert.Equal(t, "spir-v bytecode", load(t, cat, "lit"))

	ct, ok := cat.Container("core/lit.spv")
	require.True(t, ok)
	require.NoError(t, ct.Verify(ctx))
}

func TestScan_PlatformVariantMissingFallsBack(t *testing.T) {
	ctx := context.Background()
	cat := newCatalog(t)
	store := blobstore.NewMemoryStore()

	_, err := container.NewPacker(store).PackSingle(ctx, "core/lit.glsl",
		container.Entry{Key: "lit", Type: "shader", Data: []byte("glsl source")})
	require.NoError(t, err)

	g, err := New(cat, libraries(store), WithPlatform(model.PlatformMetal))
	require.NoError(t, err)
	_, err = g.Scan(ctx)
	require.NoError(t, err)

	assert.Equal(t, "glsl source", load(t, cat, "lit"))
}

func TestScan_Rescan(t *testing.T) {
	ctx := context.Background()
	cat := newCatalog(t)
	store := blobstore.NewMemoryStore()

	packBatch(t, store, "core/keep.rpak", entry("k", "keep"))
	packBatch(t, store, "core/gone.rpak", entry("g", "gone"))
	packBatch(t, store, "app/change.rpak", entry("c", "v1"))

	g, err := New(cat, libraries(store))
	require.NoError(t, err)
	res, err := g.Scan(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, res.Added)

	kept, ok := cat.Get("k")
	require.True(t, ok)
	require.NoError(t, kept.Load(ctx, true))

	require.NoError(t, store.Delete(ctx, "core/gone.rpak"))
	require.NoError(t, store.Delete(ctx, "core/gone.rpak.rdesc"))
	packBatch(t, store, "app/change.rpak", entry("c", "v2"))
	packBatch(t, store, "mods/new.rpak", entry("n", "new"))

	res, err = g.Scan(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Kept)
	assert.Equal(t, 2, res.Removed)
	assert.Equal(t, 2, res.Added)
	assert.Equal(t, 3, res.Containers)

	// Unchanged containers keep their handles and loaded resources.
	h, ok := cat.Get("k")
	require.True(t, ok)
	assert.Same(t, kept, h)
	assert.True(t, h.Loaded())

	_, ok = cat.Get("g")
	assert.False(t, ok)
	assert.Equal(t, "v2", load(t, cat, "c"))
	assert.Equal(t, "new", load(t, cat, "n"))

	// Nothing changed.
	res, err = g.Scan(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Kept)
	assert.Zero(t, res.Added)
	assert.Zero(t, res.Removed)
}

func TestRun_Cancel(t *testing.T) {
	cat := newCatalog(t)
	store := blobstore.NewMemoryStore()
	packBatch(t, store, "core/base.rpak", entry("a", "a"))

	g, err := New(cat, libraries(store))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := g.Start(ctx)
	r.Cancel()

	select {
	case <-r.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("run did not finish")
	}
	_, err = r.Wait()
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, cat.Len())
}

func TestRun_Progress(t *testing.T) {
	cat := newCatalog(t)
	store := blobstore.NewMemoryStore()
	packBatch(t, store, "core/a.rpak", entry("a", "a"))
	packBatch(t, store, "app/b.rpak", entry("b", "b"))

	g, err := New(cat, libraries(store), WithWorkers(1))
	require.NoError(t, err)
	r := g.Start(context.Background())
	_, err = r.Wait()
	require.NoError(t, err)

	snap := r.Progress()
	for _, name := range []string{PhaseList, PhaseParse, PhaseRegister} {
		ph, ok := snap.Phase(name)
		require.True(t, ok, name)
		assert.Zero(t, ph.Pending(), name)
		assert.Zero(t, ph.Failed, name)
	}
	list, _ := snap.Phase(PhaseList)
	assert.Equal(t, int64(3), list.Done)
	assert.InDelta(t, 1.0, snap.Fraction(), 1e-9)
}
