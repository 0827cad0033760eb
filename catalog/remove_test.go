package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/hupe1980/respack/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoveResource_Loaded(t *testing.T) {
	mc := &metrics.Basic{}
	f := newFixture(t, false, WithMetrics(mc))
	f.add(f.entry("a", 8), f.entry("b", 8))
	ctx := context.Background()

	h := f.get("a")
	require.NoError(t, h.Load(ctx, true))
	r := h.Resource().(*blob)

	require.NoError(t, f.cat.RemoveResource(ctx, "a"))
	_, ok := f.cat.Get("a")
	assert.False(t, ok)
	assert.True(t, r.Disposed())
	assert.True(t, h.Removed())
	assert.ErrorIs(t, h.Load(ctx, true), ErrRemoved)

	for h := range f.cat.ByType(blobType) {
		assert.NotEqual(t, "a", h.Key())
	}
	assert.Len(t, f.cat.HandlesOf(h.Container()), 1)

	assert.ErrorIs(t, f.cat.RemoveResource(ctx, "a"), ErrNotFound)
	assert.Equal(t, int64(2), mc.RemoveCount.Load())
	assert.Equal(t, int64(1), mc.RemoveErrors.Load())
}

func TestRemoveResource_Queued(t *testing.T) {
	f := newFixture(t, true)
	f.add(f.entry("gate", 8), f.entry("x", 8))
	ctx := context.Background()

	started, release := f.rec.hold(t, "gate")
	_, err := f.cat.Load(ctx, "gate", false)
	require.NoError(t, err)
	<-started

	_, err = f.cat.Load(ctx, "x", false)
	require.NoError(t, err)
	x := f.get("x")

	require.NoError(t, f.cat.RemoveResource(ctx, "x"))
	assert.Equal(t, NotLoaded, x.State())
	assert.False(t, f.queue.Contains("x"))

	release()
	waitState(t, f.get("gate"), Loaded)
	assert.Zero(t, f.rec.Count("x"))
}

func TestRemoveResource_WaitsForLoading(t *testing.T) {
	f := newFixture(t, true)
	f.add(f.entry("slow", 8))
	ctx := context.Background()

	started, release := f.rec.hold(t, "slow")
	_, err := f.cat.Load(ctx, "slow", false)
	require.NoError(t, err)
	<-started
	h := f.get("slow")

	done := make(chan error, 1)
	go func() { done <- f.cat.RemoveResource(ctx, "slow") }()

	select {
	case <-done:
		t.Fatal("remove returned while the load was in flight")
	case <-time.After(20 * time.Millisecond):
	}
	_, ok := f.cat.Get("slow")
	assert.True(t, ok)

	release()
	require.NoError(t, <-done)

	_, ok = f.cat.Get("slow")
	assert.False(t, ok)
	assert.Equal(t, NotLoaded, h.State())
	assert.Nil(t, h.Resource())
	assert.Equal(t, 1, f.rec.Count("slow"))
}

func TestRemoveResource_Timeout(t *testing.T) {
	f := newFixture(t, true, WithLoadTimeout(20*time.Millisecond))
	f.add(f.entry("slow", 8))
	ctx := context.Background()

	started, release := f.rec.hold(t, "slow")
	_, err := f.cat.Load(ctx, "slow", false)
	require.NoError(t, err)
	<-started

	err = f.cat.RemoveResource(ctx, "slow")
	assert.ErrorIs(t, err, ErrLoadTimeout)
	_, ok := f.cat.Get("slow")
	assert.True(t, ok, "entry stays registered")

	release()
	waitState(t, f.get("slow"), Loaded)
	require.NoError(t, f.cat.RemoveResource(ctx, "slow"))
}

func TestUnload_Queued(t *testing.T) {
	f := newFixture(t, true)
	f.add(f.entry("gate", 8), f.entry("x", 8))
	ctx := context.Background()

	started, release := f.rec.hold(t, "gate")
	_, err := f.cat.Load(ctx, "gate", false)
	require.NoError(t, err)
	<-started

	_, err = f.cat.Load(ctx, "x", false)
	require.NoError(t, err)
	require.NoError(t, f.get("x").Unload(ctx))
	assert.Equal(t, NotLoaded, f.get("x").State())

	release()
	waitState(t, f.get("gate"), Loaded)
	assert.Zero(t, f.rec.Count("x"))

	// The handle stays registered and loadable.
	require.NoError(t, f.get("x").Load(ctx, true))
}
