package catalog

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hupe1980/respack/blobstore"
	"github.com/hupe1980/respack/container"
	"github.com/hupe1980/respack/descriptor"
	"github.com/hupe1980/respack/model"
	"github.com/hupe1980/respack/queue"
	"github.com/hupe1980/respack/testutil"
	"github.com/stretchr/testify/require"
)

const blobType = "blob"

type blob struct {
	*Base
	Data     []byte
	disposes atomic.Int32
}

func (b *blob) Dispose() {
	b.disposes.Add(1)
	b.Base.Dispose()
}

// recorder is a test importer that records construct order and can hold
// individual keys until released.
type recorder struct {
	mu      sync.Mutex
	order   []string
	counts  map[string]int
	gates   map[string]chan struct{}
	started map[string]chan struct{}
}

func newRecorder() *recorder {
	return &recorder{
		counts:  make(map[string]int),
		gates:   make(map[string]chan struct{}),
		started: make(map[string]chan struct{}),
	}
}

// hold makes the next import of key block until release is called.
func (r *recorder) hold(t *testing.T, key string) (started <-chan struct{}, release func()) {
	t.Helper()
	gate := make(chan struct{})
	st := make(chan struct{})
	r.mu.Lock()
	r.gates[key] = gate
	r.started[key] = st
	r.mu.Unlock()

	var once sync.Once
	release = func() { once.Do(func() { close(gate) }) }
	t.Cleanup(release)
	return st, release
}

func (r *recorder) Order() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.order)
}

func (r *recorder) Count(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[key]
}

func (r *recorder) importer() Importer {
	return NewImporter(
		func(data []byte, flags string) ([]byte, error) {
			switch flags {
			case "fail":
				return nil, errors.New("bad data")
			case "panic":
				panic("boom")
			}
			return slices.Clone(data), nil
		},
		func(h *Handle, data []byte) (Resource, error) {
			r.mu.Lock()
			gate, gated := r.gates[h.Key()]
			st := r.started[h.Key()]
			delete(r.gates, h.Key())
			delete(r.started, h.Key())
			r.mu.Unlock()

			if gated {
				close(st)
				<-gate
			}

			r.mu.Lock()
			r.order = append(r.order, h.Key())
			r.counts[h.Key()]++
			r.mu.Unlock()
			return &blob{Base: NewBase(h.Key()), Data: data}, nil
		},
	)
}

type fixture struct {
	t     *testing.T
	cat   *Catalog
	rec   *recorder
	store *blobstore.MemoryStore
	queue *queue.Queue
	rng   *testutil.RNG
	n     int
}

func newFixture(t *testing.T, async bool, optFns ...Option) *fixture {
	t.Helper()
	f := &fixture{
		t:     t,
		rec:   newRecorder(),
		store: blobstore.NewMemoryStore(),
		rng:   testutil.NewRNG(7),
	}
	opts := []Option{WithImporter(blobType, f.rec.importer())}
	if async {
		f.queue = queue.New(queue.WithIdleInterval(time.Millisecond))
		opts = append(opts, WithQueue(f.queue))
	}
	f.cat = New(append(opts, optFns...)...)

	t.Cleanup(func() {
		if f.queue != nil {
			require.NoError(t, f.queue.Close())
		}
		require.NoError(t, f.cat.Close(context.Background()))
	})
	return f
}

func (f *fixture) entry(key string, size int, deps ...string) container.Entry {
	return container.Entry{Key: key, Type: blobType, Dependencies: deps, Data: f.rng.Bytes(size)}
}

// pack writes entries as one batch container and returns it with the
// resource infos of its descriptor.
func (f *fixture) pack(entries ...container.Entry) (*container.Container, []ResourceInfo) {
	f.t.Helper()
	f.n++
	dataPath := fmt.Sprintf("pak/%02d%s", f.n, model.BatchExt)

	d, err := container.NewPacker(f.store).PackBatch(context.Background(), dataPath, entries)
	require.NoError(f.t, err)
	ct, err := container.FromDescriptor(f.store, dataPath, model.TierCore, d, nil, nil)
	require.NoError(f.t, err)
	return ct, infosOf(d)
}

// add packs entries and registers them.
func (f *fixture) add(entries ...container.Entry) []*Handle {
	f.t.Helper()
	ct, infos := f.pack(entries...)
	hs, err := f.cat.AddFile(ct, infos...)
	require.NoError(f.t, err)
	return hs
}

func (f *fixture) get(key string) *Handle {
	f.t.Helper()
	h, ok := f.cat.Get(key)
	require.True(f.t, ok, key)
	return h
}

func infosOf(d *descriptor.Descriptor) []ResourceInfo {
	infos := make([]ResourceInfo, 0, len(d.Resources))
	for _, e := range d.Resources {
		infos = append(infos, ResourceInfo{
			Key:          e.Key,
			Type:         e.Type,
			Flags:        e.Flags,
			Offset:       e.Offset,
			Size:         e.Size,
			Dependencies: e.Dependencies,
			Platforms:    e.Platforms,
		})
	}
	return infos
}

func waitState(t *testing.T, h *Handle, want State) {
	t.Helper()
	require.Eventually(t, func() bool { return h.State() == want }, 2*time.Second, time.Millisecond,
		"%s: want %s, have %s", h.Key(), want, h.State())
}
