package catalog

import (
	"cmp"
	"fmt"
	"iter"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/respack/container"
	"github.com/hupe1980/respack/internal/conv"
	"github.com/hupe1980/respack/metrics"
	"github.com/hupe1980/respack/model"
)

// ResourceInfo describes a resource to register inside a container.
type ResourceInfo struct {
	Key          string
	Type         string
	Flags        string
	Offset       int64
	Size         int64
	Dependencies []string
	Platforms    model.Platform
}

// File is a container together with the resources to register from it.
type File struct {
	Container *container.Container
	Resources []ResourceInfo
}

// Catalog is the registry of handles and containers.
type Catalog struct {
	opts   options
	logger *slog.Logger

	mu     sync.Mutex // serializes structural writes
	idx    atomic.Pointer[index]
	closed atomic.Bool
}

// New creates an empty catalog.
func New(optFns ...Option) *Catalog {
	opts := options{
		logger:      slog.New(slog.DiscardHandler),
		metrics:     metrics.Noop{},
		loadTimeout: DefaultLoadTimeout,
		importers:   NewImporters(),
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	c := &Catalog{opts: opts, logger: opts.logger}
	c.idx.Store(newIndex())
	return c
}

// Importers returns the importer registry.
func (c *Catalog) Importers() *Importers { return c.opts.importers }

// Get returns the handle registered under key.
func (c *Catalog) Get(key string) (*Handle, bool) {
	h, ok := c.idx.Load().handles[key]
	return h, ok
}

// Container returns the container registered under key.
func (c *Catalog) Container(key string) (*container.Container, bool) {
	ct, ok := c.idx.Load().containers[key]
	return ct, ok
}

// Len returns the number of registered handles.
func (c *Catalog) Len() int { return len(c.idx.Load().handles) }

// AddFile registers a container and the given resources inside it.
// Nil, invalid and duplicate entries are rejected; nothing is registered
// on error.
func (c *Catalog) AddFile(ct *container.Container, resources ...ResourceInfo) ([]*Handle, error) {
	return c.Publish([]File{{Container: ct, Resources: resources}})
}

// AddResource registers one resource inside an already registered container.
func (c *Catalog) AddResource(containerKey string, info ResourceInfo) (*Handle, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	cur := c.idx.Load()
	ct, ok := cur.containers[containerKey]
	if !ok {
		err := fmt.Errorf("%w: container %q", ErrNotFound, containerKey)
		c.logger.Warn("rejected resource", "key", info.Key, "container", containerKey, "error", err)
		return nil, err
	}
	err := c.validate(cur, nil, ct, info)
	if err == nil && ct.Kind() == model.KindSingle && len(cur.byContainer[containerKey]) > 0 {
		err = fmt.Errorf("%w: %s: single container %s is occupied", ErrInvalidHandle, info.Key, containerKey)
	}
	if err != nil {
		c.logger.Warn("rejected resource", "key", info.Key, "container", containerKey, "error", err)
		return nil, err
	}

	next := cur.clone()
	h := c.newHandle(ct, info)
	next.addHandle(h)
	c.idx.Store(next)
	return h, nil
}

// Publish registers many containers and their resources with one atomic
// index swap. Either everything is registered or nothing is.
func (c *Catalog) Publish(files []File) ([]*Handle, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	cur := c.idx.Load()
	staged := make(map[string]struct{})
	stagedContainers := make(map[string]struct{}, len(files))

	var n int
	for _, f := range files {
		if err := c.validateContainer(cur, stagedContainers, f); err != nil {
			return nil, err
		}
		for _, info := range f.Resources {
			if err := c.validate(cur, staged, f.Container, info); err != nil {
				c.logger.Warn("rejected resource", "key", info.Key, "container", f.Container.Key(), "error", err)
				return nil, err
			}
			staged[info.Key] = struct{}{}
		}
		stagedContainers[f.Container.Key()] = struct{}{}
		n += len(f.Resources)
	}

	next := cur.clone()
	handles := make([]*Handle, 0, n)
	for _, f := range files {
		next.containers[f.Container.Key()] = f.Container
		for _, info := range f.Resources {
			h := c.newHandle(f.Container, info)
			next.addHandle(h)
			handles = append(handles, h)
		}
	}
	c.idx.Store(next)
	return handles, nil
}

// AddRuntimeResource registers a programmatically created resource. The
// handle has tier Runtime, no container and is Loaded immediately. Once
// unloaded it cannot be imported again.
func (c *Catalog) AddRuntimeResource(key, resourceType string, r Resource) (*Handle, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	switch {
	case strings.TrimSpace(key) == "":
		return nil, fmt.Errorf("%w: blank key", ErrInvalidHandle)
	case strings.TrimSpace(resourceType) == "":
		return nil, fmt.Errorf("%w: %s: blank type", ErrInvalidHandle, key)
	case r == nil:
		return nil, fmt.Errorf("%w: %s: nil resource", ErrInvalidHandle, key)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	cur := c.idx.Load()
	if _, ok := cur.handles[key]; ok {
		err := fmt.Errorf("%w: %s", ErrDuplicateKey, key)
		c.logger.Warn("rejected runtime resource", "key", key, "error", err)
		return nil, err
	}

	h := &Handle{key: key, typ: resourceType, tier: model.TierRuntime, catalog: c}
	h.setResource(r)

	next := cur.clone()
	next.addHandle(h)
	c.idx.Store(next)
	return h, nil
}

func (c *Catalog) validateContainer(cur *index, staged map[string]struct{}, f File) error {
	ct := f.Container
	if ct == nil {
		return fmt.Errorf("%w: nil", ErrInvalidContainer)
	}
	key := ct.Key()
	var err error
	switch {
	case ct.Size() <= 0:
		err = fmt.Errorf("%w: %s: size %d", ErrInvalidContainer, key, ct.Size())
	case len(f.Resources) == 0:
		err = fmt.Errorf("%w: %s: no resources", ErrInvalidContainer, key)
	case ct.Kind() == model.KindSingle && len(f.Resources) != 1:
		err = fmt.Errorf("%w: %s: single container with %d resources", ErrInvalidContainer, key, len(f.Resources))
	}
	if err == nil {
		_, dup := cur.containers[key]
		_, stagedDup := staged[key]
		if dup || stagedDup {
			err = fmt.Errorf("%w: container %s", ErrDuplicateKey, key)
		}
	}
	if err != nil {
		c.logger.Warn("rejected container", "container", key, "error", err)
	}
	return err
}

func (c *Catalog) validate(cur *index, staged map[string]struct{}, ct *container.Container, info ResourceInfo) error {
	switch {
	case strings.TrimSpace(info.Key) == "":
		return fmt.Errorf("%w: blank key", ErrInvalidHandle)
	case strings.TrimSpace(info.Type) == "":
		return fmt.Errorf("%w: %s: blank type", ErrInvalidHandle, info.Key)
	case info.Offset < 0 || info.Size < 0:
		return fmt.Errorf("%w: %s: range [%d,+%d)", ErrInvalidHandle, info.Key, info.Offset, info.Size)
	}

	switch ct.Kind() {
	case model.KindSingle:
		if info.Offset != 0 || info.Size != ct.Size() {
			return fmt.Errorf("%w: %s: single resource must span the file", ErrInvalidHandle, info.Key)
		}
	case model.KindBatchCompressed:
		if !conv.RangeWithin(info.Offset, info.Size, ct.UncompressedSize()) {
			return fmt.Errorf("%w: %s: range [%d,+%d) exceeds %d", ErrInvalidHandle, info.Key, info.Offset, info.Size, ct.UncompressedSize())
		}
	}

	if _, ok := cur.handles[info.Key]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateKey, info.Key)
	}
	if _, ok := staged[info.Key]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateKey, info.Key)
	}
	return nil
}

func (c *Catalog) newHandle(ct *container.Container, info ResourceInfo) *Handle {
	return &Handle{
		key:       info.Key,
		typ:       info.Type,
		flags:     info.Flags,
		container: ct.Key(),
		offset:    info.Offset,
		size:      info.Size,
		deps:      slices.Clone(info.Dependencies),
		platforms: info.Platforms,
		tier:      ct.Tier(),
		catalog:   c,
	}
}

// All iterates the registered handles in key order. With loadedOnly set only
// handles holding a realized resource are yielded.
func (c *Catalog) All(loadedOnly bool) iter.Seq[*Handle] {
	cur := c.idx.Load()
	return func(yield func(*Handle) bool) {
		for _, key := range slices.Sorted(maps.Keys(cur.handles)) {
			h := cur.handles[key]
			if loadedOnly && !h.Loaded() {
				continue
			}
			if !yield(h) {
				return
			}
		}
	}
}

// ByType iterates the handles of one resource type in key order.
func (c *Catalog) ByType(resourceType string) iter.Seq[*Handle] {
	hs := slices.SortedFunc(slices.Values(c.idx.Load().byType[resourceType]), func(a, b *Handle) int {
		return cmp.Compare(a.key, b.key)
	})
	return slices.Values(hs)
}

// Types returns the registered resource types in sorted order.
func (c *Catalog) Types() []string {
	return slices.Sorted(maps.Keys(c.idx.Load().byType))
}

// Containers iterates the registered containers in key order.
func (c *Catalog) Containers() iter.Seq[*container.Container] {
	cur := c.idx.Load()
	return func(yield func(*container.Container) bool) {
		for _, key := range slices.Sorted(maps.Keys(cur.containers)) {
			if !yield(cur.containers[key]) {
				return
			}
		}
	}
}

// HandlesOf returns the handles registered from container key.
func (c *Catalog) HandlesOf(key string) []*Handle {
	return slices.Clone(c.idx.Load().byContainer[key])
}

// Stats counts handles per state.
type Stats struct {
	Handles          int
	Containers       int
	CachedContainers int
	Types            int
	NotLoaded        int
	Queued           int
	Loading          int
	Loaded           int
}

// Stats returns a snapshot of the catalog counters.
func (c *Catalog) Stats() Stats {
	cur := c.idx.Load()
	s := Stats{
		Handles:    len(cur.handles),
		Containers: len(cur.containers),
		Types:      len(cur.byType),
	}
	for _, ct := range cur.containers {
		if ct.Cached() {
			s.CachedContainers++
		}
	}
	for _, h := range cur.handles {
		switch h.State() {
		case NotLoaded:
			s.NotLoaded++
		case Queued:
			s.Queued++
		case Loading:
			s.Loading++
		case Loaded:
			s.Loaded++
		}
	}
	return s
}

func (c *Catalog) checkHandle(h *Handle) error {
	if h == nil || h.catalog != c {
		return ErrInvalidHandle
	}
	if c.closed.Load() {
		return ErrClosed
	}
	return nil
}
