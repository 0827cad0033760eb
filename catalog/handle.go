package catalog

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/hupe1980/respack/model"
)

// State is the load state of a Handle.
type State uint8

const (
	NotLoaded State = iota
	Queued
	Loading
	Loaded
)

func (s State) String() string {
	switch s {
	case NotLoaded:
		return "not-loaded"
	case Queued:
		return "queued"
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	default:
		return fmt.Sprintf("state(%d)", s)
	}
}

// Handle addresses one resource. The descriptive fields are immutable; the
// load state and the realized resource are guarded by the handle itself.
type Handle struct {
	key       string
	typ       string
	flags     string
	container string
	offset    int64
	size      int64
	deps      []string
	platforms model.Platform
	tier      model.Tier

	catalog *Catalog

	mu      sync.Mutex
	state   State
	res     Resource
	done    chan struct{} // closed when the current load concludes
	gen     uint64        // bumped on every enqueue
	removed bool
	waiters []AssignFunc // fired once the pending load succeeds
}

// Key returns the resource key.
func (h *Handle) Key() string { return h.key }

// Type returns the resource type tag.
func (h *Handle) Type() string { return h.typ }

// Flags returns the free-form import flags.
func (h *Handle) Flags() string { return h.flags }

// Container returns the key of the owning container, empty for runtime resources.
func (h *Handle) Container() string { return h.container }

// Range returns the byte offset and size within the (decompressed) container.
func (h *Handle) Range() (offset, size int64) { return h.offset, h.size }

// Dependencies returns the dependency keys in declaration order.
func (h *Handle) Dependencies() []string { return slices.Clone(h.deps) }

// Platforms returns the platform applicability flags.
func (h *Handle) Platforms() model.Platform { return h.platforms }

// Tier returns the tier of the owning container.
func (h *Handle) Tier() model.Tier { return h.tier }

// State returns the current load state.
func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropDisposedLocked()
	return h.state
}

// Loaded reports whether the handle holds a realized resource.
func (h *Handle) Loaded() bool { return h.State() == Loaded }

// Removed reports whether the handle was removed from its catalog.
func (h *Handle) Removed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.removed
}

// Resource returns the realized resource, or nil if the handle is not loaded.
func (h *Handle) Resource() Resource {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropDisposedLocked()
	if h.state != Loaded {
		return nil
	}
	return h.res
}

// Load loads the resource and its dependencies. With immediate set the import
// runs on the calling goroutine; otherwise it is handed to the import queue.
func (h *Handle) Load(ctx context.Context, immediate bool) error {
	if h == nil || h.catalog == nil {
		return ErrInvalidHandle
	}
	_, err := h.catalog.LoadResource(ctx, h, immediate, nil)
	return err
}

// GetResource returns the realized resource. With load set a missing resource
// is loaded first; immediate selects a synchronous load. ErrNotLoaded is
// returned when the handle is not loaded afterwards, e.g. because the load
// was queued.
func (h *Handle) GetResource(ctx context.Context, load, immediate bool) (Resource, error) {
	if h == nil || h.catalog == nil {
		return nil, ErrInvalidHandle
	}
	if r := h.Resource(); r != nil {
		return r, nil
	}
	if load {
		if err := h.Load(ctx, immediate); err != nil {
			return nil, err
		}
	}
	if r := h.Resource(); r != nil {
		return r, nil
	}
	return nil, fmt.Errorf("%w: %s (%s)", ErrNotLoaded, h.key, h.State())
}

// Unload disposes the realized resource and reverts the handle to NotLoaded.
func (h *Handle) Unload(ctx context.Context) error {
	if h == nil || h.catalog == nil {
		return ErrInvalidHandle
	}
	return h.catalog.Unload(ctx, h)
}

func (h *Handle) String() string {
	return fmt.Sprintf("Handle{key=%s, type=%s, container=%s, state=%s}", h.key, h.typ, h.container, h.State())
}

// GetResource returns the realized resource of h as T.
func GetResource[T Resource](ctx context.Context, h *Handle, load, immediate bool) (T, error) {
	var zero T
	r, err := h.GetResource(ctx, load, immediate)
	if err != nil {
		return zero, err
	}
	t, ok := r.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s is %T", ErrWrongType, h.key, r)
	}
	return t, nil
}

// dropDisposedLocked reverts a handle whose resource was disposed behind its back.
func (h *Handle) dropDisposedLocked() {
	if h.state == Loaded && (h.res == nil || isDisposed(h.res)) {
		h.res = nil
		h.state = NotLoaded
	}
}

// enqueue moves NotLoaded to Queued and returns the generation of the new
// queue entry. ok is false when the handle is already pending or loaded.
// assign is kept until the pending load succeeds; for a loaded handle the
// current resource is returned instead and the caller fires assign.
func (h *Handle) enqueue(assign AssignFunc) (gen uint64, ok bool, loaded Resource, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.removed {
		return 0, false, nil, ErrRemoved
	}
	h.dropDisposedLocked()
	if h.state == Loaded {
		return 0, false, h.res, nil
	}
	if assign != nil {
		h.waiters = append(h.waiters, assign)
	}
	if h.state != NotLoaded {
		return 0, false, nil, nil
	}
	h.gen++
	h.state = Queued
	return h.gen, true, nil, nil
}

// beginQueued moves Queued to Loading for the queue entry of generation gen.
func (h *Handle) beginQueued(gen uint64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.removed || h.state != Queued || h.gen != gen {
		return false
	}
	h.state = Loading
	h.done = make(chan struct{})
	return true
}

// cancelQueued reverts Queued to NotLoaded for the queue entry of generation gen.
func (h *Handle) cancelQueued(gen uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == Queued && h.gen == gen {
		h.state = NotLoaded
		h.waiters = nil
	}
}

// claimResult tells the caller of claim what to do next.
type claimResult uint8

const (
	claimOK     claimResult = iota // caller owns the Loading state
	claimLoaded                    // nothing to do
	claimWait                      // another load is in flight, wait on done
	claimStolen                    // caller owns Loading, drop the queue entry
)

// claim tries to take the Loading state for a synchronous load.
func (h *Handle) claim() (claimResult, <-chan struct{}, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.removed {
		return 0, nil, ErrRemoved
	}
	h.dropDisposedLocked()
	switch h.state {
	case Loaded:
		return claimLoaded, nil, nil
	case Loading:
		return claimWait, h.done, nil
	case Queued:
		h.state = Loading
		h.done = make(chan struct{})
		return claimStolen, nil, nil
	default:
		h.state = Loading
		h.done = make(chan struct{})
		return claimOK, nil, nil
	}
}

// finish concludes a load started by claim or beginQueued. On success r
// becomes the handle's resource and every waiting assign callback fires;
// on failure the callbacks are dropped.
func (h *Handle) finish(r Resource, err error) {
	if err != nil || r == nil {
		h.mu.Lock()
		h.state = NotLoaded
		h.waiters = nil
		h.closeDoneLocked()
		h.mu.Unlock()
		return
	}

	h.setResource(r)

	h.mu.Lock()
	waiters := h.waiters
	h.waiters = nil
	h.closeDoneLocked()
	h.mu.Unlock()

	for _, assign := range waiters {
		assign(r)
	}
}

func (h *Handle) closeDoneLocked() {
	if h.done != nil {
		close(h.done)
		h.done = nil
	}
}

// setResource is the single point where a handle's resource changes. The
// previous resource is disposed before r becomes visible. A nil r reverts
// the handle to NotLoaded.
func (h *Handle) setResource(r Resource) {
	h.mu.Lock()
	old := h.res
	h.res = nil
	if h.state == Loaded {
		h.state = NotLoaded
	}
	h.mu.Unlock()

	if old != nil && old != r {
		bindDisposal(old, nil)
		old.Dispose()
	}
	if r == nil {
		return
	}

	bindDisposal(r, func() { h.disposed(r) })

	h.mu.Lock()
	h.res = r
	h.state = Loaded
	h.mu.Unlock()
}

// disposed is called when r was disposed outside the catalog.
func (h *Handle) disposed(r Resource) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.res == r {
		h.res = nil
		if h.state == Loaded {
			h.state = NotLoaded
		}
	}
}

// inFlight returns the done channel of a load that is currently running,
// or nil when the handle is not Loading.
func (h *Handle) inFlight() <-chan struct{} {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != Loading {
		return nil
	}
	return h.done
}
