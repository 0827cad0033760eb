package catalog

import (
	"sync"
	"sync/atomic"
)

// Resource is a realized asset owned by exactly one Handle.
type Resource interface {
	// Key returns the key of the owning handle.
	Key() string
	// Dispose releases the resource. It must be safe to call more than once.
	Dispose()
}

// Base is embedded by resource implementations to get a key back-reference
// and disposal tracking:
//
//	type Texture struct {
//		*catalog.Base
//		Pixels []byte
//	}
//
//	func (t *Texture) Dispose() {
//		t.Pixels = nil
//		t.Base.Dispose()
//	}
//
// Disposing a resource built on Base reverts its handle to NotLoaded.
type Base struct {
	key      string
	disposed atomic.Bool

	mu        sync.Mutex
	onDispose func()
}

// NewBase returns a Base for the handle key.
func NewBase(key string) *Base {
	return &Base{key: key}
}

// Key implements Resource.
func (b *Base) Key() string { return b.key }

// Disposed reports whether Dispose was called.
func (b *Base) Disposed() bool { return b.disposed.Load() }

// Dispose implements Resource.
func (b *Base) Dispose() {
	if b.disposed.Swap(true) {
		return
	}
	b.mu.Lock()
	fn := b.onDispose
	b.onDispose = nil
	b.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (b *Base) bindDisposal(fn func()) {
	b.mu.Lock()
	b.onDispose = fn
	b.mu.Unlock()
}

type disposalBinder interface {
	bindDisposal(fn func())
}

type disposedReporter interface {
	Disposed() bool
}

func isDisposed(r Resource) bool {
	d, ok := r.(disposedReporter)
	return ok && d.Disposed()
}

func bindDisposal(r Resource, fn func()) {
	if b, ok := r.(disposalBinder); ok {
		b.bindDisposal(fn)
	}
}
