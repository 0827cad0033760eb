package catalog

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
)

// Importer realizes resources of one type from container bytes.
type Importer interface {
	// Decode turns the raw bytes of a resource into an intermediate form.
	// data must not be retained past the call unless copied; it may alias
	// a shared container cache.
	Decode(data []byte, flags string) (any, error)
	// Construct builds the final Resource for h from the intermediate form.
	Construct(h *Handle, intermediate any) (Resource, error)
}

type typedImporter[I any] struct {
	decode    func(data []byte, flags string) (I, error)
	construct func(h *Handle, intermediate I) (Resource, error)
}

// NewImporter returns an Importer from a typed decode/construct pair.
func NewImporter[I any](
	decode func(data []byte, flags string) (I, error),
	construct func(h *Handle, intermediate I) (Resource, error),
) Importer {
	return &typedImporter[I]{decode: decode, construct: construct}
}

func (t *typedImporter[I]) Decode(data []byte, flags string) (any, error) {
	return t.decode(data, flags)
}

func (t *typedImporter[I]) Construct(h *Handle, intermediate any) (Resource, error) {
	v, ok := intermediate.(I)
	if !ok {
		var zero I
		return nil, fmt.Errorf("intermediate is %T, want %T", intermediate, zero)
	}
	return t.construct(h, v)
}

// Importers maps resource types to importers. It is safe for concurrent use.
type Importers struct {
	mu    sync.RWMutex
	types map[string]Importer
}

// NewImporters creates an empty registry.
func NewImporters() *Importers {
	return &Importers{types: make(map[string]Importer)}
}

// Register adds imp for resourceType. Registering a type twice is an error.
func (r *Importers) Register(resourceType string, imp Importer) error {
	if resourceType == "" {
		return errors.New("catalog: blank resource type")
	}
	if imp == nil {
		return fmt.Errorf("catalog: nil importer for %q", resourceType)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.types[resourceType]; ok {
		return fmt.Errorf("%w: importer for %q", ErrDuplicateKey, resourceType)
	}
	r.types[resourceType] = imp
	return nil
}

// Lookup returns the importer for resourceType.
func (r *Importers) Lookup(resourceType string) (Importer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	imp, ok := r.types[resourceType]
	return imp, ok
}

// Types returns the registered types in sorted order.
func (r *Importers) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.types))
}
