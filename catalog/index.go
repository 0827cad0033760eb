package catalog

import (
	"maps"
	"slices"

	"github.com/hupe1980/respack/container"
)

// index is an immutable snapshot of the catalog. Writers clone it, modify
// the clone and publish it with a single pointer swap.
type index struct {
	handles     map[string]*Handle
	containers  map[string]*container.Container
	byType      map[string][]*Handle
	byContainer map[string][]*Handle
}

func newIndex() *index {
	return &index{
		handles:     make(map[string]*Handle),
		containers:  make(map[string]*container.Container),
		byType:      make(map[string][]*Handle),
		byContainer: make(map[string][]*Handle),
	}
}

func (ix *index) clone() *index {
	return &index{
		handles:     maps.Clone(ix.handles),
		containers:  maps.Clone(ix.containers),
		byType:      maps.Clone(ix.byType),
		byContainer: maps.Clone(ix.byContainer),
	}
}

// The slices in byType and byContainer are shared between snapshots and
// are never modified in place.

func (ix *index) addHandle(h *Handle) {
	ix.handles[h.key] = h
	ix.byType[h.typ] = append(slices.Clip(ix.byType[h.typ]), h)
	if h.container != "" {
		ix.byContainer[h.container] = append(slices.Clip(ix.byContainer[h.container]), h)
	}
}

func (ix *index) removeHandle(h *Handle) {
	if ix.handles[h.key] != h {
		return
	}
	delete(ix.handles, h.key)
	ix.byType[h.typ] = without(ix.byType[h.typ], h)
	if len(ix.byType[h.typ]) == 0 {
		delete(ix.byType, h.typ)
	}
	if h.container != "" {
		ix.byContainer[h.container] = without(ix.byContainer[h.container], h)
		if len(ix.byContainer[h.container]) == 0 {
			delete(ix.byContainer, h.container)
		}
	}
}

func (ix *index) removeContainer(key string) {
	for _, h := range ix.byContainer[key] {
		ix.removeHandle(h)
	}
	delete(ix.containers, key)
	delete(ix.byContainer, key)
}

func without(hs []*Handle, h *Handle) []*Handle {
	return slices.DeleteFunc(slices.Clone(hs), func(x *Handle) bool { return x == h })
}
