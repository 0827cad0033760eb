package respack

import (
	"github.com/hupe1980/respack/catalog"
	"github.com/hupe1980/respack/progress"
	"github.com/hupe1980/respack/queue"
)

// Stats is a point-in-time view of the asset pipeline.
type Stats struct {
	Catalog catalog.Stats
	Queue   queue.Stats
	// Imports counts asynchronous imports since creation.
	Imports progress.PhaseSnapshot
	// CacheBytes is the memory held by decompressed batch caches.
	CacheBytes int64
}

// Stats returns current counters.
func (a *Assets) Stats() Stats {
	s := Stats{
		Catalog:    a.cat.Stats(),
		CacheBytes: a.rc.MemoryUsage(),
	}
	if a.queue != nil {
		s.Queue = a.queue.Stats()
	}
	if ph, ok := a.imports.Snapshot().Phase(queue.PhaseImport); ok {
		s.Imports = ph
	}
	return s
}
