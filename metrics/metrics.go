// Package metrics defines the hook through which the catalog, the import
// queue and discovery report operational events.
//
// Implement Collector to integrate with a monitoring system; the
// metrics/prometheus package provides a ready-made adapter.
package metrics

import (
	"sync/atomic"
	"time"
)

// Collector receives operational events. Implementations must be safe for
// concurrent use and must not block.
type Collector interface {
	// RecordImport is called after each import attempt of a resource.
	RecordImport(resourceType string, duration time.Duration, err error)

	// RecordDependencyFailures is called when a load finished with n failed
	// dependencies (n > 0).
	RecordDependencyFailures(n int)

	// RecordQueueDepth is called when the number of pending imports changes.
	RecordQueueDepth(depth int)

	// RecordDiscovery is called after each discovery scan.
	RecordDiscovery(duration time.Duration, containers, resources, skipped int, err error)

	// RecordRemove is called after each resource removal.
	RecordRemove(duration time.Duration, err error)

	// RecordVerify is called after a verification pass over containers.
	RecordVerify(checked, corrupt int)
}

// Noop is a Collector that discards all events.
type Noop struct{}

func (Noop) RecordImport(string, time.Duration, error)           {}
func (Noop) RecordDependencyFailures(int)                        {}
func (Noop) RecordQueueDepth(int)                                {}
func (Noop) RecordDiscovery(time.Duration, int, int, int, error) {}
func (Noop) RecordRemove(time.Duration, error)                   {}
func (Noop) RecordVerify(int, int)                               {}

// Basic provides simple in-memory metrics collection.
// Useful for debugging and tests without external dependencies.
type Basic struct {
	ImportCount        atomic.Int64
	ImportErrors       atomic.Int64
	ImportTotalNanos   atomic.Int64
	DependencyFailures atomic.Int64
	QueueDepth         atomic.Int64
	DiscoveryCount     atomic.Int64
	DiscoveryErrors    atomic.Int64
	Containers         atomic.Int64
	Resources          atomic.Int64
	Skipped            atomic.Int64
	RemoveCount        atomic.Int64
	RemoveErrors       atomic.Int64
	Verified           atomic.Int64
	Corrupt            atomic.Int64
}

// RecordImport implements Collector.
func (b *Basic) RecordImport(_ string, duration time.Duration, err error) {
	b.ImportCount.Add(1)
	b.ImportTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.ImportErrors.Add(1)
	}
}

// RecordDependencyFailures implements Collector.
func (b *Basic) RecordDependencyFailures(n int) {
	b.DependencyFailures.Add(int64(n))
}

// RecordQueueDepth implements Collector.
func (b *Basic) RecordQueueDepth(depth int) {
	b.QueueDepth.Store(int64(depth))
}

// RecordDiscovery implements Collector.
func (b *Basic) RecordDiscovery(_ time.Duration, containers, resources, skipped int, err error) {
	b.DiscoveryCount.Add(1)
	if err != nil {
		b.DiscoveryErrors.Add(1)
		return
	}
	b.Containers.Store(int64(containers))
	b.Resources.Store(int64(resources))
	b.Skipped.Store(int64(skipped))
}

// RecordRemove implements Collector.
func (b *Basic) RecordRemove(_ time.Duration, err error) {
	b.RemoveCount.Add(1)
	if err != nil {
		b.RemoveErrors.Add(1)
	}
}

// RecordVerify implements Collector.
func (b *Basic) RecordVerify(checked, corrupt int) {
	b.Verified.Add(int64(checked))
	b.Corrupt.Add(int64(corrupt))
}

// Stats returns a snapshot of current metrics.
func (b *Basic) Stats() BasicStats {
	s := BasicStats{
		ImportCount:        b.ImportCount.Load(),
		ImportErrors:       b.ImportErrors.Load(),
		DependencyFailures: b.DependencyFailures.Load(),
		QueueDepth:         b.QueueDepth.Load(),
		DiscoveryCount:     b.DiscoveryCount.Load(),
		DiscoveryErrors:    b.DiscoveryErrors.Load(),
		Containers:         b.Containers.Load(),
		Resources:          b.Resources.Load(),
		Skipped:            b.Skipped.Load(),
		RemoveCount:        b.RemoveCount.Load(),
		RemoveErrors:       b.RemoveErrors.Load(),
		Verified:           b.Verified.Load(),
		Corrupt:            b.Corrupt.Load(),
	}
	if s.ImportCount > 0 {
		s.ImportAvgNanos = b.ImportTotalNanos.Load() / s.ImportCount
	}
	return s
}

// BasicStats is a snapshot of Basic.
type BasicStats struct {
	ImportCount        int64
	ImportErrors       int64
	ImportAvgNanos     int64
	DependencyFailures int64
	QueueDepth         int64
	DiscoveryCount     int64
	DiscoveryErrors    int64
	Containers         int64
	Resources          int64
	Skipped            int64
	RemoveCount        int64
	RemoveErrors       int64
	Verified           int64
	Corrupt            int64
}

var (
	_ Collector = Noop{}
	_ Collector = (*Basic)(nil)
)
