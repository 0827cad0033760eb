package catalog

import (
	"log/slog"
	"time"

	"github.com/hupe1980/respack/metrics"
	"github.com/hupe1980/respack/queue"
)

// DefaultLoadTimeout bounds waits for in-flight loads.
const DefaultLoadTimeout = 5 * time.Second

// Queue receives asynchronous loads. *queue.Queue implements it.
type Queue interface {
	Enqueue(job queue.Job) error
	Remove(key string) bool
}

type options struct {
	logger      *slog.Logger
	metrics     metrics.Collector
	queue       Queue
	loadTimeout time.Duration
	importers   *Importers
}

// Option configures a Catalog.
type Option func(*options)

// WithLogger sets the logger. Defaults to discarding.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(mc metrics.Collector) Option {
	return func(o *options) {
		if mc != nil {
			o.metrics = mc
		}
	}
}

// WithQueue sets the queue asynchronous loads are handed to.
// Without a queue, asynchronous loads run inline.
func WithQueue(q Queue) Option {
	return func(o *options) {
		o.queue = q
	}
}

// WithLoadTimeout bounds how long a synchronous load or a removal waits for
// an in-flight load of the same handle.
func WithLoadTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.loadTimeout = d
		}
	}
}

// WithImporters shares an importer registry between catalogs.
func WithImporters(r *Importers) Option {
	return func(o *options) {
		if r != nil {
			o.importers = r
		}
	}
}

// WithImporter registers imp for resourceType. Registration errors panic.
func WithImporter(resourceType string, imp Importer) Option {
	return func(o *options) {
		if err := o.importers.Register(resourceType, imp); err != nil {
			panic(err)
		}
	}
}
