package respack

import (
	"log/slog"
	"time"

	"github.com/hupe1980/respack/catalog"
	"github.com/hupe1980/respack/container"
	"github.com/hupe1980/respack/discovery"
	"github.com/hupe1980/respack/internal/resource"
	"github.com/hupe1980/respack/metrics"
	"github.com/hupe1980/respack/model"
)

type options struct {
	logger           *Logger
	metricsCollector metrics.Collector
	importers        *catalog.Importers
	async            bool
	loadTimeout      time.Duration
	idleInterval     time.Duration
	limits           resource.Config
	platform         model.Platform
	variants         container.VariantRules
	workers          int
	repair           *bool
}

// Option configures Assets.
type Option func(*options)

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := respack.NewJSONLogger(slog.LevelInfo)
//	assets, _ := respack.New(respack.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with the Prometheus adapter:
//
//	mc, _ := prometheus.New(prom.DefaultRegisterer, "game")
//	assets, _ := respack.New(respack.WithMetricsCollector(mc))
func WithMetricsCollector(mc metrics.Collector) Option {
	return func(o *options) {
		if mc == nil {
			mc = metrics.Noop{}
		}
		o.metricsCollector = mc
	}
}

// WithImporter registers the importer of a resource type.
func WithImporter(resourceType string, imp catalog.Importer) Option {
	return func(o *options) {
		if err := o.importers.Register(resourceType, imp); err != nil {
			panic(err)
		}
	}
}

// WithAsync enables or disables the background import queue. Enabled by
// default; without it every load runs on the caller's goroutine.
func WithAsync(enabled bool) Option {
	return func(o *options) {
		o.async = enabled
	}
}

// WithLoadTimeout bounds how long loads and removals wait for an import in
// flight on another goroutine.
func WithLoadTimeout(d time.Duration) Option {
	return func(o *options) {
		o.loadTimeout = d
	}
}

// WithIdleInterval sets how long the import worker sleeps when the queue
// is empty before it polls again.
func WithIdleInterval(d time.Duration) Option {
	return func(o *options) {
		o.idleInterval = d
	}
}

// WithMemoryLimit bounds the bytes held by decompressed batch caches.
func WithMemoryLimit(bytes int64) Option {
	return func(o *options) {
		o.limits.MemoryLimitBytes = bytes
	}
}

// WithIOLimit throttles container reads to bytesPerSec.
func WithIOLimit(bytesPerSec int64) Option {
	return func(o *options) {
		o.limits.IOLimitBytesPerSec = bytesPerSec
	}
}

// WithPlatform sets the active platform used by discovery.
func WithPlatform(p model.Platform) Option {
	return func(o *options) {
		o.platform = p
	}
}

// WithVariants replaces the platform variant rules used by discovery.
func WithVariants(r container.VariantRules) Option {
	return func(o *options) {
		o.variants = r
	}
}

// WithWorkers bounds the number of descriptors parsed concurrently.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithRepair enables or disables repair of incomplete descriptors.
func WithRepair(enabled bool) Option {
	return func(o *options) {
		o.repair = &enabled
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		logger:           NoopLogger(),
		metricsCollector: metrics.Noop{},
		importers:        catalog.NewImporters(),
		async:            true,
		variants:         container.DefaultVariants,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}

func (o options) discoveryOptions(rc *resource.Controller) []discovery.Option {
	opts := []discovery.Option{
		discovery.WithLogger(o.logger.Logger),
		discovery.WithMetrics(o.metricsCollector),
		discovery.WithPlatform(o.platform),
		discovery.WithVariants(o.variants),
		discovery.WithResourceController(rc),
	}
	if o.workers > 0 {
		opts = append(opts, discovery.WithWorkers(o.workers))
	}
	if o.repair != nil {
		opts = append(opts, discovery.WithRepair(*o.repair))
	}
	return opts
}
