package discovery

import (
	"log/slog"
	"runtime"

	"github.com/hupe1980/respack/container"
	"github.com/hupe1980/respack/internal/resource"
	"github.com/hupe1980/respack/metrics"
	"github.com/hupe1980/respack/model"
)

type options struct {
	logger     *slog.Logger
	metrics    metrics.Collector
	platform   model.Platform
	variants   container.VariantRules
	workers    int
	repair     bool
	controller *resource.Controller
}

// Option configures a Gatherer.
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

// WithPlatform sets the active platform. Entries not applicable to it are
// skipped and platform variants of single containers are resolved for it.
func WithPlatform(p model.Platform) Option {
	return func(o *options) {
		o.platform = p
	}
}

// WithVariants replaces the platform variant rules. Defaults to
// container.DefaultVariants.
func WithVariants(r container.VariantRules) Option {
	return func(o *options) {
		o.variants = r
	}
}

// WithWorkers bounds the number of descriptors parsed concurrently.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithRepair enables or disables best-effort repair of incomplete
// descriptors. Enabled by default; when disabled they are skipped.
func WithRepair(enabled bool) Option {
	return func(o *options) {
		o.repair = enabled
	}
}

// WithResourceController shares a resource controller with the created
// containers (decompressed cache memory, read throttling) and bounds
// parsing by its background worker slots.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.controller = rc
	}
}

func defaultOptions() options {
	return options{
		logger:   slog.New(slog.DiscardHandler),
		metrics:  metrics.Noop{},
		variants: container.DefaultVariants,
		workers:  runtime.GOMAXPROCS(0),
		repair:   true,
	}
}
