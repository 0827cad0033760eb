// Package prometheus adapts metrics.Collector to Prometheus.
//
//	reg := prometheus.NewRegistry()
//	c, err := promcollector.New(reg, "game")
//	assets, err := respack.New(respack.WithMetrics(c))
package prometheus

import (
	"time"

	"github.com/hupe1980/respack/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// Collector exports respack events as Prometheus metrics.
type Collector struct {
	importLatency      *prometheus.HistogramVec
	dependencyFailures prometheus.Counter
	queueDepth         prometheus.Gauge
	discoveryLatency   *prometheus.HistogramVec
	catalogSize        *prometheus.GaugeVec
	removes            *prometheus.CounterVec
	verified           *prometheus.CounterVec
}

var _ metrics.Collector = (*Collector)(nil)

// New creates a collector and registers its metrics with reg.
// namespace prefixes every metric name and may be empty.
func New(reg prometheus.Registerer, namespace string) (*Collector, error) {
	c := &Collector{
		importLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "respack",
			Name:      "import_duration_seconds",
			Help:      "Latency of resource imports",
			Buckets:   prometheus.DefBuckets,
		}, []string{"type", "status"}),
		dependencyFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "respack",
			Name:      "dependency_failures_total",
			Help:      "Dependencies that failed to load while loading a dependent",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "respack",
			Name:      "import_queue_depth",
			Help:      "Pending imports in the import queue",
		}),
		discoveryLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "respack",
			Name:      "discovery_duration_seconds",
			Help:      "Latency of discovery scans",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
		catalogSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "respack",
			Name:      "discovered",
			Help:      "Result counts of the last successful discovery scan",
		}, []string{"kind"}),
		removes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "respack",
			Name:      "removes_total",
			Help:      "Resource removals",
		}, []string{"status"}),
		verified: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "respack",
			Name:      "verified_containers_total",
			Help:      "Containers checked by integrity verification",
		}, []string{"status"}),
	}

	for _, m := range []prometheus.Collector{
		c.importLatency, c.dependencyFailures, c.queueDepth,
		c.discoveryLatency, c.catalogSize, c.removes, c.verified,
	} {
		if err := reg.Register(m); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordImport implements metrics.Collector.
func (c *Collector) RecordImport(resourceType string, d time.Duration, err error) {
	c.importLatency.WithLabelValues(resourceType, status(err)).Observe(d.Seconds())
}

// RecordDependencyFailures implements metrics.Collector.
func (c *Collector) RecordDependencyFailures(n int) {
	c.dependencyFailures.Add(float64(n))
}

// RecordQueueDepth implements metrics.Collector.
func (c *Collector) RecordQueueDepth(depth int) {
	c.queueDepth.Set(float64(depth))
}

// RecordDiscovery implements metrics.Collector.
func (c *Collector) RecordDiscovery(d time.Duration, containers, resources, skipped int, err error) {
	c.discoveryLatency.WithLabelValues(status(err)).Observe(d.Seconds())
	if err != nil {
		return
	}
	c.catalogSize.WithLabelValues("containers").Set(float64(containers))
	c.catalogSize.WithLabelValues("resources").Set(float64(resources))
	c.catalogSize.WithLabelValues("skipped").Set(float64(skipped))
}

// RecordRemove implements metrics.Collector.
func (c *Collector) RecordRemove(_ time.Duration, err error) {
	c.removes.WithLabelValues(status(err)).Inc()
}

// RecordVerify implements metrics.Collector.
func (c *Collector) RecordVerify(checked, corrupt int) {
	c.verified.WithLabelValues("ok").Add(float64(checked - corrupt))
	c.verified.WithLabelValues("corrupt").Add(float64(corrupt))
}
