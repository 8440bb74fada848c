package metrics

import (
	"net/http"
	"time"

	"redis2redis/internal/progress"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector collects and exposes metrics
type Collector struct {
	registry        *prometheus.Registry
	keysTotal       *prometheus.CounterVec
	bytesTotal      prometheus.Counter
	batchDuration   prometheus.Histogram
	progressTracker *progress.Tracker
}

// New creates a new metrics collector
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		keysTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "migrate_keys_total",
				Help: "Total number of keys processed",
			},
			[]string{"status"},
		),
		bytesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "migrate_bytes_total",
				Help: "Total bytes transferred to the target",
			},
		),
		batchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "migrate_batch_duration_seconds",
				Help:    "Time taken to route and transfer one scan batch",
				Buckets: prometheus.DefBuckets,
			},
		),
		progressTracker: progress.NewTracker(),
	}

	c.registry.MustRegister(c.keysTotal)
	c.registry.MustRegister(c.bytesTotal)
	c.registry.MustRegister(c.batchDuration)

	return c
}

// IncTransferred counts one key written to the target. Size may be negative
// when the source could not report it.
func (c *Collector) IncTransferred(size int64) {
	c.keysTotal.WithLabelValues("transferred").Inc()
	if size > 0 {
		c.bytesTotal.Add(float64(size))
	}
	c.progressTracker.AddTransferred(1)
}

// IncDeferred counts one key routed to the manifest
func (c *Collector) IncDeferred() {
	c.keysTotal.WithLabelValues("deferred").Inc()
	c.progressTracker.AddDeferred(1)
}

// IncFailed counts one key that could not be transferred
func (c *Collector) IncFailed() {
	c.keysTotal.WithLabelValues("failed").Inc()
	c.progressTracker.AddFailed(1)
}

// ObserveBatchDuration observes one scan batch's processing time
func (c *Collector) ObserveBatchDuration(duration time.Duration) {
	c.batchDuration.Observe(duration.Seconds())
}

// SetTotalKeys sets the approximate keyspace size for progress tracking
func (c *Collector) SetTotalKeys(keys int64) {
	c.progressTracker.SetTotal(keys)
}

// GetProgressTracker returns the progress tracker
func (c *Collector) GetProgressTracker() *progress.Tracker {
	return c.progressTracker
}

// StartServer starts the metrics HTTP server
func (c *Collector) StartServer(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}))
	return http.ListenAndServe(addr, mux)
}
