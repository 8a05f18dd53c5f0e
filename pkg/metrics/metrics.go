// Package metrics exposes quiver's Prometheus collectors. A Collector owns
// its own registry, so several stores (or tests) never collide on metric
// registration.
//
// # Metrics
//
//	quiver_live_handles{kind}                      gauge
//	quiver_handle_ops_total{kind,op}               counter
//	quiver_sniff_total{format,outcome}             counter
//	quiver_engine_duration_seconds{op,format}      histogram
//	quiver_engine_bytes_total{direction,format}    counter
//
// # Basic Usage
//
//	c := metrics.NewCollector("quiver")
//	store := bridge.NewStore(bridge.WithObserver(c))
//	http.Handle("/metrics", c.Handler())
//
// Collector satisfies handle.Observer and engine.Observer.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ajitpratap0/quiver/pkg/handle"
)

// Collector holds quiver's collectors on a private registry.
type Collector struct {
	registry *prometheus.Registry

	liveHandles    *prometheus.GaugeVec
	handleOps      *prometheus.CounterVec
	sniffs         *prometheus.CounterVec
	engineDuration *prometheus.HistogramVec
	engineBytes    *prometheus.CounterVec
	engineErrors   *prometheus.CounterVec
}

// NewCollector registers the collectors under namespace. An empty namespace
// means "quiver".
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "quiver"
	}
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Collector{
		registry: reg,
		liveHandles: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_handles",
			Help:      "Handles currently resolvable, per resource kind",
		}, []string{"kind"}),
		handleOps: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handle_ops_total",
			Help:      "Registry mutations, per resource kind and operation",
		}, []string{"kind", "op"}),
		sniffs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sniff_total",
			Help:      "Format detections by detected format and outcome",
		}, []string{"format", "outcome"}),
		engineDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "engine_duration_seconds",
			Help:      "Engine decode, encode and kernel latency",
			Buckets: []float64{
				0.0001, // 100μs - single column kernels
				0.001,  // 1ms
				0.01,   // 10ms
				0.1,    // 100ms - typical file decode
				1,      // 1s
				10,     // 10s - large parquet files
			},
		}, []string{"op", "format"}),
		engineBytes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "engine_bytes_total",
			Help:      "Bytes decoded (in) and encoded (out) by the engine",
		}, []string{"direction", "format"}),
		engineErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "engine_errors_total",
			Help:      "Failed engine operations",
		}, []string{"op", "format"}),
	}
}

// Registry returns the underlying Prometheus registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the collector's metrics in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// HandleOp counts a registry mutation.
func (c *Collector) HandleOp(kind handle.Kind, op string) {
	c.handleOps.WithLabelValues(string(kind), op).Inc()
}

// LiveHandles sets the live-handle gauge for kind.
func (c *Collector) LiveHandles(kind handle.Kind, n int) {
	c.liveHandles.WithLabelValues(string(kind)).Set(float64(n))
}

// SniffResult counts a detection. outcome is "ok", "speculative" or "error".
func (c *Collector) SniffResult(format, outcome string) {
	c.sniffs.WithLabelValues(format, outcome).Inc()
}

// EngineOp records the latency of one engine call.
func (c *Collector) EngineOp(op, format string, d time.Duration, err error) {
	c.engineDuration.WithLabelValues(op, format).Observe(d.Seconds())
	if err != nil {
		c.engineErrors.WithLabelValues(op, format).Inc()
	}
}

// EngineBytes counts bytes read or written by the engine.
func (c *Collector) EngineBytes(direction, format string, n int) {
	c.engineBytes.WithLabelValues(direction, format).Add(float64(n))
}

// Timer provides a simple timing mechanism for measuring operation durations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer and starts timing immediately.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Stop returns the elapsed duration since creation. It can be called more
// than once.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}
