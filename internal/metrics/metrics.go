// Package metrics exposes Prometheus metrics for the engines and the HTTP
// surface. Each Collector owns its registry, so collectors never collide.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics for the application
type Collector struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Execution metrics
	EventsApplied *prometheus.CounterVec
	EventsIgnored *prometheus.CounterVec
	LayoutUpdates *prometheus.CounterVec

	// Instance metrics
	Instances *prometheus.GaugeVec

	// Repository metrics
	SnapshotOps *prometheus.CounterVec
}

// NewCollector creates a collector whose metrics are prefixed with namespace
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		EventsApplied: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "execution_events_applied_total",
				Help:      "Execution events that changed state",
			},
			[]string{"type"},
		),
		EventsIgnored: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "execution_events_ignored_total",
				Help:      "Execution events dropped without effect",
			},
			[]string{"type", "reason"},
		),
		LayoutUpdates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "layout_updates_total",
				Help:      "Layout generations and incremental updates",
			},
			[]string{"op"},
		),
		Instances: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "engine_instances",
				Help:      "Live engine instances by kind",
			},
			[]string{"kind"},
		),
		SnapshotOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "snapshot_operations_total",
				Help:      "Snapshot store operations",
			},
			[]string{"operation", "status"},
		),
	}

	registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.EventsApplied,
		c.EventsIgnored,
		c.LayoutUpdates,
		c.Instances,
		c.SnapshotOps,
	)

	return c
}

// EventApplied counts an execution event that changed state
func (c *Collector) EventApplied(eventType string) {
	if c == nil {
		return
	}
	c.EventsApplied.WithLabelValues(eventType).Inc()
}

// EventIgnored counts an execution event that was dropped
func (c *Collector) EventIgnored(eventType, reason string) {
	if c == nil {
		return
	}
	c.EventsIgnored.WithLabelValues(eventType, reason).Inc()
}

// LayoutUpdated counts a layout operation
func (c *Collector) LayoutUpdated(op string) {
	if c == nil {
		return
	}
	c.LayoutUpdates.WithLabelValues(op).Inc()
}

// InstancesChanged records the live instance count for a kind
func (c *Collector) InstancesChanged(kind string, count int) {
	if c == nil {
		return
	}
	c.Instances.WithLabelValues(kind).Set(float64(count))
}

// SnapshotOperation counts a snapshot store call
func (c *Collector) SnapshotOperation(operation string, err error) {
	if c == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.SnapshotOps.WithLabelValues(operation, status).Inc()
}

// Registry returns the Prometheus registry for this collector
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the collector's registry in the Prometheus text format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and durations by route pattern
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		c.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		c.HTTPDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
