package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "leadflow"

// Metrics holds all Prometheus metrics. Every Record method is safe to
// call on a nil *Metrics so services can run without instrumentation.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Business metrics
	LeadMutations  *prometheus.CounterVec
	SendsTotal     *prometheus.CounterVec
	DispatchTime   prometheus.Histogram
	TrackingEvents *prometheus.CounterVec
	StatsRebuilds  prometheus.Counter

	// Cache metrics
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
}

// New creates a Metrics instance registered on its own registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),

		LeadMutations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "lead_mutations_total",
				Help:      "Lead store mutations by operation",
			},
			[]string{"op"}, // create, update, patch, delete, bulk_insert, bulk_skip
		),
		SendsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sends_total",
				Help:      "Dispatch attempts by outcome",
			},
			[]string{"outcome"}, // sent, failed
		),
		DispatchTime: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_duration_seconds",
			Help:      "Mail transport call latency in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		TrackingEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tracking_events_total",
				Help:      "Recorded email events by type",
			},
			[]string{"type"},
		),
		StatsRebuilds: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stats_rebuilds_total",
			Help:      "Full-scan rebuilds of the aggregated lead statistics",
		}),

		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Lead list cache hits",
		}),
		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Lead list cache misses",
		}),
	}
}

// Registry returns the registry holding every metric
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware creates an Echo middleware for Prometheus metrics
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			path := c.Path() // route pattern, e.g. /track/open/:id

			err := next(c)

			status := strconv.Itoa(c.Response().Status)
			m.HTTPRequestsTotal.WithLabelValues(req.Method, path, status).Inc()
			m.HTTPRequestDuration.WithLabelValues(req.Method, path, status).Observe(time.Since(start).Seconds())

			return err
		}
	}
}

// RecordLeadMutation counts n lead mutations of one kind
func (m *Metrics) RecordLeadMutation(op string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.LeadMutations.WithLabelValues(op).Add(float64(n))
}

// RecordSend counts one dispatch attempt and its transport latency
func (m *Metrics) RecordSend(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.SendsTotal.WithLabelValues(outcome).Inc()
	m.DispatchTime.Observe(duration.Seconds())
}

// RecordTrackingEvent counts one recorded email event
func (m *Metrics) RecordTrackingEvent(eventType string) {
	if m == nil {
		return
	}
	m.TrackingEvents.WithLabelValues(eventType).Inc()
}

// RecordStatsRebuild counts one stats rebuild
func (m *Metrics) RecordStatsRebuild() {
	if m == nil {
		return
	}
	m.StatsRebuilds.Inc()
}

// RecordCacheHit increments cache hits counter
func (m *Metrics) RecordCacheHit() {
	if m == nil {
		return
	}
	m.CacheHits.Inc()
}

// RecordCacheMiss increments cache misses counter
func (m *Metrics) RecordCacheMiss() {
	if m == nil {
		return
	}
	m.CacheMisses.Inc()
}
