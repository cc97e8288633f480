package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	SyncRecordsTotal    *prometheus.CounterVec
	FeedRowsTotal       *prometheus.CounterVec
	CacheLookupsTotal   *prometheus.CounterVec
	RunDuration         *prometheus.HistogramVec
}

// New builds the collectors and registers them on a dedicated registry,
// so several instances can coexist in one process (tests).
func New(serviceName string) *Metrics {
	labels := prometheus.Labels{"service": serviceName}
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "http_requests_total",
				Help:        "Total number of HTTP requests",
				ConstLabels: labels,
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:        "http_request_duration_seconds",
				Help:        "Histogram of HTTP request latency",
				ConstLabels: labels,
				Buckets:     []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		SyncRecordsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "identity_sync_records_total",
				Help:        "Identity records processed by sync, by outcome",
				ConstLabels: labels,
			},
			[]string{"outcome"},
		),
		FeedRowsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "event_feed_rows_total",
				Help:        "Event feed rows processed, by outcome",
				ConstLabels: labels,
			},
			[]string{"outcome"},
		),
		CacheLookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "cache_lookups_total",
				Help:        "Cache lookups by key family and result",
				ConstLabels: labels,
			},
			[]string{"family", "result"},
		),
		RunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:        "reconcile_run_duration_seconds",
				Help:        "Duration of sync and feed reconciliation runs",
				ConstLabels: labels,
				Buckets:     prometheus.ExponentialBuckets(0.05, 2, 12),
			},
			[]string{"kind", "result"},
		),
	}

	m.registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.SyncRecordsTotal,
		m.FeedRowsTotal,
		m.CacheLookupsTotal,
		m.RunDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Outcome counters. A nil *Metrics is valid and records nothing.

// SyncRecord adds n sync records with the given outcome. Zero is skipped.
func (m *Metrics) SyncRecord(outcome string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.SyncRecordsTotal.WithLabelValues(outcome).Add(float64(n))
}

// FeedRows adds n feed rows with the given outcome. Zero is skipped.
func (m *Metrics) FeedRows(outcome string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.FeedRowsTotal.WithLabelValues(outcome).Add(float64(n))
}

// CacheLookup counts one hit or miss for a key family.
func (m *Metrics) CacheLookup(family string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookupsTotal.WithLabelValues(family, result).Inc()
}

// ObserveRun records the duration of a sync or feed run by result.
func (m *Metrics) ObserveRun(kind string, err error, d time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.RunDuration.WithLabelValues(kind, result).Observe(d.Seconds())
}

// GinMiddleware records request count and latency. The matched route
// template is used as the path label to keep cardinality bounded.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
