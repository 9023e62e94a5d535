// Package metrics exposes import and option-cache counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
)

// Metrics holds the labeler's Prometheus collectors on a dedicated registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	importRowsTotal     prometheus.Counter
	importsTotal        *prometheus.CounterVec
	importDuration      prometheus.Histogram
	optionCacheRequests *prometheus.CounterVec
}

// New creates the collectors and registers them on a fresh registry.
func New() (*Metrics, error) {
	m := &Metrics{registry: prometheus.NewRegistry()}
	m.initMetrics()
	if err := m.registry.Register(m); err != nil {
		return nil, eris.Wrap(err, "metrics: register")
	}
	return m, nil
}

func (m *Metrics) initMetrics() {
	m.importRowsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "labeler_import_rows_total",
		Help: "Total number of sample rows committed by imports",
	})

	m.importsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labeler_imports_total",
			Help: "Total number of finished imports",
		},
		[]string{"result"}, // result: success, failure
	)

	m.importDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name: "labeler_import_duration_seconds",
		Help: "Wall time of finished imports",
		// 0.5s .. ~17m
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
	})

	m.optionCacheRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labeler_option_cache_requests_total",
			Help: "Option cache lookups by outcome",
		},
		[]string{"result"}, // result: hit, miss
	)
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.importRowsTotal.Describe(ch)
	m.importsTotal.Describe(ch)
	m.importDuration.Describe(ch)
	m.optionCacheRequests.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.importRowsTotal.Collect(ch)
	m.importsTotal.Collect(ch)
	m.importDuration.Collect(ch)
	m.optionCacheRequests.Collect(ch)
}

// RecordImport records one finished import.
func (m *Metrics) RecordImport(success bool, rows int, elapsed time.Duration) {
	if m == nil {
		return
	}
	result := "success"
	if !success {
		result = "failure"
	}
	m.importsTotal.WithLabelValues(result).Inc()
	m.importRowsTotal.Add(float64(rows))
	m.importDuration.Observe(elapsed.Seconds())
}

// RecordCacheLookup records an option cache hit or miss.
func (m *Metrics) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.optionCacheRequests.WithLabelValues("hit").Inc()
		return
	}
	m.optionCacheRequests.WithLabelValues("miss").Inc()
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}
