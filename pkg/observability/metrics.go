package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Save outcomes used as the "outcome" label.
const (
	SaveOutcomeWritten = "written"
	SaveOutcomeSkipped = "skipped"
	SaveOutcomeFailed  = "failed"
)

// Collector holds all Prometheus metrics for the application.
// A nil *Collector is valid and records nothing.
type Collector struct {
	// Registry for this collector instance
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Sync metrics
	Saves        *prometheus.CounterVec
	SaveDuration prometheus.Histogram
	SaveRetries  prometheus.Counter

	// Editor metrics
	OpenSessions prometheus.Gauge
	Exports      *prometheus.CounterVec

	// Store metrics
	BreakerState *prometheus.GaugeVec
}

// NewCollector creates a collector on its own registry, so repeated construction in
// tests never collides with the default registerer.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	httpRequests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	saves := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "document_saves_total",
			Help:      "Save attempts by outcome",
		},
		[]string{"outcome"},
	)

	saveDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "document_save_duration_seconds",
			Help:      "Duration of saves that reached the remote store",
			Buckets:   prometheus.DefBuckets,
		},
	)

	saveRetries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "document_save_retries_total",
			Help:      "Backoff-scheduled save retries",
		},
	)

	openSessions := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "editor_sessions_open",
			Help:      "Number of open editing sessions",
		},
	)

	exports := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exports_total",
			Help:      "Exports by format",
		},
		[]string{"format"},
	)

	breakerState := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "store_circuit_state",
			Help:      "Circuit breaker state per store (0 closed, 1 half-open, 2 open)",
		},
		[]string{"name"},
	)

	registry.MustRegister(
		httpRequests,
		httpDuration,
		saves,
		saveDuration,
		saveRetries,
		openSessions,
		exports,
		breakerState,
	)

	return &Collector{
		registry:     registry,
		HTTPRequests: httpRequests,
		HTTPDuration: httpDuration,
		Saves:        saves,
		SaveDuration: saveDuration,
		SaveRetries:  saveRetries,
		OpenSessions: openSessions,
		Exports:      exports,
		BreakerState: breakerState,
	}
}

// RecordSave counts a save by outcome. Duration is observed only for saves that
// reached the store.
func (c *Collector) RecordSave(outcome string, duration time.Duration) {
	if c == nil {
		return
	}
	c.Saves.WithLabelValues(outcome).Inc()
	if outcome != SaveOutcomeSkipped {
		c.SaveDuration.Observe(duration.Seconds())
	}
}

// RecordRetry counts a scheduled retry.
func (c *Collector) RecordRetry() {
	if c == nil {
		return
	}
	c.SaveRetries.Inc()
}

// SessionOpened and SessionClosed track the open session gauge.
func (c *Collector) SessionOpened() {
	if c == nil {
		return
	}
	c.OpenSessions.Inc()
}

func (c *Collector) SessionClosed() {
	if c == nil {
		return
	}
	c.OpenSessions.Dec()
}

// RecordExport counts an export.
func (c *Collector) RecordExport(format string) {
	if c == nil {
		return
	}
	c.Exports.WithLabelValues(format).Inc()
}

// RecordHTTP records one served request.
func (c *Collector) RecordHTTP(method, route string, status int, duration time.Duration) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(method, route, http.StatusText(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// SetBreakerState records the numeric state of a named circuit breaker.
func (c *Collector) SetBreakerState(name string, state int) {
	if c == nil {
		return
	}
	c.BreakerState.WithLabelValues(name).Set(float64(state))
}

// GetRegistry returns the Prometheus registry for this collector
func (c *Collector) GetRegistry() *prometheus.Registry {
	return c.registry
}

// Handler exposes the collector's registry for scraping.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
