package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "provider"
)

// Metrics bundles the collectors of one server instance
type Metrics struct {
	registry *prometheus.Registry

	// RequestsTotal counts responses by method, status and resolution outcome
	RequestsTotal *prometheus.CounterVec

	// RequestDuration observes handler latency by method and outcome
	RequestDuration *prometheus.HistogramVec

	// EntryDocumentPresent is 1 while the last asset check passed
	EntryDocumentPresent prometheus.Gauge

	// AssetChecksTotal counts asset directory checks run by the probe
	AssetChecksTotal prometheus.Counter

	// AssetCheckFailuresTotal counts failed asset directory checks
	AssetCheckFailuresTotal prometheus.Counter
}

// New creates the collectors and registers them with registry
func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: registry,
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP responses by method, status and outcome",
			},
			[]string{"method", "status", "outcome"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "outcome"},
		),
		EntryDocumentPresent: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "entry_document_present",
				Help:      "Whether the asset directory and entry document passed the last check",
			},
		),
		AssetChecksTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "asset_checks_total",
				Help:      "Total number of asset directory checks",
			},
		),
		AssetCheckFailuresTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "asset_check_failures_total",
				Help:      "Total number of failed asset directory checks",
			},
		),
	}

	registry.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.EntryDocumentPresent,
		m.AssetChecksTotal,
		m.AssetCheckFailuresTotal,
	)

	return m
}

// RecordCheck updates the probe collectors with the result of one check
func (m *Metrics) RecordCheck(ok bool) {
	m.AssetChecksTotal.Inc()
	if ok {
		m.EntryDocumentPresent.Set(1)
		return
	}
	m.AssetCheckFailuresTotal.Inc()
	m.EntryDocumentPresent.Set(0)
}

// Handler exposes the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one finished request
func (m *Metrics) ObserveRequest(method string, status int, outcome string, duration time.Duration) {
	if outcome == "" {
		outcome = "none"
	}
	m.RequestsTotal.WithLabelValues(method, strconv.Itoa(status), outcome).Inc()
	m.RequestDuration.WithLabelValues(method, outcome).Observe(duration.Seconds())
}
