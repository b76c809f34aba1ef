package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Request sources used as metric labels.
const (
	SourceSearch    = "search"
	SourceResolve   = "resolve"
	SourceThumbnail = "thumbnail"
	SourceExport    = "export"
)

// Metrics bundles Prometheus collectors for one aggregator process.
type Metrics struct {
	Registry            *prometheus.Registry
	RequestsTotal       *prometheus.CounterVec
	RequestDuration     *prometheus.HistogramVec
	VideosEnrichedTotal prometheus.Counter
	RetriesTotal        prometheus.Counter
	ErrorsTotal         *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ytrends_requests_total",
			Help: "Total external calls issued, by source.",
		},
		[]string{"source"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ytrends_request_duration_seconds",
			Help:    "Latency of external calls, by source.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)
	enriched := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ytrends_videos_enriched_total",
			Help: "Total number of videos passed through enrichment.",
		},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ytrends_retries_total",
			Help: "Total number of search retry attempts.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ytrends_errors_total",
			Help: "Total number of per-item errors by source and type.",
		},
		[]string{"source", "error_type"},
	)

	registry.MustRegister(requests, requestDuration, enriched, retries, errorsTotal)

	return &Metrics{
		Registry:            registry,
		RequestsTotal:       requests,
		RequestDuration:     requestDuration,
		VideosEnrichedTotal: enriched,
		RetriesTotal:        retries,
		ErrorsTotal:         errorsTotal,
	}
}

// IncRequest increments the requests total counter.
func (m *Metrics) IncRequest(source string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(source).Inc()
}

// ObserveDuration records the latency of an external call.
func (m *Metrics) ObserveDuration(source string, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(source).Observe(d.Seconds())
}

// IncEnriched increments the enriched videos counter.
func (m *Metrics) IncEnriched() {
	if m == nil {
		return
	}
	m.VideosEnrichedTotal.Inc()
}

// IncRetries increments the retries counter.
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// IncError increments the errors counter for a source and type label.
func (m *Metrics) IncError(source, errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(source, errorType).Inc()
}
