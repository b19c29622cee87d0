package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the scraper.
type Metrics struct {
	Registry           *prometheus.Registry
	RequestsTotal      *prometheus.CounterVec
	RequestDuration    prometheus.Histogram
	PagesTotal         prometheus.Counter
	RecordsTotal       *prometheus.CounterVec
	RetriesTotal       *prometheus.CounterVec
	ErrorsTotal        *prometheus.CounterVec
	EnrichmentOutcomes *prometheus.CounterVec
	LastRunTimestamp   prometheus.Gauge
	LastRunSalesGauge  prometheus.Gauge
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sales_scraper_requests_total",
			Help: "Total HTTP requests issued by the scraper.",
		},
		[]string{"phase"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sales_scraper_request_duration_seconds",
			Help:    "HTTP request latency for scraper requests.",
			Buckets: prometheus.DefBuckets,
		},
	)
	pages := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sales_scraper_result_pages_total",
			Help: "Total number of search result pages walked.",
		},
	)
	records := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sales_scraper_records_total",
			Help: "Records leaving each pipeline stage.",
		},
		[]string{"stage"},
	)
	retries := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sales_scraper_retries_total",
			Help: "Total number of retry attempts scheduled.",
		},
		[]string{"operation"},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sales_scraper_errors_total",
			Help: "Total number of scraper errors by type.",
		},
		[]string{"error_type"},
	)
	outcomes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sales_scraper_enrichment_outcomes_total",
			Help: "Detail enrichment results per parcel.",
		},
		[]string{"outcome"},
	)
	lastRun := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sales_scraper_last_run_timestamp_seconds",
			Help: "Unix time the last run finished.",
		},
	)
	lastSales := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sales_scraper_last_run_sales",
			Help: "Sales reported by the last run.",
		},
	)

	registry.MustRegister(requests, requestDuration, pages, records, retries, errorsTotal, outcomes, lastRun, lastSales)

	return &Metrics{
		Registry:           registry,
		RequestsTotal:      requests,
		RequestDuration:    requestDuration,
		PagesTotal:         pages,
		RecordsTotal:       records,
		RetriesTotal:       retries,
		ErrorsTotal:        errorsTotal,
		EnrichmentOutcomes: outcomes,
		LastRunTimestamp:   lastRun,
		LastRunSalesGauge:  lastSales,
	}
}

// IncRequest increments the requests total counter.
func (m *Metrics) IncRequest(phase string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(phase).Inc()
}

// ObserveDuration records an HTTP request duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// IncPages increments the result pages counter.
func (m *Metrics) IncPages() {
	if m == nil {
		return
	}
	m.PagesTotal.Inc()
}

// AddRecords adds n records to a stage counter.
func (m *Metrics) AddRecords(stage string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.RecordsTotal.WithLabelValues(stage).Add(float64(n))
}

// IncRetries increments the retries counter for an operation.
func (m *Metrics) IncRetries(operation string) {
	if m == nil {
		return
	}
	m.RetriesTotal.WithLabelValues(operation).Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// IncOutcome increments the enrichment outcome counter.
func (m *Metrics) IncOutcome(outcome Outcome) {
	if m == nil {
		return
	}
	m.EnrichmentOutcomes.WithLabelValues(outcome.String()).Inc()
}

// RunFinished records the end of a run.
func (m *Metrics) RunFinished(at time.Time, sales int) {
	if m == nil {
		return
	}
	m.LastRunTimestamp.Set(float64(at.Unix()))
	m.LastRunSalesGauge.Set(float64(sales))
}
