// Package metrics exposes Prometheus instruments for statement extraction.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "statement"

// Document outcomes.
const (
	OutcomeOK          = "ok"
	OutcomeNoData      = "no_data"
	OutcomeAccessError = "access_error"
	OutcomeError       = "error"
)

// Metrics groups the pipeline instruments. A nil *Metrics records nothing.
type Metrics struct {
	rows      prometheus.Counter
	records   *prometheus.CounterVec
	unmatched prometheus.Counter
	defaulted prometheus.Counter
	filtered  *prometheus.CounterVec
	documents *prometheus.CounterVec
	duration  prometheus.Histogram
	gatherer  prometheus.Gatherer
}

// New registers the instruments on reg. Passing nil uses a fresh registry,
// which keeps tests independent of the global default registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &Metrics{
		rows: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_total",
			Help:      "Raw table rows read from documents.",
		}),
		records: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_total",
			Help:      "Canonical records produced, by extraction path.",
		}, []string{"source"}),
		unmatched: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_unmatched_total",
			Help:      "Rows that produced no record.",
		}),
		defaulted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "amount_defaulted_total",
			Help:      "Amounts that could not be parsed and defaulted to zero.",
		}),
		filtered: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_filtered_total",
			Help:      "Records dropped as noise, by reason.",
		}, []string{"reason"}),
		documents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_total",
			Help:      "Documents processed, by outcome.",
		}, []string{"outcome"}),
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "extract_duration_seconds",
			Help:      "Time spent extracting one document.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		gatherer: reg,
	}
}

func (m *Metrics) AddRows(n int) {
	if m != nil {
		m.rows.Add(float64(n))
	}
}

func (m *Metrics) AddRecords(source string, n int) {
	if m != nil && n > 0 {
		m.records.WithLabelValues(source).Add(float64(n))
	}
}

func (m *Metrics) AddUnmatched(n int) {
	if m != nil {
		m.unmatched.Add(float64(n))
	}
}

func (m *Metrics) AddDefaulted(n int) {
	if m != nil {
		m.defaulted.Add(float64(n))
	}
}

func (m *Metrics) IncFiltered(reason string) {
	if m != nil {
		m.filtered.WithLabelValues(reason).Inc()
	}
}

// ObserveDocument records one processed document.
func (m *Metrics) ObserveDocument(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.documents.WithLabelValues(outcome).Inc()
	m.duration.Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
