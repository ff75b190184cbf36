// Package metrics exposes Prometheus collectors for the extraction pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the pipeline collectors. A nil *Metrics is a valid no-op
// receiver so callers never need to guard instrumentation sites.
type Metrics struct {
	datesTotal        *prometheus.CounterVec
	retriesTotal      prometheus.Counter
	publicationsTotal prometheus.Counter
	skippedTotal      prometheus.Counter
	enrichmentTotal   *prometheus.CounterVec
	activeWorkers     prometheus.Gauge
}

// New registers the pipeline collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		datesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rpv_dates_total",
				Help: "Total date tasks finished, labeled by terminal status.",
			},
			[]string{"status"},
		),
		retriesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "rpv_date_retries_total",
				Help: "Total date task retries scheduled after transient failures.",
			},
		),
		publicationsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "rpv_publications_total",
				Help: "Total publications extracted from gazette documents.",
			},
		),
		skippedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "rpv_publications_skipped_total",
				Help: "Total publication spans rejected by the content parser.",
			},
		),
		enrichmentTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rpv_enrichment_total",
				Help: "Total consolidated publications, labeled by confidence.",
			},
			[]string{"confidence"},
		),
		activeWorkers: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "rpv_active_workers",
				Help: "Number of workers currently processing a date.",
			},
		),
	}
}

// DateFinished counts a terminal date transition.
func (m *Metrics) DateFinished(status string) {
	if m == nil {
		return
	}
	m.datesTotal.WithLabelValues(status).Inc()
}

// RetryScheduled counts a scheduled re-enqueue.
func (m *Metrics) RetryScheduled() {
	if m == nil {
		return
	}
	m.retriesTotal.Inc()
}

// PublicationFound counts one extracted publication.
func (m *Metrics) PublicationFound() {
	if m == nil {
		return
	}
	m.publicationsTotal.Inc()
}

// PublicationSkipped counts one parser rejection.
func (m *Metrics) PublicationSkipped() {
	if m == nil {
		return
	}
	m.skippedTotal.Inc()
}

// Consolidated counts one terminal record by confidence.
func (m *Metrics) Consolidated(confidence string) {
	if m == nil {
		return
	}
	m.enrichmentTotal.WithLabelValues(confidence).Inc()
}

// WorkerActive tracks how many workers hold a date.
func (m *Metrics) WorkerActive(delta int) {
	if m == nil {
		return
	}
	m.activeWorkers.Add(float64(delta))
}
