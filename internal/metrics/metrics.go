package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the engine's Prometheus collectors. Counters track
// mutation throughput; gauges carry the latest sweep snapshot.
type Metrics struct {
	registry *prometheus.Registry

	TransitionsTotal  *prometheus.CounterVec
	BulkItemsTotal    *prometheus.CounterVec
	UndoFiredTotal    prometheus.Counter
	OverdueJobs       *prometheus.GaugeVec
	DueSoonJobs       prometheus.Gauge
	LoanersOverdue    prometheus.Gauge
	JobsNeedingLoaner prometheus.Gauge
}

// New creates and registers all collectors on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		TransitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dealer_job_transitions_total",
			Help: "Job status transitions, by target status and outcome.",
		}, []string{"target_status", "outcome"}),

		BulkItemsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dealer_bulk_transition_items_total",
			Help: "Per-item results of bulk transitions.",
		}, []string{"outcome"}),

		UndoFiredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dealer_undo_fired_total",
			Help: "Completions reversed through the undo window.",
		}),

		OverdueJobs: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dealer_overdue_jobs",
			Help: "Jobs past their promised date, by severity, as of the last sweep.",
		}, []string{"severity"}),

		DueSoonJobs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dealer_due_soon_jobs",
			Help: "Jobs approaching their promised date, as of the last sweep.",
		}),

		LoanersOverdue: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dealer_loaners_overdue",
			Help: "Loaner vehicles out past their return ETA, as of the last sweep.",
		}),

		JobsNeedingLoaner: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dealer_jobs_needing_loaner",
			Help: "Active jobs flagged for a loaner with no open assignment.",
		}),
	}

	registry.MustRegister(
		m.TransitionsTotal,
		m.BulkItemsTotal,
		m.UndoFiredTotal,
		m.OverdueJobs,
		m.DueSoonJobs,
		m.LoanersOverdue,
		m.JobsNeedingLoaner,
	)

	return m
}

// Handler returns the /metrics HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
