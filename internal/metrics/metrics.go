package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	CounterAdjustmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registration_counter_adjustments_total",
			Help: "Total number of counter adjustments applied, by counter",
		},
		[]string{"counter"},
	)

	CounterClampsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registration_counter_clamps_total",
			Help: "Total number of decrements clamped at zero, by counter",
		},
		[]string{"counter"},
	)

	CounterErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "registration_counter_errors_total",
			Help: "Total number of failed counter reads or writes",
		},
	)

	TransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registration_transitions_total",
			Help: "Total number of record transitions, by history action",
		},
		[]string{"action"},
	)

	ReconcileRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registration_reconcile_runs_total",
			Help: "Total number of reconciliation runs, by status",
		},
		[]string{"status"},
	)

	ReconcileDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "registration_reconcile_duration_seconds",
			Help:    "Duration of reconciliation runs",
			Buckets: prometheus.DefBuckets,
		},
	)

	ReconcileFallbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "registration_reconcile_fallbacks_total",
			Help: "Total number of records counted as one participant because metadata did not parse",
		},
	)

	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registration_notifications_total",
			Help: "Total number of notifications published, by outcome",
		},
		[]string{"outcome"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "registration_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "status"},
	)
)

var registerOnce sync.Once

// Register registers all collectors with the default registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			CounterAdjustmentsTotal,
			CounterClampsTotal,
			CounterErrorsTotal,
			TransitionsTotal,
			ReconcileRunsTotal,
			ReconcileDuration,
			ReconcileFallbacksTotal,
			NotificationsTotal,
			HTTPRequestDuration,
		)
	})
}
