package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all custom Prometheus metrics for the engine
type Metrics struct {
	// Ledger metrics
	UsageEventsRecorded prometheus.Counter
	ValidationFailures  *prometheus.CounterVec
	RecordLatency       prometheus.Histogram

	// Standardization metrics
	Standardizations prometheus.Counter
	StandardChanges  prometheus.Counter

	// Distribution metrics
	DistributionRuns prometheus.Counter

	// Connection manager reference for dynamic metrics
	connManager *ConnectionManager
}

var globalMetrics *Metrics

// InitMetrics initializes the Prometheus metrics
func InitMetrics(connManager *ConnectionManager) *Metrics {
	metrics := &Metrics{
		connManager: connManager,

		UsageEventsRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "praxis_usage_events_total",
			Help: "Total number of usage events appended to the ledger",
		}),

		ValidationFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "praxis_validation_failures_total",
			Help: "Total number of rejected recordUsage requests by field",
		}, []string{"field"}),

		RecordLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "praxis_record_usage_duration_seconds",
			Help:    "recordUsage latency in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2},
		}),

		Standardizations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "praxis_standardizations_total",
			Help: "Total number of solutions promoted to standard",
		}),

		StandardChanges: promauto.NewCounter(prometheus.CounterOpts{
			Name: "praxis_standard_changes_total",
			Help: "Total number of standard replacements",
		}),

		DistributionRuns: promauto.NewCounter(prometheus.CounterOpts{
			Name: "praxis_distribution_runs_total",
			Help: "Total number of reward distribution runs",
		}),
	}

	// Register a collector that reports live websocket subscribers
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "praxis_event_subscribers_current",
			Help: "Current number of active websocket event subscribers",
		},
		func() float64 {
			if connManager != nil {
				return float64(connManager.Count())
			}
			return 0
		},
	))

	globalMetrics = metrics
	return metrics
}

// GetMetrics returns the global metrics instance
func GetMetrics() *Metrics {
	return globalMetrics
}

// RecordValidationFailure records a rejected request
func (m *Metrics) RecordValidationFailure(field string) {
	m.ValidationFailures.WithLabelValues(field).Inc()
}
