// Package metrics exposes Prometheus instrumentation for guarded operations.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for OperationsTotal.
const (
	OutcomeCompleted   = "completed"
	OutcomeFailed      = "failed"
	OutcomeBlocked     = "blocked"
	OutcomeRateLimited = "rate_limited"
)

const namespace = "graphql_guard"

// Metrics holds the collectors of the guard. All methods are safe to call on
// a nil *Metrics.
type Metrics struct {
	OperationsTotal   *prometheus.CounterVec
	QueryDepth        prometheus.Histogram
	QueryComplexity   prometheus.Histogram
	OperationDuration *prometheus.HistogramVec
}

// New creates the collectors without registering them.
func New() *Metrics {
	return &Metrics{
		OperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Total number of guarded operations by outcome",
			},
			[]string{"operation", "outcome"},
		),
		QueryDepth: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "query_depth",
				Help:      "Selection depth of analyzed queries",
				Buckets:   []float64{1, 2, 3, 5, 8, 10, 15, 20, 50},
			},
		),
		QueryComplexity: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "query_complexity",
				Help:      "Weighted field count of analyzed queries",
				Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
			},
		),
		OperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Duration of transport calls in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// NewRegistered creates the collectors and registers them with reg.
func NewRegistered(reg prometheus.Registerer) (*Metrics, error) {
	m := New()
	for _, c := range m.collectors() {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{m.OperationsTotal, m.QueryDepth, m.QueryComplexity, m.OperationDuration}
}

// ObserveAnalysis records the depth and complexity of an analyzed query.
func (m *Metrics) ObserveAnalysis(depth, complexity int) {
	if m == nil {
		return
	}
	m.QueryDepth.Observe(float64(depth))
	m.QueryComplexity.Observe(float64(complexity))
}

// RecordOutcome increments the operation counter.
func (m *Metrics) RecordOutcome(operation, outcome string) {
	if m == nil {
		return
	}
	m.OperationsTotal.WithLabelValues(operation, outcome).Inc()
}

// ObserveDuration records how long a transport call took.
func (m *Metrics) ObserveDuration(operation string, d time.Duration) {
	if m == nil {
		return
	}
	m.OperationDuration.WithLabelValues(operation).Observe(d.Seconds())
}
