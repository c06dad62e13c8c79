package metrics_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llehouerou/go-graphql-guard/pkg/metrics"
)

func TestMetrics_RecordOutcome(t *testing.T) {
	m := metrics.New()
	m.RecordOutcome("query", metrics.OutcomeCompleted)
	m.RecordOutcome("query", metrics.OutcomeCompleted)
	m.RecordOutcome("mutation", metrics.OutcomeBlocked)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.OperationsTotal.WithLabelValues("query", metrics.OutcomeCompleted)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.OperationsTotal.WithLabelValues("mutation", metrics.OutcomeBlocked)))
	assert.Equal(t, 2, testutil.CollectAndCount(m.OperationsTotal))
}

func TestMetrics_observations(t *testing.T) {
	m := metrics.New()
	m.ObserveAnalysis(3, 12)
	m.ObserveDuration("query", 150*time.Millisecond)

	assert.Equal(t, 1, testutil.CollectAndCount(m.QueryDepth))
	assert.Equal(t, 1, testutil.CollectAndCount(m.QueryComplexity))
	assert.Equal(t, 1, testutil.CollectAndCount(m.OperationDuration))
}

func TestMetrics_NewRegistered(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	m, err := metrics.NewRegistered(reg)
	require.NoError(t, err)
	m.RecordOutcome("query", metrics.OutcomeFailed)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "graphql_guard_operations_total")

	_, err = metrics.NewRegistered(reg)
	assert.Error(t, err, "duplicate registration")
}

func TestMetrics_nilSafe(t *testing.T) {
	var m *metrics.Metrics
	assert.NotPanics(t, func() {
		m.RecordOutcome("query", metrics.OutcomeCompleted)
		m.ObserveAnalysis(1, 1)
		m.ObserveDuration("query", time.Second)
	})
}
