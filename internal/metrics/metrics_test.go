package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := New(reg)

	m.DateFinished("done")
	m.DateFinished("done")
	m.DateFinished("failed")
	m.RetryScheduled()
	m.PublicationFound()
	m.Consolidated("degraded")
	m.WorkerActive(1)
	m.WorkerActive(-1)

	require.Equal(t, float64(2), testutil.ToFloat64(m.datesTotal.WithLabelValues("done")))
	require.Equal(t, float64(1), testutil.ToFloat64(m.datesTotal.WithLabelValues("failed")))
	require.Equal(t, float64(1), testutil.ToFloat64(m.retriesTotal))
	require.Equal(t, float64(1), testutil.ToFloat64(m.publicationsTotal))
	require.Equal(t, float64(1), testutil.ToFloat64(m.enrichmentTotal.WithLabelValues("degraded")))
	require.Equal(t, float64(0), testutil.ToFloat64(m.activeWorkers))
}

func TestMetrics_NilReceiverIsNoop(t *testing.T) {
	t.Parallel()

	var m *Metrics
	require.NotPanics(t, func() {
		m.DateFinished("done")
		m.RetryScheduled()
		m.PublicationFound()
		m.PublicationSkipped()
		m.Consolidated("high")
		m.WorkerActive(1)
	})
}
