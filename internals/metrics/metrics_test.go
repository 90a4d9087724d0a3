package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCountersAreIsolatedPerInstance(t *testing.T) {
	a := NewMetrics("intake")
	b := NewMetrics("intake")

	a.SubmissionResult(ResultCreated)
	a.SubmissionResult(ResultCreated)
	a.SubmissionResult(ResultRejected)
	a.Compensated()
	a.SchemaEdit("reorder")
	a.Swept(3)
	a.Swept(0)

	assert.Equal(t, 2.0, testutil.ToFloat64(a.Submissions.WithLabelValues(ResultCreated)))
	assert.Equal(t, 1.0, testutil.ToFloat64(a.Submissions.WithLabelValues(ResultRejected)))
	assert.Equal(t, 1.0, testutil.ToFloat64(a.Compensations))
	assert.Equal(t, 3.0, testutil.ToFloat64(a.OrphansSwept))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.Submissions.WithLabelValues(ResultCreated)))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.SubmissionResult(ResultFailed)
		m.Compensated()
		m.SchemaEdit("create")
		m.Upload(true)
		m.Swept(1)
		m.ObserveRequest("GET", "/health", "200", time.Millisecond)
		m.RecordDBPoolStats(1, 1, 0, 0, 0)
	})
}
