package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorderCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := NewPrometheusRecorder(reg)

	rec.IncEnqueued("Platform", "feature")
	rec.IncEnqueued("Platform", "feature")
	rec.IncDispatched("qa-test-engineer", "feature")
	rec.IncRequeued("bug")
	rec.IncPollError("Platform")
	rec.SetQueueDepth(3)

	expected := `
# HELP factory_items_enqueued_total Total number of work items added to the queue by project and category
# TYPE factory_items_enqueued_total counter
factory_items_enqueued_total{category="feature",project="Platform"} 2
`
	err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "factory_items_enqueued_total")
	require.NoError(t, err)

	assert.Equal(t, 3.0, testutil.ToFloat64(rec.queueDepth))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.requeuedTotal.WithLabelValues("bug")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.pollErrorsTotal.WithLabelValues("Platform")))
}

func TestObserveCompletionStatusLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := NewPrometheusRecorder(reg)

	rec.ObserveCompletion("software-architect", "security", true, 2*time.Second)
	rec.ObserveCompletion("software-architect", "security", false, time.Second)
	rec.ObserveCompletion("software-architect", "security", false, time.Second)

	completed := testutil.ToFloat64(rec.completedTotal.WithLabelValues("software-architect", "security", "completed"))
	failed := testutil.ToFloat64(rec.completedTotal.WithLabelValues("software-architect", "security", "failed"))
	assert.Equal(t, 1.0, completed)
	assert.Equal(t, 2.0, failed)
}

func TestNopRecorder(t *testing.T) {
	var rec Recorder = NopRecorder{}

	// Must not panic or register anything.
	rec.IncEnqueued("p", "c")
	rec.IncRequeued("c")
	rec.IncDispatched("t", "c")
	rec.ObserveCompletion("t", "c", true, time.Second)
	rec.SetQueueDepth(1)
	rec.IncPollError("p")
}
