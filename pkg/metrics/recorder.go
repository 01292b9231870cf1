// Package metrics provides Prometheus-based metrics recording and querying
// for the factory dispatch loop.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder records dispatch loop metrics. Implementations must be safe for
// concurrent use.
type Recorder interface {
	IncEnqueued(project, category string)
	IncRequeued(category string)
	IncDispatched(personaType, category string)
	ObserveCompletion(personaType, category string, success bool, duration time.Duration)
	SetQueueDepth(depth int)
	IncPollError(project string)
}

// PrometheusRecorder implements the Recorder interface using Prometheus metrics.
type PrometheusRecorder struct {
	enqueuedTotal     *prometheus.CounterVec
	requeuedTotal     *prometheus.CounterVec
	dispatchedTotal   *prometheus.CounterVec
	completedTotal    *prometheus.CounterVec
	executionDuration *prometheus.HistogramVec
	pollErrorsTotal   *prometheus.CounterVec
	queueDepth        prometheus.Gauge
}

// NewPrometheusRecorder creates a Prometheus-based metrics recorder registered
// against the given registerer.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	factory := promauto.With(reg)
	return &PrometheusRecorder{
		enqueuedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "factory_items_enqueued_total",
				Help: "Total number of work items added to the queue by project and category",
			},
			[]string{"project", "category"},
		),
		requeuedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "factory_items_requeued_total",
				Help: "Total number of work items returned to the queue for lack of a suitable persona",
			},
			[]string{"category"},
		),
		dispatchedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "factory_items_dispatched_total",
				Help: "Total number of work items assigned to persona instances",
			},
			[]string{"persona_type", "category"},
		),
		completedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "factory_items_completed_total",
				Help: "Total number of finished work items by persona type, category, and status",
			},
			[]string{"persona_type", "category", "status"},
		),
		executionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "factory_execution_duration_seconds",
				Help:    "Duration of work item execution in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"persona_type"},
		),
		pollErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "factory_tracker_poll_errors_total",
				Help: "Total number of failed tracker poll attempts by project",
			},
			[]string{"project"},
		),
		queueDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "factory_queue_depth",
				Help: "Current number of pending work items in the queue",
			},
		),
	}
}

// IncEnqueued increments the enqueued counter for a newly accepted item.
func (p *PrometheusRecorder) IncEnqueued(project, category string) {
	p.enqueuedTotal.WithLabelValues(project, category).Inc()
}

// IncRequeued increments the requeue counter for an unmatched item.
func (p *PrometheusRecorder) IncRequeued(category string) {
	p.requeuedTotal.WithLabelValues(category).Inc()
}

// IncDispatched increments the dispatch counter for an assigned item.
func (p *PrometheusRecorder) IncDispatched(personaType, category string) {
	p.dispatchedTotal.WithLabelValues(personaType, category).Inc()
}

// ObserveCompletion records metrics for a finished work item.
func (p *PrometheusRecorder) ObserveCompletion(personaType, category string, success bool, duration time.Duration) {
	status := "completed"
	if !success {
		status = "failed"
	}

	p.completedTotal.WithLabelValues(personaType, category, status).Inc()
	p.executionDuration.WithLabelValues(personaType).Observe(duration.Seconds())
}

// SetQueueDepth updates the queue depth gauge.
func (p *PrometheusRecorder) SetQueueDepth(depth int) {
	p.queueDepth.Set(float64(depth))
}

// IncPollError increments the poll error counter for a project.
func (p *PrometheusRecorder) IncPollError(project string) {
	p.pollErrorsTotal.WithLabelValues(project).Inc()
}

// NopRecorder discards all metrics. Useful in tests.
type NopRecorder struct{}

func (NopRecorder) IncEnqueued(_, _ string) {}

func (NopRecorder) IncRequeued(_ string) {}

func (NopRecorder) IncDispatched(_, _ string) {}

func (NopRecorder) ObserveCompletion(_, _ string, _ bool, _ time.Duration) {}

func (NopRecorder) SetQueueDepth(_ int) {}

func (NopRecorder) IncPollError(_ string) {}
