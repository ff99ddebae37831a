package monitoring

import (
	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/compozy/plansync/engine/workflow"
)

// WorkflowMetrics counts workflow transitions, calendar writes and plan
// fallbacks.
type WorkflowMetrics struct {
	transitions *prom.CounterVec
	events      *prom.CounterVec
	fallbacks   *prom.CounterVec
}

func newWorkflowMetrics() *WorkflowMetrics {
	return &WorkflowMetrics{
		transitions: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_transitions_total",
			Help:      "Workflow status transitions by target status",
		}, []string{"status"}),
		events: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "calendar_events_total",
			Help:      "Calendar events written, split by created and replayed",
		}, []string{"outcome"}),
		fallbacks: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "plan_fallbacks_total",
			Help:      "Plans produced by the deterministic fallback",
		}, []string{"reason"}),
	}
}

func (m *WorkflowMetrics) RecordTransition(status workflow.Status) {
	m.transitions.WithLabelValues(string(status)).Inc()
}

func (m *WorkflowMetrics) RecordCalendarEvents(created, replayed int) {
	if created > 0 {
		m.events.WithLabelValues("created").Add(float64(created))
	}
	if replayed > 0 {
		m.events.WithLabelValues("replayed").Add(float64(replayed))
	}
}

func (m *WorkflowMetrics) RecordPlanFallback(reason string) {
	m.fallbacks.WithLabelValues(reason).Inc()
}

func (m *WorkflowMetrics) Describe(ch chan<- *prom.Desc) {
	m.transitions.Describe(ch)
	m.events.Describe(ch)
	m.fallbacks.Describe(ch)
}

func (m *WorkflowMetrics) Collect(ch chan<- prom.Metric) {
	m.transitions.Collect(ch)
	m.events.Collect(ch)
	m.fallbacks.Collect(ch)
}

var _ workflow.Metrics = (*WorkflowMetrics)(nil)
