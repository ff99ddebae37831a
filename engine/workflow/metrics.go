package workflow

// Metrics receives workflow counters.
type Metrics interface {
	RecordTransition(status Status)
	RecordCalendarEvents(created, replayed int)
	RecordPlanFallback(reason string)
}

type nopMetrics struct{}

func (nopMetrics) RecordTransition(Status)       {}
func (nopMetrics) RecordCalendarEvents(int, int) {}
func (nopMetrics) RecordPlanFallback(string)     {}
