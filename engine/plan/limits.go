package plan

import "github.com/compozy/plansync/pkg/config"

const fallbackMilestoneCap = 6

// Limits bounds the shape of a normalized plan.
type Limits struct {
	DefaultMaxSteps        int
	MaxStepsCap            int
	MinDurationMinutes     int
	MaxDurationMinutes     int
	DefaultDurationMinutes int
}

func DefaultLimits() Limits {
	return Limits{
		DefaultMaxSteps:        6,
		MaxStepsCap:            12,
		MinDurationMinutes:     15,
		MaxDurationMinutes:     240,
		DefaultDurationMinutes: 60,
	}
}

// LimitsFromConfig maps the planner section of the configuration.
func LimitsFromConfig(cfg *config.PlannerConfig) Limits {
	if cfg == nil {
		return DefaultLimits()
	}
	return Limits{
		DefaultMaxSteps:        cfg.DefaultMaxSteps,
		MaxStepsCap:            cfg.MaxStepsCap,
		MinDurationMinutes:     cfg.MinDurationMinutes,
		MaxDurationMinutes:     cfg.MaxDurationMinutes,
		DefaultDurationMinutes: cfg.DefaultDurationMinutes,
	}
}

// MaxSteps resolves a requested step count: unset uses the default, values
// below one become one and values above the cap become the cap.
func (l Limits) MaxSteps(requested *int) int {
	n := l.DefaultMaxSteps
	if requested != nil {
		n = *requested
	}
	if n < 1 {
		n = 1
	}
	if n > l.MaxStepsCap {
		n = l.MaxStepsCap
	}
	return n
}

// ClampDuration forces minutes into the configured bounds.
func (l Limits) ClampDuration(minutes int) int {
	if minutes < l.MinDurationMinutes {
		return l.MinDurationMinutes
	}
	if minutes > l.MaxDurationMinutes {
		return l.MaxDurationMinutes
	}
	return minutes
}
