package decompose

import (
	"context"
	"fmt"
	"time"

	"github.com/compozy/plansync/engine/llm"
	"github.com/compozy/plansync/engine/plan"
	"github.com/compozy/plansync/pkg/logger"
)

// Step asks the model for a plan and normalizes whatever comes back. It has
// no error path: a failed call degrades to the fallback plan.
type Step struct {
	generator llm.Generator
	limits    plan.Limits
	now       func() time.Time
}

type Option func(*Step)

// WithClock overrides the time source used for scheduling.
func WithClock(now func() time.Time) Option {
	return func(s *Step) { s.now = now }
}

func NewStep(generator llm.Generator, limits plan.Limits, opts ...Option) *Step {
	s := &Step{generator: generator, limits: limits, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Step) Run(ctx context.Context, req *plan.Request) *plan.Plan {
	log := logger.FromContext(ctx)
	now := s.now()
	maxSteps := s.limits.MaxSteps(req.MaxSteps)
	raw, err := s.generator.Generate(ctx, plan.BuildPrompt(req, maxSteps, now))
	if err != nil {
		log.Warn("Model call failed, using fallback plan", "error", err)
		raw = ""
	}
	p := plan.Normalize(raw, req, s.limits, now)
	if err != nil {
		p.Assumptions = append(p.Assumptions,
			"The planning model could not be reached, so the schedule is a generic fallback.")
		p.Warnings = append(p.Warnings, plan.Warning{
			Code:    plan.WarningModelUnavailable,
			Index:   -1,
			Message: fmt.Sprintf("model call failed: %v", err),
		})
	}
	log.Debug("Plan normalized",
		"subtasks", len(p.Subtasks),
		"fallback", p.UsedFallback(),
		"warnings", len(p.Warnings),
	)
	return p
}
