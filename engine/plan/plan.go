package plan

import (
	"fmt"
	"time"
)

// Subtask is one schedulable unit of a plan.
type Subtask struct {
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	DueAt           time.Time `json:"due_at"`
	DurationMinutes int       `json:"duration_minutes"`
}

// Duration returns the subtask duration as a time.Duration.
func (s *Subtask) Duration() time.Duration {
	return time.Duration(s.DurationMinutes) * time.Minute
}

type WarningCode string

const (
	WarningUnparsableOutput WarningCode = "unparsable_output"
	WarningMissingGoal      WarningCode = "missing_goal"
	WarningMissingSummary   WarningCode = "missing_summary"
	WarningFallbackSubtasks WarningCode = "fallback_subtasks"
	WarningSubtaskDropped   WarningCode = "subtask_dropped"
	WarningTruncated        WarningCode = "subtasks_truncated"
	WarningDescription      WarningCode = "description_substituted"
	WarningDueAt            WarningCode = "due_at_substituted"
	WarningDueAfterDeadline WarningCode = "due_at_after_deadline"
	WarningDuration         WarningCode = "duration_substituted"
	WarningDurationClamped  WarningCode = "duration_clamped"
	WarningModelUnavailable WarningCode = "model_unavailable"
)

// Warning records a substitution the normalizer made. Index is the candidate
// subtask position, or -1 for plan-level warnings.
type Warning struct {
	Code    WarningCode `json:"code"`
	Index   int         `json:"index"`
	Message string      `json:"message"`
}

// Plan is the normalized decomposition result.
type Plan struct {
	Goal        string    `json:"goal"`
	Summary     string    `json:"summary"`
	Subtasks    []Subtask `json:"subtasks"`
	Assumptions []string  `json:"assumptions"`
	Warnings    []Warning `json:"warnings,omitempty"`
}

// UsedFallback reports whether the generic milestone sequence replaced the
// model's subtasks.
func (p *Plan) UsedFallback() bool {
	return p.HasWarning(WarningFallbackSubtasks)
}

func (p *Plan) HasWarning(code WarningCode) bool {
	for i := range p.Warnings {
		if p.Warnings[i].Code == code {
			return true
		}
	}
	return false
}

func (p *Plan) warn(code WarningCode, index int, format string, args ...any) {
	p.Warnings = append(p.Warnings, Warning{Code: code, Index: index, Message: fmt.Sprintf(format, args...)})
}

// Request carries the inputs the planner needs from a workflow request.
type Request struct {
	Task     string
	Context  string
	Deadline *time.Time
	MaxSteps *int
	Timezone string
}

// Location resolves the request timezone, defaulting to UTC.
func (r *Request) Location() *time.Location {
	if r.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(r.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
