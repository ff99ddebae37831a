package workflow

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/compozy/plansync/engine/calendar"
	"github.com/compozy/plansync/engine/core"
	"github.com/compozy/plansync/engine/plan"
	"github.com/go-playground/validator/v10"
)

const (
	ErrCodeInvalidRequest = "INVALID_REQUEST"
	ErrCodeSyncFailed     = "CALENDAR_SYNC_FAILED"
	ErrCodeRepository     = "REPOSITORY_WRITE_FAILED"
	ErrCodeInvalidState   = "INVALID_STATE"
)

var (
	ErrNotFound       = errors.New("workflow not found")
	ErrInvalidRequest = errors.New("invalid workflow request")
	ErrNotRetryable   = errors.New("workflow is still in progress")
)

// -----------------------------------------------------------------------------
// Request
// -----------------------------------------------------------------------------

// Request is a user submission. It is validated before any record exists.
type Request struct {
	UserID     string     `json:"user_id"               validate:"required,max=255"`
	Task       string     `json:"task"                  validate:"required,max=4000"`
	Context    string     `json:"context,omitempty"     validate:"max=8000"`
	Deadline   *time.Time `json:"deadline,omitempty"`
	Timezone   string     `json:"timezone,omitempty"    validate:"omitempty,timezone"`
	MaxSteps   *int       `json:"max_steps,omitempty"`
	CalendarID string     `json:"calendar_id,omitempty" validate:"max=255"`
}

var requestValidator = validator.New()

// Validate trims the free-text fields and checks the request.
func (r *Request) Validate() error {
	r.UserID = strings.TrimSpace(r.UserID)
	r.Task = strings.TrimSpace(r.Task)
	r.Context = strings.TrimSpace(r.Context)
	if err := requestValidator.Struct(r); err != nil {
		return core.NewError(
			fmt.Errorf("%w: %w", ErrInvalidRequest, err),
			ErrCodeInvalidRequest,
			nil,
		)
	}
	return nil
}

// -----------------------------------------------------------------------------
// Instance
// -----------------------------------------------------------------------------

// Instance is the durable record of one decomposition-to-calendar run.
// SyncKey seeds calendar event ids and is shared by every retry attempt of
// the same submission; RetryOf links an attempt to the record it retries.
type Instance struct {
	WorkflowID     core.ID              `json:"workflow_id"`
	UserID         string               `json:"user_id"`
	Status         Status               `json:"status"`
	TaskInput      string               `json:"task_input"`
	Context        string               `json:"context,omitempty"`
	Deadline       *time.Time           `json:"deadline,omitempty"`
	Timezone       string               `json:"timezone"`
	MaxSteps       *int                 `json:"max_steps,omitempty"`
	CalendarID     string               `json:"calendar_id"`
	SyncKey        string               `json:"sync_key"`
	RetryOf        *core.ID             `json:"retry_of,omitempty"`
	PlanOutput     *plan.Plan           `json:"plan_output,omitempty"`
	CalendarOutput *calendar.SyncResult `json:"calendar_output,omitempty"`
	ErrorMessage   *string              `json:"error_message,omitempty"`
	ErrorCode      *string              `json:"error_code,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at"`
	CompletedAt    *time.Time           `json:"completed_at,omitempty"`
}

func newInstance(id core.ID, req *Request, defaultCalendarID string, now time.Time) *Instance {
	tz := req.Timezone
	if tz == "" {
		tz = "UTC"
	}
	calendarID := req.CalendarID
	if calendarID == "" {
		calendarID = defaultCalendarID
	}
	return &Instance{
		WorkflowID: id,
		UserID:     req.UserID,
		Status:     StatusQueued,
		TaskInput:  req.Task,
		Context:    req.Context,
		Deadline:   req.Deadline,
		Timezone:   tz,
		MaxSteps:   req.MaxSteps,
		CalendarID: calendarID,
		SyncKey:    id.String(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// PlanRequest projects the planner inputs.
func (i *Instance) PlanRequest() *plan.Request {
	return &plan.Request{
		Task:     i.TaskInput,
		Context:  i.Context,
		Deadline: i.Deadline,
		MaxSteps: i.MaxSteps,
		Timezone: i.Timezone,
	}
}

// advance moves the instance to status, stamping CompletedAt the first time
// a terminal status is entered.
func (i *Instance) advance(to Status, now time.Time) error {
	if err := Transition(i.Status, to); err != nil {
		return err
	}
	i.Status = to
	i.UpdatedAt = now
	if to.IsTerminal() && i.CompletedAt == nil {
		completed := now
		i.CompletedAt = &completed
	}
	return nil
}

// Clone returns a shallow copy; outputs are shared and never mutated after
// being set.
func (i *Instance) Clone() *Instance {
	c := *i
	return &c
}
