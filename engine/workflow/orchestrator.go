package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/compozy/plansync/engine/calendar"
	"github.com/compozy/plansync/engine/core"
	"github.com/compozy/plansync/engine/events"
	"github.com/compozy/plansync/engine/plan"
	"github.com/compozy/plansync/pkg/logger"
)

// Decomposer produces a plan for a request. It has no failure path.
type Decomposer interface {
	Run(ctx context.Context, req *plan.Request) *plan.Plan
}

// Syncer projects a plan onto the calendar. On failure it returns the partial
// result alongside a *calendar.SyncError.
type Syncer interface {
	Sync(ctx context.Context, in *calendar.SyncInput) (*calendar.SyncResult, error)
}

// Orchestrator drives instances through queued, running, calendar_syncing
// and a terminal status, persisting each transition before the next step.
type Orchestrator struct {
	repo              Repository
	decomposer        Decomposer
	syncer            Syncer
	publisher         events.Publisher
	metrics           Metrics
	now               func() time.Time
	defaultCalendarID string
}

type Option func(*Orchestrator)

func WithPublisher(p events.Publisher) Option {
	return func(o *Orchestrator) { o.publisher = p }
}

func WithMetrics(m Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func WithDefaultCalendar(calendarID string) Option {
	return func(o *Orchestrator) { o.defaultCalendarID = calendarID }
}

func NewOrchestrator(repo Repository, decomposer Decomposer, syncer Syncer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		repo:              repo,
		decomposer:        decomposer,
		syncer:            syncer,
		publisher:         events.NewNopPublisher(),
		metrics:           nopMetrics{},
		now:               time.Now,
		defaultCalendarID: "primary",
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Create validates req and persists a queued instance without running it.
func (o *Orchestrator) Create(ctx context.Context, req *Request) (*Instance, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	id, err := core.NewID()
	if err != nil {
		return nil, err
	}
	inst := newInstance(id, req, o.defaultCalendarID, o.now().UTC())
	if err := o.persist(ctx, inst); err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Info("Workflow created", "workflow_id", inst.WorkflowID, "user_id", inst.UserID)
	return inst, nil
}

// Start creates an instance and runs it to a terminal status before
// returning.
func (o *Orchestrator) Start(ctx context.Context, req *Request) (*Instance, error) {
	inst, err := o.Create(ctx, req)
	if err != nil {
		return nil, err
	}
	return o.execute(ctx, inst)
}

// Resume runs a persisted instance from its recorded status. Terminal
// instances are returned unchanged.
func (o *Orchestrator) Resume(ctx context.Context, workflowID core.ID, userID string) (*Instance, error) {
	inst, err := o.repo.GetByID(ctx, workflowID, userID)
	if err != nil {
		return nil, err
	}
	return o.execute(ctx, inst)
}

// Retry creates a queued attempt for a failed workflow. The attempt inherits
// the plan and the sync key, so a later run re-derives the same event ids and
// only creates the events still missing. A completed workflow is returned
// as is.
func (o *Orchestrator) Retry(ctx context.Context, workflowID core.ID, userID string) (*Instance, error) {
	orig, err := o.repo.GetByID(ctx, workflowID, userID)
	if err != nil {
		return nil, err
	}
	switch orig.Status {
	case StatusCompleted:
		return orig, nil
	case StatusFailed:
	default:
		return nil, fmt.Errorf("%w: %s is %s", ErrNotRetryable, workflowID, orig.Status)
	}
	id, err := core.NewID()
	if err != nil {
		return nil, err
	}
	now := o.now().UTC()
	syncKey := orig.SyncKey
	if syncKey == "" {
		syncKey = orig.WorkflowID.String()
	}
	origID := orig.WorkflowID
	attempt := &Instance{
		WorkflowID: id,
		UserID:     orig.UserID,
		Status:     StatusQueued,
		TaskInput:  orig.TaskInput,
		Context:    orig.Context,
		Deadline:   orig.Deadline,
		Timezone:   orig.Timezone,
		MaxSteps:   orig.MaxSteps,
		CalendarID: orig.CalendarID,
		SyncKey:    syncKey,
		RetryOf:    &origID,
		PlanOutput: orig.PlanOutput,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := o.persist(ctx, attempt); err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Info("Workflow retry created",
		"workflow_id", attempt.WorkflowID,
		"retry_of", origID,
		"user_id", userID,
	)
	return attempt, nil
}

func (o *Orchestrator) GetStatus(ctx context.Context, workflowID core.ID, userID string) (*Instance, error) {
	return o.repo.GetByID(ctx, workflowID, userID)
}

func (o *Orchestrator) List(ctx context.Context, userID string, limit int) ([]*Instance, error) {
	return o.repo.ListByUser(ctx, userID, NormalizeLimit(limit))
}

func (o *Orchestrator) execute(ctx context.Context, inst *Instance) (*Instance, error) {
	log := logger.FromContext(ctx).With("workflow_id", inst.WorkflowID, "user_id", inst.UserID)
	ctx = logger.ContextWithLogger(ctx, log)
	if inst.Status.IsTerminal() {
		return inst, nil
	}

	if inst.Status == StatusQueued {
		if err := o.advance(ctx, inst, StatusRunning); err != nil {
			return o.fail(ctx, inst, err)
		}
	}

	if inst.Status == StatusRunning {
		if inst.PlanOutput == nil {
			p := o.decomposer.Run(ctx, inst.PlanRequest())
			o.recordFallback(p)
			inst.PlanOutput = p
		} else {
			log.Debug("Reusing recorded plan")
		}
		if err := o.advance(ctx, inst, StatusCalendarSyncing); err != nil {
			return o.fail(ctx, inst, err)
		}
		// a concurrent run may have recorded its plan first; sync that one
		stored, err := o.reload(ctx, inst)
		if err != nil {
			return o.fail(ctx, inst, err)
		}
		if stored.Status.IsTerminal() {
			log.Debug("Workflow finished by another run", "status", stored.Status)
			return stored, nil
		}
		inst = stored
	}

	if inst.Status != StatusCalendarSyncing {
		return o.fail(ctx, inst, fmt.Errorf("unexpected status %s", inst.Status))
	}
	if inst.PlanOutput == nil {
		return o.fail(ctx, inst, core.NewError(
			errors.New("calendar sync requires a recorded plan"), ErrCodeInvalidState, nil,
		))
	}
	result, err := o.syncer.Sync(ctx, &calendar.SyncInput{
		SyncKey:    inst.SyncKey,
		UserID:     inst.UserID,
		CalendarID: inst.CalendarID,
		Timezone:   inst.Timezone,
		Task:       inst.TaskInput,
		Plan:       inst.PlanOutput,
	})
	o.recordEvents(result)
	if err != nil {
		return o.fail(ctx, inst, err)
	}
	inst.CalendarOutput = result
	if err := o.advance(ctx, inst, StatusCompleted); err != nil {
		return o.fail(ctx, inst, err)
	}
	log.Info("Workflow completed", "events", len(result.CreatedEvents))
	if stored, err := o.reload(ctx, inst); err == nil {
		return stored, nil
	}
	return inst, nil
}

// reload reads back the merged record after an upsert.
func (o *Orchestrator) reload(ctx context.Context, inst *Instance) (*Instance, error) {
	stored, err := o.repo.GetByID(ctx, inst.WorkflowID, inst.UserID)
	if err != nil {
		return nil, core.NewError(
			fmt.Errorf("failed to reload workflow %s: %w", inst.WorkflowID, err),
			ErrCodeRepository,
			map[string]any{"status": inst.Status},
		)
	}
	return stored, nil
}

// advance records the transition and persists it.
func (o *Orchestrator) advance(ctx context.Context, inst *Instance, to Status) error {
	if err := inst.advance(to, o.now().UTC()); err != nil {
		return core.NewError(err, ErrCodeInvalidState, map[string]any{"status": inst.Status})
	}
	return o.persist(ctx, inst)
}

func (o *Orchestrator) persist(ctx context.Context, inst *Instance) error {
	if err := o.repo.Upsert(ctx, inst); err != nil {
		return core.NewError(
			fmt.Errorf("failed to persist workflow %s: %w", inst.WorkflowID, err),
			ErrCodeRepository,
			map[string]any{"status": inst.Status},
		)
	}
	o.metrics.RecordTransition(inst.Status)
	o.publish(ctx, inst)
	return nil
}

func (o *Orchestrator) publish(ctx context.Context, inst *Instance) {
	err := o.publisher.Publish(ctx, &events.StatusEvent{
		WorkflowID: inst.WorkflowID.String(),
		UserID:     inst.UserID,
		Status:     inst.Status.String(),
		At:         inst.UpdatedAt,
	})
	if err != nil {
		logger.FromContext(ctx).Warn("Failed to publish status event", "status", inst.Status, "error", err)
	}
}

// fail marks the instance failed, persists it and returns the cause wrapped
// with its error code. Partial sync progress is kept on the record.
func (o *Orchestrator) fail(ctx context.Context, inst *Instance, cause error) (*Instance, error) {
	log := logger.FromContext(ctx)
	code, message := describeFailure(cause)
	var failure error = core.NewError(cause, code, map[string]any{"workflow_id": inst.WorkflowID.String()})
	if core.ErrorCode(cause) == code {
		failure = cause
	}
	if inst.Status.IsTerminal() {
		return inst, failure
	}
	var syncErr *calendar.SyncError
	if errors.As(cause, &syncErr) && syncErr.Result != nil && inst.PlanOutput != nil {
		inst.CalendarOutput = syncErr.Result
	}
	inst.ErrorCode = &code
	inst.ErrorMessage = &message
	if err := inst.advance(StatusFailed, o.now().UTC()); err != nil {
		return inst, errors.Join(failure, err)
	}
	log.Error("Workflow failed", "error_code", code, "error", cause)
	if err := o.persist(ctx, inst); err != nil {
		return inst, errors.Join(failure, err)
	}
	stored, err := o.reload(ctx, inst)
	if err != nil {
		return inst, failure
	}
	if stored.Status == StatusCompleted {
		return stored, nil
	}
	return stored, failure
}

func describeFailure(cause error) (string, string) {
	var permErr *calendar.PermissionError
	if errors.As(cause, &permErr) {
		return calendar.ReauthMarker, fmt.Sprintf(
			"%s: calendar access must be re-authorized (%s)", calendar.ReauthMarker, permErr.Message,
		)
	}
	if calendar.IsPermissionError(cause) {
		return calendar.ReauthMarker, fmt.Sprintf(
			"%s: calendar access must be re-authorized (%s)", calendar.ReauthMarker, cause.Error(),
		)
	}
	var syncErr *calendar.SyncError
	if errors.As(cause, &syncErr) {
		return ErrCodeSyncFailed, cause.Error()
	}
	if code := core.ErrorCode(cause); code != "" {
		var coreErr *core.Error
		if errors.As(cause, &coreErr) {
			return code, coreErr.Message
		}
	}
	return ErrCodeSyncFailed, cause.Error()
}

func (o *Orchestrator) recordFallback(p *plan.Plan) {
	if !p.UsedFallback() {
		return
	}
	reason := "no_valid_subtasks"
	switch {
	case p.HasWarning(plan.WarningModelUnavailable):
		reason = "model_unavailable"
	case p.HasWarning(plan.WarningUnparsableOutput):
		reason = "unparsable_output"
	}
	o.metrics.RecordPlanFallback(reason)
}

func (o *Orchestrator) recordEvents(result *calendar.SyncResult) {
	if result == nil {
		return
	}
	created, replayed := 0, 0
	for _, ev := range result.CreatedEvents {
		if ev.Replayed {
			replayed++
		} else {
			created++
		}
	}
	o.metrics.RecordCalendarEvents(created, replayed)
}
