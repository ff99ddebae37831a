package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/compozy/plansync/engine/core"
	"github.com/compozy/plansync/engine/workflow"
)

// DB is the subset of pgxpool.Pool used by the repository.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

var instanceColumns = []string{
	"workflow_id", "user_id", "status", "task_input", "context", "deadline", "timezone",
	"max_steps", "calendar_id", "sync_key", "retry_of", "plan_output", "calendar_output",
	"error_message", "error_code", "created_at", "updated_at", "completed_at",
}

// onConflictMerge mirrors workflow.Merge: terminal rows are left alone,
// status only advances and recorded outputs are never replaced.
const onConflictMerge = `ON CONFLICT (workflow_id) DO UPDATE SET
	status = CASE WHEN EXCLUDED.status_rank > workflow_instances.status_rank
		THEN EXCLUDED.status ELSE workflow_instances.status END,
	status_rank = GREATEST(EXCLUDED.status_rank, workflow_instances.status_rank),
	plan_output = COALESCE(workflow_instances.plan_output, EXCLUDED.plan_output),
	calendar_output = COALESCE(workflow_instances.calendar_output, EXCLUDED.calendar_output),
	error_message = COALESCE(workflow_instances.error_message, EXCLUDED.error_message),
	error_code = COALESCE(workflow_instances.error_code, EXCLUDED.error_code),
	completed_at = CASE WHEN GREATEST(EXCLUDED.status_rank, workflow_instances.status_rank) >= ?
		THEN COALESCE(workflow_instances.completed_at, EXCLUDED.completed_at) ELSE NULL END,
	updated_at = GREATEST(workflow_instances.updated_at, EXCLUDED.updated_at)
WHERE workflow_instances.status_rank < ?`

// instanceRow is the scan target for workflow_instances.
type instanceRow struct {
	WorkflowID     string     `db:"workflow_id"`
	UserID         string     `db:"user_id"`
	Status         string     `db:"status"`
	TaskInput      string     `db:"task_input"`
	Context        string     `db:"context"`
	Deadline       *time.Time `db:"deadline"`
	Timezone       string     `db:"timezone"`
	MaxSteps       *int       `db:"max_steps"`
	CalendarID     string     `db:"calendar_id"`
	SyncKey        string     `db:"sync_key"`
	RetryOf        *string    `db:"retry_of"`
	PlanOutput     []byte     `db:"plan_output"`
	CalendarOutput []byte     `db:"calendar_output"`
	ErrorMessage   *string    `db:"error_message"`
	ErrorCode      *string    `db:"error_code"`
	CreatedAt      time.Time  `db:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at"`
	CompletedAt    *time.Time `db:"completed_at"`
}

func (r *instanceRow) toInstance() (*workflow.Instance, error) {
	inst := &workflow.Instance{
		WorkflowID:   core.ID(r.WorkflowID),
		UserID:       r.UserID,
		Status:       workflow.Status(r.Status),
		TaskInput:    r.TaskInput,
		Context:      r.Context,
		Deadline:     r.Deadline,
		Timezone:     r.Timezone,
		MaxSteps:     r.MaxSteps,
		CalendarID:   r.CalendarID,
		SyncKey:      r.SyncKey,
		ErrorMessage: r.ErrorMessage,
		ErrorCode:    r.ErrorCode,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
		CompletedAt:  r.CompletedAt,
	}
	if r.RetryOf != nil {
		id := core.ID(*r.RetryOf)
		inst.RetryOf = &id
	}
	if len(r.PlanOutput) > 0 {
		if err := json.Unmarshal(r.PlanOutput, &inst.PlanOutput); err != nil {
			return nil, fmt.Errorf("unmarshaling plan output: %w", err)
		}
	}
	if len(r.CalendarOutput) > 0 {
		if err := json.Unmarshal(r.CalendarOutput, &inst.CalendarOutput); err != nil {
			return nil, fmt.Errorf("unmarshaling calendar output: %w", err)
		}
	}
	return inst, nil
}

// WorkflowRepo implements workflow.Repository on PostgreSQL.
type WorkflowRepo struct {
	db DB
}

func NewWorkflowRepo(db DB) *WorkflowRepo {
	return &WorkflowRepo{db: db}
}

func (r *WorkflowRepo) Upsert(ctx context.Context, inst *workflow.Instance) error {
	if inst == nil || inst.WorkflowID.IsZero() {
		return errors.New("workflow id is required")
	}
	if !inst.Status.IsValid() {
		return fmt.Errorf("invalid status %q", inst.Status)
	}
	planJSON, err := jsonOrNil(inst.PlanOutput, inst.PlanOutput == nil)
	if err != nil {
		return fmt.Errorf("marshaling plan output: %w", err)
	}
	calendarJSON, err := jsonOrNil(inst.CalendarOutput, inst.CalendarOutput == nil)
	if err != nil {
		return fmt.Errorf("marshaling calendar output: %w", err)
	}
	var retryOf *string
	if inst.RetryOf != nil {
		v := inst.RetryOf.String()
		retryOf = &v
	}
	terminalRank := workflow.StatusCompleted.Rank()
	query, args, err := psql.Insert("workflow_instances").
		Columns(
			"workflow_id", "user_id", "status", "status_rank", "task_input", "context", "deadline",
			"timezone", "max_steps", "calendar_id", "sync_key", "retry_of", "plan_output",
			"calendar_output", "error_message", "error_code", "created_at", "updated_at", "completed_at",
		).
		Values(
			inst.WorkflowID.String(), inst.UserID, string(inst.Status), inst.Status.Rank(),
			inst.TaskInput, inst.Context, inst.Deadline, inst.Timezone, inst.MaxSteps,
			inst.CalendarID, inst.SyncKey, retryOf, planJSON, calendarJSON,
			inst.ErrorMessage, inst.ErrorCode, inst.CreatedAt, inst.UpdatedAt, inst.CompletedAt,
		).
		Suffix(onConflictMerge, terminalRank, terminalRank).
		ToSql()
	if err != nil {
		return fmt.Errorf("building upsert query: %w", err)
	}
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upserting workflow %s: %w", inst.WorkflowID, err)
	}
	return nil
}

func (r *WorkflowRepo) GetByID(ctx context.Context, workflowID core.ID, userID string) (*workflow.Instance, error) {
	query, args, err := psql.Select(instanceColumns...).
		From("workflow_instances").
		Where(squirrel.Eq{"workflow_id": workflowID.String(), "user_id": userID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building get query: %w", err)
	}
	var row instanceRow
	if err := pgxscan.Get(ctx, r.db, &row, query, args...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, workflow.ErrNotFound
		}
		return nil, fmt.Errorf("scanning workflow %s: %w", workflowID, err)
	}
	return row.toInstance()
}

func (r *WorkflowRepo) ListByUser(ctx context.Context, userID string, limit int) ([]*workflow.Instance, error) {
	query, args, err := psql.Select(instanceColumns...).
		From("workflow_instances").
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("created_at DESC", "workflow_id DESC").
		Limit(uint64(workflow.NormalizeLimit(limit))).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building list query: %w", err)
	}
	var rows []*instanceRow
	if err := pgxscan.Select(ctx, r.db, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("scanning workflows: %w", err)
	}
	out := make([]*workflow.Instance, 0, len(rows))
	for _, row := range rows {
		inst, err := row.toInstance()
		if err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	return out, nil
}

func jsonOrNil(v any, isNil bool) (any, error) {
	if isNil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

var _ workflow.Repository = (*WorkflowRepo)(nil)
