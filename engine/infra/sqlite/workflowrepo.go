package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/compozy/plansync/engine/calendar"
	"github.com/compozy/plansync/engine/core"
	"github.com/compozy/plansync/engine/plan"
	"github.com/compozy/plansync/engine/workflow"
)

// timeLayout is fixed width so TEXT ordering matches chronological ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const instanceColumns = "workflow_id, user_id, status, task_input, context, deadline, timezone, " +
	"max_steps, calendar_id, sync_key, retry_of, plan_output, calendar_output, " +
	"error_message, error_code, created_at, updated_at, completed_at"

// upsertInstanceSQL applies the same rules as workflow.Merge inside one
// statement: terminal rows are left alone, status never moves backwards and
// recorded outputs are never replaced.
const upsertInstanceSQL = `INSERT INTO workflow_instances (
	workflow_id, user_id, status, status_rank, task_input, context, deadline, timezone,
	max_steps, calendar_id, sync_key, retry_of, plan_output, calendar_output,
	error_message, error_code, created_at, updated_at, completed_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (workflow_id) DO UPDATE SET
	status = CASE WHEN excluded.status_rank > workflow_instances.status_rank
		THEN excluded.status ELSE workflow_instances.status END,
	status_rank = MAX(excluded.status_rank, workflow_instances.status_rank),
	plan_output = COALESCE(workflow_instances.plan_output, excluded.plan_output),
	calendar_output = COALESCE(workflow_instances.calendar_output, excluded.calendar_output),
	error_message = COALESCE(workflow_instances.error_message, excluded.error_message),
	error_code = COALESCE(workflow_instances.error_code, excluded.error_code),
	completed_at = CASE WHEN MAX(excluded.status_rank, workflow_instances.status_rank) >= ?
		THEN COALESCE(workflow_instances.completed_at, excluded.completed_at) ELSE NULL END,
	updated_at = MAX(workflow_instances.updated_at, excluded.updated_at)
WHERE workflow_instances.status_rank < ?`

// WorkflowRepo implements workflow.Repository on SQLite.
type WorkflowRepo struct {
	db *sql.DB
}

func NewWorkflowRepo(db *sql.DB) *WorkflowRepo {
	return &WorkflowRepo{db: db}
}

func (r *WorkflowRepo) Upsert(ctx context.Context, inst *workflow.Instance) error {
	if inst == nil || inst.WorkflowID.IsZero() {
		return errors.New("sqlite: workflow id is required")
	}
	if !inst.Status.IsValid() {
		return fmt.Errorf("sqlite: invalid status %q", inst.Status)
	}
	planJSON, err := ToJSONText(inst.PlanOutput)
	if err != nil {
		return fmt.Errorf("sqlite: encode plan output: %w", err)
	}
	calendarJSON, err := ToJSONText(inst.CalendarOutput)
	if err != nil {
		return fmt.Errorf("sqlite: encode calendar output: %w", err)
	}
	terminalRank := workflow.StatusCompleted.Rank()
	_, err = r.db.ExecContext(ctx, upsertInstanceSQL,
		inst.WorkflowID.String(),
		inst.UserID,
		string(inst.Status),
		inst.Status.Rank(),
		inst.TaskInput,
		inst.Context,
		formatTimePtr(inst.Deadline),
		inst.Timezone,
		intPtr(inst.MaxSteps),
		inst.CalendarID,
		inst.SyncKey,
		idPtr(inst.RetryOf),
		planJSON,
		calendarJSON,
		stringPtr(inst.ErrorMessage),
		stringPtr(inst.ErrorCode),
		formatTime(inst.CreatedAt),
		formatTime(inst.UpdatedAt),
		formatTimePtr(inst.CompletedAt),
		terminalRank,
		terminalRank,
	)
	if err != nil {
		return fmt.Errorf("sqlite: upsert workflow %s: %w", inst.WorkflowID, err)
	}
	return nil
}

func (r *WorkflowRepo) GetByID(ctx context.Context, workflowID core.ID, userID string) (*workflow.Instance, error) {
	query := "SELECT " + instanceColumns + " FROM workflow_instances WHERE workflow_id = ? AND user_id = ?"
	row := r.db.QueryRowContext(ctx, query, workflowID.String(), userID)
	inst, err := scanInstance(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, workflow.ErrNotFound
		}
		return nil, fmt.Errorf("sqlite: get workflow %s: %w", workflowID, err)
	}
	return inst, nil
}

func (r *WorkflowRepo) ListByUser(ctx context.Context, userID string, limit int) ([]*workflow.Instance, error) {
	query := "SELECT " + instanceColumns + " FROM workflow_instances WHERE user_id = ? " +
		"ORDER BY created_at DESC, workflow_id DESC LIMIT ?"
	rows, err := r.db.QueryContext(ctx, query, userID, workflow.NormalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("sqlite: list workflows: %w", err)
	}
	defer rows.Close()
	out := make([]*workflow.Instance, 0)
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan workflow: %w", err)
		}
		out = append(out, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate workflows: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInstance(row rowScanner) (*workflow.Instance, error) {
	var (
		inst                   workflow.Instance
		id, status             string
		deadline, completedAt  sql.NullString
		maxSteps               sql.NullInt64
		retryOf                sql.NullString
		planJSON, calendarJSON sql.NullString
		errMessage, errCode    sql.NullString
		createdAt, updatedAt   string
	)
	if err := row.Scan(
		&id, &inst.UserID, &status, &inst.TaskInput, &inst.Context, &deadline, &inst.Timezone,
		&maxSteps, &inst.CalendarID, &inst.SyncKey, &retryOf, &planJSON, &calendarJSON,
		&errMessage, &errCode, &createdAt, &updatedAt, &completedAt,
	); err != nil {
		return nil, err
	}
	inst.WorkflowID = core.ID(id)
	inst.Status = workflow.Status(status)
	var err error
	if inst.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if inst.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	if inst.Deadline, err = parseNullTime(deadline); err != nil {
		return nil, err
	}
	if inst.CompletedAt, err = parseNullTime(completedAt); err != nil {
		return nil, err
	}
	if maxSteps.Valid {
		v := int(maxSteps.Int64)
		inst.MaxSteps = &v
	}
	if retryOf.Valid {
		v := core.ID(retryOf.String)
		inst.RetryOf = &v
	}
	if errMessage.Valid {
		inst.ErrorMessage = &errMessage.String
	}
	if errCode.Valid {
		inst.ErrorCode = &errCode.String
	}
	if planJSON.Valid {
		var p *plan.Plan
		if err := FromJSONText([]byte(planJSON.String), &p); err != nil {
			return nil, fmt.Errorf("decode plan output: %w", err)
		}
		inst.PlanOutput = p
	}
	if calendarJSON.Valid {
		var c *calendar.SyncResult
		if err := FromJSONText([]byte(calendarJSON.String), &c); err != nil {
			return nil, fmt.Errorf("decode calendar output: %w", err)
		}
		inst.CalendarOutput = c
	}
	return &inst, nil
}

// ToJSONText encodes v for a TEXT column. Nil values map to SQL NULL.
func ToJSONText(v any) (any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case *plan.Plan:
		if t == nil {
			return nil, nil
		}
	case *calendar.SyncResult:
		if t == nil {
			return nil, nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// FromJSONText decodes a TEXT column into dst. Empty input leaves dst untouched.
func FromJSONText(b []byte, dst any) error {
	if len(strings.TrimSpace(string(b))) == 0 {
		return nil
	}
	return json.Unmarshal(b, dst)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func intPtr(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func stringPtr(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func idPtr(v *core.ID) any {
	if v == nil {
		return nil
	}
	return v.String()
}
