package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compozy/plansync/engine/core"
	"github.com/compozy/plansync/engine/workflow"
)

func newMockRepo(t *testing.T) (pgxmock.PgxPoolIface, *WorkflowRepo) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewWorkflowRepo(mock)
}

func rowValues(id core.ID, userID string, createdAt time.Time, planJSON []byte) []any {
	return []any{
		id.String(), userID, "completed", "Write the report", "", nil, "UTC",
		nil, "primary", id.String(), nil, planJSON, nil,
		nil, nil, createdAt, createdAt, nil,
	}
}

func TestWorkflowRepo_Upsert(t *testing.T) {
	t.Run("Should issue a merging upsert", func(t *testing.T) {
		mock, repo := newMockRepo(t)
		now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
		id := core.MustNewID()
		inst := &workflow.Instance{
			WorkflowID: id,
			UserID:     "user-1",
			Status:     workflow.StatusRunning,
			TaskInput:  "Write the report",
			Timezone:   "UTC",
			CalendarID: "primary",
			SyncKey:    id.String(),
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		args := make([]any, 21)
		for i := range args {
			args[i] = pgxmock.AnyArg()
		}
		args[0] = id.String()
		args[2] = "running"
		args[3] = workflow.StatusRunning.Rank()
		mock.ExpectExec("INSERT INTO workflow_instances .* ON CONFLICT \\(workflow_id\\) DO UPDATE SET").
			WithArgs(args...).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, repo.Upsert(context.Background(), inst))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Should wrap driver errors", func(t *testing.T) {
		mock, repo := newMockRepo(t)
		id := core.MustNewID()
		anyArgs := make([]any, 21)
		for i := range anyArgs {
			anyArgs[i] = pgxmock.AnyArg()
		}
		mock.ExpectExec("INSERT INTO workflow_instances").
			WithArgs(anyArgs...).
			WillReturnError(errors.New("connection reset"))

		err := repo.Upsert(context.Background(), &workflow.Instance{
			WorkflowID: id,
			Status:     workflow.StatusQueued,
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection reset")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Should reject invalid statuses before touching the database", func(t *testing.T) {
		mock, repo := newMockRepo(t)
		err := repo.Upsert(context.Background(), &workflow.Instance{
			WorkflowID: core.MustNewID(),
			Status:     workflow.Status("paused"),
		})
		require.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestWorkflowRepo_GetByID(t *testing.T) {
	t.Run("Should scan the record and decode outputs", func(t *testing.T) {
		mock, repo := newMockRepo(t)
		id := core.MustNewID()
		now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
		planJSON := []byte(`{"goal":"Write the report","summary":"s","subtasks":[],"assumptions":[]}`)
		mock.ExpectQuery("SELECT .* FROM workflow_instances WHERE").
			WithArgs("user-1", id.String()).
			WillReturnRows(mock.NewRows(instanceColumns).AddRow(rowValues(id, "user-1", now, planJSON)...))

		got, err := repo.GetByID(context.Background(), id, "user-1")
		require.NoError(t, err)
		assert.Equal(t, id, got.WorkflowID)
		assert.Equal(t, workflow.StatusCompleted, got.Status)
		require.NotNil(t, got.PlanOutput)
		assert.Equal(t, "Write the report", got.PlanOutput.Goal)
		assert.Nil(t, got.CalendarOutput)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Should map missing rows to ErrNotFound", func(t *testing.T) {
		mock, repo := newMockRepo(t)
		id := core.MustNewID()
		mock.ExpectQuery("SELECT .* FROM workflow_instances WHERE").
			WithArgs("user-2", id.String()).
			WillReturnError(pgx.ErrNoRows)

		_, err := repo.GetByID(context.Background(), id, "user-2")
		assert.ErrorIs(t, err, workflow.ErrNotFound)
	})
}

func TestWorkflowRepo_ListByUser(t *testing.T) {
	t.Run("Should order newest first and cap the limit", func(t *testing.T) {
		mock, repo := newMockRepo(t)
		now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
		first, second := core.MustNewID(), core.MustNewID()
		mock.ExpectQuery("ORDER BY created_at DESC, workflow_id DESC LIMIT 100").
			WithArgs("user-1").
			WillReturnRows(mock.NewRows(instanceColumns).
				AddRow(rowValues(second, "user-1", now.Add(time.Minute), nil)...).
				AddRow(rowValues(first, "user-1", now, nil)...))

		got, err := repo.ListByUser(context.Background(), "user-1", 500)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, second, got[0].WorkflowID)
		assert.Equal(t, first, got[1].WorkflowID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
