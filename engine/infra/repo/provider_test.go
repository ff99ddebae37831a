package repo

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compozy/plansync/engine/core"
	"github.com/compozy/plansync/engine/workflow"
	"github.com/compozy/plansync/pkg/config"
)

func TestOpen(t *testing.T) {
	t.Run("Should open a migrated sqlite repository", func(t *testing.T) {
		ctx := context.Background()
		cfg := &config.DatabaseConfig{
			Driver:      DriverSQLite,
			Path:        filepath.Join(t.TempDir(), "plansync.db"),
			AutoMigrate: true,
		}
		p, err := Open(ctx, cfg)
		require.NoError(t, err)
		defer p.Close(ctx)
		assert.Equal(t, DriverSQLite, p.Driver())
		assert.Nil(t, p.Collector())
		require.NoError(t, p.HealthCheck(ctx))

		now := time.Now().UTC()
		id := core.MustNewID()
		inst := &workflow.Instance{
			WorkflowID: id,
			UserID:     "user-1",
			Status:     workflow.StatusQueued,
			TaskInput:  "Plan the offsite",
			Timezone:   "UTC",
			CalendarID: "primary",
			SyncKey:    id.String(),
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		require.NoError(t, p.WorkflowRepo().Upsert(ctx, inst))
		got, err := p.WorkflowRepo().GetByID(ctx, id, "user-1")
		require.NoError(t, err)
		assert.Equal(t, "Plan the offsite", got.TaskInput)
	})

	t.Run("Should migrate separately from opening", func(t *testing.T) {
		ctx := context.Background()
		cfg := &config.DatabaseConfig{Driver: DriverSQLite, Path: filepath.Join(t.TempDir(), "m.db")}
		require.NoError(t, Migrate(ctx, cfg))
		p, err := Open(ctx, cfg)
		require.NoError(t, err)
		defer p.Close(ctx)
		list, err := p.WorkflowRepo().ListByUser(ctx, "user-1", 10)
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("Should reject unknown drivers", func(t *testing.T) {
		_, err := Open(context.Background(), &config.DatabaseConfig{Driver: "mysql"})
		require.Error(t, err)
	})
}
