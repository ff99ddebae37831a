package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDSN(t *testing.T) {
	t.Run("Should build DSN for file path with pragmas", func(t *testing.T) {
		d := buildDSN(&Config{Path: "/tmp/test.db"})
		assert.Contains(t, d, "file:/tmp/test.db")
		assert.Contains(t, d, "_pragma=journal_mode(WAL)")
		assert.Contains(t, d, "_pragma=foreign_keys(ON)")
		assert.Contains(t, d, "_pragma=busy_timeout(5000)")
		assert.Contains(t, d, "_txlock=immediate")
	})
	t.Run("Should honor a custom busy timeout", func(t *testing.T) {
		d := buildDSN(&Config{Path: "/tmp/test.db", BusyTimeout: 250 * time.Millisecond})
		assert.Contains(t, d, "_pragma=busy_timeout(250)")
	})
	t.Run("Should build DSN for in-memory databases", func(t *testing.T) {
		d := buildDSN(&Config{Path: ":memory:"})
		assert.Contains(t, d, "file::memory:?")
		assert.NotContains(t, d, "journal_mode")
	})
}

func TestNewStore(t *testing.T) {
	t.Run("Should require a path", func(t *testing.T) {
		_, err := NewStore(context.Background(), &Config{})
		require.Error(t, err)
	})
	t.Run("Should open an in-memory store", func(t *testing.T) {
		ctx := context.Background()
		s, err := NewStore(ctx, &Config{Path: ":memory:"})
		require.NoError(t, err)
		defer s.Close(ctx)
		require.NoError(t, s.HealthCheck(ctx))
	})
}

func TestMigrations(t *testing.T) {
	t.Run("Should create the workflow table and indexes", func(t *testing.T) {
		ctx := t.Context()
		s, err := NewStore(ctx, &Config{Path: filepath.Join(t.TempDir(), "tables.db")})
		require.NoError(t, err)
		defer s.Close(ctx)
		require.NoError(t, ApplyMigrations(ctx, s.DB()))

		expected := map[string]bool{
			"workflow_instances":                  true,
			"idx_workflow_instances_user_created": true,
			"idx_workflow_instances_sync_key":     true,
		}
		rows, err := s.DB().QueryContext(ctx, "SELECT name FROM sqlite_master WHERE type IN ('table', 'index')")
		require.NoError(t, err)
		defer rows.Close()
		for rows.Next() {
			var name string
			require.NoError(t, rows.Scan(&name))
			delete(expected, name)
		}
		require.NoError(t, rows.Err())
		assert.Empty(t, expected)
	})
	t.Run("Should be safe to apply twice", func(t *testing.T) {
		ctx := t.Context()
		s, err := NewStore(ctx, &Config{Path: filepath.Join(t.TempDir(), "twice.db")})
		require.NoError(t, err)
		defer s.Close(ctx)
		require.NoError(t, ApplyMigrations(ctx, s.DB()))
		require.NoError(t, ApplyMigrations(ctx, s.DB()))
	})
}
