package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compozy/plansync/engine/workflow"
)

// fakeCalendar accepts event inserts and echoes them back.
func fakeCalendar(t *testing.T, creates *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		body["status"] = "confirmed"
		creates.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func setupEnv(t *testing.T, calendarURL string) []string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_PATH", filepath.Join(dir, "plansync.db"))
	t.Setenv("LLM_PROVIDER", "mock")
	t.Setenv("LLM_MOCK_RESPONSE", "not json")
	t.Setenv("CREDENTIALS_SOURCE", "static")
	t.Setenv("CREDENTIALS_STATIC_TOKEN", "tok")
	t.Setenv("CALENDAR_BASE_URL", calendarURL)
	t.Setenv("MONITORING_ENABLED", "false")
	return []string{
		"--config", filepath.Join(dir, "missing.yaml"),
		"--env-file", filepath.Join(dir, "missing.env"),
		"--log-level", "error",
	}
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := RootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCmd(t *testing.T) {
	t.Run("Should register every command", func(t *testing.T) {
		root := RootCmd()
		for _, name := range []string{"serve", "submit", "status", "list", "retry", "watch", "migrate", "version"} {
			found, _, err := root.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, found.Name())
		}
	})

	t.Run("Should print version information as JSON", func(t *testing.T) {
		base := setupEnv(t, "http://127.0.0.1:1")
		out, err := runCLI(t, append(base, "version", "-o", "json")...)
		require.NoError(t, err)
		assert.Contains(t, out, `"version"`)
	})

	t.Run("Should submit a task and schedule every subtask", func(t *testing.T) {
		var creates atomic.Int32
		base := setupEnv(t, fakeCalendar(t, &creates).URL)
		out, err := runCLI(t, append(base,
			"submit", "Prepare the quarterly review",
			"--user", "user-1",
			"--max-steps", "2",
			"--deadline", time.Now().Add(96*time.Hour).UTC().Format(time.RFC3339),
			"-o", "json",
		)...)
		require.NoError(t, err)
		var inst workflow.Instance
		require.NoError(t, json.Unmarshal([]byte(out), &inst))
		assert.Equal(t, workflow.StatusCompleted, inst.Status)
		require.NotNil(t, inst.CalendarOutput)
		assert.Len(t, inst.CalendarOutput.CreatedEvents, 2)
		assert.Equal(t, int32(2), creates.Load())

		out, err = runCLI(t, append(base, "list", "--user", "user-1", "-o", "json")...)
		require.NoError(t, err)
		var items []*workflow.Instance
		require.NoError(t, json.Unmarshal([]byte(out), &items))
		require.Len(t, items, 1)
		assert.Equal(t, inst.WorkflowID, items[0].WorkflowID)

		out, err = runCLI(t, append(base, "status", inst.WorkflowID.String(), "--user", "user-1")...)
		require.NoError(t, err)
		assert.Contains(t, out, inst.WorkflowID.String())
	})

	t.Run("Should require a user", func(t *testing.T) {
		base := setupEnv(t, "http://127.0.0.1:1")
		_, err := runCLI(t, append(base, "list")...)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "--user")
	})

	t.Run("Should refuse to retry a completed workflow twice", func(t *testing.T) {
		var creates atomic.Int32
		base := setupEnv(t, fakeCalendar(t, &creates).URL)
		out, err := runCLI(t, append(base, "submit", "Book venue", "--user", "user-1", "--max-steps", "1", "-o", "json")...)
		require.NoError(t, err)
		var inst workflow.Instance
		require.NoError(t, json.Unmarshal([]byte(out), &inst))

		out, err = runCLI(t, append(base, "retry", inst.WorkflowID.String(), "--user", "user-1", "-o", "json")...)
		require.NoError(t, err)
		var again workflow.Instance
		require.NoError(t, json.Unmarshal([]byte(out), &again))
		assert.Equal(t, inst.WorkflowID, again.WorkflowID)
		assert.Equal(t, int32(1), creates.Load())
	})
}

func TestParseDeadline(t *testing.T) {
	t.Run("Should read bare dates as the afternoon in the given zone", func(t *testing.T) {
		got, err := parseDeadline("2026-05-04", "Europe/Lisbon")
		require.NoError(t, err)
		loc, _ := time.LoadLocation("Europe/Lisbon")
		assert.True(t, got.Equal(time.Date(2026, 5, 4, 17, 0, 0, 0, loc)))
	})

	t.Run("Should reject garbage", func(t *testing.T) {
		_, err := parseDeadline("next tuesday", "")
		assert.Error(t, err)
	})
}
