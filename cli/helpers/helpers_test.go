package helpers

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compozy/plansync/engine/calendar"
	"github.com/compozy/plansync/engine/core"
	"github.com/compozy/plansync/engine/workflow"
)

func TestFormatError(t *testing.T) {
	t.Run("Should emit code and details for CLI errors in JSON", func(t *testing.T) {
		out := FormatError(NewCliError("INVALID_ID", "workflow id is not valid", "abc"), OutputFormatJSON)
		var payload map[string]any
		require.NoError(t, json.Unmarshal([]byte(out), &payload))
		assert.Equal(t, "INVALID_ID", payload["code"])
		assert.Equal(t, "abc", payload["details"])
	})

	t.Run("Should surface core error codes", func(t *testing.T) {
		err := core.NewError(errors.New("boom"), workflow.ErrCodeSyncFailed, nil)
		out := FormatError(err, OutputFormatJSON)
		assert.Contains(t, out, workflow.ErrCodeSyncFailed)
	})

	t.Run("Should hint at reauthorization in text mode", func(t *testing.T) {
		err := &calendar.PermissionError{Message: "token revoked"}
		assert.True(t, IsReauthError(err))
		assert.Contains(t, FormatError(err, OutputFormatText), "granted again")
	})
}

func TestParseOutputFormat(t *testing.T) {
	t.Run("Should default to text", func(t *testing.T) {
		f, err := ParseOutputFormat("")
		require.NoError(t, err)
		assert.Equal(t, OutputFormatText, f)
	})

	t.Run("Should reject unknown formats", func(t *testing.T) {
		_, err := ParseOutputFormat("yaml")
		assert.Error(t, err)
	})
}

func TestWriteInstances(t *testing.T) {
	t.Run("Should print a placeholder for empty lists", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteInstances(&buf, nil, OutputFormatText))
		assert.Contains(t, buf.String(), "no workflows")
	})
}
