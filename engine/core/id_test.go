package core_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/compozy/plansync/engine/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestID_IsZero(t *testing.T) {
	t.Run("Should return true for zero-value ID", func(t *testing.T) {
		var zeroID core.ID
		assert.True(t, zeroID.IsZero())
	})
	t.Run("Should return false for generated ID", func(t *testing.T) {
		assert.False(t, core.MustNewID().IsZero())
	})
}

func TestNewID(t *testing.T) {
	t.Run("Should generate unique parseable IDs", func(t *testing.T) {
		id1, err := core.NewID()
		require.NoError(t, err)
		id2, err := core.NewID()
		require.NoError(t, err)
		assert.NotEqual(t, id1, id2)
		parsed, err := core.ParseID(id1.String())
		require.NoError(t, err)
		assert.Equal(t, id1, parsed)
	})
	t.Run("Should reject malformed IDs", func(t *testing.T) {
		_, err := core.ParseID("not-a-valid-ksuid")
		assert.Error(t, err)
	})
}

func TestErrorCode(t *testing.T) {
	t.Run("Should find the code through wrapped errors", func(t *testing.T) {
		base := core.NewError(errors.New("denied"), "CALENDAR_REAUTH_REQUIRED", nil)
		wrapped := fmt.Errorf("sync: %w", base)
		assert.Equal(t, "CALENDAR_REAUTH_REQUIRED", core.ErrorCode(wrapped))
		assert.Equal(t, "CALENDAR_REAUTH_REQUIRED: denied", base.Error())
	})
	t.Run("Should return empty code for plain errors", func(t *testing.T) {
		assert.Empty(t, core.ErrorCode(errors.New("boom")))
	})
}
