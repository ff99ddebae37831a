package calendar

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/compozy/plansync/engine/plan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tokenFunc func(ctx context.Context, userID, providerKey string) (string, error)

func (f tokenFunc) GetAccessToken(ctx context.Context, userID, providerKey string) (string, error) {
	return f(ctx, userID, providerKey)
}

func staticToken(token string) TokenProvider {
	return tokenFunc(func(context.Context, string, string) (string, error) { return token, nil })
}

func testPlan(n int) *plan.Plan {
	base := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	p := &plan.Plan{Goal: "g", Summary: "s"}
	for i := range n {
		p.Subtasks = append(p.Subtasks, plan.Subtask{
			Title:           fmt.Sprintf("Step %d", i+1),
			Description:     "do it",
			DueAt:           base.Add(time.Duration(i) * 24 * time.Hour),
			DurationMinutes: 30,
		})
	}
	return p
}

func syncInput(key string, p *plan.Plan) *SyncInput {
	return &SyncInput{SyncKey: key, UserID: "user-1", CalendarID: "primary", Timezone: "UTC", Task: "Launch", Plan: p}
}

func eventIDs(r *SyncResult) []string {
	ids := make([]string, 0, len(r.CreatedEvents))
	for _, ev := range r.CreatedEvents {
		ids = append(ids, ev.ID)
	}
	return ids
}

func TestSyncer_Sync(t *testing.T) {
	t.Run("Should create one event per subtask in order", func(t *testing.T) {
		store := NewMemoryStore()
		syncer := NewSyncer(staticToken("tok"), store.Factory(), "google")
		res, err := syncer.Sync(t.Context(), syncInput("wf-1", testPlan(3)))
		require.NoError(t, err)
		require.Len(t, res.CreatedEvents, 3)
		assert.False(t, res.Partial)
		assert.Equal(t, 3, store.Len("primary"))
		first := res.CreatedEvents[0]
		assert.Equal(t, EventID("wf-1", 0), first.ID)
		assert.Equal(t, "Launch: Step 1 (1/3)", first.Title)
		assert.Equal(t, "Step 1", first.SourceSubtaskTitle)
		assert.Equal(t, 30*time.Minute, first.EndAt.Sub(first.StartAt))
		assert.False(t, first.Replayed)
	})

	t.Run("Should be idempotent when run twice", func(t *testing.T) {
		store := NewMemoryStore()
		syncer := NewSyncer(staticToken("tok"), store.Factory(), "google")
		first, err := syncer.Sync(t.Context(), syncInput("wf-2", testPlan(4)))
		require.NoError(t, err)
		second, err := syncer.Sync(t.Context(), syncInput("wf-2", testPlan(4)))
		require.NoError(t, err)
		assert.Equal(t, eventIDs(first), eventIDs(second))
		assert.Equal(t, 4, store.Creates())
		for _, ev := range second.CreatedEvents {
			assert.True(t, ev.Replayed)
		}
		assert.Equal(t, first.CreatedEvents[2].Title, second.CreatedEvents[2].Title)
	})

	t.Run("Should stop at a permission failure and resume on rerun", func(t *testing.T) {
		store := NewMemoryStore()
		syncer := NewSyncer(staticToken("tok"), store.Factory(), "google")
		p := testPlan(6)
		blocked := EventID("wf-3", 2)
		store.FailOn(blocked, &PermissionError{StatusCode: 403, Message: "forbidden"})

		res, err := syncer.Sync(t.Context(), syncInput("wf-3", p))
		require.Error(t, err)
		var syncErr *SyncError
		require.ErrorAs(t, err, &syncErr)
		assert.Equal(t, 2, syncErr.Index)
		assert.True(t, IsPermissionError(err))
		assert.Contains(t, err.Error(), ReauthMarker)
		assert.True(t, res.Partial)
		assert.Len(t, res.CreatedEvents, 2)
		assert.Same(t, res, syncErr.Result)

		store.FailOn(blocked, nil)
		res, err = syncer.Sync(t.Context(), syncInput("wf-3", p))
		require.NoError(t, err)
		require.Len(t, res.CreatedEvents, 6)
		assert.True(t, res.CreatedEvents[0].Replayed)
		assert.True(t, res.CreatedEvents[1].Replayed)
		assert.False(t, res.CreatedEvents[2].Replayed)
		assert.Equal(t, 6, store.Creates())
	})

	t.Run("Should classify insufficient scope wording as a permission error", func(t *testing.T) {
		store := NewMemoryStore()
		store.FailOn(EventID("wf-4", 0), errors.New("Request had insufficient authentication scopes."))
		syncer := NewSyncer(staticToken("tok"), store.Factory(), "google")
		_, err := syncer.Sync(t.Context(), syncInput("wf-4", testPlan(2)))
		var permErr *PermissionError
		require.ErrorAs(t, err, &permErr)
	})

	t.Run("Should report other failures as generic sync errors", func(t *testing.T) {
		store := NewMemoryStore()
		store.FailOn(EventID("wf-5", 1), &RemoteError{StatusCode: 500, Message: "backend error"})
		syncer := NewSyncer(staticToken("tok"), store.Factory(), "google")
		res, err := syncer.Sync(t.Context(), syncInput("wf-5", testPlan(3)))
		require.Error(t, err)
		assert.False(t, IsPermissionError(err))
		assert.Len(t, res.CreatedEvents, 1)
	})

	t.Run("Should require an access token", func(t *testing.T) {
		store := NewMemoryStore()
		syncer := NewSyncer(staticToken(""), store.Factory(), "google")
		res, err := syncer.Sync(t.Context(), syncInput("wf-6", testPlan(2)))
		assert.True(t, IsPermissionError(err))
		assert.Empty(t, res.CreatedEvents)
		assert.Zero(t, store.Len("primary"))
	})

	t.Run("Should use the minimum duration for short subtasks", func(t *testing.T) {
		p := testPlan(1)
		p.Subtasks[0].DurationMinutes = 5
		store := NewMemoryStore()
		res, err := NewSyncer(staticToken("tok"), store.Factory(), "google").Sync(t.Context(), syncInput("wf-7", p))
		require.NoError(t, err)
		assert.Equal(t, 15*time.Minute, res.CreatedEvents[0].EndAt.Sub(res.CreatedEvents[0].StartAt))
	})
}

func TestEventText(t *testing.T) {
	t.Run("Should build deterministic titles and descriptions", func(t *testing.T) {
		st := &plan.Subtask{Title: " Draft ", Description: "Write it"}
		assert.Equal(t, "Thesis: Draft (2/5)", EventTitle(1, 5, st, "Thesis"))
		assert.Equal(t, "Draft (2/5)", EventTitle(1, 5, st, "  "))
		desc := EventDescription(1, 5, st, "Thesis")
		assert.Equal(t, "Write it\n\nStep 2 of 5\nPart of: Thesis", desc)
	})

	t.Run("Should shorten long tasks in titles to their first line", func(t *testing.T) {
		st := &plan.Subtask{Title: "Outline"}
		task := "Prepare the annual infrastructure budget review for finance\nwith appendix"
		assert.Equal(t, "Prepare the annual infrastructure budget...: Outline (1/3)", EventTitle(0, 3, st, task))
		assert.Equal(t, EventTitle(0, 3, st, task), EventTitle(0, 3, st, task))
	})
}
