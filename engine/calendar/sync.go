package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/compozy/plansync/engine/plan"
	"github.com/compozy/plansync/pkg/logger"
)

const minEventDuration = 15 * time.Minute

// SyncedEvent is one remote event in subtask order. Replayed is set when the
// event already existed and was fetched instead of created.
type SyncedEvent struct {
	ID                 string    `json:"id"`
	RemoteLink         string    `json:"remote_link,omitempty"`
	RemoteStatus       string    `json:"remote_status,omitempty"`
	Title              string    `json:"title"`
	SourceSubtaskTitle string    `json:"source_subtask_title"`
	StartAt            time.Time `json:"start_at"`
	EndAt              time.Time `json:"end_at"`
	Replayed           bool      `json:"replayed,omitempty"`
}

// SyncResult lists the events of one sync run. Partial marks a run that
// stopped before the last subtask.
type SyncResult struct {
	CalendarID    string        `json:"calendar_id"`
	Timezone      string        `json:"timezone"`
	CreatedEvents []SyncedEvent `json:"created_events"`
	Partial       bool          `json:"partial,omitempty"`
}

// SyncInput identifies the plan to project. SyncKey seeds event ids and
// must stay the same across retries of one logical workflow.
type SyncInput struct {
	SyncKey    string
	UserID     string
	CalendarID string
	Timezone   string
	Task       string
	Plan       *plan.Plan
}

// SyncError aborts a run. Result holds the events synced before Index.
type SyncError struct {
	Index   int
	EventID string
	Result  *SyncResult
	Err     error
}

func (e *SyncError) Error() string {
	if e.EventID == "" {
		return fmt.Sprintf("calendar sync failed: %v", e.Err)
	}
	return fmt.Sprintf("calendar sync failed at subtask %d (event %s): %v", e.Index+1, e.EventID, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// Syncer creates one event per subtask, strictly in order.
type Syncer struct {
	tokens      TokenProvider
	stores      StoreFactory
	providerKey string
}

func NewSyncer(tokens TokenProvider, stores StoreFactory, providerKey string) *Syncer {
	return &Syncer{tokens: tokens, stores: stores, providerKey: providerKey}
}

// Sync runs the plan against the calendar. Events created before a failure
// are left in place; a rerun with the same SyncKey replays them through the
// conflict path. On failure the returned error is a *SyncError.
func (s *Syncer) Sync(ctx context.Context, in *SyncInput) (*SyncResult, error) {
	log := logger.FromContext(ctx).With("sync_key", in.SyncKey, "user_id", in.UserID)
	result := &SyncResult{
		CalendarID:    in.CalendarID,
		Timezone:      in.Timezone,
		CreatedEvents: make([]SyncedEvent, 0, len(in.Plan.Subtasks)),
	}
	fail := func(index int, eventID string, err error) (*SyncResult, error) {
		result.Partial = true
		return result, &SyncError{Index: index, EventID: eventID, Result: result, Err: err}
	}

	token, err := s.tokens.GetAccessToken(ctx, in.UserID, s.providerKey)
	if err != nil {
		if IsPermissionError(err) {
			return fail(0, "", asPermissionError(err))
		}
		return fail(0, "", fmt.Errorf("failed to load calendar credentials: %w", err))
	}
	if token == "" {
		return fail(0, "", &PermissionError{Message: "no calendar access token for user"})
	}
	store := s.stores(token)

	count := len(in.Plan.Subtasks)
	for i := range in.Plan.Subtasks {
		st := &in.Plan.Subtasks[i]
		eventID := EventID(in.SyncKey, i)
		input := buildInput(eventID, i, count, st, in)
		ev, replayed, err := createOrFetch(ctx, store, in.CalendarID, input)
		if err != nil {
			if IsPermissionError(err) {
				err = asPermissionError(err)
			}
			log.Warn("Calendar sync aborted", "event_id", eventID, "index", i, "error", err)
			return fail(i, eventID, err)
		}
		log.Debug("Calendar event synced", "event_id", eventID, "index", i, "replayed", replayed)
		result.CreatedEvents = append(result.CreatedEvents, SyncedEvent{
			ID:                 eventID,
			RemoteLink:         ev.HTMLLink,
			RemoteStatus:       ev.Status,
			Title:              input.Summary,
			SourceSubtaskTitle: st.Title,
			StartAt:            input.Start,
			EndAt:              input.End,
			Replayed:           replayed,
		})
	}
	return result, nil
}

func buildInput(eventID string, index, count int, st *plan.Subtask, in *SyncInput) *EventInput {
	duration := max(st.Duration(), minEventDuration)
	return &EventInput{
		ID:          eventID,
		Summary:     EventTitle(index, count, st, in.Task),
		Description: EventDescription(index, count, st, in.Task),
		Start:       st.DueAt.Add(-duration),
		End:         st.DueAt,
		Timezone:    in.Timezone,
	}
}

func createOrFetch(ctx context.Context, store Store, calendarID string, in *EventInput) (*Event, bool, error) {
	ev, err := store.CreateEvent(ctx, calendarID, in)
	if err == nil {
		return ev, false, nil
	}
	if !errors.Is(err, ErrConflict) {
		return nil, false, err
	}
	existing, err := store.GetEvent(ctx, calendarID, in.ID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to fetch existing event %s: %w", in.ID, err)
	}
	return existing, true, nil
}

func asPermissionError(err error) *PermissionError {
	var permErr *PermissionError
	if errors.As(err, &permErr) {
		return permErr
	}
	return &PermissionError{Message: err.Error(), Err: err}
}
