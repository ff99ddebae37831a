package calendar

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is an in-process Store with the same uniqueness contract as the
// remote calendar. Failures can be injected per event id.
type MemoryStore struct {
	mu       sync.Mutex
	events   map[string]map[string]Event
	failures map[string]error
	creates  int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events:   make(map[string]map[string]Event),
		failures: make(map[string]error),
	}
}

// Factory returns a StoreFactory that always hands out this store.
func (m *MemoryStore) Factory() StoreFactory {
	return func(string) Store { return m }
}

// FailOn makes the next creates of eventID fail with err until cleared with a
// nil err.
func (m *MemoryStore) FailOn(eventID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, eventID)
		return
	}
	m.failures[eventID] = err
}

func (m *MemoryStore) CreateEvent(_ context.Context, calendarID string, in *EventInput) (*Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.failures[in.ID]; ok {
		return nil, err
	}
	cal, ok := m.events[calendarID]
	if !ok {
		cal = make(map[string]Event)
		m.events[calendarID] = cal
	}
	if _, exists := cal[in.ID]; exists {
		return nil, ErrConflict
	}
	ev := Event{
		ID:       in.ID,
		Summary:  in.Summary,
		HTMLLink: fmt.Sprintf("memory://%s/%s", calendarID, in.ID),
		Status:   "confirmed",
		Start:    in.Start,
		End:      in.End,
	}
	cal[in.ID] = ev
	m.creates++
	return &ev, nil
}

func (m *MemoryStore) GetEvent(_ context.Context, calendarID, eventID string) (*Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.events[calendarID][eventID]
	if !ok {
		return nil, ErrNotFound
	}
	return &ev, nil
}

// Len returns the number of events stored in calendarID.
func (m *MemoryStore) Len(calendarID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events[calendarID])
}

// Creates returns how many events were created successfully.
func (m *MemoryStore) Creates() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.creates
}
