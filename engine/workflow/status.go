package workflow

import (
	"errors"
	"fmt"
)

type Status string

const (
	StatusQueued          Status = "queued"
	StatusRunning         Status = "running"
	StatusCalendarSyncing Status = "calendar_syncing"
	StatusCompleted       Status = "completed"
	StatusFailed          Status = "failed"
)

var ErrInvalidTransition = errors.New("invalid status transition")

// Rank orders statuses along the workflow. Both terminal statuses share the
// highest rank.
func (s Status) Rank() int {
	switch s {
	case StatusQueued:
		return 0
	case StatusRunning:
		return 1
	case StatusCalendarSyncing:
		return 2
	case StatusCompleted, StatusFailed:
		return 3
	default:
		return -1
	}
}

func (s Status) IsValid() bool {
	return s.Rank() >= 0
}

func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

func (s Status) String() string {
	return string(s)
}

// Transition checks that from may move to to. Statuses only advance one step
// at a time, failed is reachable from any non-terminal status and terminal
// statuses never change.
func Transition(from, to Status) error {
	if !from.IsValid() || !to.IsValid() {
		return fmt.Errorf("%w: unknown status %q -> %q", ErrInvalidTransition, from, to)
	}
	if from.IsTerminal() {
		return fmt.Errorf("%w: %s is terminal", ErrInvalidTransition, from)
	}
	if to == StatusFailed {
		return nil
	}
	if to.Rank() != from.Rank()+1 {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// laterStatus returns whichever status is further along. A terminal status
// already recorded is never replaced.
func laterStatus(current, incoming Status) Status {
	if current.IsTerminal() || !incoming.IsValid() {
		return current
	}
	if incoming.Rank() > current.Rank() {
		return incoming
	}
	return current
}
