package workflow

import (
	"fmt"

	"dario.cat/mergo"
)

// Merge folds incoming into existing the way every repository upsert does:
// fields already set on existing win, nil outputs never erase recorded ones,
// status only advances and UpdatedAt keeps the latest value. A terminal
// record is returned unchanged.
func Merge(existing, incoming *Instance) (*Instance, error) {
	if existing == nil {
		return incoming.Clone(), nil
	}
	if existing.Status.IsTerminal() {
		return existing.Clone(), nil
	}
	merged := existing.Clone()
	if err := mergo.Merge(merged, incoming, mergo.WithoutDereference); err != nil {
		return nil, fmt.Errorf("failed to merge workflow %s: %w", existing.WorkflowID, err)
	}
	merged.Status = laterStatus(existing.Status, incoming.Status)
	if incoming.UpdatedAt.After(merged.UpdatedAt) {
		merged.UpdatedAt = incoming.UpdatedAt
	}
	if merged.CreatedAt.IsZero() {
		merged.CreatedAt = incoming.CreatedAt
	}
	if !merged.Status.IsTerminal() {
		merged.CompletedAt = nil
	}
	return merged, nil
}
