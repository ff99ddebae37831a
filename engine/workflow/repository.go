package workflow

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/compozy/plansync/engine/core"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Repository persists one record per workflow id. Upsert merges with the
// stored record (see Merge) so repeating it is safe. Reads are scoped to the
// owning user and return ErrNotFound for foreign or missing ids.
type Repository interface {
	Upsert(ctx context.Context, inst *Instance) error
	GetByID(ctx context.Context, workflowID core.ID, userID string) (*Instance, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*Instance, error)
}

// NormalizeLimit bounds a list limit.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return min(limit, MaxListLimit)
}

// MemoryRepository keeps records in process. Used by tests and the
// single-shot CLI.
type MemoryRepository struct {
	mu      sync.RWMutex
	records map[core.ID]*Instance
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{records: make(map[core.ID]*Instance)}
}

func (r *MemoryRepository) Upsert(_ context.Context, inst *Instance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	merged, err := Merge(r.records[inst.WorkflowID], inst)
	if err != nil {
		return err
	}
	r.records[inst.WorkflowID] = merged
	return nil
}

func (r *MemoryRepository) GetByID(_ context.Context, workflowID core.ID, userID string) (*Instance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.records[workflowID]
	if !ok || inst.UserID != userID {
		return nil, ErrNotFound
	}
	return inst.Clone(), nil
}

func (r *MemoryRepository) ListByUser(_ context.Context, userID string, limit int) ([]*Instance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Instance, 0)
	for _, inst := range r.records {
		if inst.UserID == userID {
			out = append(out, inst.Clone())
		}
	}
	slices.SortFunc(out, func(a, b *Instance) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.WorkflowID.String(), a.WorkflowID.String())
	})
	return out[:min(len(out), NormalizeLimit(limit))], nil
}
