package workflow

import (
	"context"
	"sync"
	"time"

	"github.com/compozy/plansync/engine/core"
	"github.com/compozy/plansync/pkg/logger"
)

// Dispatcher runs a persisted instance in the background.
type Dispatcher interface {
	Dispatch(ctx context.Context, inst *Instance) error
}

// Resumer executes a persisted workflow from its recorded status.
type Resumer interface {
	Resume(ctx context.Context, workflowID core.ID, userID string) (*Instance, error)
}

// InlineDispatcher runs workflows on goroutines of the current process. The
// run is detached from the caller's cancellation and bounded by timeout.
type InlineDispatcher struct {
	runner  Resumer
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewInlineDispatcher(runner Resumer, timeout time.Duration) *InlineDispatcher {
	return &InlineDispatcher{runner: runner, timeout: timeout}
}

func (d *InlineDispatcher) Dispatch(ctx context.Context, inst *Instance) error {
	runCtx := context.WithoutCancel(ctx)
	workflowID, userID := inst.WorkflowID, inst.UserID
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx := runCtx
		if d.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d.timeout)
			defer cancel()
		}
		if _, err := d.runner.Resume(ctx, workflowID, userID); err != nil {
			logger.FromContext(ctx).Error("Workflow run failed", "workflow_id", workflowID, "error", err)
		}
	}()
	return nil
}

// Wait blocks until every dispatched run has returned.
func (d *InlineDispatcher) Wait() {
	d.wg.Wait()
}
