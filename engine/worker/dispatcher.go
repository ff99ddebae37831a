package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"

	wf "github.com/compozy/plansync/engine/workflow"
	"github.com/compozy/plansync/pkg/logger"
)

// starter is the part of client.Client the dispatcher needs.
type starter interface {
	ExecuteWorkflow(
		ctx context.Context,
		options client.StartWorkflowOptions,
		workflow any,
		args ...any,
	) (client.WorkflowRun, error)
}

// TemporalDispatcher hands persisted instances to Temporal. The Temporal
// workflow id is the instance id so a second dispatch of the same instance
// is rejected by the server.
type TemporalDispatcher struct {
	client    starter
	taskQueue string
	timeout   time.Duration
}

func NewTemporalDispatcher(c starter, taskQueue string, timeout time.Duration) *TemporalDispatcher {
	return &TemporalDispatcher{client: c, taskQueue: taskQueue, timeout: timeout}
}

func RunID(inst *wf.Instance) string {
	return inst.WorkflowID.String()
}

func (d *TemporalDispatcher) Dispatch(ctx context.Context, inst *wf.Instance) error {
	log := logger.FromContext(ctx).With("workflow_id", inst.WorkflowID)
	opts := client.StartWorkflowOptions{
		ID:                       RunID(inst),
		TaskQueue:                d.taskQueue,
		WorkflowIDReusePolicy:    enumspb.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE,
		WorkflowIDConflictPolicy: enumspb.WORKFLOW_ID_CONFLICT_POLICY_FAIL,
	}
	if d.timeout > 0 {
		opts.WorkflowExecutionTimeout = d.timeout + time.Minute
	}
	input := RunInput{
		WorkflowID: inst.WorkflowID.String(),
		UserID:     inst.UserID,
		Timeout:    d.timeout,
	}
	run, err := d.client.ExecuteWorkflow(ctx, opts, PlanSyncWorkflowName, input)
	if err != nil {
		var started *serviceerror.WorkflowExecutionAlreadyStarted
		if errors.As(err, &started) {
			log.Debug("Workflow already dispatched")
			return nil
		}
		return fmt.Errorf("failed to dispatch workflow %s: %w", inst.WorkflowID, err)
	}
	log.Info("Workflow dispatched", "run_id", run.GetRunID())
	return nil
}

var _ wf.Dispatcher = (*TemporalDispatcher)(nil)
