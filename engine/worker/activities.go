package worker

import (
	"context"
	"errors"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/compozy/plansync/engine/core"
	wf "github.com/compozy/plansync/engine/workflow"
	"github.com/compozy/plansync/pkg/logger"
)

type Activities struct {
	runner wf.Resumer
	log    logger.Logger
}

func NewActivities(runner wf.Resumer, log logger.Logger) *Activities {
	if log == nil {
		log = logger.FromContext(context.Background())
	}
	return &Activities{runner: runner, log: log}
}

// Registry is satisfied by worker.Worker and the temporal test environment.
type Registry interface {
	RegisterWorkflowWithOptions(w any, options workflow.RegisterOptions)
	RegisterActivityWithOptions(a any, options activity.RegisterOptions)
}

// Register binds the workflow and activities to r.
func Register(r Registry, acts *Activities) {
	r.RegisterWorkflowWithOptions(PlanSyncWorkflow, workflow.RegisterOptions{Name: PlanSyncWorkflowName})
	r.RegisterActivityWithOptions(acts.RunPlanSync, activity.RegisterOptions{Name: RunPlanSyncLabel})
}

// RunPlanSync resumes the instance. A run that ends in the failed state is a
// successful activity: the failure is already recorded on the instance.
func (a *Activities) RunPlanSync(ctx context.Context, input RunInput) (*RunResult, error) {
	log := a.log.With("workflow_id", input.WorkflowID, "user_id", input.UserID)
	ctx = logger.ContextWithLogger(ctx, log)
	inst, err := a.runner.Resume(ctx, core.ID(input.WorkflowID), input.UserID)
	if inst == nil {
		if err == nil {
			err = errors.New("resume returned no instance")
		}
		code := core.ErrorCode(err)
		if errors.Is(err, wf.ErrNotFound) {
			code = "WORKFLOW_NOT_FOUND"
		}
		return nil, temporal.NewNonRetryableApplicationError(err.Error(), code, err)
	}
	if err != nil {
		log.Warn("Workflow ended with failure", "error", err)
	}
	result := &RunResult{WorkflowID: inst.WorkflowID.String(), Status: string(inst.Status)}
	if inst.ErrorCode != nil {
		result.ErrorCode = *inst.ErrorCode
	}
	return result, nil
}
