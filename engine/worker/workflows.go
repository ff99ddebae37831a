package worker

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const (
	PlanSyncWorkflowName  = "PlanSyncWorkflow"
	RunPlanSyncLabel      = "RunPlanSync"
	defaultActivityWindow = 10 * time.Minute
)

// RunInput identifies the persisted instance a run should drive.
type RunInput struct {
	WorkflowID string        `json:"workflow_id"`
	UserID     string        `json:"user_id"`
	Timeout    time.Duration `json:"timeout,omitempty"`
}

// RunResult is the terminal state of a run as recorded by the repository.
type RunResult struct {
	WorkflowID string `json:"workflow_id"`
	Status     string `json:"status"`
	ErrorCode  string `json:"error_code,omitempty"`
}

// PlanSyncWorkflow drives one instance to a terminal state. The activity is
// attempted once: recovery goes through an explicit retry which creates a
// new attempt record.
func PlanSyncWorkflow(ctx workflow.Context, input RunInput) (*RunResult, error) {
	window := input.Timeout
	if window <= 0 {
		window = defaultActivityWindow
	}
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: window,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	})
	log := workflow.GetLogger(ctx)
	var result RunResult
	if err := workflow.ExecuteActivity(ctx, RunPlanSyncLabel, input).Get(ctx, &result); err != nil {
		log.Error("Plan sync activity failed", "workflow_id", input.WorkflowID, "error", err)
		return nil, err
	}
	log.Info("Plan sync finished", "workflow_id", input.WorkflowID, "status", result.Status)
	return &result, nil
}
