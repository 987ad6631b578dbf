package refactorrun

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/yungbote/categorylink/internal/refactor"
)

// Register binds the workflow and its activities to w under their stable names.
func Register(w worker.Registry, acts *Activities) {
	w.RegisterWorkflowWithOptions(Workflow, workflow.RegisterOptions{Name: WorkflowName})
	w.RegisterActivityWithOptions(acts.Census, activity.RegisterOptions{Name: ActivityCensus})
	w.RegisterActivityWithOptions(acts.Materialize, activity.RegisterOptions{Name: ActivityMaterialize})
	w.RegisterActivityWithOptions(acts.Publish, activity.RegisterOptions{Name: ActivityPublish})
}

// Execute starts a refactor run on taskQueue and waits for its report. Only one
// run per workflow ID is allowed at a time, which keeps categories sequential
// across workers.
func Execute(ctx context.Context, c client.Client, taskQueue string) (refactor.Report, error) {
	if c == nil {
		return refactor.Report{}, fmt.Errorf("refactorrun: temporal client is not configured")
	}
	runID := uuid.NewString()
	run, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:                       "categorylink-refactor",
		TaskQueue:                taskQueue,
		WorkflowIDReusePolicy:    enums.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
		WorkflowIDConflictPolicy: enums.WORKFLOW_ID_CONFLICT_POLICY_FAIL,
	}, WorkflowName, Input{RunID: runID})
	if err != nil {
		return refactor.Report{}, fmt.Errorf("refactorrun: start workflow: %w", err)
	}
	var report refactor.Report
	if err := run.Get(ctx, &report); err != nil {
		return report, fmt.Errorf("refactorrun: workflow %s/%s: %w", run.GetID(), run.GetRunID(), err)
	}
	return report, nil
}
