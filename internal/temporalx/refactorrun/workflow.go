package refactorrun

import (
	"errors"
	"strings"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/yungbote/categorylink/internal/refactor"
)

// Workflow is the durable rendition of refactor.Job: one census activity, then
// one materialize activity per category, strictly in sequence. Category failures
// are recorded in the report; connectivity loss and cancellation stop the run
// and mark the remaining categories skipped.
func Workflow(ctx workflow.Context, in Input) (refactor.Report, error) {
	runID := strings.TrimSpace(in.RunID)
	if runID == "" {
		runID = workflow.GetInfo(ctx).WorkflowExecution.RunID
	}
	report := refactor.Report{RunID: runID, StartedAt: workflow.Now(ctx)}
	if err := workflow.SetQueryHandler(ctx, QueryProgress, func() (refactor.Report, error) {
		return report, nil
	}); err != nil {
		return report, err
	}
	log := workflow.GetLogger(ctx)

	censusCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    3,
		},
	})
	// Transient batch failures are retried inside the materializer, so the
	// activity itself runs once.
	categoryCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 24 * time.Hour,
		HeartbeatTimeout:    5 * time.Minute,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	})

	var census CensusResult
	censusErr := workflow.ExecuteActivity(censusCtx, ActivityCensus).Get(ctx, &census)
	report.BatchSize = census.BatchSize
	report.Termination = census.Termination
	if censusErr != nil {
		report.ErrorKind = kindOf(censusErr)
		report.Error = censusErr.Error()
		publish(ctx, refactor.Event{Type: refactor.EventJobStarted, RunID: runID, At: report.StartedAt, ErrorKind: report.ErrorKind, Error: report.Error})
		return finish(ctx, report), nil
	}
	publish(ctx, refactor.Event{Type: refactor.EventJobStarted, RunID: runID, At: report.StartedAt, Categories: len(census.Counts)})

	for i, cc := range census.Counts {
		if ctx.Err() != nil {
			report.ErrorKind = refactor.KindCanceled
			report.Error = "refactor run canceled"
			report.Outcomes = append(report.Outcomes, skipped(census.Counts[i:])...)
			break
		}
		var out refactor.CategoryOutcome
		if err := workflow.ExecuteActivity(categoryCtx, ActivityMaterialize, MaterializeInput{RunID: runID, Category: cc}).Get(ctx, &out); err != nil {
			log.Warn("materialize activity failed", "category", cc.Category, "error", err)
			out = refactor.CategoryOutcome{
				Category:  cc.Category,
				Target:    cc.Unlinked,
				Status:    refactor.StatusFailed,
				ErrorKind: kindOf(err),
				Error:     err.Error(),
			}
		}
		report.Outcomes = append(report.Outcomes, out)
		if out.Status == refactor.StatusFailed && refactor.IsFatalForJob(out.ErrorKind) {
			report.ErrorKind = out.ErrorKind
			report.Error = out.Error
			report.Outcomes = append(report.Outcomes, skipped(census.Counts[i+1:])...)
			break
		}
	}
	return finish(ctx, report), nil
}

func finish(ctx workflow.Context, report refactor.Report) refactor.Report {
	// The final event must still go out when the run was canceled.
	dctx, cancel := workflow.NewDisconnectedContext(ctx)
	defer cancel()

	now := workflow.Now(dctx)
	report.Elapsed = now.Sub(report.StartedAt)
	report.TotalMigrated = 0
	for _, o := range report.Outcomes {
		report.TotalMigrated += o.EdgesCreated
	}
	snapshot := report
	publish(dctx, refactor.Event{Type: refactor.EventJobFinished, RunID: report.RunID, At: now, Report: &snapshot, ErrorKind: report.ErrorKind, Error: report.Error})
	return report
}

// publish forwards one job-level event to the worker's sinks. Sink delivery is
// best effort, the same as in-process runs.
func publish(ctx workflow.Context, ev refactor.Event) {
	pctx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 3},
	})
	if err := workflow.ExecuteActivity(pctx, ActivityPublish, ev).Get(pctx, nil); err != nil {
		workflow.GetLogger(ctx).Warn("publish activity failed", "type", ev.Type, "error", err)
	}
}

func skipped(rest []refactor.CategoryCount) []refactor.CategoryOutcome {
	out := make([]refactor.CategoryOutcome, 0, len(rest))
	for _, cc := range rest {
		out = append(out, refactor.CategoryOutcome{Category: cc.Category, Target: cc.Unlinked, Status: refactor.StatusSkipped})
	}
	return out
}

// kindOf recovers the refactor error kind an activity reported through its
// application error type.
func kindOf(err error) refactor.ErrorKind {
	if temporal.IsCanceledError(err) {
		return refactor.KindCanceled
	}
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		switch kind := refactor.ErrorKind(appErr.Type()); kind {
		case refactor.KindConnectivity, refactor.KindConstraintViolation, refactor.KindQueryExecution, refactor.KindTransient, refactor.KindCanceled:
			return kind
		}
	}
	var timeoutErr *temporal.TimeoutError
	if errors.As(err, &timeoutErr) {
		return refactor.KindTransient
	}
	return refactor.KindQueryExecution
}
