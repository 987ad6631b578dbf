package refactorrun

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/yungbote/categorylink/internal/platform/logger"
	"github.com/yungbote/categorylink/internal/refactor"
)

type Activities struct {
	Log          *logger.Logger
	Counter      refactor.CategoryCounter
	Materializer *refactor.Materializer
	Sink         refactor.Sink
}

func (a *Activities) Census(ctx context.Context) (CensusResult, error) {
	if a == nil || a.Counter == nil || a.Materializer == nil {
		return CensusResult{}, temporal.NewNonRetryableApplicationError("refactorrun: activity not configured", string(refactor.KindQueryExecution), nil)
	}
	opts := a.Materializer.Options()
	counts, err := a.Counter.CountUnlinked(ctx)
	if err != nil {
		return CensusResult{}, applicationError("count_unlinked", err)
	}
	return CensusResult{Counts: refactor.Pending(counts), BatchSize: opts.BatchSize, Termination: opts.Termination}, nil
}

// Materialize runs one category to convergence. Category failures come back as
// a failed outcome rather than an activity error so the workflow sees the kind.
func (a *Activities) Materialize(ctx context.Context, in MaterializeInput) (refactor.CategoryOutcome, error) {
	if a == nil || a.Materializer == nil {
		return refactor.CategoryOutcome{}, temporal.NewNonRetryableApplicationError("refactorrun: activity not configured", string(refactor.KindQueryExecution), nil)
	}
	sink := refactor.Fanout{refactor.WithRunID(a.Sink, in.RunID), heartbeat{}}
	out := a.Materializer.WithSink(sink).Materialize(ctx, in.Category)
	if a.Log != nil && out.Status != refactor.StatusDone {
		a.Log.Warn("category did not converge", "run_id", in.RunID, "category", in.Category.Category, "error_kind", out.ErrorKind, "error", out.Error)
	}
	return out, nil
}

func (a *Activities) Publish(ctx context.Context, ev refactor.Event) error {
	if a == nil || a.Sink == nil {
		return nil
	}
	a.Sink.Publish(ctx, ev)
	return nil
}

// heartbeat reports batch progress to Temporal so a lost worker is detected
// within the heartbeat timeout.
type heartbeat struct{}

func (heartbeat) Publish(ctx context.Context, ev refactor.Event) {
	if ev.Type == refactor.EventBatchCompleted || ev.Type == refactor.EventBatchRetried {
		activity.RecordHeartbeat(ctx, ev.Cumulative)
	}
}

func applicationError(op string, err error) error {
	kind := refactor.KindOf(err)
	msg := fmt.Sprintf("%s: %v", op, err)
	if kind == refactor.KindTransient || kind == refactor.KindConnectivity {
		return temporal.NewApplicationErrorWithCause(msg, string(kind), err)
	}
	return temporal.NewNonRetryableApplicationError(msg, string(kind), err)
}
