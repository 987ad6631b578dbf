package refactor

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/categorylink/internal/platform/logger"
)

// Job runs the census once and then materializes each category sequentially.
// A failing category is recorded and the job moves on; connectivity loss and
// cancellation stop the job and mark the remaining categories skipped.
type Job struct {
	counter CategoryCounter
	mat     *Materializer
	sink    Sink
	log     *logger.Logger

	now      func() time.Time
	newRunID func() string
}

func NewJob(counter CategoryCounter, mat *Materializer, sink Sink, log *logger.Logger) (*Job, error) {
	if counter == nil {
		return nil, fmt.Errorf("refactor: category counter required")
	}
	if mat == nil {
		return nil, fmt.Errorf("refactor: materializer required")
	}
	if log == nil {
		return nil, fmt.Errorf("refactor: logger required")
	}
	if sink == nil {
		sink = Discard
	}
	return &Job{
		counter:  counter,
		mat:      mat,
		sink:     sink,
		log:      log.With("component", "RefactorJob"),
		now:      time.Now,
		newRunID: uuid.NewString,
	}, nil
}

func (j *Job) Run(ctx context.Context) Report {
	runID := j.newRunID()
	sink := WithRunID(j.sink, runID)
	mat := j.mat.WithSink(sink)
	opts := mat.Options()

	report := Report{
		RunID:       runID,
		StartedAt:   j.now(),
		BatchSize:   opts.BatchSize,
		Termination: opts.Termination,
	}
	finish := func() Report {
		report.Elapsed = j.now().Sub(report.StartedAt)
		for _, o := range report.Outcomes {
			report.TotalMigrated += o.EdgesCreated
		}
		snapshot := report
		sink.Publish(ctx, Event{Type: EventJobFinished, At: j.now(), Report: &snapshot, ErrorKind: report.ErrorKind, Error: report.Error})
		return report
	}

	counts, err := j.counter.CountUnlinked(ctx)
	if err != nil {
		report.setErr(withCategory(err, "count_unlinked", ""))
		sink.Publish(ctx, Event{Type: EventJobStarted, At: report.StartedAt, ErrorKind: report.ErrorKind, Error: report.Error})
		return finish()
	}
	counts = Pending(counts)
	j.log.Debug("census complete", "run_id", runID, "categories", len(counts))
	sink.Publish(ctx, Event{Type: EventJobStarted, At: report.StartedAt, Categories: len(counts)})

	for i, cc := range counts {
		if ctx.Err() != nil {
			report.setErr(NewError(KindCanceled, "run", ctx.Err()))
			report.skip(counts[i:])
			break
		}
		out := mat.Materialize(ctx, cc)
		report.Outcomes = append(report.Outcomes, out)
		if out.Status == StatusFailed && IsFatalForJob(out.ErrorKind) {
			report.setErr(out.Err())
			report.skip(counts[i+1:])
			break
		}
	}
	return finish()
}

func (r *Report) setErr(err error) {
	if err == nil {
		return
	}
	r.err = err
	r.ErrorKind = KindOf(err)
	r.Error = err.Error()
}

func (r *Report) skip(rest []CategoryCount) {
	for _, cc := range rest {
		r.Outcomes = append(r.Outcomes, CategoryOutcome{Category: cc.Category, Target: cc.Unlinked, Status: StatusSkipped})
	}
}

// Pending drops non-positive counts and orders the census by category value so
// runs are reproducible.
func Pending(counts []CategoryCount) []CategoryCount {
	out := make([]CategoryCount, 0, len(counts))
	for _, cc := range counts {
		if cc.Unlinked > 0 {
			out = append(out, cc)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Category < out[k].Category })
	return out
}
