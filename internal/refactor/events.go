package refactor

import (
	"context"
	"time"

	"github.com/yungbote/categorylink/internal/platform/logger"
)

type EventType string

const (
	EventJobStarted       EventType = "job_started"
	EventCategoryStarted  EventType = "category_started"
	EventBatchCompleted   EventType = "batch_completed"
	EventBatchRetried     EventType = "batch_retried"
	EventCategoryFinished EventType = "category_finished"
	EventJobFinished      EventType = "job_finished"
)

type Event struct {
	Type     EventType `json:"type"`
	RunID    string    `json:"run_id,omitempty"`
	At       time.Time `json:"at"`
	Category string    `json:"category,omitempty"`
	Target   int64     `json:"target,omitempty"`

	// Batch is the 1-based invocation number within the category.
	Batch      int             `json:"batch,omitempty"`
	Attempt    int             `json:"attempt,omitempty"`
	Result     *MutationResult `json:"result,omitempty"`
	Cumulative int64           `json:"cumulative,omitempty"`
	RetryIn    time.Duration   `json:"retry_in,omitempty"`

	Categories int              `json:"categories,omitempty"`
	Outcome    *CategoryOutcome `json:"outcome,omitempty"`
	Report     *Report          `json:"report,omitempty"`

	ErrorKind ErrorKind `json:"error_kind,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Sink receives progress events. Publish must not block the batch loop for long
// and has no way to influence it.
type Sink interface {
	Publish(ctx context.Context, ev Event)
}

type SinkFunc func(ctx context.Context, ev Event)

func (f SinkFunc) Publish(ctx context.Context, ev Event) { f(ctx, ev) }

type Fanout []Sink

func (f Fanout) Publish(ctx context.Context, ev Event) {
	for _, s := range f {
		if s != nil {
			s.Publish(ctx, ev)
		}
	}
}

type discard struct{}

func (discard) Publish(context.Context, Event) {}

var Discard Sink = discard{}

type runScoped struct {
	runID string
	next  Sink
}

func (s runScoped) Publish(ctx context.Context, ev Event) {
	if ev.RunID == "" {
		ev.RunID = s.runID
	}
	s.next.Publish(ctx, ev)
}

// WithRunID stamps runID on every event that does not already carry one.
func WithRunID(next Sink, runID string) Sink {
	if next == nil {
		next = Discard
	}
	return runScoped{runID: runID, next: next}
}

type LogSink struct {
	log *logger.Logger
}

func NewLogSink(log *logger.Logger) *LogSink {
	return &LogSink{log: log.With("component", "refactor")}
}

func (s *LogSink) Publish(_ context.Context, ev Event) {
	if s == nil || s.log == nil {
		return
	}
	switch ev.Type {
	case EventJobStarted:
		s.log.Info("refactor job started", "run_id", ev.RunID, "categories", ev.Categories)
	case EventCategoryStarted:
		s.log.Info("category started", "run_id", ev.RunID, "category", ev.Category, "unlinked", ev.Target)
	case EventBatchCompleted:
		kv := []interface{}{"run_id", ev.RunID, "category", ev.Category, "batch", ev.Batch, "attempt", ev.Attempt, "cumulative", ev.Cumulative}
		if ev.Result != nil {
			kv = append(kv, "edges_created", ev.Result.EdgesCreated, "nodes_created", ev.Result.NodesCreated, "properties_set", ev.Result.PropertiesSet)
		}
		s.log.Debug("batch completed", kv...)
	case EventBatchRetried:
		s.log.Warn("batch retrying", "run_id", ev.RunID, "category", ev.Category, "batch", ev.Batch, "attempt", ev.Attempt, "retry_in", ev.RetryIn, "error", ev.Error)
	case EventCategoryFinished:
		if ev.Outcome == nil {
			return
		}
		o := ev.Outcome
		if o.Status == StatusDone {
			s.log.Info("category finished", "run_id", ev.RunID, "category", o.Category, "edges_created", o.EdgesCreated, "batches", o.Batches, "invocations", o.Invocations, "elapsed_ms", o.Elapsed.Milliseconds())
			if short := o.Shortfall(); short > 0 {
				s.log.Warn("category converged with unlinked children remaining; is its category node missing?", "run_id", ev.RunID, "category", o.Category, "shortfall", short)
			}
			return
		}
		s.log.Error("category aborted", "run_id", ev.RunID, "category", o.Category, "status", o.Status, "error_kind", o.ErrorKind, "error", o.Error, "edges_created", o.EdgesCreated)
	case EventJobFinished:
		if ev.Report == nil {
			return
		}
		r := ev.Report
		s.log.Info("refactor job finished", "run_id", r.RunID, "succeeded", r.Succeeded(), "total_migrated", r.TotalMigrated, "categories", len(r.Outcomes), "failed", len(r.Failed()), "elapsed_min", r.Elapsed.Minutes(), "error_kind", r.ErrorKind)
	}
}
