package services

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/categorylink/internal/data/repos"
	types "github.com/yungbote/categorylink/internal/domain"
	"github.com/yungbote/categorylink/internal/pkg/dbctx"
	"github.com/yungbote/categorylink/internal/platform/logger"
	"github.com/yungbote/categorylink/internal/refactor"
)

// RunLedger persists runs and category outcomes from the event stream. Write
// failures are logged; the ledger never fails a refactor run.
type RunLedger struct {
	runs repos.RunRepo
	opts refactor.Options
	log  *logger.Logger
}

var _ refactor.Sink = (*RunLedger)(nil)

func NewRunLedger(runs repos.RunRepo, opts refactor.Options, log *logger.Logger) *RunLedger {
	return &RunLedger{runs: runs, opts: opts, log: log.With("service", "RunLedger")}
}

type runSummary struct {
	ElapsedMS int64             `json:"elapsed_ms"`
	Failed    []string          `json:"failed,omitempty"`
	Skipped   []string          `json:"skipped,omitempty"`
	Shortfall map[string]int64  `json:"shortfall,omitempty"`
	Settings  map[string]string `json:"settings"`
}

func (l *RunLedger) Publish(ctx context.Context, ev refactor.Event) {
	runID, err := uuid.Parse(ev.RunID)
	if err != nil {
		l.log.Warn("ledger skipping event without run id", "type", ev.Type, "run_id", ev.RunID)
		return
	}
	dbc := dbctx.Context{Ctx: context.WithoutCancel(ctx)}

	switch ev.Type {
	case refactor.EventJobStarted:
		run := &types.RefactorRun{
			ID:          runID,
			Status:      types.RunStatusRunning,
			BatchSize:   l.opts.BatchSize,
			Termination: string(l.opts.Termination),
			Categories:  ev.Categories,
			ErrorKind:   string(ev.ErrorKind),
			Error:       ev.Error,
			StartedAt:   ev.At.UTC(),
		}
		if err := l.runs.CreateRun(dbc, run); err != nil {
			l.log.Warn("ledger create run failed", "run_id", ev.RunID, "error", err)
		}
	case refactor.EventCategoryFinished:
		if ev.Outcome != nil {
			l.upsert(dbc, runID, *ev.Outcome)
		}
	case refactor.EventJobFinished:
		if ev.Report == nil {
			return
		}
		l.finish(dbc, runID, ev)
	}
}

func (l *RunLedger) upsert(dbc dbctx.Context, runID uuid.UUID, o refactor.CategoryOutcome) {
	row := &types.RefactorCategoryOutcome{
		RunID:        runID,
		Category:     o.Category,
		Target:       o.Target,
		EdgesCreated: o.EdgesCreated,
		Batches:      o.Batches,
		Invocations:  o.Invocations,
		ElapsedMS:    o.Elapsed.Milliseconds(),
		Status:       string(o.Status),
		ErrorKind:    string(o.ErrorKind),
		Error:        o.Error,
	}
	if err := l.runs.UpsertOutcome(dbc, row); err != nil {
		l.log.Warn("ledger upsert outcome failed", "run_id", runID, "category", o.Category, "error", err)
	}
}

func (l *RunLedger) finish(dbc dbctx.Context, runID uuid.UUID, ev refactor.Event) {
	r := ev.Report
	summary := runSummary{
		ElapsedMS: r.Elapsed.Milliseconds(),
		Shortfall: map[string]int64{},
		Settings: map[string]string{
			"batch_timeout":      l.opts.BatchTimeout.String(),
			"max_retries":        strconv.Itoa(l.opts.MaxRetries),
			"batches_per_second": strconv.FormatFloat(l.opts.BatchesPerSecond, 'f', -1, 64),
		},
	}
	for _, o := range r.Outcomes {
		switch o.Status {
		case refactor.StatusSkipped:
			summary.Skipped = append(summary.Skipped, o.Category)
			l.upsert(dbc, runID, o)
		case refactor.StatusFailed:
			summary.Failed = append(summary.Failed, o.Category)
		}
		if s := o.Shortfall(); s > 0 {
			summary.Shortfall[o.Category] = s
		}
	}
	raw, err := json.Marshal(summary)
	if err != nil {
		raw = []byte("{}")
	}

	status := types.RunStatusSucceeded
	if !r.Succeeded() {
		status = types.RunStatusFailed
	}
	finished := ev.At.UTC()
	if finished.IsZero() {
		finished = time.Now().UTC()
	}
	if err := l.runs.UpdateRunFields(dbc, runID, map[string]interface{}{
		"status":         status,
		"total_migrated": r.TotalMigrated,
		"error_kind":     string(r.ErrorKind),
		"error":          r.Error,
		"summary":        datatypes.JSON(raw),
		"finished_at":    finished,
	}); err != nil {
		l.log.Warn("ledger finish run failed", "run_id", runID, "error", err)
	}
}

type RunHistoryEntry struct {
	Run      *types.RefactorRun                `json:"run"`
	Outcomes []*types.RefactorCategoryOutcome `json:"outcomes"`
}

// History returns the most recent runs with their category outcomes, newest first.
func (l *RunLedger) History(ctx context.Context, limit int) ([]RunHistoryEntry, error) {
	dbc := dbctx.Of(ctx)
	rows, err := l.runs.ListRecent(dbc, limit)
	if err != nil {
		return nil, err
	}
	out := make([]RunHistoryEntry, 0, len(rows))
	for _, run := range rows {
		outcomes, err := l.runs.ListOutcomes(dbc, run.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, RunHistoryEntry{Run: run, Outcomes: outcomes})
	}
	return out, nil
}
