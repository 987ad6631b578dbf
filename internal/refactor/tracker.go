package refactor

import (
	"context"
	"sync"
	"time"
)

type CategoryProgress struct {
	Category     string         `json:"category"`
	Target       int64          `json:"target"`
	EdgesCreated int64          `json:"edges_created"`
	Batches      int            `json:"batches"`
	Invocations  int            `json:"invocations"`
	Retries      int            `json:"retries"`
	StartedAt    time.Time      `json:"started_at"`
	Elapsed      time.Duration  `json:"elapsed"`
	Status       CategoryStatus `json:"status,omitempty"`
	ErrorKind    ErrorKind      `json:"error_kind,omitempty"`
}

type Snapshot struct {
	RunID       string             `json:"run_id"`
	StartedAt   time.Time          `json:"started_at"`
	Elapsed     time.Duration      `json:"elapsed"`
	Finished    bool               `json:"finished"`
	Total       int                `json:"total_categories"`
	Migrated    int64              `json:"migrated"`
	Batches     int                `json:"batches"`
	Invocations int                `json:"invocations"`
	Current     string             `json:"current,omitempty"`
	Categories  []CategoryProgress `json:"categories"`
}

// Tracker accumulates progress from the event stream. It is a Sink and never
// feeds back into the batch loop.
type Tracker struct {
	mu          sync.RWMutex
	runID       string
	startedAt   time.Time
	finishedAt  time.Time
	finished    bool
	total       int
	migrated    int64
	batches     int
	invocations int
	current     string
	byName      map[string]*CategoryProgress
	order       []string

	now func() time.Time
}

func NewTracker() *Tracker {
	return &Tracker{byName: map[string]*CategoryProgress{}, now: time.Now}
}

func (t *Tracker) Publish(_ context.Context, ev Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch ev.Type {
	case EventJobStarted:
		t.runID = ev.RunID
		t.startedAt = ev.At
		t.total = ev.Categories
		t.finished = false
		t.finishedAt = time.Time{}
		t.migrated = 0
		t.batches = 0
		t.invocations = 0
		t.current = ""
		t.byName = map[string]*CategoryProgress{}
		t.order = nil
	case EventCategoryStarted:
		t.current = ev.Category
		t.category(ev.Category, ev.Target).StartedAt = ev.At
	case EventBatchCompleted:
		p := t.category(ev.Category, ev.Target)
		p.Invocations++
		t.invocations++
		// Batches counts productive batches only, matching CategoryOutcome.
		if ev.Result != nil && ev.Result.EdgesCreated > 0 {
			p.Batches++
			t.batches++
			p.EdgesCreated += ev.Result.EdgesCreated
			t.migrated += ev.Result.EdgesCreated
		}
		p.Elapsed = ev.At.Sub(p.StartedAt)
	case EventBatchRetried:
		t.category(ev.Category, ev.Target).Retries++
	case EventCategoryFinished:
		p := t.category(ev.Category, ev.Target)
		p.Elapsed = ev.At.Sub(p.StartedAt)
		if ev.Outcome != nil {
			p.Status = ev.Outcome.Status
			p.ErrorKind = ev.Outcome.ErrorKind
			p.Elapsed = ev.Outcome.Elapsed
			// A failed invocation emits no batch event but still counts.
			t.invocations += ev.Outcome.Invocations - p.Invocations
			p.Invocations = ev.Outcome.Invocations
		}
		if t.current == ev.Category {
			t.current = ""
		}
	case EventJobFinished:
		t.finished = true
		t.finishedAt = ev.At
		t.current = ""
		if ev.Report != nil {
			for _, o := range ev.Report.Outcomes {
				if o.Status == StatusSkipped {
					p := t.category(o.Category, o.Target)
					p.Status = StatusSkipped
				}
			}
		}
	}
}

func (t *Tracker) category(name string, target int64) *CategoryProgress {
	p, ok := t.byName[name]
	if !ok {
		p = &CategoryProgress{Category: name, Target: target}
		t.byName[name] = p
		t.order = append(t.order, name)
	}
	return p
}

func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s := Snapshot{
		RunID:       t.runID,
		StartedAt:   t.startedAt,
		Finished:    t.finished,
		Total:       t.total,
		Migrated:    t.migrated,
		Batches:     t.batches,
		Invocations: t.invocations,
		Current:     t.current,
		Categories:  make([]CategoryProgress, 0, len(t.order)),
	}
	switch {
	case t.startedAt.IsZero():
	case t.finished:
		s.Elapsed = t.finishedAt.Sub(t.startedAt)
	default:
		s.Elapsed = t.now().Sub(t.startedAt)
	}
	for _, name := range t.order {
		p := *t.byName[name]
		if name == t.current && !p.StartedAt.IsZero() {
			p.Elapsed = t.now().Sub(p.StartedAt)
		}
		s.Categories = append(s.Categories, p)
	}
	return s
}
