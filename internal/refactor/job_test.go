package refactor_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/yungbote/categorylink/internal/platform/logger"
	"github.com/yungbote/categorylink/internal/refactor"
	"github.com/yungbote/categorylink/internal/refactor/refactortest"
)

func newJob(t *testing.T, store *refactortest.MemStore, sink refactor.Sink, batch int) *refactor.Job {
	t.Helper()
	m := newMaterializer(t, store, nil, testOptions(batch))
	job, err := refactor.NewJob(store, m, sink, logger.NewNop())
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	return job
}

func statuses(r refactor.Report) map[string]refactor.CategoryStatus {
	out := map[string]refactor.CategoryStatus{}
	for _, o := range r.Outcomes {
		out[o.Category] = o.Status
	}
	return out
}

func TestJobRunMaterializesEveryCategory(t *testing.T) {
	store := refactortest.NewMemStore()
	store.Seed(map[string]int{"France": 4500, "Chile": 30, "Peru": 1})
	job := newJob(t, store, nil, 2000)

	report := job.Run(context.Background())

	if !report.Succeeded() {
		t.Fatalf("expected success, got err=%v failed=%+v", report.Err(), report.Failed())
	}
	if report.RunID == "" {
		t.Fatalf("expected run id")
	}
	if report.TotalMigrated != 4531 {
		t.Fatalf("total migrated: want=%d got=%d", 4531, report.TotalMigrated)
	}
	var order []string
	for _, o := range report.Outcomes {
		order = append(order, o.Category)
	}
	if want := []string{"Chile", "France", "Peru"}; !reflect.DeepEqual(order, want) {
		t.Fatalf("category order: want=%v got=%v", want, order)
	}
	if store.MaxEdgesPerChild() != 1 || store.Mislinked() != 0 {
		t.Fatalf("graph invariants broken: max=%d mislinked=%d", store.MaxEdgesPerChild(), store.Mislinked())
	}
}

func TestJobRunIsIdempotent(t *testing.T) {
	store := refactortest.NewMemStore()
	store.Seed(map[string]int{"France": 4500, "Chile": 30})
	job := newJob(t, store, nil, 2000)

	if r := job.Run(context.Background()); !r.Succeeded() {
		t.Fatalf("first run failed: %v", r.Err())
	}
	before := store.EdgeSet()
	store.ResetCalls()

	second := job.Run(context.Background())

	if !second.Succeeded() {
		t.Fatalf("second run failed: %v", second.Err())
	}
	if len(second.Outcomes) != 0 {
		t.Fatalf("second run outcomes: want=0 got=%d", len(second.Outcomes))
	}
	if n := len(store.Calls()); n != 0 {
		t.Fatalf("second run mutations: want=0 got=%d", n)
	}
	if !reflect.DeepEqual(before, store.EdgeSet()) {
		t.Fatalf("edge set changed on second run")
	}
}

func TestJobRunSkipsCompletedCategories(t *testing.T) {
	store := refactortest.NewMemStore()
	store.Seed(map[string]int{"Argentina": 5, "Brazil": 5})
	m := newMaterializer(t, store, nil, testOptions(2))
	m.Materialize(context.Background(), refactor.CategoryCount{Category: "Argentina", Unlinked: 5})
	if store.Linked("Brazil") != 0 {
		t.Fatalf("materializing Argentina touched Brazil")
	}
	store.ResetCalls()

	report := newJob(t, store, nil, 2).Run(context.Background())

	if len(report.Outcomes) != 1 || report.Outcomes[0].Category != "Brazil" {
		t.Fatalf("outcomes: want only Brazil, got=%+v", report.Outcomes)
	}
	for _, req := range store.Calls() {
		if req.Category != "Brazil" {
			t.Fatalf("unexpected batch for %q", req.Category)
		}
	}
}

func TestJobRunResumesAfterInterruption(t *testing.T) {
	store := refactortest.NewMemStore()
	store.Seed(map[string]int{"France": 4500, "Spain": 10})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store.AfterCall(func(call int) {
		if call == 1 {
			cancel()
		}
	})
	job := newJob(t, store, nil, 2000)

	first := job.Run(ctx)

	if first.ErrorKind != refactor.KindCanceled {
		t.Fatalf("error kind: want=%q got=%q", refactor.KindCanceled, first.ErrorKind)
	}
	if got := statuses(first); got["France"] != refactor.StatusFailed || got["Spain"] != refactor.StatusSkipped {
		t.Fatalf("statuses: got=%v", got)
	}
	if store.Linked("France") != 2000 {
		t.Fatalf("linked before restart: want=%d got=%d", 2000, store.Linked("France"))
	}

	store.AfterCall(nil)
	store.ResetCalls()
	second := job.Run(context.Background())

	if !second.Succeeded() {
		t.Fatalf("restart failed: %v", second.Err())
	}
	var france refactor.CategoryOutcome
	for _, o := range second.Outcomes {
		if o.Category == "France" {
			france = o
		}
	}
	if france.Target != 2500 {
		t.Fatalf("restart target: want=%d got=%d", 2500, france.Target)
	}
	if france.Invocations != 3 {
		t.Fatalf("restart invocations: want=%d got=%d", 3, france.Invocations)
	}
	if store.Linked("France") != 4500 || store.MaxEdgesPerChild() != 1 {
		t.Fatalf("after restart: linked=%d max=%d", store.Linked("France"), store.MaxEdgesPerChild())
	}
}

func TestJobRunStopsOnConnectivityLoss(t *testing.T) {
	store := refactortest.NewMemStore()
	store.Seed(map[string]int{"A": 5, "B": 5, "C": 5})
	store.FailCall(1, refactor.NewError(refactor.KindConnectivity, "link_batch", errors.New("connection refused")))

	report := newJob(t, store, nil, 5).Run(context.Background())

	if report.ErrorKind != refactor.KindConnectivity {
		t.Fatalf("error kind: want=%q got=%q", refactor.KindConnectivity, report.ErrorKind)
	}
	want := map[string]refactor.CategoryStatus{"A": refactor.StatusFailed, "B": refactor.StatusSkipped, "C": refactor.StatusSkipped}
	if got := statuses(report); !reflect.DeepEqual(got, want) {
		t.Fatalf("statuses: want=%v got=%v", want, got)
	}
	if n := len(store.Calls()); n != 1 {
		t.Fatalf("store calls: want=1 got=%d", n)
	}
	if report.Succeeded() {
		t.Fatalf("expected failure")
	}
}

func TestJobRunIsolatesCategoryFailures(t *testing.T) {
	kinds := []refactor.ErrorKind{refactor.KindQueryExecution, refactor.KindConstraintViolation}
	for _, kind := range kinds {
		store := refactortest.NewMemStore()
		store.Seed(map[string]int{"A": 5, "B": 5, "C": 5})
		store.FailCall(1, refactor.NewError(kind, "link_batch", errors.New("rejected")))

		report := newJob(t, store, nil, 5).Run(context.Background())

		if report.ErrorKind != "" {
			t.Fatalf("%s: job error kind should be empty, got=%q", kind, report.ErrorKind)
		}
		want := map[string]refactor.CategoryStatus{"A": refactor.StatusFailed, "B": refactor.StatusDone, "C": refactor.StatusDone}
		if got := statuses(report); !reflect.DeepEqual(got, want) {
			t.Fatalf("%s: statuses: want=%v got=%v", kind, want, got)
		}
		failed := report.Failed()
		if len(failed) != 1 || failed[0].ErrorKind != kind {
			t.Fatalf("%s: failed outcomes: %+v", kind, failed)
		}
		if report.TotalMigrated != 10 {
			t.Fatalf("%s: total migrated: want=10 got=%d", kind, report.TotalMigrated)
		}
		if store.Linked("A") != 0 {
			t.Fatalf("%s: failed category should have no edges, got=%d", kind, store.Linked("A"))
		}
	}
}

func TestJobRunCensusFailure(t *testing.T) {
	store := refactortest.NewMemStore()
	store.Seed(map[string]int{"A": 5})
	store.FailCount(refactor.NewError(refactor.KindConnectivity, "count_unlinked", errors.New("connection refused")))
	sink := &recordingSink{}

	report := newJob(t, store, sink, 5).Run(context.Background())

	if report.ErrorKind != refactor.KindConnectivity {
		t.Fatalf("error kind: want=%q got=%q", refactor.KindConnectivity, report.ErrorKind)
	}
	if len(report.Outcomes) != 0 {
		t.Fatalf("outcomes: want=0 got=%d", len(report.Outcomes))
	}
	if len(sink.ofType(refactor.EventJobStarted)) != 1 || len(sink.ofType(refactor.EventJobFinished)) != 1 {
		t.Fatalf("expected job started/finished events")
	}
	if len(store.Calls()) != 0 {
		t.Fatalf("no batches expected after census failure")
	}
}

func TestJobRunEventStream(t *testing.T) {
	store := refactortest.NewMemStore()
	store.Seed(map[string]int{"A": 3})
	sink := &recordingSink{}

	report := newJob(t, store, sink, 5).Run(context.Background())

	want := []refactor.EventType{
		refactor.EventJobStarted,
		refactor.EventCategoryStarted,
		refactor.EventBatchCompleted,
		refactor.EventBatchCompleted,
		refactor.EventCategoryFinished,
		refactor.EventJobFinished,
	}
	if len(sink.events) != len(want) {
		t.Fatalf("events: want=%d got=%d", len(want), len(sink.events))
	}
	for i, ev := range sink.events {
		if ev.Type != want[i] {
			t.Fatalf("event %d: want=%q got=%q", i, want[i], ev.Type)
		}
		if ev.RunID != report.RunID {
			t.Fatalf("event %d run id: want=%q got=%q", i, report.RunID, ev.RunID)
		}
	}
	if sink.events[0].Categories != 1 {
		t.Fatalf("job started categories: want=1 got=%d", sink.events[0].Categories)
	}
	if sink.events[3].Cumulative != 3 || sink.events[3].Result.EdgesCreated != 0 {
		t.Fatalf("final batch: cumulative=%d edges=%d", sink.events[3].Cumulative, sink.events[3].Result.EdgesCreated)
	}
}

func TestPendingFiltersAndSorts(t *testing.T) {
	got := refactor.Pending([]refactor.CategoryCount{
		{Category: "Peru", Unlinked: 2},
		{Category: "Chile", Unlinked: 0},
		{Category: "Brazil", Unlinked: 7},
		{Category: "Angola", Unlinked: -1},
	})
	want := []refactor.CategoryCount{{Category: "Brazil", Unlinked: 7}, {Category: "Peru", Unlinked: 2}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Pending: want=%v got=%v", want, got)
	}
}

func TestNewJobValidation(t *testing.T) {
	store := refactortest.NewMemStore()
	m := newMaterializer(t, store, nil, testOptions(1))
	if _, err := refactor.NewJob(nil, m, nil, logger.NewNop()); err == nil {
		t.Fatalf("expected error for nil counter")
	}
	if _, err := refactor.NewJob(store, nil, nil, logger.NewNop()); err == nil {
		t.Fatalf("expected error for nil materializer")
	}
	if _, err := refactor.NewJob(store, m, nil, nil); err == nil {
		t.Fatalf("expected error for nil logger")
	}
}
