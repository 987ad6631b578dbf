package refactor_test

import (
	"context"
	"errors"
	"testing"

	"github.com/yungbote/categorylink/internal/refactor"
	"github.com/yungbote/categorylink/internal/refactor/refactortest"
)

func TestTrackerFollowsJob(t *testing.T) {
	store := refactortest.NewMemStore()
	store.Seed(map[string]int{"France": 4500, "Spain": 10})
	store.FailCall(2, refactor.NewError(refactor.KindTransient, "link_batch", errors.New("lock timeout")))
	tracker := refactor.NewTracker()

	report := newJob(t, store, tracker, 2000).Run(context.Background())
	snap := tracker.Snapshot()

	if snap.RunID != report.RunID {
		t.Fatalf("run id: want=%q got=%q", report.RunID, snap.RunID)
	}
	if !snap.Finished || snap.Current != "" {
		t.Fatalf("expected finished snapshot, got finished=%v current=%q", snap.Finished, snap.Current)
	}
	if snap.Total != 2 {
		t.Fatalf("total: want=2 got=%d", snap.Total)
	}
	if snap.Migrated != 4510 {
		t.Fatalf("migrated: want=%d got=%d", 4510, snap.Migrated)
	}
	// France: 3 productive batches over 4 invocations, Spain: 1 over 2.
	if snap.Batches != 4 {
		t.Fatalf("batches: want=4 got=%d", snap.Batches)
	}
	if snap.Invocations != 6 {
		t.Fatalf("invocations: want=6 got=%d", snap.Invocations)
	}
	if len(snap.Categories) != 2 {
		t.Fatalf("categories: want=2 got=%d", len(snap.Categories))
	}
	france := snap.Categories[0]
	if france.Category != "France" || france.Status != refactor.StatusDone || france.Retries != 1 || france.EdgesCreated != 4500 {
		t.Fatalf("france progress: %+v", france)
	}
	for _, o := range report.Outcomes {
		for _, p := range snap.Categories {
			if p.Category != o.Category {
				continue
			}
			if p.Batches != o.Batches || p.Invocations != o.Invocations {
				t.Fatalf("%s: progress batches=%d/%d outcome batches=%d/%d", o.Category, p.Batches, p.Invocations, o.Batches, o.Invocations)
			}
		}
	}
}

func TestTrackerMarksSkippedCategories(t *testing.T) {
	store := refactortest.NewMemStore()
	store.Seed(map[string]int{"A": 5, "B": 5})
	store.FailCall(1, refactor.NewError(refactor.KindConnectivity, "link_batch", errors.New("connection reset")))
	tracker := refactor.NewTracker()

	newJob(t, store, tracker, 5).Run(context.Background())
	snap := tracker.Snapshot()

	got := map[string]refactor.CategoryProgress{}
	for _, p := range snap.Categories {
		got[p.Category] = p
	}
	if got["A"].Status != refactor.StatusFailed || got["A"].ErrorKind != refactor.KindConnectivity || got["A"].Invocations != 1 || got["A"].Batches != 0 {
		t.Fatalf("A progress: %+v", got["A"])
	}
	if got["B"].Status != refactor.StatusSkipped {
		t.Fatalf("B progress: %+v", got["B"])
	}
}

func TestTrackerResetsOnNewRun(t *testing.T) {
	tracker := refactor.NewTracker()
	ctx := context.Background()
	tracker.Publish(ctx, refactor.Event{Type: refactor.EventJobStarted, RunID: "one", Categories: 1})
	tracker.Publish(ctx, refactor.Event{Type: refactor.EventCategoryStarted, Category: "A", Target: 3})
	tracker.Publish(ctx, refactor.Event{Type: refactor.EventBatchCompleted, Category: "A", Result: &refactor.MutationResult{EdgesCreated: 3}})

	if snap := tracker.Snapshot(); snap.Current != "A" || snap.Migrated != 3 {
		t.Fatalf("in-flight snapshot: current=%q migrated=%d", snap.Current, snap.Migrated)
	}

	tracker.Publish(ctx, refactor.Event{Type: refactor.EventJobStarted, RunID: "two", Categories: 4})
	snap := tracker.Snapshot()
	if snap.RunID != "two" || snap.Migrated != 0 || len(snap.Categories) != 0 || snap.Total != 4 {
		t.Fatalf("reset snapshot: %+v", snap)
	}
}
