package runs

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/categorylink/internal/data/repos/testutil"
	types "github.com/yungbote/categorylink/internal/domain"
	"github.com/yungbote/categorylink/internal/pkg/dbctx"
)

func TestRunRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewRunRepo(db, testutil.Logger(t))

	now := time.Now().UTC()
	older := &types.RefactorRun{
		ID:          uuid.New(),
		Status:      types.RunStatusSucceeded,
		BatchSize:   2000,
		Termination: "actualCount",
		StartedAt:   now.Add(-time.Hour),
	}
	run := &types.RefactorRun{
		ID:          uuid.New(),
		Status:      types.RunStatusRunning,
		BatchSize:   2000,
		Termination: "actualCount",
		StartedAt:   now,
	}
	for _, r := range []*types.RefactorRun{older, run} {
		if err := repo.CreateRun(dbc, r); err != nil {
			t.Fatalf("CreateRun: %v", err)
		}
	}

	first := &types.RefactorCategoryOutcome{RunID: run.ID, Category: "France", Target: 4500, EdgesCreated: 2000, Invocations: 1, Status: "failed", ErrorKind: "canceled"}
	if err := repo.UpsertOutcome(dbc, first); err != nil {
		t.Fatalf("UpsertOutcome: %v", err)
	}
	resumed := &types.RefactorCategoryOutcome{RunID: run.ID, Category: "France", Target: 4500, EdgesCreated: 4500, Batches: 3, Invocations: 4, Status: "done"}
	if err := repo.UpsertOutcome(dbc, resumed); err != nil {
		t.Fatalf("UpsertOutcome (resume): %v", err)
	}
	chile := &types.RefactorCategoryOutcome{RunID: run.ID, Category: "Chile", Target: 30, EdgesCreated: 30, Batches: 1, Invocations: 2, Status: "done"}
	if err := repo.UpsertOutcome(dbc, chile); err != nil {
		t.Fatalf("UpsertOutcome: %v", err)
	}

	outcomes, err := repo.ListOutcomes(dbc, run.ID)
	if err != nil {
		t.Fatalf("ListOutcomes: %v", err)
	}
	if len(outcomes) != 2 {
		t.Fatalf("ListOutcomes: want=2 got=%d", len(outcomes))
	}
	if outcomes[0].Category != "Chile" || outcomes[1].Category != "France" {
		t.Fatalf("ListOutcomes order: %s, %s", outcomes[0].Category, outcomes[1].Category)
	}
	if outcomes[1].Status != "done" || outcomes[1].EdgesCreated != 4500 || outcomes[1].ErrorKind != "" {
		t.Fatalf("upsert did not replace outcome: %+v", outcomes[1])
	}

	finished := now.Add(time.Minute)
	if err := repo.UpdateRunFields(dbc, run.ID, map[string]interface{}{
		"status":         types.RunStatusSucceeded,
		"total_migrated": int64(4530),
		"categories":     2,
		"finished_at":    finished,
		"summary":        datatypes.JSON([]byte(`{"failed":0}`)),
	}); err != nil {
		t.Fatalf("UpdateRunFields: %v", err)
	}
	got, err := repo.GetRun(dbc, run.ID)
	if err != nil || got == nil {
		t.Fatalf("GetRun: run=%v err=%v", got, err)
	}
	if got.Status != types.RunStatusSucceeded || got.TotalMigrated != 4530 || got.FinishedAt == nil {
		t.Fatalf("GetRun: %+v", got)
	}

	missing, err := repo.GetRun(dbc, uuid.New())
	if err != nil || missing != nil {
		t.Fatalf("GetRun(missing): run=%v err=%v", missing, err)
	}

	recent, err := repo.ListRecent(dbc, 1)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(recent) != 1 || recent[0].ID != run.ID {
		t.Fatalf("ListRecent: want latest run first, got=%+v", recent)
	}
}
