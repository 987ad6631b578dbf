package refactor_test

import (
	"testing"

	"github.com/yungbote/categorylink/internal/config"
	"github.com/yungbote/categorylink/internal/refactor"
)

func TestExpectedInvocations(t *testing.T) {
	cases := []struct {
		n          int64
		b          int
		mode       config.TerminationMode
		productive int64
		total      int64
	}{
		{4500, 2000, config.TerminationActualCount, 3, 4},
		{4500, 2000, config.TerminationEstimate, 3, 3},
		{2500, 2000, config.TerminationActualCount, 2, 3},
		{2000, 2000, config.TerminationActualCount, 1, 2},
		{1, 1, config.TerminationActualCount, 1, 2},
		{0, 2000, config.TerminationActualCount, 0, 0},
		{10, 0, config.TerminationActualCount, 0, 0},
	}
	for _, tc := range cases {
		p, total := refactor.ExpectedInvocations(tc.n, tc.b, tc.mode)
		if p != tc.productive || total != tc.total {
			t.Fatalf("n=%d b=%d mode=%s: want=%d/%d got=%d/%d", tc.n, tc.b, tc.mode, tc.productive, tc.total, p, total)
		}
	}
}

func TestBuildPlan(t *testing.T) {
	counts := []refactor.CategoryCount{
		{Category: "France", Unlinked: 4500},
		{Category: "Empty", Unlinked: 0},
		{Category: "Chile", Unlinked: 30},
	}
	plan := refactor.BuildPlan(counts, testOptions(2000))

	if len(plan.Categories) != 2 {
		t.Fatalf("categories: want=2 got=%d", len(plan.Categories))
	}
	if plan.Categories[0].Category != "Chile" || plan.Categories[1].Category != "France" {
		t.Fatalf("order: got=%+v", plan.Categories)
	}
	if plan.Unlinked != 4530 {
		t.Fatalf("unlinked: want=%d got=%d", 4530, plan.Unlinked)
	}
	if plan.Invocations != 6 {
		t.Fatalf("invocations: want=6 got=%d", plan.Invocations)
	}
	if plan.Termination != config.TerminationActualCount || plan.BatchSize != 2000 {
		t.Fatalf("plan header: %+v", plan)
	}
}
