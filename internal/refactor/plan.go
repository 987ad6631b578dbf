package refactor

import "github.com/yungbote/categorylink/internal/config"

type PlannedCategory struct {
	Category string `json:"category"`
	Unlinked int64  `json:"unlinked"`
	// Productive is the number of batches expected to create edges.
	Productive int64 `json:"productive"`
	// Invocations includes the final empty batch under actual-count termination.
	Invocations int64 `json:"invocations"`
}

type Plan struct {
	BatchSize   int                    `json:"batch_size"`
	Termination config.TerminationMode `json:"termination"`
	Categories  []PlannedCategory      `json:"categories"`
	Unlinked    int64                  `json:"unlinked"`
	Invocations int64                  `json:"invocations"`
}

// ExpectedInvocations returns productive and total batch counts for n unlinked
// children with batch limit b, assuming no concurrent writers.
func ExpectedInvocations(n int64, b int, mode config.TerminationMode) (productive int64, total int64) {
	if n <= 0 || b <= 0 {
		return 0, 0
	}
	productive = (n + int64(b) - 1) / int64(b)
	if mode == config.TerminationEstimate {
		return productive, productive
	}
	return productive, productive + 1
}

func BuildPlan(counts []CategoryCount, opts Options) Plan {
	p := Plan{BatchSize: opts.BatchSize, Termination: opts.Termination}
	for _, cc := range Pending(counts) {
		productive, total := ExpectedInvocations(cc.Unlinked, opts.BatchSize, opts.Termination)
		p.Categories = append(p.Categories, PlannedCategory{
			Category:    cc.Category,
			Unlinked:    cc.Unlinked,
			Productive:  productive,
			Invocations: total,
		})
		p.Unlinked += cc.Unlinked
		p.Invocations += total
	}
	return p
}
