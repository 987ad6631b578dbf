package refactorrun

import (
	"github.com/yungbote/categorylink/internal/config"
	"github.com/yungbote/categorylink/internal/refactor"
)

const (
	WorkflowName        = "categorylink_refactor"
	ActivityCensus      = "categorylink_census"
	ActivityMaterialize = "categorylink_materialize_category"
	ActivityPublish     = "categorylink_publish"
	QueryProgress       = "progress"
)

// Input starts one refactor run. RunID defaults to the workflow's Temporal run ID.
type Input struct {
	RunID string `json:"run_id,omitempty"`
}

type CensusResult struct {
	Counts      []refactor.CategoryCount `json:"counts"`
	BatchSize   int                      `json:"batch_size"`
	Termination config.TerminationMode   `json:"termination"`
}

type MaterializeInput struct {
	RunID    string                 `json:"run_id"`
	Category refactor.CategoryCount `json:"category"`
}
