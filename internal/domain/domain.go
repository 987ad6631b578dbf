package domain

import "github.com/yungbote/categorylink/internal/domain/runs"

const (
	RunStatusRunning   = runs.RunStatusRunning
	RunStatusSucceeded = runs.RunStatusSucceeded
	RunStatusFailed    = runs.RunStatusFailed
)

type RefactorRun = runs.RefactorRun
type RefactorCategoryOutcome = runs.RefactorCategoryOutcome
