package runs

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
)

type RefactorRun struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Status        string         `gorm:"column:status;not null;index" json:"status"`
	BatchSize     int            `gorm:"column:batch_size;not null" json:"batch_size"`
	Termination   string         `gorm:"column:termination;not null" json:"termination"`
	Categories    int            `gorm:"column:categories;not null;default:0" json:"categories"`
	TotalMigrated int64          `gorm:"column:total_migrated;not null;default:0" json:"total_migrated"`
	ErrorKind     string         `gorm:"column:error_kind" json:"error_kind,omitempty"`
	Error         string         `gorm:"column:error" json:"error,omitempty"`
	Summary       datatypes.JSON `gorm:"column:summary" json:"summary,omitempty"`
	StartedAt     time.Time      `gorm:"column:started_at;not null;index" json:"started_at"`
	FinishedAt    *time.Time     `gorm:"column:finished_at" json:"finished_at,omitempty"`
	CreatedAt     time.Time      `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (RefactorRun) TableName() string { return "refactor_run" }

// RefactorCategoryOutcome is one category's result within a run; (run_id, category) is unique.
type RefactorCategoryOutcome struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	RunID        uuid.UUID `gorm:"type:uuid;column:run_id;not null;uniqueIndex:idx_refactor_outcome_run_category" json:"run_id"`
	Category     string    `gorm:"column:category;not null;uniqueIndex:idx_refactor_outcome_run_category;index" json:"category"`
	Target       int64     `gorm:"column:target;not null" json:"target"`
	EdgesCreated int64     `gorm:"column:edges_created;not null;default:0" json:"edges_created"`
	Batches      int       `gorm:"column:batches;not null;default:0" json:"batches"`
	Invocations  int       `gorm:"column:invocations;not null;default:0" json:"invocations"`
	ElapsedMS    int64     `gorm:"column:elapsed_ms;not null;default:0" json:"elapsed_ms"`
	Status       string    `gorm:"column:status;not null;index" json:"status"`
	ErrorKind    string    `gorm:"column:error_kind" json:"error_kind,omitempty"`
	Error        string    `gorm:"column:error" json:"error,omitempty"`
	CreatedAt    time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (RefactorCategoryOutcome) TableName() string { return "refactor_category_outcome" }
