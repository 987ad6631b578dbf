// Package refactor converts an implicit category attribute on child records into
// explicit child→parent relationships, one bounded and idempotent transaction at a
// time, and tracks convergence per category.
package refactor

import (
	"context"
	"time"

	"github.com/yungbote/categorylink/internal/config"
)

// CategoryCount is one row of the unlinked-children census. Unlinked is always > 0;
// fully migrated categories are absent rather than reported with zero.
type CategoryCount struct {
	Category string `json:"category"`
	Unlinked int64  `json:"unlinked"`
}

type BatchRequest struct {
	Category string
	Limit    int
}

// MutationResult carries the store's update counters for one committed batch.
type MutationResult struct {
	EdgesCreated  int64 `json:"edges_created"`
	NodesCreated  int64 `json:"nodes_created"`
	PropertiesSet int64 `json:"properties_set"`
	EdgesDeleted  int64 `json:"edges_deleted"`
	NodesDeleted  int64 `json:"nodes_deleted"`
}

// TransactionRunner performs one bounded mutation atomically. Calls must be safe to
// repeat with identical parameters: an already linked child is never linked again.
type TransactionRunner interface {
	LinkBatch(ctx context.Context, req BatchRequest) (MutationResult, error)
}

type CategoryCounter interface {
	CountUnlinked(ctx context.Context) ([]CategoryCount, error)
}

type CategoryState string

const (
	StateStart         CategoryState = "start"
	StateBatchInFlight CategoryState = "batch_in_flight"
	StateCategoryDone  CategoryState = "category_done"
)

// BatchJob is the ephemeral per-category loop state.
type BatchJob struct {
	Category  string
	Target    int64
	BatchSize int
	State     CategoryState

	// Estimated accumulates BatchSize per batch (legacy termination); Processed
	// accumulates the edges actually created.
	Estimated   int64
	Processed   int64
	Batches     int
	Invocations int
	StartedAt   time.Time
}

type CategoryStatus string

const (
	StatusDone    CategoryStatus = "done"
	StatusFailed  CategoryStatus = "failed"
	StatusSkipped CategoryStatus = "skipped"
)

type CategoryOutcome struct {
	Category     string         `json:"category"`
	Target       int64          `json:"target"`
	EdgesCreated int64          `json:"edges_created"`
	Batches      int            `json:"batches"`
	Invocations  int            `json:"invocations"`
	Elapsed      time.Duration  `json:"elapsed"`
	Status       CategoryStatus `json:"status"`
	ErrorKind    ErrorKind      `json:"error_kind,omitempty"`
	Error        string         `json:"error,omitempty"`

	err error
}

// Err returns the failure that aborted the category, if any.
func (o CategoryOutcome) Err() error { return o.err }

// Shortfall is the number of children counted at start that were not linked,
// e.g. because their category node does not exist.
func (o CategoryOutcome) Shortfall() int64 {
	if o.Status != StatusDone || o.EdgesCreated >= o.Target {
		return 0
	}
	return o.Target - o.EdgesCreated
}

type Report struct {
	RunID         string                 `json:"run_id"`
	StartedAt     time.Time              `json:"started_at"`
	Elapsed       time.Duration          `json:"elapsed"`
	BatchSize     int                    `json:"batch_size"`
	Termination   config.TerminationMode `json:"termination"`
	Outcomes      []CategoryOutcome      `json:"outcomes"`
	TotalMigrated int64                  `json:"total_migrated"`
	ErrorKind     ErrorKind              `json:"error_kind,omitempty"`
	Error         string                 `json:"error,omitempty"`

	err error
}

// Err returns the job-level failure (census failure, lost connectivity, cancellation).
func (r Report) Err() error { return r.err }

// Succeeded reports whether every discovered category reached CategoryDone.
func (r Report) Succeeded() bool {
	if r.err != nil || r.Error != "" {
		return false
	}
	for _, o := range r.Outcomes {
		if o.Status != StatusDone {
			return false
		}
	}
	return true
}

// Failed returns the outcomes that did not complete, in run order.
func (r Report) Failed() []CategoryOutcome {
	var out []CategoryOutcome
	for _, o := range r.Outcomes {
		if o.Status != StatusDone {
			out = append(out, o)
		}
	}
	return out
}
