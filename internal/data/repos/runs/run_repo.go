package runs

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/categorylink/internal/domain"
	"github.com/yungbote/categorylink/internal/pkg/dbctx"
	"github.com/yungbote/categorylink/internal/platform/logger"
)

type RunRepo interface {
	CreateRun(dbc dbctx.Context, run *types.RefactorRun) error
	UpdateRunFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	UpsertOutcome(dbc dbctx.Context, outcome *types.RefactorCategoryOutcome) error
	GetRun(dbc dbctx.Context, id uuid.UUID) (*types.RefactorRun, error)
	ListOutcomes(dbc dbctx.Context, runID uuid.UUID) ([]*types.RefactorCategoryOutcome, error)
	ListRecent(dbc dbctx.Context, limit int) ([]*types.RefactorRun, error)
}

type runRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRunRepo(db *gorm.DB, baseLog *logger.Logger) RunRepo {
	return &runRepo{
		db:  db,
		log: baseLog.With("repo", "RunRepo"),
	}
}

func (r *runRepo) tx(dbc dbctx.Context) *gorm.DB {
	return dbc.DB(r.db)
}

func (r *runRepo) CreateRun(dbc dbctx.Context, run *types.RefactorRun) error {
	if run == nil {
		return nil
	}
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	return r.tx(dbc).Create(run).Error
}

func (r *runRepo) UpdateRunFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil || len(updates) == 0 {
		return nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return r.tx(dbc).Model(&types.RefactorRun{}).Where("id = ?", id).Updates(updates).Error
}

// UpsertOutcome records a category result; a second write for the same run and
// category (a resumed workflow activity) replaces the first.
func (r *runRepo) UpsertOutcome(dbc dbctx.Context, outcome *types.RefactorCategoryOutcome) error {
	if outcome == nil || outcome.RunID == uuid.Nil {
		return nil
	}
	if outcome.ID == uuid.Nil {
		outcome.ID = uuid.New()
	}
	return r.tx(dbc).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "run_id"}, {Name: "category"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"target", "edges_created", "batches", "invocations", "elapsed_ms", "status", "error_kind", "error", "updated_at",
		}),
	}).Create(outcome).Error
}

func (r *runRepo) GetRun(dbc dbctx.Context, id uuid.UUID) (*types.RefactorRun, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var run types.RefactorRun
	if err := r.tx(dbc).Where("id = ?", id).Limit(1).Find(&run).Error; err != nil {
		return nil, err
	}
	if run.ID == uuid.Nil {
		return nil, nil
	}
	return &run, nil
}

func (r *runRepo) ListOutcomes(dbc dbctx.Context, runID uuid.UUID) ([]*types.RefactorCategoryOutcome, error) {
	var out []*types.RefactorCategoryOutcome
	if runID == uuid.Nil {
		return out, nil
	}
	if err := r.tx(dbc).
		Where("run_id = ?", runID).
		Order("category ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *runRepo) ListRecent(dbc dbctx.Context, limit int) ([]*types.RefactorRun, error) {
	if limit <= 0 {
		limit = 20
	}
	var out []*types.RefactorRun
	if err := r.tx(dbc).
		Order("started_at DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
