package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/categorylink/internal/data/repos/runs"
	"github.com/yungbote/categorylink/internal/platform/logger"
)

type RunRepo = runs.RunRepo

type Repos struct {
	Runs RunRepo
}

func New(db *gorm.DB, log *logger.Logger) Repos {
	return Repos{
		Runs: runs.NewRunRepo(db, log),
	}
}
