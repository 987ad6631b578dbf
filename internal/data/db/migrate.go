package db

import (
	"gorm.io/gorm"

	types "github.com/yungbote/categorylink/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		&types.RefactorRun{},
		&types.RefactorCategoryOutcome{},
	)
}
