package db

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/yungbote/categorylink/internal/config"
	"github.com/yungbote/categorylink/internal/platform/logger"
)

type LedgerService struct {
	db     *gorm.DB
	driver string
	log    *logger.Logger
}

// NewLedgerService opens the run ledger named by dsn (postgres:// or sqlite:path)
// and migrates its tables.
func NewLedgerService(logg *logger.Logger, dsn string) (*LedgerService, error) {
	serviceLog := logg.With("service", "LedgerService")

	driver, target, err := config.LedgerDriver(dsn)
	if err != nil {
		return nil, err
	}

	gormLog := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             1 * time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	cfg := &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLog,
	}

	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(target)
	case "sqlite":
		dialector = sqlite.Open(target)
	}
	db, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger (%s): %w", driver, err)
	}
	if err := AutoMigrateAll(db); err != nil {
		return nil, fmt.Errorf("failed to migrate ledger: %w", err)
	}

	serviceLog.Info("ledger ready", "driver", driver)
	return &LedgerService{db: db, driver: driver, log: serviceLog}, nil
}

func (s *LedgerService) DB() *gorm.DB { return s.db }

func (s *LedgerService) Driver() string { return s.driver }

func (s *LedgerService) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *LedgerService) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
