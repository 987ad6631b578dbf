package app

import (
	"github.com/yungbote/categorylink/internal/data/db"
	"github.com/yungbote/categorylink/internal/data/repos"
	"github.com/yungbote/categorylink/internal/platform/logger"
)

// wireRepos returns empty repos when no ledger is configured.
func wireRepos(ledger *db.LedgerService, log *logger.Logger) repos.Repos {
	if ledger == nil {
		return repos.Repos{}
	}
	log.Info("Wiring repos...")
	return repos.New(ledger.DB(), log)
}
