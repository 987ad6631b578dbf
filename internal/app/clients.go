package app

import (
	"context"
	"fmt"
	"strings"

	temporalsdkclient "go.temporal.io/sdk/client"

	"github.com/yungbote/categorylink/internal/config"
	"github.com/yungbote/categorylink/internal/data/db"
	"github.com/yungbote/categorylink/internal/platform/logger"
	"github.com/yungbote/categorylink/internal/platform/neo4jdb"
	"github.com/yungbote/categorylink/internal/realtime/bus"
	"github.com/yungbote/categorylink/internal/temporalx"
)

// Needs selects which external systems a command connects to.
type Needs struct {
	Graph    bool
	Bus      bool
	Ledger   bool
	Temporal bool
}

type Clients struct {
	Neo4j    *neo4jdb.Client
	Bus      bus.Bus
	Ledger   *db.LedgerService
	Temporal temporalsdkclient.Client
}

func wireClients(ctx context.Context, cfg config.Config, tcfg temporalx.Config, needs Needs, log *logger.Logger) (Clients, error) {
	log.Info("Wiring clients...")
	var c Clients

	// Neo4j
	if needs.Graph {
		client, err := neo4jdb.New(cfg.Store, log)
		if err != nil {
			return c, fmt.Errorf("init neo4j: %w", err)
		}
		c.Neo4j = client
	}

	// Redis
	if needs.Bus && strings.TrimSpace(cfg.Events.RedisAddr) != "" {
		b, err := bus.NewRedisBus(log, cfg.Events)
		if err != nil {
			c.Close(ctx)
			return Clients{}, fmt.Errorf("init redis event bus: %w", err)
		}
		c.Bus = b
	}

	// Ledger
	if needs.Ledger && strings.TrimSpace(cfg.Ledger.DSN) != "" {
		ledger, err := db.NewLedgerService(log, cfg.Ledger.DSN)
		if err != nil {
			c.Close(ctx)
			return Clients{}, fmt.Errorf("init run ledger: %w", err)
		}
		c.Ledger = ledger
	}

	// Temporal
	if needs.Temporal {
		tc, err := temporalx.NewClient(ctx, tcfg, log)
		if err != nil {
			c.Close(ctx)
			return Clients{}, fmt.Errorf("init temporal: %w", err)
		}
		c.Temporal = tc
	}

	return c, nil
}

func (c *Clients) Close(ctx context.Context) {
	if c == nil {
		return
	}
	if c.Temporal != nil {
		c.Temporal.Close()
	}
	if c.Ledger != nil {
		_ = c.Ledger.Close()
	}
	if c.Bus != nil {
		_ = c.Bus.Close()
	}
	if c.Neo4j != nil {
		_ = c.Neo4j.Close(ctx)
	}
}
