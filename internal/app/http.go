package app

import (
	"github.com/yungbote/categorylink/internal/config"
	"github.com/yungbote/categorylink/internal/http"
	httpH "github.com/yungbote/categorylink/internal/http/handlers"
	"github.com/yungbote/categorylink/internal/platform/logger"
)

type Handlers struct {
	Health   *httpH.HealthHandler
	Progress *httpH.ProgressHandler
	Realtime *httpH.RealtimeHandler
	Run      *httpH.RunHandler
}

func wireHandlers(log *logger.Logger, clients Clients, services Services) Handlers {
	log.Info("Wiring handlers...")
	health := httpH.NewHealthHandler()
	if clients.Neo4j != nil {
		health.WithCheck("neo4j", clients.Neo4j.Ping)
	}
	if clients.Ledger != nil {
		health.WithCheck("ledger", clients.Ledger.Ping)
	}
	if clients.Bus != nil {
		health.WithCheck("redis", clients.Bus.Ping)
	}
	h := Handlers{
		Health:   health,
		Progress: httpH.NewProgressHandler(services.Tracker),
		Realtime: httpH.NewRealtimeHandler(log, services.Hub),
	}
	if services.Ledger != nil {
		h.Run = httpH.NewRunHandler(services.Ledger)
	}
	return h
}

func wireServer(cfg config.Config, log *logger.Logger, handlers Handlers, services Services) *http.Server {
	return http.NewServer(http.RouterConfig{
		Log:             log,
		CORSOrigins:     cfg.Status.CORSOrigins,
		HealthHandler:   handlers.Health,
		ProgressHandler: handlers.Progress,
		RealtimeHandler: handlers.Realtime,
		RunHandler:      handlers.Run,
		Metrics:         services.Metrics,
	})
}
