package app

import (
	"fmt"

	"github.com/yungbote/categorylink/internal/config"
	"github.com/yungbote/categorylink/internal/data/graph"
	"github.com/yungbote/categorylink/internal/data/repos"
	"github.com/yungbote/categorylink/internal/observability"
	"github.com/yungbote/categorylink/internal/platform/logger"
	"github.com/yungbote/categorylink/internal/realtime"
	"github.com/yungbote/categorylink/internal/realtime/bus"
	"github.com/yungbote/categorylink/internal/refactor"
	"github.com/yungbote/categorylink/internal/services"
	"github.com/yungbote/categorylink/internal/temporalx/refactorrun"
)

type Services struct {
	Statements graph.Statements
	Linker     *graph.CategoryLinker
	Setup      *graph.Setup

	Tracker *refactor.Tracker
	Hub     *realtime.SSEHub
	Metrics *observability.Metrics
	Ledger  *services.RunLedger
	Sink    refactor.Sink

	Materializer *refactor.Materializer
	Job          *refactor.Job
	Activities   *refactorrun.Activities
}

func wireServices(cfg config.Config, clients Clients, reposet repos.Repos, log *logger.Logger) (Services, error) {
	log.Info("Wiring services...")

	stmts, err := graph.NewStatements(cfg.Schema)
	if err != nil {
		return Services{}, err
	}
	opts := refactor.OptionsFromConfig(cfg)

	s := Services{
		Statements: stmts,
		Tracker:    refactor.NewTracker(),
		Hub:        realtime.NewSSEHub(log),
		Metrics:    observability.NewMetrics(log),
	}
	if reposet.Runs != nil {
		s.Ledger = services.NewRunLedger(reposet.Runs, opts, log)
	}
	s.Sink = wireSinks(s, clients.Bus, log)

	if clients.Neo4j == nil {
		return s, nil
	}

	linker, err := graph.NewCategoryLinker(clients.Neo4j, stmts, cfg.BatchTimeout, log)
	if err != nil {
		return Services{}, fmt.Errorf("init category linker: %w", err)
	}
	setup, err := graph.NewSetup(clients.Neo4j, stmts, log)
	if err != nil {
		return Services{}, fmt.Errorf("init graph setup: %w", err)
	}
	mat, err := refactor.NewMaterializer(linker, s.Sink, log, opts)
	if err != nil {
		return Services{}, fmt.Errorf("init materializer: %w", err)
	}
	job, err := refactor.NewJob(linker, mat, s.Sink, log)
	if err != nil {
		return Services{}, fmt.Errorf("init refactor job: %w", err)
	}

	s.Linker = linker
	s.Setup = setup
	s.Materializer = mat
	s.Job = job
	s.Activities = &refactorrun.Activities{Log: log, Counter: linker, Materializer: mat, Sink: s.Sink}
	return s, nil
}

// wireSinks fans the event stream out to every configured consumer. Order
// matters only for logs: the tracker sees an event before it is logged.
func wireSinks(s Services, b bus.Bus, log *logger.Logger) refactor.Sink {
	sinks := refactor.Fanout{s.Tracker, refactor.NewLogSink(log), s.Hub, s.Metrics}
	if b != nil {
		sinks = append(sinks, bus.NewSink(b, log))
	}
	if s.Ledger != nil {
		sinks = append(sinks, s.Ledger)
	}
	return sinks
}
