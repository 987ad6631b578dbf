package app

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/categorylink/internal/config"
	"github.com/yungbote/categorylink/internal/data/repos"
	"github.com/yungbote/categorylink/internal/http"
	"github.com/yungbote/categorylink/internal/observability"
	"github.com/yungbote/categorylink/internal/platform/logger"
	"github.com/yungbote/categorylink/internal/refactor"
	"github.com/yungbote/categorylink/internal/temporalx"
	"github.com/yungbote/categorylink/internal/temporalx/refactorrun"
	"github.com/yungbote/categorylink/internal/temporalx/temporalworker"
)

type App struct {
	Log      *logger.Logger
	Cfg      config.Config
	Temporal temporalx.Config
	Clients  Clients
	Repos    repos.Repos
	Services Services
	Server   *http.Server

	otelShutdown func(context.Context) error
}

// New validates cfg and connects to the systems named by needs.
func New(ctx context.Context, cfg config.Config, needs Needs, log *logger.Logger) (*App, error) {
	if log == nil {
		return nil, fmt.Errorf("app: logger required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	tcfg := temporalx.LoadConfig()
	if needs.Temporal && !tcfg.Enabled() {
		return nil, &config.ConfigError{Code: config.ConfigErrorMissingSetting, Field: "TEMPORAL_ADDRESS"}
	}

	shutdown := observability.InitOTel(ctx, log, observability.OtelConfig{ServiceName: "categorylink"})

	clients, err := wireClients(ctx, cfg, tcfg, needs, log)
	if err != nil {
		_ = shutdown(ctx)
		return nil, err
	}
	reposet := wireRepos(clients.Ledger, log)
	serviceset, err := wireServices(cfg, clients, reposet, log)
	if err != nil {
		clients.Close(ctx)
		_ = shutdown(ctx)
		return nil, err
	}
	handlerset := wireHandlers(log, clients, serviceset)

	return &App{
		Log:          log,
		Cfg:          cfg,
		Temporal:     tcfg,
		Clients:      clients,
		Repos:        reposet,
		Services:     serviceset,
		Server:       wireServer(cfg, log, handlerset, serviceset),
		otelShutdown: shutdown,
	}, nil
}

// RunJob runs the refactor job in-process. The status server, when configured,
// serves until the job returns.
func (a *App) RunJob(ctx context.Context) (refactor.Report, error) {
	if a.Services.Job == nil {
		return refactor.Report{}, fmt.Errorf("app: graph store not wired")
	}
	var report refactor.Report
	err := a.withStatusServer(ctx, func(ctx context.Context) error {
		report = a.Services.Job.Run(ctx)
		return nil
	})
	return report, err
}

// RunOrchestrated starts the refactor workflow and waits for its report. The
// work happens on whichever worker polls the task queue.
func (a *App) RunOrchestrated(ctx context.Context) (refactor.Report, error) {
	return refactorrun.Execute(ctx, a.Clients.Temporal, a.Temporal.TaskQueue)
}

// RunWorker polls the refactor task queue until ctx is done.
func (a *App) RunWorker(ctx context.Context) error {
	runner, err := temporalworker.NewRunner(a.Log, a.Temporal, a.Clients.Temporal, a.Services.Activities)
	if err != nil {
		return err
	}
	return a.withStatusServer(ctx, runner.Run)
}

// Plan counts the unlinked children per category without writing anything.
func (a *App) Plan(ctx context.Context) (refactor.Plan, error) {
	if a.Services.Linker == nil {
		return refactor.Plan{}, fmt.Errorf("app: graph store not wired")
	}
	counts, err := a.Services.Linker.CountUnlinked(ctx)
	if err != nil {
		return refactor.Plan{}, err
	}
	return refactor.BuildPlan(counts, refactor.OptionsFromConfig(a.Cfg)), nil
}

// withStatusServer runs fn on ctx with the status server alongside. The server
// never cancels fn: a bind or serve failure is logged and fn keeps running.
func (a *App) withStatusServer(ctx context.Context, fn func(ctx context.Context) error) error {
	if a.Cfg.Status.Addr == "" || a.Server == nil {
		return fn(ctx)
	}
	serverCtx, stopServer := context.WithCancel(ctx)
	defer stopServer()

	var g errgroup.Group
	g.Go(func() error {
		a.Log.Info("status server listening", "addr", a.Cfg.Status.Addr)
		if err := a.Server.Run(serverCtx, a.Cfg.Status.Addr); err != nil {
			a.Log.Warn("status server stopped, continuing without it", "addr", a.Cfg.Status.Addr, "error", err)
		}
		return nil
	})

	err := fn(ctx)
	stopServer()
	_ = g.Wait()
	return err
}

func (a *App) Close(ctx context.Context) {
	if a == nil {
		return
	}
	a.Clients.Close(ctx)
	if a.otelShutdown != nil {
		if err := a.otelShutdown(ctx); err != nil && a.Log != nil {
			a.Log.Warn("otel shutdown failed", "error", err)
		}
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
