package temporalworker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/api/serviceerror"
	temporalsdkclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/yungbote/categorylink/internal/platform/logger"
	"github.com/yungbote/categorylink/internal/temporalx"
	"github.com/yungbote/categorylink/internal/temporalx/refactorrun"
)

// Runner polls the refactor task queue until its context ends.
type Runner struct {
	log  *logger.Logger
	cfg  temporalx.Config
	tc   temporalsdkclient.Client
	acts *refactorrun.Activities
}

func NewRunner(log *logger.Logger, cfg temporalx.Config, tc temporalsdkclient.Client, acts *refactorrun.Activities) (*Runner, error) {
	if tc == nil {
		return nil, fmt.Errorf("temporal client is not configured")
	}
	if acts == nil || acts.Counter == nil || acts.Materializer == nil {
		return nil, fmt.Errorf("temporal worker missing deps")
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Runner{log: log.With("component", "TemporalWorker"), cfg: cfg, tc: tc, acts: acts}, nil
}

// Run starts the worker, retrying while the namespace or frontend is not ready,
// and blocks until ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	w, err := r.start(ctx)
	if err != nil {
		return err
	}
	<-ctx.Done()
	w.Stop()
	r.log.Info("Temporal worker stopped", "task_queue", r.cfg.TaskQueue)
	return nil
}

func (r *Runner) start(ctx context.Context) (worker.Worker, error) {
	r.log.Info("Starting Temporal worker", "address", r.cfg.Address, "namespace", r.cfg.Namespace, "task_queue", r.cfg.TaskQueue)

	deadline := time.Now().Add(r.cfg.DialMaxWait)
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		w := r.newWorker()
		startErr := w.Start()
		if startErr == nil {
			r.log.Info("Temporal worker started", "namespace", r.cfg.Namespace, "task_queue", r.cfg.TaskQueue, "attempts", attempt)
			return w, nil
		}
		w.Stop()

		var nfe *serviceerror.NamespaceNotFound
		missingNamespace := errors.As(startErr, &nfe)
		if missingNamespace && r.cfg.AutoRegisterNamespace {
			if err := temporalx.EnsureNamespace(ctx, r.cfg, r.log); err != nil {
				r.log.Warn("Temporal namespace ensure failed", "namespace", r.cfg.Namespace, "error", err)
			}
		}
		if r.cfg.DialMaxWait <= 0 || time.Now().After(deadline) {
			if missingNamespace {
				return nil, fmt.Errorf("temporal namespace not found (namespace=%s): %w", r.cfg.Namespace, startErr)
			}
			return nil, startErr
		}
		r.log.Warn("Temporal worker failed to start; retrying", "namespace", r.cfg.Namespace, "task_queue", r.cfg.TaskQueue, "attempt", attempt, "error", startErr)
		if err := temporalx.SleepBackoff(ctx, r.cfg, attempt); err != nil {
			return nil, err
		}
	}
}

func (r *Runner) newWorker() worker.Worker {
	concurrency := r.cfg.WorkerConcurrency
	if concurrency < 1 {
		concurrency = 1
	}
	w := worker.New(r.tc, r.cfg.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     concurrency,
		MaxConcurrentWorkflowTaskExecutionSize: concurrency,
	})
	refactorrun.Register(w, r.acts)
	return w
}
