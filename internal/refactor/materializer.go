package refactor

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/yungbote/categorylink/internal/config"
	"github.com/yungbote/categorylink/internal/platform/logger"
)

const tracerName = "github.com/yungbote/categorylink/internal/refactor"

type Options struct {
	BatchSize        int
	Termination      config.TerminationMode
	BatchTimeout     time.Duration
	MaxRetries       int
	RetryBackoff     time.Duration
	RetryBackoffMax  time.Duration
	BatchesPerSecond float64
}

func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		BatchSize:        cfg.BatchSize,
		Termination:      cfg.TerminationMode,
		BatchTimeout:     cfg.BatchTimeout,
		MaxRetries:       cfg.MaxRetries,
		RetryBackoff:     cfg.RetryBackoff,
		RetryBackoffMax:  cfg.RetryBackoffMax,
		BatchesPerSecond: cfg.BatchesPerSecond,
	}
}

// Materializer drives one category at a time to convergence by repeatedly
// issuing bounded link batches.
type Materializer struct {
	runner  TransactionRunner
	sink    Sink
	log     *logger.Logger
	opts    Options
	limiter *rate.Limiter
	tracer  trace.Tracer

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewMaterializer(runner TransactionRunner, sink Sink, log *logger.Logger, opts Options) (*Materializer, error) {
	if runner == nil {
		return nil, fmt.Errorf("refactor: transaction runner required")
	}
	if log == nil {
		return nil, fmt.Errorf("refactor: logger required")
	}
	if opts.BatchSize <= 0 {
		return nil, fmt.Errorf("refactor: batch size must be positive, got %d", opts.BatchSize)
	}
	if opts.Termination == "" {
		opts.Termination = config.TerminationActualCount
	}
	if sink == nil {
		sink = Discard
	}
	m := &Materializer{
		runner: runner,
		sink:   sink,
		log:    log.With("component", "Materializer"),
		opts:   opts,
		tracer: otel.Tracer(tracerName),
		now:    time.Now,
		sleep:  sleepCtx,
	}
	if opts.BatchesPerSecond > 0 {
		m.limiter = rate.NewLimiter(rate.Limit(opts.BatchesPerSecond), 1)
	}
	return m, nil
}

// WithSink returns a copy of m that publishes to sink instead.
func (m *Materializer) WithSink(sink Sink) *Materializer {
	cp := *m
	if sink == nil {
		sink = Discard
	}
	cp.sink = sink
	return &cp
}

func (m *Materializer) Options() Options { return m.opts }

// Materialize links every unlinked child of cc.Category, one bounded batch at a
// time, until the termination condition holds or a batch fails.
func (m *Materializer) Materialize(ctx context.Context, cc CategoryCount) CategoryOutcome {
	job := &BatchJob{
		Category:  cc.Category,
		Target:    cc.Unlinked,
		BatchSize: m.opts.BatchSize,
		State:     StateStart,
		StartedAt: m.now(),
	}

	ctx, span := m.tracer.Start(ctx, "refactor.materialize_category", trace.WithAttributes(
		attribute.String("category", job.Category),
		attribute.Int64("target", job.Target),
		attribute.Int("batch_size", job.BatchSize),
		attribute.String("termination", string(m.opts.Termination)),
	))
	defer span.End()

	m.sink.Publish(ctx, Event{Type: EventCategoryStarted, At: job.StartedAt, Category: job.Category, Target: job.Target})

	var failure error
	for job.State != StateCategoryDone {
		if err := m.pace(ctx); err != nil {
			failure = withCategory(NewError(KindCanceled, "link_batch", err), "link_batch", job.Category)
			break
		}

		job.State = StateBatchInFlight
		job.Invocations++
		res, attempts, err := m.linkWithRetry(ctx, job)
		if err != nil {
			failure = err
			break
		}

		job.Processed += res.EdgesCreated
		job.Estimated += int64(job.BatchSize)
		if res.EdgesCreated > 0 {
			job.Batches++
		}
		m.sink.Publish(ctx, Event{
			Type:       EventBatchCompleted,
			At:         m.now(),
			Category:   job.Category,
			Target:     job.Target,
			Batch:      job.Invocations,
			Attempt:    attempts,
			Result:     &res,
			Cumulative: job.Processed,
		})

		if m.converged(job, res) {
			job.State = StateCategoryDone
		}
	}

	out := CategoryOutcome{
		Category:     job.Category,
		Target:       job.Target,
		EdgesCreated: job.Processed,
		Batches:      job.Batches,
		Invocations:  job.Invocations,
		Elapsed:      m.now().Sub(job.StartedAt),
		Status:       StatusDone,
	}
	if failure != nil {
		out.Status = StatusFailed
		out.ErrorKind = KindOf(failure)
		out.Error = failure.Error()
		out.err = failure
		span.RecordError(failure)
		span.SetStatus(codes.Error, string(out.ErrorKind))
	}
	span.SetAttributes(
		attribute.Int64("edges_created", out.EdgesCreated),
		attribute.Int("invocations", out.Invocations),
		attribute.String("status", string(out.Status)),
	)

	m.sink.Publish(ctx, Event{
		Type:      EventCategoryFinished,
		At:        m.now(),
		Category:  out.Category,
		Target:    out.Target,
		Outcome:   &out,
		ErrorKind: out.ErrorKind,
		Error:     out.Error,
	})
	return out
}

func (m *Materializer) converged(job *BatchJob, res MutationResult) bool {
	if m.opts.Termination == config.TerminationEstimate {
		return job.Estimated >= job.Target
	}
	return res.EdgesCreated == 0
}

// linkWithRetry runs one logical batch. Transient failures are retried with the
// same request after a capped exponential backoff; the mutation is create-if-absent
// so a retry after an unobserved commit links nothing twice.
func (m *Materializer) linkWithRetry(ctx context.Context, job *BatchJob) (MutationResult, int, error) {
	req := BatchRequest{Category: job.Category, Limit: job.BatchSize}
	for attempt := 1; ; attempt++ {
		res, err := m.linkOnce(ctx, job, req, attempt)
		if err == nil {
			return res, attempt, nil
		}
		if ctx.Err() != nil {
			return MutationResult{}, attempt, withCategory(NewError(KindCanceled, "link_batch", ctx.Err()), "link_batch", job.Category)
		}
		kind := KindOf(err)
		if kind != KindTransient || attempt > m.opts.MaxRetries {
			if kind == KindTransient {
				m.log.Warn("transient batch failure persisted past retry budget", "category", job.Category, "batch", job.Invocations, "attempts", attempt, "error", err)
			}
			return MutationResult{}, attempt, withCategory(err, "link_batch", job.Category)
		}

		delay := clampBackoff(m.opts.RetryBackoff, m.opts.RetryBackoffMax, attempt)
		m.sink.Publish(ctx, Event{
			Type:      EventBatchRetried,
			At:        m.now(),
			Category:  job.Category,
			Target:    job.Target,
			Batch:     job.Invocations,
			Attempt:   attempt,
			RetryIn:   delay,
			ErrorKind: kind,
			Error:     err.Error(),
		})
		if err := m.sleep(ctx, delay); err != nil {
			return MutationResult{}, attempt, withCategory(NewError(KindCanceled, "link_batch", err), "link_batch", job.Category)
		}
	}
}

func (m *Materializer) linkOnce(ctx context.Context, job *BatchJob, req BatchRequest, attempt int) (MutationResult, error) {
	ctx, span := m.tracer.Start(ctx, "refactor.link_batch", trace.WithAttributes(
		attribute.String("category", req.Category),
		attribute.Int("limit", req.Limit),
		attribute.Int("batch", job.Invocations),
		attribute.Int("attempt", attempt),
	))
	defer span.End()

	if m.opts.BatchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.opts.BatchTimeout)
		defer cancel()
	}
	res, err := m.runner.LinkBatch(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(KindOf(err)))
		return MutationResult{}, err
	}
	span.SetAttributes(attribute.Int64("edges_created", res.EdgesCreated))
	return res, nil
}

func (m *Materializer) pace(ctx context.Context) error {
	if m.limiter == nil {
		return ctx.Err()
	}
	return m.limiter.Wait(ctx)
}

func clampBackoff(base time.Duration, max time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = 250 * time.Millisecond
	}
	sleep := base
	for i := 1; i < attempt; i++ {
		sleep *= 2
		if max > 0 && sleep >= max {
			return max
		}
	}
	if max > 0 && sleep > max {
		return max
	}
	return sleep
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
