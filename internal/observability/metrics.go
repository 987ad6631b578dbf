package observability

import (
	"context"
	"io"
	"net/http"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/yungbote/categorylink/internal/platform/logger"
	"github.com/yungbote/categorylink/internal/refactor"
)

const meterName = "github.com/yungbote/categorylink/internal/observability"

// Metrics turns the refactor event stream into Prometheus text metrics and OTel
// instruments. It is a refactor.Sink.
type Metrics struct {
	batches      *CounterVec
	edges        *CounterVec
	retries      *CounterVec
	categories   *CounterVec
	jobs         *CounterVec
	remaining    *GaugeVec
	categoryTime *HistogramVec
	batchTime    *HistogramVec

	otelEdges   metric.Int64Counter
	otelBatches metric.Int64Counter
	otelBatchMs metric.Float64Histogram

	mu        sync.Mutex
	lastEvent map[string]refactor.Event
	log       *logger.Logger
}

var _ refactor.Sink = (*Metrics)(nil)

type MetricsOption func(*metricsOptions)

type metricsOptions struct {
	provider metric.MeterProvider
}

// WithMeterProvider records the OTel instruments on mp instead of the global
// provider that InitOTel installs.
func WithMeterProvider(mp metric.MeterProvider) MetricsOption {
	return func(o *metricsOptions) { o.provider = mp }
}

func NewMetrics(log *logger.Logger, opts ...MetricsOption) *Metrics {
	o := metricsOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.provider == nil {
		o.provider = otel.GetMeterProvider()
	}

	m := &Metrics{
		batches:    NewCounterVec("categorylink_batches_total", "Link batches completed, by whether they created edges.", []string{"productive"}),
		edges:      NewCounterVec("categorylink_edges_created_total", "Relationships created, by category.", []string{"category"}),
		retries:    NewCounterVec("categorylink_batch_retries_total", "Batch retries, by error kind.", []string{"kind"}),
		categories: NewCounterVec("categorylink_categories_total", "Categories finished, by status.", []string{"status"}),
		jobs:       NewCounterVec("categorylink_jobs_total", "Refactor jobs finished, by result.", []string{"result"}),
		remaining:  NewGaugeVec("categorylink_category_remaining", "Unlinked children remaining in the current category.", []string{"category"}),
		categoryTime: NewHistogramVec("categorylink_category_duration_seconds", "Time to converge one category.", []string{"status"},
			[]float64{1, 5, 15, 60, 300, 900, 3600}),
		batchTime: NewHistogramVec("categorylink_batch_duration_seconds", "Time between consecutive batch completions within a category.", nil,
			[]float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15, 60}),
		lastEvent: map[string]refactor.Event{},
		log:       log.With("component", "RefactorMetrics"),
	}

	meter := o.provider.Meter(meterName)
	var err error
	if m.otelEdges, err = meter.Int64Counter("categorylink.edges_created", metric.WithDescription("Relationships created")); err != nil {
		m.log.Warn("otel counter init failed", "instrument", "categorylink.edges_created", "error", err)
	}
	if m.otelBatches, err = meter.Int64Counter("categorylink.batches", metric.WithDescription("Link batches completed")); err != nil {
		m.log.Warn("otel counter init failed", "instrument", "categorylink.batches", "error", err)
	}
	if m.otelBatchMs, err = meter.Float64Histogram("categorylink.batch.duration", metric.WithUnit("ms")); err != nil {
		m.log.Warn("otel histogram init failed", "instrument", "categorylink.batch.duration", "error", err)
	}
	return m
}

func (m *Metrics) Publish(ctx context.Context, ev refactor.Event) {
	if m == nil {
		return
	}
	switch ev.Type {
	case refactor.EventCategoryStarted:
		m.remaining.Set(float64(ev.Target), ev.Category)
		m.remember(ev)
	case refactor.EventBatchCompleted:
		var created int64
		if ev.Result != nil {
			created = ev.Result.EdgesCreated
		}
		productive := "false"
		if created > 0 {
			productive = "true"
		}
		m.batches.Inc(productive)
		m.edges.Add(float64(created), ev.Category)
		left := ev.Target - ev.Cumulative
		if left < 0 {
			left = 0
		}
		m.remaining.Set(float64(left), ev.Category)

		attrs := metric.WithAttributes(attribute.String("category", ev.Category))
		if m.otelEdges != nil {
			m.otelEdges.Add(ctx, created, attrs)
		}
		if m.otelBatches != nil {
			m.otelBatches.Add(ctx, 1, metric.WithAttributes(attribute.Bool("productive", created > 0)))
		}
		if prev, ok := m.remember(ev); ok && !prev.At.IsZero() && !ev.At.IsZero() {
			d := ev.At.Sub(prev.At)
			m.batchTime.Observe(d.Seconds())
			if m.otelBatchMs != nil {
				m.otelBatchMs.Record(ctx, float64(d.Milliseconds()), attrs)
			}
		}
	case refactor.EventBatchRetried:
		m.retries.Inc(string(ev.ErrorKind))
	case refactor.EventCategoryFinished:
		if ev.Outcome != nil {
			m.categories.Inc(string(ev.Outcome.Status))
			m.categoryTime.Observe(ev.Outcome.Elapsed.Seconds(), string(ev.Outcome.Status))
		}
		m.mu.Lock()
		delete(m.lastEvent, ev.Category)
		m.mu.Unlock()
	case refactor.EventJobFinished:
		result := "succeeded"
		if ev.Report != nil {
			for _, o := range ev.Report.Outcomes {
				if o.Status == refactor.StatusSkipped {
					m.categories.Inc(string(refactor.StatusSkipped))
				}
			}
			if !ev.Report.Succeeded() {
				result = "failed"
			}
		}
		m.jobs.Inc(result)
	}
}

// remember stores ev as the latest event of its category and returns the previous one.
func (m *Metrics) remember(ev refactor.Event) (refactor.Event, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.lastEvent[ev.Category]
	m.lastEvent[ev.Category] = ev
	return prev, ok
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	for _, c := range []interface{ WritePrometheus(io.Writer) error }{
		m.batches, m.edges, m.retries, m.categories, m.jobs, m.remaining, m.categoryTime, m.batchTime,
	} {
		if err := c.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}
