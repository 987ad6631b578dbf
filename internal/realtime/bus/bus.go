package bus

import (
	"context"
	"time"

	"github.com/yungbote/categorylink/internal/platform/logger"
	"github.com/yungbote/categorylink/internal/refactor"
)

type Bus interface {
	Publish(ctx context.Context, ev refactor.Event) error
	StartForwarder(ctx context.Context, onEvent func(ev refactor.Event)) error
	// Last returns the most recently published event, so a late subscriber can
	// show where a run stands before the next event arrives.
	Last(ctx context.Context) (refactor.Event, bool, error)
	Ping(ctx context.Context) error
	Close() error
}

// publishTimeout bounds a publish that outlives the job context.
const publishTimeout = 3 * time.Second

type busSink struct {
	bus Bus
	log *logger.Logger
}

// NewSink adapts b to refactor.Sink. Publish failures are logged and dropped so a
// broker outage never stops a refactor run. Publishes ignore cancellation of the
// caller's context so the final events of an interrupted run still go out.
func NewSink(b Bus, log *logger.Logger) refactor.Sink {
	return &busSink{bus: b, log: log.With("component", "EventBusSink")}
}

func (s *busSink) Publish(ctx context.Context, ev refactor.Event) {
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.bus.Publish(pctx, ev); err != nil {
		s.log.Warn("event publish failed", "type", ev.Type, "run_id", ev.RunID, "error", err)
	}
}
