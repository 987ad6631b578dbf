package bus

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/categorylink/internal/config"
	"github.com/yungbote/categorylink/internal/platform/logger"
	"github.com/yungbote/categorylink/internal/refactor"
)

type failingBus struct {
	calls int
}

func (b *failingBus) Publish(context.Context, refactor.Event) error {
	b.calls++
	return errors.New("broker down")
}

func (b *failingBus) StartForwarder(context.Context, func(refactor.Event)) error { return nil }

func (b *failingBus) Last(context.Context) (refactor.Event, bool, error) {
	return refactor.Event{}, false, nil
}

func (b *failingBus) Ping(context.Context) error { return errors.New("broker down") }

func (b *failingBus) Close() error { return nil }

func TestSinkSwallowsPublishErrors(t *testing.T) {
	b := &failingBus{}
	sink := NewSink(b, logger.NewNop())

	sink.Publish(context.Background(), refactor.Event{Type: refactor.EventJobStarted})
	sink.Publish(context.Background(), refactor.Event{Type: refactor.EventJobFinished})

	if b.calls != 2 {
		t.Fatalf("publish calls: want=2 got=%d", b.calls)
	}
}

// recordingBus fails like a connection pool once its context is done.
type recordingBus struct {
	failingBus
	got []refactor.Event
}

func (b *recordingBus) Publish(ctx context.Context, ev refactor.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("publish without deadline")
	}
	b.got = append(b.got, ev)
	return nil
}

func TestSinkPublishesAfterJobCancel(t *testing.T) {
	b := &recordingBus{}
	sink := NewSink(b, logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	outcome := refactor.CategoryOutcome{Category: "France", Status: refactor.StatusFailed, ErrorKind: refactor.KindCanceled}
	sink.Publish(ctx, refactor.Event{Type: refactor.EventCategoryFinished, RunID: "run-9", Category: "France", Outcome: &outcome})
	sink.Publish(ctx, refactor.Event{Type: refactor.EventJobFinished, RunID: "run-9"})

	if len(b.got) != 2 {
		t.Fatalf("published events: want=2 got=%d", len(b.got))
	}
	if b.got[1].Type != refactor.EventJobFinished {
		t.Fatalf("last event: want=%s got=%s", refactor.EventJobFinished, b.got[1].Type)
	}
}

func TestNewRedisBusRequiresAddress(t *testing.T) {
	if _, err := NewRedisBus(logger.NewNop(), config.EventsConfig{}); err == nil {
		t.Fatalf("expected error without address")
	}
}

func TestRedisBusRoundTrip(t *testing.T) {
	addr := strings.TrimSpace(os.Getenv("TEST_REDIS_ADDR"))
	if addr == "" {
		t.Skip("set TEST_REDIS_ADDR to run Redis integration tests")
	}

	b, err := NewRedisBus(logger.NewNop(), config.EventsConfig{RedisAddr: addr, RedisChannel: "categorylink-it-" + uuid.NewString()})
	if err != nil {
		t.Fatalf("NewRedisBus: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	got := make(chan refactor.Event, 1)
	if err := b.StartForwarder(ctx, func(ev refactor.Event) { got <- ev }); err != nil {
		t.Fatalf("StartForwarder: %v", err)
	}

	sent := refactor.Event{
		Type:     refactor.EventBatchCompleted,
		RunID:    "run-1",
		Category: "France",
		Batch:    2,
		Result:   &refactor.MutationResult{EdgesCreated: 2000},
	}
	if err := b.Publish(ctx, sent); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case ev := <-got:
		if ev.Category != "France" || ev.Batch != 2 || ev.Result == nil || ev.Result.EdgesCreated != 2000 {
			t.Fatalf("received event: %+v", ev)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for forwarded event")
	}

	last, ok, err := b.Last(ctx)
	if err != nil || !ok {
		t.Fatalf("Last: ok=%v err=%v", ok, err)
	}
	if last.RunID != "run-1" || last.Batch != 2 {
		t.Fatalf("last event: %+v", last)
	}
	if err := b.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}
