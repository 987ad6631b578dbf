package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/yungbote/categorylink/internal/platform/logger"
	"github.com/yungbote/categorylink/internal/refactor"
)

func mustTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	t.Cleanup(log.Sync)
	return log
}

func recvEvent(t *testing.T, ch <-chan refactor.Event, timeout time.Duration) refactor.Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(timeout):
		t.Fatalf("timed out waiting for SSE event")
	}
	return refactor.Event{}
}

func TestSSEHubOrderingAndReconnect(t *testing.T) {
	hub := NewSSEHub(mustTestLogger(t))
	clientA := hub.NewSSEClient("")

	hub.Publish(context.Background(), refactor.Event{Type: refactor.EventCategoryStarted, Category: "France"})
	hub.Publish(context.Background(), refactor.Event{Type: refactor.EventBatchCompleted, Category: "France", Batch: 1})

	if got := recvEvent(t, clientA.Outbound, time.Second); got.Type != refactor.EventCategoryStarted {
		t.Fatalf("first event: want=%s got=%s", refactor.EventCategoryStarted, got.Type)
	}
	if got := recvEvent(t, clientA.Outbound, time.Second); got.Type != refactor.EventBatchCompleted {
		t.Fatalf("second event: want=%s got=%s", refactor.EventBatchCompleted, got.Type)
	}

	hub.CloseClient(clientA)
	select {
	case _, ok := <-clientA.Outbound:
		if ok {
			t.Fatalf("clientA outbound should be closed after disconnect")
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timed out waiting for clientA channel close")
	}
	hub.CloseClient(clientA)
	if hub.Clients() != 0 {
		t.Fatalf("clients: want=0 got=%d", hub.Clients())
	}

	clientB := hub.NewSSEClient("")
	hub.Broadcast(refactor.Event{Type: refactor.EventJobFinished})
	if got := recvEvent(t, clientB.Outbound, time.Second); got.Type != refactor.EventJobFinished {
		t.Fatalf("reconnect event: want=%s got=%s", refactor.EventJobFinished, got.Type)
	}
}

func TestSSEHubRunFilterAndDrop(t *testing.T) {
	hub := NewSSEHub(mustTestLogger(t))
	scoped := hub.NewSSEClient("run-a")

	hub.Broadcast(refactor.Event{Type: refactor.EventJobStarted, RunID: "run-b"})
	hub.Broadcast(refactor.Event{Type: refactor.EventJobStarted, RunID: "run-a"})

	if got := recvEvent(t, scoped.Outbound, time.Second); got.RunID != "run-a" {
		t.Fatalf("scoped client received run %q", got.RunID)
	}

	for i := 0; i < outboundBuffer+10; i++ {
		hub.Broadcast(refactor.Event{Type: refactor.EventBatchCompleted, RunID: "run-a", Batch: i + 1})
	}
	if n := len(scoped.Outbound); n != outboundBuffer {
		t.Fatalf("buffered events: want=%d got=%d", outboundBuffer, n)
	}
}
