package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/categorylink/internal/platform/logger"
	"github.com/yungbote/categorylink/internal/refactor"
)

const outboundBuffer = 64

// SSEHub fans refactor events out to connected SSE clients. It is a refactor.Sink;
// a slow client loses events instead of stalling the batch loop.
type SSEHub struct {
	mu      sync.RWMutex
	logger  *logger.Logger
	clients map[*SSEClient]bool

	heartbeat time.Duration
}

var _ refactor.Sink = (*SSEHub)(nil)

func NewSSEHub(log *logger.Logger) *SSEHub {
	return &SSEHub{
		logger:    log.With("component", "SSEHub"),
		clients:   make(map[*SSEClient]bool),
		heartbeat: 15 * time.Second,
	}
}

// NewSSEClient registers a client. A non-empty runID limits it to that run's events.
func (hub *SSEHub) NewSSEClient(runID string) *SSEClient {
	c := &SSEClient{
		ID:       uuid.New(),
		RunID:    strings.TrimSpace(runID),
		Outbound: make(chan refactor.Event, outboundBuffer),
		done:     make(chan struct{}),
	}
	c.Logger = hub.logger.With("clientID", c.ID.String())

	hub.mu.Lock()
	hub.clients[c] = true
	hub.mu.Unlock()

	hub.logger.Debug("SSE client connected", "clientID", c.ID, "run_id", c.RunID)
	return c
}

func (hub *SSEHub) Publish(_ context.Context, ev refactor.Event) {
	hub.Broadcast(ev)
}

func (hub *SSEHub) Broadcast(ev refactor.Event) {
	hub.mu.RLock()
	defer hub.mu.RUnlock()

	for c := range hub.clients {
		if c.RunID != "" && ev.RunID != "" && c.RunID != ev.RunID {
			continue
		}
		select {
		case c.Outbound <- ev:
		default:
			hub.logger.Warn("Dropping SSE event; outbound buffer full", "clientID", c.ID, "type", ev.Type)
		}
	}
}

func (hub *SSEHub) Clients() int {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	return len(hub.clients)
}

func (hub *SSEHub) ServeHTTP(w http.ResponseWriter, r *http.Request, client *SSEClient) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported!", http.StatusInternalServerError)
		return
	}
	ctx := r.Context()
	flusher.Flush()

	heartbeat := time.NewTicker(hub.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			hub.logger.Debug("SSE client context done", "clientID", client.ID, "err", ctx.Err())
			return
		case <-client.done:
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case ev, ok := <-client.Outbound:
			if !ok {
				return
			}
			raw, err := json.Marshal(ev)
			if err != nil {
				hub.logger.Warn("Failed to marshal SSE event", "error", err)
				continue
			}
			_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, raw)
			flusher.Flush()
		}
	}
}

func (hub *SSEHub) CloseClient(client *SSEClient) {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	if !hub.clients[client] {
		return
	}
	delete(hub.clients, client)
	close(client.done)
	close(client.Outbound)
	hub.logger.Debug("SSE client disconnected", "clientID", client.ID)
}
