package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/categorylink/internal/platform/logger"
	"github.com/yungbote/categorylink/internal/realtime"
)

type RealtimeHandler struct {
	Log *logger.Logger
	Hub *realtime.SSEHub
}

func NewRealtimeHandler(log *logger.Logger, hub *realtime.SSEHub) *RealtimeHandler {
	return &RealtimeHandler{Log: log, Hub: hub}
}

// GET /events?run_id=...
// Streams refactor events as SSE. Without run_id the client receives every run.
func (h *RealtimeHandler) SSEStream(c *gin.Context) {
	runID := strings.TrimSpace(c.Query("run_id"))
	client := h.Hub.NewSSEClient(runID)
	h.Log.Info("SSEStream open", "client_id", client.ID.String(), "run_id", runID)

	h.Hub.ServeHTTP(c.Writer, c.Request, client)

	h.Hub.CloseClient(client)
}
