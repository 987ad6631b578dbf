package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/categorylink/internal/http/response"
	"github.com/yungbote/categorylink/internal/refactor"
)

type ProgressHandler struct {
	tracker *refactor.Tracker
}

func NewProgressHandler(tracker *refactor.Tracker) *ProgressHandler {
	return &ProgressHandler{tracker: tracker}
}

// GET /progress
func (h *ProgressHandler) GetProgress(c *gin.Context) {
	response.RespondOK(c, gin.H{"progress": h.tracker.Snapshot()})
}
