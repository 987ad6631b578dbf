package handlers

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/categorylink/internal/http/response"
	"github.com/yungbote/categorylink/internal/services"
)

// RunHistory is the part of the run ledger the status server reads.
type RunHistory interface {
	History(ctx context.Context, limit int) ([]services.RunHistoryEntry, error)
}

type RunHandler struct {
	ledger RunHistory
}

func NewRunHandler(ledger RunHistory) *RunHandler {
	return &RunHandler{ledger: ledger}
}

// GET /runs?limit=10
func (h *RunHandler) ListRuns(c *gin.Context) {
	limit := 10
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 100 {
			response.RespondErr(c, errInvalidLimit)
			return
		}
		limit = n
	}
	runs, err := h.ledger.History(c.Request.Context(), limit)
	if err != nil {
		response.RespondErr(c, ledgerUnavailable(err))
		return
	}
	response.RespondOK(c, gin.H{"runs": runs})
}
