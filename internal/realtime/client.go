package realtime

import (
	"github.com/google/uuid"

	"github.com/yungbote/categorylink/internal/platform/logger"
	"github.com/yungbote/categorylink/internal/refactor"
)

// SSEClient is one connected progress stream. Outbound is closed by CloseClient.
type SSEClient struct {
	ID       uuid.UUID
	RunID    string
	Outbound chan refactor.Event
	done     chan struct{}
	Logger   *logger.Logger
}
