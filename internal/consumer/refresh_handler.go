package consumer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"example.com/performance/internal/domain"
	"example.com/performance/internal/events"
)

// Refresher recomputes and persists the leaderboard.
type Refresher interface {
	Refresh(ctx context.Context) (*domain.RefreshResult, error)
}

// RefreshHandler recomputes the leaderboard whenever a change event arrives.
// Events published before the start of the last successful refresh are
// already reflected in it and are skipped.
type RefreshHandler struct {
	refresher Refresher
	logger    *slog.Logger
	clock     func() time.Time

	mu        sync.Mutex
	lastStart time.Time
}

// NewRefreshHandler constructs a handler backed by refresher.
func NewRefreshHandler(refresher Refresher, logger *slog.Logger) *RefreshHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RefreshHandler{refresher: refresher, logger: logger, clock: time.Now}
}

var _ Handler = (*RefreshHandler)(nil)

// Handle implements Handler.
func (h *RefreshHandler) Handle(ctx context.Context, msg Message) error {
	if !events.IsKnown(msg.EventType) {
		recordSkipped(skipUnknownType)
		h.logger.Debug("ignoring event", slog.String("event_type", msg.EventType))
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if !msg.Timestamp.IsZero() && msg.Timestamp.Before(h.lastStart) {
		recordSkipped(skipCovered)
		return nil
	}

	start := h.clock()
	if _, err := h.refresher.Refresh(ctx); err != nil {
		return err
	}
	h.lastStart = start
	return nil
}
