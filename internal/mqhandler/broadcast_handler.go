package mqhandler

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/JuliaRakitina/ai-email-sorter/internal/broadcast"
)

// BroadcastHandler feeds relayed worker events into the API server's
// SSE broadcaster.
type BroadcastHandler struct {
	events *broadcast.Broadcaster
	logger *zap.Logger
}

func NewBroadcastHandler(events *broadcast.Broadcaster, logger *zap.Logger) *BroadcastHandler {
	return &BroadcastHandler{events: events, logger: logger}
}

func (h *BroadcastHandler) HandleEvent(ctx context.Context, raw json.RawMessage) error {
	var evt broadcast.Event
	if err := json.Unmarshal(raw, &evt); err != nil {
		h.logger.Warn("undecodable broadcast event", zap.Error(err))
		return nil
	}
	h.events.Publish(evt)
	return nil
}
