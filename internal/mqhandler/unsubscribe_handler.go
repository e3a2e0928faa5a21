package mqhandler

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/JuliaRakitina/ai-email-sorter/internal/mq"
	"github.com/JuliaRakitina/ai-email-sorter/internal/service"
)

type UnsubscribeHandler struct {
	svc    *service.UnsubscribeService
	logger *zap.Logger
}

func NewUnsubscribeHandler(svc *service.UnsubscribeService, logger *zap.Logger) *UnsubscribeHandler {
	return &UnsubscribeHandler{svc: svc, logger: logger}
}

// HandleUnsubscribeRequested runs one queued unsubscribe. The service
// persists a terminal status for every discovered outcome, so this is
// safe to redeliver.
func (h *UnsubscribeHandler) HandleUnsubscribeRequested(ctx context.Context, raw json.RawMessage) error {
	var p mq.UnsubscribeRequestedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.logger.Error("failed to unmarshal unsubscribe payload", zap.Error(err))
		// Malformed payloads will never parse; do not requeue.
		return nil
	}

	h.logger.Info("processing unsubscribe request", zap.Int64("message_id", p.MessageID))
	return h.svc.Process(ctx, p.MessageID)
}
