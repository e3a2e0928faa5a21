package mqhandler

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/JuliaRakitina/ai-email-sorter/internal/mq"
	"github.com/JuliaRakitina/ai-email-sorter/internal/service"
)

type SyncHandler struct {
	svc    *service.SyncService
	logger *zap.Logger
}

func NewSyncHandler(svc *service.SyncService, logger *zap.Logger) *SyncHandler {
	return &SyncHandler{svc: svc, logger: logger}
}

// HandleSyncRequested syncs one account. Push notifications carry a
// history id and run incrementally; manual requests run in query mode.
// Ingestion dedups on (account, message id), so redelivery is safe.
func (h *SyncHandler) HandleSyncRequested(ctx context.Context, raw json.RawMessage) error {
	var p mq.SyncRequestedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.logger.Error("failed to unmarshal sync payload", zap.Error(err))
		return nil
	}

	var (
		res *service.SyncResult
		err error
	)
	if p.HistoryID != "" {
		res, err = h.svc.SyncHistory(ctx, p.AccountID)
	} else {
		res, err = h.svc.SyncQuery(ctx, p.AccountID)
	}
	if err != nil {
		h.logger.Error("sync failed",
			zap.Int64("account_id", p.AccountID), zap.Error(err))
		return err
	}

	h.logger.Info("sync finished",
		zap.Int64("account_id", p.AccountID),
		zap.Int("staged", res.Staged),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", res.Failed),
		zap.Int("dropped", res.Dropped))
	return nil
}
