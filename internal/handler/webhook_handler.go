package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/JuliaRakitina/ai-email-sorter/internal/mq"
	"github.com/JuliaRakitina/ai-email-sorter/internal/pubsub"
	"github.com/JuliaRakitina/ai-email-sorter/internal/repository"
	"github.com/JuliaRakitina/ai-email-sorter/internal/util"
)

// WebhookHandler receives Gmail push notifications from Pub/Sub,
// verifies them and queues incremental syncs.
type WebhookHandler struct {
	verifier  *pubsub.Verifier
	deduper   *util.Deduper
	accounts  *repository.AccountRepository
	publisher publisher
	logger    *zap.Logger
}

func NewWebhookHandler(
	verifier *pubsub.Verifier,
	deduper *util.Deduper,
	accounts *repository.AccountRepository,
	pub publisher,
	logger *zap.Logger,
) *WebhookHandler {
	return &WebhookHandler{
		verifier:  verifier,
		deduper:   deduper,
		accounts:  accounts,
		publisher: pub,
		logger:    logger,
	}
}

// HandlePush handles POST /webhooks/pubsub. Unknown mailboxes and
// duplicate notifications are acked so Pub/Sub stops redelivering them;
// only transport problems get a retryable status.
func (h *WebhookHandler) HandlePush(c *gin.Context) {
	token := util.ExtractToken(c.Request)
	if err := h.verifier.Verify(c.Request.Context(), token); err != nil {
		h.logger.Warn("rejected pubsub push", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var env pubsub.PushEnvelope
	if err := c.ShouldBindJSON(&env); err != nil {
		// Not retryable; ack it away.
		c.Status(http.StatusNoContent)
		return
	}
	notification, err := pubsub.DecodeNotification(&env)
	if err != nil {
		h.logger.Warn("undecodable push notification", zap.Error(err))
		c.Status(http.StatusNoContent)
		return
	}

	historyID := strconv.FormatUint(notification.HistoryID, 10)
	if !h.deduper.AcquireOnce(c.Request.Context(), "pubsub:"+notification.EmailAddress, historyID) {
		c.Status(http.StatusNoContent)
		return
	}

	account, err := h.accounts.FindByEmail(c.Request.Context(), notification.EmailAddress)
	if err != nil {
		if repository.IsNotFound(err) {
			// Watch outlived the account; nothing to sync.
			c.Status(http.StatusNoContent)
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}

	err = h.publisher.Publish(mq.KeySyncRequested, mq.SyncRequestedPayload{
		AccountID: account.ID,
		HistoryID: historyID,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to queue sync"})
		return
	}

	h.logger.Info("queued push sync",
		zap.String("email", notification.EmailAddress),
		zap.String("history_id", historyID))
	c.Status(http.StatusNoContent)
}
