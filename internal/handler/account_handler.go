package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/JuliaRakitina/ai-email-sorter/internal/mq"
	"github.com/JuliaRakitina/ai-email-sorter/internal/repository"
	"github.com/JuliaRakitina/ai-email-sorter/internal/service"
)

type publisher interface {
	Publish(routingKey string, payload any) error
}

type AccountHandler struct {
	accounts  *service.AccountService
	publisher publisher
}

func NewAccountHandler(accounts *service.AccountService, pub publisher) *AccountHandler {
	return &AccountHandler{accounts: accounts, publisher: pub}
}

// List handles GET /accounts.
func (h *AccountHandler) List(c *gin.Context) {
	userID := c.GetInt64("user_id")

	accounts, err := h.accounts.ListAccounts(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list accounts"})
		return
	}

	out := make([]gin.H, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, gin.H{
			"id":           a.ID,
			"email":        a.Email,
			"last_sync_at": a.LastSyncAt,
			"watch_active": a.WatchActive,
		})
	}
	c.JSON(http.StatusOK, gin.H{"accounts": out})
}

// Disconnect handles DELETE /accounts/:id. Everything ingested from the
// mailbox goes with it.
func (h *AccountHandler) Disconnect(c *gin.Context) {
	account, ok := h.ownedAccount(c)
	if !ok {
		return
	}
	if err := h.accounts.Disconnect(c.Request.Context(), account); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to disconnect account"})
		return
	}
	c.Status(http.StatusNoContent)
}

// Sync handles POST /accounts/:id/sync. The sync runs on the worker; the
// client follows progress over SSE.
func (h *AccountHandler) Sync(c *gin.Context) {
	account, ok := h.ownedAccount(c)
	if !ok {
		return
	}
	err := h.publisher.Publish(mq.KeySyncRequested, mq.SyncRequestedPayload{AccountID: account})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to queue sync"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
}

// RenewWatch handles POST /accounts/:id/watch. Gmail watches expire
// after about a week and need re-registration.
func (h *AccountHandler) RenewWatch(c *gin.Context) {
	account, ok := h.ownedAccount(c)
	if !ok {
		return
	}
	if err := h.accounts.RegisterWatch(c.Request.Context(), account); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to register watch"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "watching"})
}

// ownedAccount parses :id and enforces that the account belongs to the
// session user. Responds and returns false otherwise.
func (h *AccountHandler) ownedAccount(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid account id"})
		return 0, false
	}

	account, err := h.accounts.GetAccount(c.Request.Context(), id)
	if err != nil {
		if repository.IsNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load account"})
		}
		return 0, false
	}
	if account.UserID != c.GetInt64("user_id") {
		c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
		return 0, false
	}
	return id, true
}
