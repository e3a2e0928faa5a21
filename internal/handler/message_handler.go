package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/JuliaRakitina/ai-email-sorter/internal/repository"
	"github.com/JuliaRakitina/ai-email-sorter/internal/service"
)

type MessageHandler struct {
	sorter   *service.SorterService
	accounts *service.AccountService
}

func NewMessageHandler(sorter *service.SorterService, accounts *service.AccountService) *MessageHandler {
	return &MessageHandler{sorter: sorter, accounts: accounts}
}

// Get handles GET /messages/:id, the full detail view including the
// stored body.
func (h *MessageHandler) Get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}

	record, err := h.sorter.GetMessage(c.Request.Context(), id)
	if err != nil {
		if repository.IsNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load message"})
		}
		return
	}

	account, err := h.accounts.GetAccount(c.Request.Context(), record.AccountID)
	if err != nil || account.UserID != c.GetInt64("user_id") || record.DeletedAt != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":                 record.ID,
		"account_email":      account.Email,
		"category_id":        record.CategoryID,
		"from":               record.FromEmail,
		"subject":            record.Subject,
		"summary":            record.Summary,
		"body_text":          record.BodyText,
		"body_html":          record.BodyHTML,
		"received_at":        record.ReceivedAt,
		"unsubscribe_status": record.UnsubscribeStatus,
		"unsubscribe_method": record.UnsubscribeMethod,
	})
}
