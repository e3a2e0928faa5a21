package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/JuliaRakitina/ai-email-sorter/internal/model"
	"github.com/JuliaRakitina/ai-email-sorter/internal/repository"
	"github.com/JuliaRakitina/ai-email-sorter/internal/service"
)

type CategoryHandler struct {
	sorter   *service.SorterService
	accounts *service.AccountService
}

func NewCategoryHandler(sorter *service.SorterService, accounts *service.AccountService) *CategoryHandler {
	return &CategoryHandler{sorter: sorter, accounts: accounts}
}

// Create handles POST /categories.
func (h *CategoryHandler) Create(c *gin.Context) {
	var req struct {
		AccountID   int64  `json:"account_id"`
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	userID := c.GetInt64("user_id")
	account, err := h.accounts.GetAccount(c.Request.Context(), req.AccountID)
	if err != nil || account.UserID != userID {
		c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
		return
	}

	category, err := h.sorter.CreateCategory(c.Request.Context(), userID, req.AccountID, req.Name, req.Description)
	if err != nil {
		if repository.Kind(err) == repository.KindConstraint {
			c.JSON(http.StatusConflict, gin.H{"error": "category already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create category"})
		return
	}
	c.JSON(http.StatusCreated, categoryJSON(category))
}

// List handles GET /accounts/:id/categories.
func (h *CategoryHandler) List(c *gin.Context) {
	accountID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid account id"})
		return
	}
	account, err := h.accounts.GetAccount(c.Request.Context(), accountID)
	if err != nil || account.UserID != c.GetInt64("user_id") {
		c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
		return
	}

	categories, err := h.sorter.ListCategories(c.Request.Context(), accountID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list categories"})
		return
	}

	out := make([]gin.H, 0, len(categories))
	for i := range categories {
		out = append(out, categoryJSON(&categories[i]))
	}
	c.JSON(http.StatusOK, gin.H{"categories": out})
}

// Delete handles DELETE /categories/:id.
func (h *CategoryHandler) Delete(c *gin.Context) {
	category, ok := h.ownedCategory(c)
	if !ok {
		return
	}
	if category.IsSystem {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot delete the default category"})
		return
	}
	if err := h.sorter.DeleteCategory(c.Request.Context(), category.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete category"})
		return
	}
	c.Status(http.StatusNoContent)
}

// Messages handles GET /categories/:id/messages.
func (h *CategoryHandler) Messages(c *gin.Context) {
	category, ok := h.ownedCategory(c)
	if !ok {
		return
	}

	records, err := h.sorter.ListMessages(c.Request.Context(), category.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list messages"})
		return
	}

	out := make([]gin.H, 0, len(records))
	for i := range records {
		m := &records[i]
		out = append(out, gin.H{
			"id":          m.ID,
			"from":        m.FromEmail,
			"subject":     m.Subject,
			"summary":     m.Summary,
			"snippet":     m.Snippet,
			"received_at": m.ReceivedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"messages": out})
}

// Bulk handles POST /categories/:id/bulk with {"action": "delete" |
// "unsubscribe", "message_ids": [...]}. Unsubscribes run on the worker,
// so that path answers 202.
func (h *CategoryHandler) Bulk(c *gin.Context) {
	category, ok := h.ownedCategory(c)
	if !ok {
		return
	}

	var req struct {
		Action     string  `json:"action"`
		MessageIDs []int64 `json:"message_ids"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || len(req.MessageIDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	ids, err := h.filterToCategory(c, category.ID, req.MessageIDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	switch req.Action {
	case "delete":
		deleted, err := h.sorter.BulkDelete(c.Request.Context(), ids)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "bulk delete failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": deleted})
	case "unsubscribe":
		queued, err := h.sorter.RequestUnsubscribe(c.Request.Context(), ids)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to queue unsubscribes"})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"queued": queued})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown action"})
	}
}

// UnsubscribeStatus handles GET /categories/:id/unsubscribe-status, the
// polling companion to the SSE stream.
func (h *CategoryHandler) UnsubscribeStatus(c *gin.Context) {
	category, ok := h.ownedCategory(c)
	if !ok {
		return
	}

	statuses, err := h.sorter.UnsubscribeStatuses(c.Request.Context(), category.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load statuses"})
		return
	}

	out := make([]gin.H, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, gin.H{
			"message_id": s.MessageID,
			"status":     s.Status,
			"method":     s.Method,
			"url":        s.URL,
			"error":      s.Error,
		})
	}
	c.JSON(http.StatusOK, gin.H{"statuses": out})
}

// filterToCategory drops ids that are not live members of the category,
// so bulk actions cannot reach into other users' mail.
func (h *CategoryHandler) filterToCategory(c *gin.Context, categoryID int64, ids []int64) ([]int64, error) {
	filtered := make([]int64, 0, len(ids))
	for _, id := range ids {
		record, err := h.sorter.GetMessage(c.Request.Context(), id)
		if err != nil {
			if repository.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		if record.CategoryID != nil && *record.CategoryID == categoryID && record.DeletedAt == nil {
			filtered = append(filtered, id)
		}
	}
	return filtered, nil
}

func (h *CategoryHandler) ownedCategory(c *gin.Context) (*model.Category, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid category id"})
		return nil, false
	}

	category, err := h.sorter.GetCategory(c.Request.Context(), id)
	if err != nil {
		if repository.IsNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "category not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load category"})
		}
		return nil, false
	}
	if category.UserID != c.GetInt64("user_id") {
		c.JSON(http.StatusNotFound, gin.H{"error": "category not found"})
		return nil, false
	}
	return category, true
}

func categoryJSON(category *model.Category) gin.H {
	return gin.H{
		"id":          category.ID,
		"account_id":  category.AccountID,
		"name":        category.Name,
		"description": category.Description,
		"is_system":   category.IsSystem,
	}
}
