package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JuliaRakitina/ai-email-sorter/internal/gmail"
	"github.com/JuliaRakitina/ai-email-sorter/internal/model"
	"github.com/JuliaRakitina/ai-email-sorter/internal/mq"
	"github.com/JuliaRakitina/ai-email-sorter/internal/repository"
)

type categoryAdminStore interface {
	Create(ctx context.Context, c *model.Category) (*model.Category, error)
	FindByID(ctx context.Context, id int64) (*model.Category, error)
	ListByAccount(ctx context.Context, accountID int64) ([]model.Category, error)
	Delete(ctx context.Context, id int64) error
	EnsureDefaultCategory(ctx context.Context, userID, accountID int64) (*model.Category, error)
}

type eventPublisher interface {
	Publish(routingKey string, payload any) error
}

// SorterService is the API-facing surface: category management, sorted
// views and bulk actions over stored emails.
type SorterService struct {
	categories categoryAdminStore
	messages   *repository.MessageRepository
	accounts   unsubscribeAccountStore
	resolver   gatewayResolver
	publisher  eventPublisher
	logger     *zap.Logger
}

func NewSorterService(
	categories categoryAdminStore,
	messages *repository.MessageRepository,
	accounts unsubscribeAccountStore,
	resolver gatewayResolver,
	publisher eventPublisher,
	logger *zap.Logger,
) *SorterService {
	return &SorterService{
		categories: categories,
		messages:   messages,
		accounts:   accounts,
		resolver:   resolver,
		publisher:  publisher,
		logger:     logger,
	}
}

func (s *SorterService) CreateCategory(ctx context.Context, userID, accountID int64, name, description string) (*model.Category, error) {
	if name == "" {
		return nil, fmt.Errorf("category name is required")
	}
	return s.categories.Create(ctx, &model.Category{
		UserID:      userID,
		AccountID:   accountID,
		Name:        name,
		Description: description,
	})
}

func (s *SorterService) GetCategory(ctx context.Context, id int64) (*model.Category, error) {
	return s.categories.FindByID(ctx, id)
}

func (s *SorterService) ListCategories(ctx context.Context, accountID int64) ([]model.Category, error) {
	return s.categories.ListByAccount(ctx, accountID)
}

// DeleteCategory removes a user category. Its emails move to the
// account's default bucket first; the default bucket itself cannot be
// deleted.
func (s *SorterService) DeleteCategory(ctx context.Context, id int64) error {
	category, err := s.categories.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if category.IsSystem {
		return fmt.Errorf("cannot delete the default category")
	}

	fallback, err := s.categories.EnsureDefaultCategory(ctx, category.UserID, category.AccountID)
	if err != nil {
		return err
	}
	if err := s.messages.ReassignCategory(ctx, id, fallback.ID); err != nil {
		return err
	}
	return s.categories.Delete(ctx, id)
}

func (s *SorterService) ListMessages(ctx context.Context, categoryID int64) ([]model.EmailRecord, error) {
	return s.messages.ListByCategory(ctx, categoryID)
}

func (s *SorterService) GetMessage(ctx context.Context, id int64) (*model.EmailRecord, error) {
	return s.messages.FindByID(ctx, id)
}

// BulkDelete trashes the messages in Gmail and soft-deletes the records.
// A mailbox failure on one message does not stop the rest, and the
// record is hidden either way.
func (s *SorterService) BulkDelete(ctx context.Context, ids []int64) (int, error) {
	gateways := map[int64]gmail.Gateway{}
	deleted := 0

	for _, id := range ids {
		record, err := s.messages.FindByID(ctx, id)
		if err != nil {
			if repository.IsNotFound(err) {
				continue
			}
			return deleted, err
		}

		gw, ok := gateways[record.AccountID]
		if !ok {
			account, err := s.accounts.FindByID(ctx, record.AccountID)
			if err != nil {
				return deleted, err
			}
			gw, err = s.resolver.Resolve(ctx, account)
			if err != nil {
				return deleted, err
			}
			gateways[record.AccountID] = gw
		}

		if err := gw.Trash(ctx, record.GmailMessageID); err != nil {
			s.logger.Warn("failed to trash message in mailbox",
				zap.Int64("message_id", id), zap.Error(err))
		}
		if err := s.messages.SoftDelete(ctx, id, time.Now().UTC()); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

// RequestUnsubscribe queues one unsubscribe job per message and returns
// how many were queued.
func (s *SorterService) RequestUnsubscribe(ctx context.Context, ids []int64) (int, error) {
	queued := 0
	for _, id := range ids {
		if _, err := s.messages.FindByID(ctx, id); err != nil {
			if repository.IsNotFound(err) {
				continue
			}
			return queued, err
		}
		err := s.publisher.Publish(mq.KeyUnsubscribeRequested, mq.UnsubscribeRequestedPayload{MessageID: id})
		if err != nil {
			return queued, err
		}
		queued++
	}
	return queued, nil
}

// UnsubscribeStatuses is the polling view for bulk unsubscribe progress.
func (s *SorterService) UnsubscribeStatuses(ctx context.Context, categoryID int64) ([]repository.UnsubscribeStatusRow, error) {
	return s.messages.ListUnsubscribeStatuses(ctx, categoryID)
}
