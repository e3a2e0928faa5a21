package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/JuliaRakitina/ai-email-sorter/internal/broadcast"
	"github.com/JuliaRakitina/ai-email-sorter/internal/model"
	"github.com/JuliaRakitina/ai-email-sorter/internal/unsubscribe"
)

type unsubscribeMessageStore interface {
	FindByID(ctx context.Context, id int64) (*model.EmailRecord, error)
	UpdateUnsubscribeTarget(ctx context.Context, id int64, url string) error
	UpdateUnsubscribeOutcome(ctx context.Context, id int64, status, method, errMsg string) error
}

type unsubscribeAccountStore interface {
	FindByID(ctx context.Context, id int64) (*model.Account, error)
}

// attempter abstracts the HTTP side of an unsubscribe for tests.
type attempter interface {
	Attempt(ctx context.Context, target *unsubscribe.Target, email string) unsubscribe.Outcome
}

// UnsubscribeService processes one unsubscribe request end to end:
// discover a target from headers or body, execute it, persist the
// outcome.
type UnsubscribeService struct {
	messages  unsubscribeMessageStore
	accounts  unsubscribeAccountStore
	resolver  gatewayResolver
	attempter attempter
	events    Notifier
	logger    *zap.Logger
}

func NewUnsubscribeService(
	messages unsubscribeMessageStore,
	accounts unsubscribeAccountStore,
	resolver gatewayResolver,
	att attempter,
	events Notifier,
	logger *zap.Logger,
) *UnsubscribeService {
	return &UnsubscribeService{
		messages:  messages,
		accounts:  accounts,
		resolver:  resolver,
		attempter: att,
		events:    events,
		logger:    logger,
	}
}

// Process handles one queued unsubscribe request. Every path that
// reaches discovery ends in a persisted terminal status; only storage
// and mailbox access failures surface as errors (and requeue).
func (s *UnsubscribeService) Process(ctx context.Context, messageID int64) error {
	record, err := s.messages.FindByID(ctx, messageID)
	if err != nil {
		return err
	}
	account, err := s.accounts.FindByID(ctx, record.AccountID)
	if err != nil {
		return err
	}
	gw, err := s.resolver.Resolve(ctx, account)
	if err != nil {
		return err
	}

	headers, err := gw.GetMetadata(ctx, record.GmailMessageID,
		"List-Unsubscribe", "List-Unsubscribe-Post")
	if err != nil {
		return err
	}

	bodyHTML := record.BodyHTML
	if bodyHTML == "" {
		// Records ingested before body storage existed; refetch.
		if full, err := gw.GetFullMessage(ctx, record.GmailMessageID); err == nil {
			bodyHTML = full.BodyHTML
		} else {
			s.logger.Warn("failed to refetch body for unsubscribe",
				zap.Int64("message_id", messageID), zap.Error(err))
		}
	}

	target := unsubscribe.Discover(headers, bodyHTML)
	if target == nil {
		return s.finish(ctx, messageID, unsubscribe.Outcome{
			Status: unsubscribe.StatusNoTarget,
			Error:  "No unsubscribe URL found",
		})
	}

	// Persist the target first so a crash mid-attempt leaves a trail.
	if err := s.messages.UpdateUnsubscribeTarget(ctx, messageID, target.URL); err != nil {
		return err
	}

	out := s.attempter.Attempt(ctx, target, account.Email)
	s.logger.Info("unsubscribe attempt finished",
		zap.Int64("message_id", messageID),
		zap.String("status", out.Status),
		zap.String("method", out.Method))

	return s.finish(ctx, messageID, out)
}

func (s *UnsubscribeService) finish(ctx context.Context, messageID int64, out unsubscribe.Outcome) error {
	if err := s.messages.UpdateUnsubscribeOutcome(ctx, messageID, out.Status, out.Method, out.Error); err != nil {
		return err
	}
	s.events.Publish(broadcast.Event{
		Type: "unsubscribe.updated",
		Data: map[string]any{
			"message_id": messageID,
			"status":     out.Status,
			"method":     out.Method,
		},
	})
	return nil
}
