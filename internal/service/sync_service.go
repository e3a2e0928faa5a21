package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/JuliaRakitina/ai-email-sorter/internal/ai"
	"github.com/JuliaRakitina/ai-email-sorter/internal/broadcast"
	"github.com/JuliaRakitina/ai-email-sorter/internal/config"
	"github.com/JuliaRakitina/ai-email-sorter/internal/gmail"
	"github.com/JuliaRakitina/ai-email-sorter/internal/model"
	"github.com/JuliaRakitina/ai-email-sorter/internal/repository"
	"github.com/JuliaRakitina/ai-email-sorter/pkg/metrics"
)

const (
	// Records are committed in batches of this size.
	batchSize = 5
	// Wait before retrying a batch that hit write contention.
	contentionRetryWait = time.Second

	// Query and cap used when an invalid cursor forces a resync.
	fallbackQuery      = "in:inbox newer_than:1d"
	fallbackMaxResults = 10
)

// Store interfaces keep the engine testable with in-memory fakes.

type accountStore interface {
	FindByID(ctx context.Context, id int64) (*model.Account, error)
	UpdateCursor(ctx context.Context, id int64, historyID string) error
	UpdateLastSync(ctx context.Context, id int64, at time.Time) error
}

type categoryStore interface {
	ListByAccount(ctx context.Context, accountID int64) ([]model.Category, error)
	EnsureDefaultCategory(ctx context.Context, userID, accountID int64) (*model.Category, error)
}

type messageStore interface {
	Exists(ctx context.Context, accountID int64, gmailMessageID string) (bool, error)
	InsertBatch(ctx context.Context, records []*model.EmailRecord) error
}

// gatewayResolver turns a stored account into an authenticated Gateway.
type gatewayResolver interface {
	Resolve(ctx context.Context, account *model.Account) (gmail.Gateway, error)
}

// Notifier delivers UI events. In the worker it relays through the
// message queue; the API server fans it out over SSE.
type Notifier interface {
	Publish(evt broadcast.Event)
}

// SyncResult tallies one sync run. Dropped is a subset of Staged:
// those messages went through the pipeline but their batch was
// abandoned after contention, so Staged-Dropped records were committed.
type SyncResult struct {
	Staged  int
	Skipped int
	Failed  int
	Dropped int
}

// SyncService ingests Gmail messages: fetch, categorize, summarize,
// commit in batches, then archive in the mailbox.
type SyncService struct {
	accounts   accountStore
	categories categoryStore
	messages   messageStore
	resolver   gatewayResolver
	ai         ai.Service
	events     Notifier
	cfg        config.SyncConfig
	logger     *zap.Logger

	// Test seam for the contention retry wait.
	sleep func(time.Duration)
}

func NewSyncService(
	accounts accountStore,
	categories categoryStore,
	messages messageStore,
	resolver gatewayResolver,
	aiSvc ai.Service,
	events Notifier,
	cfg config.SyncConfig,
	logger *zap.Logger,
) *SyncService {
	return &SyncService{
		accounts:   accounts,
		categories: categories,
		messages:   messages,
		resolver:   resolver,
		ai:         aiSvc,
		events:     events,
		cfg:        cfg,
		logger:     logger,
		sleep:      time.Sleep,
	}
}

// SyncQuery runs a query-mode sync: list recent inbox messages and
// ingest whatever is not stored yet.
func (s *SyncService) SyncQuery(ctx context.Context, accountID int64) (*SyncResult, error) {
	account, gw, err := s.resolveAccount(ctx, accountID)
	if err != nil {
		metrics.RecordSyncRun("query", "error")
		return nil, err
	}

	ids, err := gw.ListMessageIDs(ctx, s.cfg.Query, int64(s.cfg.MaxResults))
	if err != nil {
		metrics.RecordSyncRun("query", "error")
		return nil, err
	}

	res, err := s.ingest(ctx, account, gw, ids)
	if err != nil {
		metrics.RecordSyncRun("query", "error")
		return nil, err
	}

	if err := s.accounts.UpdateLastSync(ctx, account.ID, time.Now().UTC()); err != nil {
		s.logger.Warn("failed to record last sync time",
			zap.Int64("account_id", account.ID), zap.Error(err))
	}
	metrics.RecordSyncRun("query", "ok")
	return res, nil
}

// SyncHistory runs an incremental sync from the stored cursor. The
// cursor only moves forward; an invalid cursor triggers a bounded
// fallback resync and a cursor re-seed from the mailbox profile. An
// account with no cursor at all is skipped: a bare push notification
// must not bootstrap an ingest.
func (s *SyncService) SyncHistory(ctx context.Context, accountID int64) (*SyncResult, error) {
	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		metrics.RecordSyncRun("history", "error")
		return nil, err
	}

	if account.LastHistoryID == nil || *account.LastHistoryID == "" {
		s.logger.Info("no stored history cursor, skipping",
			zap.Int64("account_id", account.ID))
		metrics.RecordSyncRun("history", "skipped")
		return &SyncResult{}, nil
	}

	gw, err := s.resolver.Resolve(ctx, account)
	if err != nil {
		metrics.RecordSyncRun("history", "error")
		return nil, err
	}

	delta, err := gw.HistoryDelta(ctx, *account.LastHistoryID)
	if err != nil {
		if err == gmail.ErrInvalidCursor {
			return s.fallbackSync(ctx, account, gw)
		}
		metrics.RecordSyncRun("history", "error")
		return nil, err
	}

	res, err := s.ingest(ctx, account, gw, delta.MessageIDs)
	if err != nil {
		metrics.RecordSyncRun("history", "error")
		return nil, err
	}

	s.advanceCursor(ctx, account, delta.NewHistoryID)
	if err := s.accounts.UpdateLastSync(ctx, account.ID, time.Now().UTC()); err != nil {
		s.logger.Warn("failed to record last sync time",
			zap.Int64("account_id", account.ID), zap.Error(err))
	}
	metrics.RecordSyncRun("history", "ok")
	return res, nil
}

// fallbackSync recovers from a lost cursor: ingest a small recent window
// by query, then re-seed the cursor from the mailbox profile so history
// reads work again.
func (s *SyncService) fallbackSync(ctx context.Context, account *model.Account, gw gmail.Gateway) (*SyncResult, error) {
	s.logger.Warn("history cursor invalid, falling back to query resync",
		zap.Int64("account_id", account.ID))

	ids, err := gw.ListMessageIDs(ctx, fallbackQuery, fallbackMaxResults)
	if err != nil {
		metrics.RecordSyncRun("fallback", "error")
		return nil, err
	}

	res, err := s.ingest(ctx, account, gw, ids)
	if err != nil {
		metrics.RecordSyncRun("fallback", "error")
		return nil, err
	}

	profile, err := gw.Profile(ctx)
	if err != nil {
		metrics.RecordSyncRun("fallback", "error")
		return nil, fmt.Errorf("reseed cursor: %w", err)
	}
	if err := s.accounts.UpdateCursor(ctx, account.ID, profile.HistoryID); err != nil {
		metrics.RecordSyncRun("fallback", "error")
		return nil, err
	}

	metrics.RecordSyncRun("fallback", "ok")
	return res, nil
}

// advanceCursor persists the new cursor only when it is numerically
// ahead of the stored one.
func (s *SyncService) advanceCursor(ctx context.Context, account *model.Account, newCursor string) {
	if newCursor == "" {
		return
	}
	next, err := strconv.ParseUint(newCursor, 10, 64)
	if err != nil {
		return
	}
	if account.LastHistoryID != nil {
		if cur, err := strconv.ParseUint(*account.LastHistoryID, 10, 64); err == nil && next <= cur {
			return
		}
	}
	if err := s.accounts.UpdateCursor(ctx, account.ID, newCursor); err != nil {
		s.logger.Error("failed to advance cursor",
			zap.Int64("account_id", account.ID), zap.Error(err))
	}
}

// ingest runs the per-message pipeline over ids in order and commits
// staged records in batches. Per-message failures are contained; only
// storage problems beyond contention abort the run.
func (s *SyncService) ingest(ctx context.Context, account *model.Account, gw gmail.Gateway, ids []string) (*SyncResult, error) {
	res := &SyncResult{}
	if len(ids) == 0 {
		return res, nil
	}

	categories, err := s.categories.ListByAccount(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	fallback, err := s.categories.EnsureDefaultCategory(ctx, account.UserID, account.ID)
	if err != nil {
		return nil, err
	}

	options := make([]ai.CategoryOption, 0, len(categories))
	byName := map[string]int64{}
	for _, c := range categories {
		if c.IsSystem {
			continue
		}
		options = append(options, ai.CategoryOption{Name: c.Name, Description: c.Description})
		byName[c.Name] = c.ID
	}

	batch := []*model.EmailRecord{}
	committed := []string{}

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		dropped, err := s.commitBatch(ctx, batch)
		if err != nil {
			return err
		}
		if dropped {
			res.Dropped += len(batch)
		} else {
			for _, m := range batch {
				committed = append(committed, m.GmailMessageID)
			}
		}
		batch = batch[:0]
		return nil
	}

	for _, id := range ids {
		exists, err := s.messages.Exists(ctx, account.ID, id)
		if err != nil {
			return nil, err
		}
		if exists {
			res.Skipped++
			metrics.RecordEmailProcessed("skipped_duplicate")
			continue
		}

		record, err := s.buildRecord(ctx, account, gw, id, options, byName, fallback.ID)
		if err != nil {
			res.Failed++
			metrics.RecordEmailProcessed("failed")
			s.logger.Error("failed to process message",
				zap.Int64("account_id", account.ID),
				zap.String("gmail_message_id", id),
				zap.Error(err))
			continue
		}

		batch = append(batch, record)
		res.Staged++
		metrics.RecordEmailProcessed("staged")

		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return nil, err
			}
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}

	s.archive(ctx, gw, committed)

	if len(committed) > 0 {
		s.events.Publish(broadcast.Event{
			Type: "emails.synced",
			Data: map[string]any{
				"account_email": account.Email,
				"count":         len(committed),
			},
		})
	}
	return res, nil
}

// buildRecord fetches and enriches one message. AI failures degrade
// (default category, empty summary) instead of failing the message.
func (s *SyncService) buildRecord(
	ctx context.Context,
	account *model.Account,
	gw gmail.Gateway,
	id string,
	options []ai.CategoryOption,
	byName map[string]int64,
	fallbackCategoryID int64,
) (*model.EmailRecord, error) {
	msg, err := gw.GetFullMessage(ctx, id)
	if err != nil {
		return nil, err
	}

	content := ai.EmailContent{
		From:    msg.Headers.Get("From"),
		Subject: msg.Headers.Get("Subject"),
		Body:    msg.BodyText,
	}
	if content.Body == "" {
		content.Body = msg.Snippet
	}

	categoryID := fallbackCategoryID
	if name, err := s.ai.ChooseCategory(ctx, content, options); err != nil {
		s.logger.Warn("categorization failed, using default category",
			zap.String("gmail_message_id", id), zap.Error(err))
	} else if cid, ok := byName[name]; ok {
		categoryID = cid
	}

	summary, err := s.ai.Summarize(ctx, content)
	if err != nil {
		s.logger.Warn("summarization failed",
			zap.String("gmail_message_id", id), zap.Error(err))
		summary = ""
	}

	now := time.Now().UTC()
	return &model.EmailRecord{
		AccountID:      account.ID,
		CategoryID:     &categoryID,
		GmailMessageID: msg.ID,
		ThreadID:       msg.ThreadID,
		FromEmail:      content.From,
		Subject:        content.Subject,
		Snippet:        msg.Snippet,
		BodyText:       msg.BodyText,
		BodyHTML:       msg.BodyHTML,
		Summary:        summary,
		ReceivedAt:     msg.ReceivedAt,
		ArchivedAt:     &now,
	}, nil
}

// commitBatch writes one batch. Contention gets a single delayed retry;
// contention again drops the batch for a later run to pick up. The bool
// result reports a drop.
func (s *SyncService) commitBatch(ctx context.Context, batch []*model.EmailRecord) (bool, error) {
	err := s.messages.InsertBatch(ctx, batch)
	if err == nil {
		metrics.RecordBatchCommit("ok")
		return false, nil
	}
	if !repository.IsContention(err) {
		return false, err
	}

	metrics.RecordBatchCommit("retried")
	s.sleep(contentionRetryWait)

	err = s.messages.InsertBatch(ctx, batch)
	if err == nil {
		metrics.RecordBatchCommit("ok")
		return false, nil
	}
	if !repository.IsContention(err) {
		return false, err
	}

	metrics.RecordBatchCommit("dropped")
	s.logger.Warn("dropping batch after repeated write contention",
		zap.Int("size", len(batch)))
	return true, nil
}

// archive removes committed messages from the inbox. Failures are logged
// only; the records are already durable.
func (s *SyncService) archive(ctx context.Context, gw gmail.Gateway, ids []string) {
	for _, id := range ids {
		if err := gw.Archive(ctx, id); err != nil {
			s.logger.Warn("failed to archive message",
				zap.String("gmail_message_id", id), zap.Error(err))
		}
	}
}

func (s *SyncService) resolveAccount(ctx context.Context, accountID int64) (*model.Account, gmail.Gateway, error) {
	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return nil, nil, err
	}
	gw, err := s.resolver.Resolve(ctx, account)
	if err != nil {
		return nil, nil, err
	}
	return account, gw, nil
}
