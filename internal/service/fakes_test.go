package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JuliaRakitina/ai-email-sorter/internal/ai"
	"github.com/JuliaRakitina/ai-email-sorter/internal/broadcast"
	"github.com/JuliaRakitina/ai-email-sorter/internal/gmail"
	"github.com/JuliaRakitina/ai-email-sorter/internal/model"
	"github.com/JuliaRakitina/ai-email-sorter/internal/repository"
	"github.com/JuliaRakitina/ai-email-sorter/internal/unsubscribe"
)

func contentionErr() error {
	return &repository.StorageError{Kind: repository.KindContention, Err: errors.New("serialization failure")}
}

func notFoundErr() error {
	return &repository.StorageError{Kind: repository.KindNotFound, Err: errors.New("no rows")}
}

type fakeAccounts struct {
	account       *model.Account
	cursorUpdates []string
	lastSyncSet   bool
}

func (f *fakeAccounts) FindByID(ctx context.Context, id int64) (*model.Account, error) {
	if f.account == nil || f.account.ID != id {
		return nil, notFoundErr()
	}
	return f.account, nil
}

func (f *fakeAccounts) UpdateCursor(ctx context.Context, id int64, historyID string) error {
	f.cursorUpdates = append(f.cursorUpdates, historyID)
	return nil
}

func (f *fakeAccounts) UpdateLastSync(ctx context.Context, id int64, at time.Time) error {
	f.lastSyncSet = true
	return nil
}

type fakeCategories struct {
	list []model.Category
	def  model.Category
}

func (f *fakeCategories) ListByAccount(ctx context.Context, accountID int64) ([]model.Category, error) {
	return f.list, nil
}

func (f *fakeCategories) EnsureDefaultCategory(ctx context.Context, userID, accountID int64) (*model.Category, error) {
	return &f.def, nil
}

type unsubUpdate struct {
	status string
	method string
	errMsg string
}

type fakeMessages struct {
	existing map[string]bool
	batches  [][]*model.EmailRecord
	// insertErrs is popped once per InsertBatch call; nil entries mean
	// success.
	insertErrs []error

	records  map[int64]*model.EmailRecord
	targets  map[int64]string
	outcomes map[int64]unsubUpdate
}

func newFakeMessages() *fakeMessages {
	return &fakeMessages{
		existing: map[string]bool{},
		records:  map[int64]*model.EmailRecord{},
		targets:  map[int64]string{},
		outcomes: map[int64]unsubUpdate{},
	}
}

func (f *fakeMessages) Exists(ctx context.Context, accountID int64, gmailMessageID string) (bool, error) {
	return f.existing[gmailMessageID], nil
}

func (f *fakeMessages) InsertBatch(ctx context.Context, records []*model.EmailRecord) error {
	if len(f.insertErrs) > 0 {
		err := f.insertErrs[0]
		f.insertErrs = f.insertErrs[1:]
		if err != nil {
			return err
		}
	}
	batch := make([]*model.EmailRecord, len(records))
	copy(batch, records)
	f.batches = append(f.batches, batch)
	return nil
}

func (f *fakeMessages) FindByID(ctx context.Context, id int64) (*model.EmailRecord, error) {
	m, ok := f.records[id]
	if !ok {
		return nil, notFoundErr()
	}
	return m, nil
}

func (f *fakeMessages) UpdateUnsubscribeTarget(ctx context.Context, id int64, url string) error {
	f.targets[id] = url
	return nil
}

func (f *fakeMessages) UpdateUnsubscribeOutcome(ctx context.Context, id int64, status, method, errMsg string) error {
	f.outcomes[id] = unsubUpdate{status: status, method: method, errMsg: errMsg}
	return nil
}

func (f *fakeMessages) committed() []string {
	var ids []string
	for _, batch := range f.batches {
		for _, m := range batch {
			ids = append(ids, m.GmailMessageID)
		}
	}
	return ids
}

type fakeGateway struct {
	listIDs  []string
	listErr  error
	messages map[string]*gmail.Message
	metadata map[string]gmail.Header
	metaErr  error

	delta    *gmail.Delta
	deltaErr error
	profile  *gmail.Profile

	archived []string
	trashed  []string
}

func (f *fakeGateway) ListMessageIDs(ctx context.Context, query string, max int64) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	if int64(len(f.listIDs)) > max {
		return f.listIDs[:max], nil
	}
	return f.listIDs, nil
}

func (f *fakeGateway) GetFullMessage(ctx context.Context, id string) (*gmail.Message, error) {
	m, ok := f.messages[id]
	if !ok {
		return nil, fmt.Errorf("message %s not found", id)
	}
	return m, nil
}

func (f *fakeGateway) GetMetadata(ctx context.Context, id string, headerNames ...string) (gmail.Header, error) {
	if f.metaErr != nil {
		return nil, f.metaErr
	}
	if h, ok := f.metadata[id]; ok {
		return h, nil
	}
	return gmail.Header{}, nil
}

func (f *fakeGateway) HistoryDelta(ctx context.Context, startHistoryID string) (*gmail.Delta, error) {
	if f.deltaErr != nil {
		return nil, f.deltaErr
	}
	return f.delta, nil
}

func (f *fakeGateway) Archive(ctx context.Context, id string) error {
	f.archived = append(f.archived, id)
	return nil
}

func (f *fakeGateway) Trash(ctx context.Context, id string) error {
	f.trashed = append(f.trashed, id)
	return nil
}

func (f *fakeGateway) Profile(ctx context.Context) (*gmail.Profile, error) {
	if f.profile == nil {
		return nil, errors.New("no profile")
	}
	return f.profile, nil
}

func (f *fakeGateway) RegisterWatch(ctx context.Context, topicName string) (*gmail.Watch, error) {
	return &gmail.Watch{HistoryID: "1"}, nil
}

type fakeResolver struct {
	gw  gmail.Gateway
	err error
}

func (f *fakeResolver) Resolve(ctx context.Context, account *model.Account) (gmail.Gateway, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.gw, nil
}

type fakeAI struct {
	category string
	catErr   error
	summary  string
	sumErr   error
}

func (f *fakeAI) ChooseCategory(ctx context.Context, email ai.EmailContent, options []ai.CategoryOption) (string, error) {
	return f.category, f.catErr
}

func (f *fakeAI) Summarize(ctx context.Context, email ai.EmailContent) (string, error) {
	return f.summary, f.sumErr
}

type fakeNotifier struct {
	events []broadcast.Event
}

func (f *fakeNotifier) Publish(evt broadcast.Event) {
	f.events = append(f.events, evt)
}

type fakeAttempter struct {
	out    unsubscribe.Outcome
	target *unsubscribe.Target
	called bool
}

func (f *fakeAttempter) Attempt(ctx context.Context, target *unsubscribe.Target, email string) unsubscribe.Outcome {
	f.called = true
	f.target = target
	return f.out
}

func simpleMessage(id, from, subject string) *gmail.Message {
	h := gmail.Header{}
	h.Set("From", from)
	h.Set("Subject", subject)
	return &gmail.Message{
		ID:       id,
		ThreadID: "t-" + id,
		Snippet:  "snippet " + id,
		Headers:  h,
		BodyText: "body " + id,
	}
}
