package service

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/JuliaRakitina/ai-email-sorter/internal/config"
	"github.com/JuliaRakitina/ai-email-sorter/internal/gmail"
	"github.com/JuliaRakitina/ai-email-sorter/internal/model"
)

func testAccount() *model.Account {
	return &model.Account{ID: 1, UserID: 10, Email: "user@example.com"}
}

func newTestSync(accounts *fakeAccounts, categories *fakeCategories, messages *fakeMessages, gw *fakeGateway, aiSvc *fakeAI) (*SyncService, *fakeNotifier) {
	notifier := &fakeNotifier{}
	svc := NewSyncService(
		accounts, categories, messages,
		&fakeResolver{gw: gw}, aiSvc, notifier,
		config.SyncConfig{Query: "in:inbox newer_than:3d", MaxResults: 25},
		zap.NewNop(),
	)
	svc.sleep = func(time.Duration) {}
	return svc, notifier
}

func defaultCategories() *fakeCategories {
	return &fakeCategories{
		list: []model.Category{
			{ID: 2, Name: "Newsletters", Description: "Bulk mail"},
			{ID: 3, Name: "Receipts", Description: "Purchases"},
			{ID: 99, Name: "Uncategorized", IsSystem: true},
		},
		def: model.Category{ID: 99, Name: "Uncategorized", IsSystem: true},
	}
}

func gatewayWith(ids ...string) *fakeGateway {
	gw := &fakeGateway{listIDs: ids, messages: map[string]*gmail.Message{}}
	for _, id := range ids {
		gw.messages[id] = simpleMessage(id, "sender@example.com", "subject "+id)
	}
	return gw
}

func TestSyncQuerySkipsExistingMessages(t *testing.T) {
	accounts := &fakeAccounts{account: testAccount()}
	messages := newFakeMessages()
	messages.existing["m2"] = true
	gw := gatewayWith("m1", "m2", "m3")

	svc, _ := newTestSync(accounts, defaultCategories(), messages, gw, &fakeAI{category: "Newsletters", summary: "s"})

	res, err := svc.SyncQuery(context.Background(), 1)
	if err != nil {
		t.Fatalf("SyncQuery: %v", err)
	}
	if res.Staged != 2 || res.Skipped != 1 || res.Failed != 0 {
		t.Fatalf("got staged=%d skipped=%d failed=%d, want 2/1/0", res.Staged, res.Skipped, res.Failed)
	}

	committed := messages.committed()
	if len(committed) != 2 || committed[0] != "m1" || committed[1] != "m3" {
		t.Fatalf("committed %v, want [m1 m3]", committed)
	}
	if len(gw.archived) != 2 {
		t.Fatalf("archived %v, want both committed messages", gw.archived)
	}
	if !accounts.lastSyncSet {
		t.Fatal("last sync time not recorded")
	}
}

func TestSyncQueryCommitsInBatches(t *testing.T) {
	accounts := &fakeAccounts{account: testAccount()}
	messages := newFakeMessages()
	gw := gatewayWith("m1", "m2", "m3", "m4", "m5", "m6", "m7")

	svc, _ := newTestSync(accounts, defaultCategories(), messages, gw, &fakeAI{category: "Newsletters"})

	res, err := svc.SyncQuery(context.Background(), 1)
	if err != nil {
		t.Fatalf("SyncQuery: %v", err)
	}
	if res.Staged != 7 {
		t.Fatalf("staged = %d, want 7", res.Staged)
	}
	if len(messages.batches) != 2 {
		t.Fatalf("batches = %d, want 2", len(messages.batches))
	}
	if len(messages.batches[0]) != 5 || len(messages.batches[1]) != 2 {
		t.Fatalf("batch sizes = %d,%d, want 5,2", len(messages.batches[0]), len(messages.batches[1]))
	}
}

func TestSyncQueryRetriesContentionOnce(t *testing.T) {
	accounts := &fakeAccounts{account: testAccount()}
	messages := newFakeMessages()
	messages.insertErrs = []error{contentionErr(), nil}
	gw := gatewayWith("m1", "m2")

	slept := false
	svc, _ := newTestSync(accounts, defaultCategories(), messages, gw, &fakeAI{})
	svc.sleep = func(time.Duration) { slept = true }

	res, err := svc.SyncQuery(context.Background(), 1)
	if err != nil {
		t.Fatalf("SyncQuery: %v", err)
	}
	if !slept {
		t.Fatal("expected a wait before the retry")
	}
	if res.Dropped != 0 || res.Staged != 2 {
		t.Fatalf("got staged=%d dropped=%d, want 2/0", res.Staged, res.Dropped)
	}
	if len(messages.batches) != 1 {
		t.Fatalf("batches = %d, want 1", len(messages.batches))
	}
}

func TestSyncQueryDropsBatchAfterRepeatedContention(t *testing.T) {
	accounts := &fakeAccounts{account: testAccount()}
	messages := newFakeMessages()
	messages.insertErrs = []error{contentionErr(), contentionErr()}
	gw := gatewayWith("m1", "m2")

	svc, _ := newTestSync(accounts, defaultCategories(), messages, gw, &fakeAI{})

	res, err := svc.SyncQuery(context.Background(), 1)
	if err != nil {
		t.Fatalf("SyncQuery: %v", err)
	}
	// Dropped messages still count as staged; the caller derives the
	// committed count as Staged-Dropped.
	if res.Dropped != 2 || res.Staged != 2 {
		t.Fatalf("got staged=%d dropped=%d, want 2/2", res.Staged, res.Dropped)
	}
	if len(messages.batches) != 0 {
		t.Fatal("dropped batch must not be committed")
	}
	if len(gw.archived) != 0 {
		t.Fatal("dropped messages must not be archived")
	}
}

func TestSyncQueryContainsPerMessageFailures(t *testing.T) {
	accounts := &fakeAccounts{account: testAccount()}
	messages := newFakeMessages()
	gw := gatewayWith("m1", "m3")
	gw.listIDs = []string{"m1", "m2", "m3"} // m2 has no fetchable body

	svc, _ := newTestSync(accounts, defaultCategories(), messages, gw, &fakeAI{})

	res, err := svc.SyncQuery(context.Background(), 1)
	if err != nil {
		t.Fatalf("SyncQuery: %v", err)
	}
	if res.Staged != 2 || res.Failed != 1 {
		t.Fatalf("got staged=%d failed=%d, want 2/1", res.Staged, res.Failed)
	}
	committed := messages.committed()
	if len(committed) != 2 || committed[0] != "m1" || committed[1] != "m3" {
		t.Fatalf("committed %v, want [m1 m3] in order", committed)
	}
}

func TestCategorizationFallsBackToDefault(t *testing.T) {
	cases := []struct {
		name string
		ai   *fakeAI
		want int64
	}{
		{"matching category", &fakeAI{category: "Receipts"}, 3},
		{"unknown category name", &fakeAI{category: "Spam"}, 99},
		{"empty answer", &fakeAI{category: ""}, 99},
		{"ai error", &fakeAI{catErr: context.DeadlineExceeded}, 99},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			accounts := &fakeAccounts{account: testAccount()}
			messages := newFakeMessages()
			gw := gatewayWith("m1")

			svc, _ := newTestSync(accounts, defaultCategories(), messages, gw, tc.ai)
			if _, err := svc.SyncQuery(context.Background(), 1); err != nil {
				t.Fatalf("SyncQuery: %v", err)
			}

			record := messages.batches[0][0]
			if record.CategoryID == nil || *record.CategoryID != tc.want {
				t.Fatalf("category = %v, want %d", record.CategoryID, tc.want)
			}
		})
	}
}

func TestSyncHistoryAdvancesCursorForwardOnly(t *testing.T) {
	cases := []struct {
		name       string
		current    string
		delta      string
		wantUpdate bool
	}{
		{"moves forward", "100", "150", true},
		{"never moves backward", "100", "90", false},
		{"ignores equal cursor", "100", "100", false},
		{"ignores empty cursor", "100", "", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			account := testAccount()
			account.LastHistoryID = &tc.current
			accounts := &fakeAccounts{account: account}
			messages := newFakeMessages()
			gw := gatewayWith()
			gw.delta = &gmail.Delta{NewHistoryID: tc.delta}

			svc, _ := newTestSync(accounts, defaultCategories(), messages, gw, &fakeAI{})
			if _, err := svc.SyncHistory(context.Background(), 1); err != nil {
				t.Fatalf("SyncHistory: %v", err)
			}

			if tc.wantUpdate {
				if len(accounts.cursorUpdates) != 1 || accounts.cursorUpdates[0] != tc.delta {
					t.Fatalf("cursor updates = %v, want [%s]", accounts.cursorUpdates, tc.delta)
				}
			} else if len(accounts.cursorUpdates) != 0 {
				t.Fatalf("cursor updates = %v, want none", accounts.cursorUpdates)
			}
		})
	}
}

func TestSyncHistorySkipsAccountWithoutCursor(t *testing.T) {
	account := testAccount() // LastHistoryID never seeded
	accounts := &fakeAccounts{account: account}
	messages := newFakeMessages()
	gw := gatewayWith("m1", "m2")

	svc, notifier := newTestSync(accounts, defaultCategories(), messages, gw, &fakeAI{})

	res, err := svc.SyncHistory(context.Background(), 1)
	if err != nil {
		t.Fatalf("SyncHistory: %v", err)
	}
	if res.Staged != 0 || res.Skipped != 0 || res.Failed != 0 || res.Dropped != 0 {
		t.Fatalf("got %+v, want an empty result", res)
	}
	if len(messages.batches) != 0 {
		t.Fatal("a push without a cursor must not ingest anything")
	}
	if len(accounts.cursorUpdates) != 0 || accounts.lastSyncSet {
		t.Fatal("skipped sync must not mutate account state")
	}
	if len(notifier.events) != 0 {
		t.Fatalf("events = %+v, want none", notifier.events)
	}
}

func TestSyncHistoryFallsBackOnInvalidCursor(t *testing.T) {
	cursor := "12345"
	account := testAccount()
	account.LastHistoryID = &cursor
	accounts := &fakeAccounts{account: account}
	messages := newFakeMessages()

	gw := gatewayWith("m1", "m2")
	gw.deltaErr = gmail.ErrInvalidCursor
	gw.profile = &gmail.Profile{EmailAddress: account.Email, HistoryID: "99999"}

	svc, _ := newTestSync(accounts, defaultCategories(), messages, gw, &fakeAI{})

	res, err := svc.SyncHistory(context.Background(), 1)
	if err != nil {
		t.Fatalf("SyncHistory: %v", err)
	}
	if res.Staged != 2 {
		t.Fatalf("staged = %d, want 2 from the fallback window", res.Staged)
	}
	if len(accounts.cursorUpdates) != 1 || accounts.cursorUpdates[0] != "99999" {
		t.Fatalf("cursor updates = %v, want re-seed to [99999]", accounts.cursorUpdates)
	}
}

func TestSyncHistoryOtherErrorsLeaveStateAlone(t *testing.T) {
	cursor := "12345"
	account := testAccount()
	account.LastHistoryID = &cursor
	accounts := &fakeAccounts{account: account}
	messages := newFakeMessages()

	gw := gatewayWith()
	gw.deltaErr = context.DeadlineExceeded

	svc, _ := newTestSync(accounts, defaultCategories(), messages, gw, &fakeAI{})

	if _, err := svc.SyncHistory(context.Background(), 1); err == nil {
		t.Fatal("expected error to surface")
	}
	if len(accounts.cursorUpdates) != 0 || accounts.lastSyncSet {
		t.Fatal("failed sync must not mutate account state")
	}
}

func TestSyncPublishesEventAfterCommit(t *testing.T) {
	accounts := &fakeAccounts{account: testAccount()}
	messages := newFakeMessages()
	gw := gatewayWith("m1")

	svc, notifier := newTestSync(accounts, defaultCategories(), messages, gw, &fakeAI{})
	if _, err := svc.SyncQuery(context.Background(), 1); err != nil {
		t.Fatalf("SyncQuery: %v", err)
	}

	if len(notifier.events) != 1 || notifier.events[0].Type != "emails.synced" {
		t.Fatalf("events = %+v, want one emails.synced", notifier.events)
	}
}

func TestSyncRecordsAreEnriched(t *testing.T) {
	accounts := &fakeAccounts{account: testAccount()}
	messages := newFakeMessages()
	gw := gatewayWith("m1")
	received := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	gw.messages["m1"].ReceivedAt = &received
	gw.messages["m1"].BodyHTML = "<p>hello</p>"

	svc, _ := newTestSync(accounts, defaultCategories(), messages, gw, &fakeAI{category: "Newsletters", summary: "A newsletter."})
	if _, err := svc.SyncQuery(context.Background(), 1); err != nil {
		t.Fatalf("SyncQuery: %v", err)
	}

	record := messages.batches[0][0]
	if record.Summary != "A newsletter." {
		t.Errorf("summary = %q", record.Summary)
	}
	if record.FromEmail != "sender@example.com" || record.Subject != "subject m1" {
		t.Errorf("headers not mapped: from=%q subject=%q", record.FromEmail, record.Subject)
	}
	if record.ReceivedAt == nil || !record.ReceivedAt.Equal(received) {
		t.Errorf("received_at = %v, want %v", record.ReceivedAt, received)
	}
	if record.ArchivedAt == nil {
		t.Error("archived_at not set")
	}
	if record.BodyHTML != "<p>hello</p>" {
		t.Errorf("body_html = %q", record.BodyHTML)
	}
}
