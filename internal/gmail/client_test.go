package gmail

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

func TestHistoryDeltaRestrictsToInbox(t *testing.T) {
	var query url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"historyId":"200","history":[{"messagesAdded":[{"message":{"id":"m1"}}]}]}`)
	}))
	defer srv.Close()

	svc, err := gmailapi.NewService(context.Background(),
		option.WithEndpoint(srv.URL),
		option.WithoutAuthentication())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	c := &Client{svc: svc}

	delta, err := c.HistoryDelta(context.Background(), "100")
	if err != nil {
		t.Fatalf("HistoryDelta: %v", err)
	}
	if got := query.Get("labelId"); got != "INBOX" {
		t.Errorf("labelId = %q, want INBOX", got)
	}
	if got := query.Get("startHistoryId"); got != "100" {
		t.Errorf("startHistoryId = %q, want 100", got)
	}
	if len(delta.MessageIDs) != 1 || delta.MessageIDs[0] != "m1" {
		t.Errorf("message ids = %v, want [m1]", delta.MessageIDs)
	}
	if delta.NewHistoryID != "200" {
		t.Errorf("new cursor = %q, want 200", delta.NewHistoryID)
	}
}

func TestIsInvalidCursor(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"404 not found", &googleapi.Error{Code: 404}, true},
		{"400 stale start", &googleapi.Error{Code: 400, Message: "Invalid startHistoryId"}, true},
		{"400 other", &googleapi.Error{Code: 400, Message: "quota exceeded"}, false},
		{"403 forbidden", &googleapi.Error{Code: 403}, false},
		{"wrapped 404", fmt.Errorf("gmail: list history: %w", &googleapi.Error{Code: 404}), true},
		{"plain error", errors.New("dial tcp: timeout"), false},
		{"nil", nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := isInvalidCursor(tc.err); got != tc.want {
				t.Errorf("isInvalidCursor(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}
