package mq

// Topic exchange all events flow through.
const ExchangeName = "events"

// Routing keys.
const (
	KeyUnsubscribeRequested = "email.unsubscribe.requested"
	KeySyncRequested        = "email.sync.requested"
	// UI events relayed from the worker to the API server's SSE stream.
	KeyBroadcast = "ui.broadcast"
)

// UnsubscribeRequestedPayload asks the worker to unsubscribe one email.
type UnsubscribeRequestedPayload struct {
	MessageID int64 `json:"message_id"`
}

// SyncRequestedPayload asks the worker to sync one account.
type SyncRequestedPayload struct {
	AccountID int64 `json:"account_id"`
	// HistoryID is set when the request came from a push notification;
	// empty means a query-mode sync.
	HistoryID string `json:"history_id,omitempty"`
}
