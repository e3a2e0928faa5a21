package model

import "time"

type User struct {
	ID        int64
	Email     string
	CreatedAt time.Time
}

// Account is one connected Gmail mailbox. TokenEnc holds the encrypted
// OAuth token blob; LastHistoryID is the resumable sync cursor and only
// ever moves forward (except a full resync re-seed).
type Account struct {
	ID              int64
	UserID          int64
	Email           string
	TokenEnc        string
	LastSyncAt      *time.Time
	LastHistoryID   *string
	WatchExpiration *time.Time
	WatchActive     bool
}

// Category is a user-defined classification bucket scoped to one account.
// IsSystem marks the built-in "Uncategorized" bucket.
type Category struct {
	ID          int64
	UserID      int64
	AccountID   int64
	Name        string
	Description string
	IsSystem    bool
	CreatedAt   time.Time
}

// EmailRecord is the ingested representation of one Gmail message.
// (AccountID, GmailMessageID) is unique and acts as the idempotency key
// for ingestion.
type EmailRecord struct {
	ID         int64
	AccountID  int64
	CategoryID *int64

	GmailMessageID string
	ThreadID       string

	FromEmail string
	Subject   string
	Snippet   string

	BodyText string
	BodyHTML string

	Summary    string
	ReceivedAt *time.Time

	ArchivedAt     *time.Time
	DeletedAt      *time.Time
	UnsubscribedAt *time.Time

	UnsubscribeStatus string
	UnsubscribeMethod string
	UnsubscribeURL    string
	UnsubscribeError  string
}
