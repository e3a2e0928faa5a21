package gmail

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrInvalidCursor means the stored history cursor is too old or unknown
// to Gmail and the caller must fall back to a full resync.
var ErrInvalidCursor = errors.New("gmail: invalid or expired history cursor")

// Header holds message headers with case-insensitive lookup. Keys are
// stored lowercased.
type Header map[string]string

func (h Header) Get(name string) string {
	return h[strings.ToLower(name)]
}

func (h Header) Set(name, value string) {
	h[strings.ToLower(name)] = value
}

// Message is the parsed representation of a fetched Gmail message.
type Message struct {
	ID       string
	ThreadID string
	Snippet  string
	Headers  Header

	BodyText string
	BodyHTML string

	// ReceivedAt is nil when Gmail reports no usable internal date.
	ReceivedAt *time.Time
}

// Delta is the result of an incremental history read.
type Delta struct {
	// MessageIDs lists added messages in the order Gmail reported them,
	// deduplicated.
	MessageIDs []string
	// NewHistoryID is the cursor to persist after the delta is handled.
	NewHistoryID string
}

type Profile struct {
	EmailAddress string
	HistoryID    string
}

// Watch is the outcome of registering push notifications for a mailbox.
type Watch struct {
	HistoryID  string
	Expiration *time.Time
}

// Gateway is the mailbox surface the sync and unsubscribe engines depend
// on. The production implementation wraps the Gmail API; tests use fakes.
type Gateway interface {
	ListMessageIDs(ctx context.Context, query string, max int64) ([]string, error)
	GetFullMessage(ctx context.Context, id string) (*Message, error)
	GetMetadata(ctx context.Context, id string, headerNames ...string) (Header, error)
	HistoryDelta(ctx context.Context, startHistoryID string) (*Delta, error)
	Archive(ctx context.Context, id string) error
	Trash(ctx context.Context, id string) error
	Profile(ctx context.Context) (*Profile, error)
	RegisterWatch(ctx context.Context, topicName string) (*Watch, error)
}
