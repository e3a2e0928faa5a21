package gmail

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/JuliaRakitina/ai-email-sorter/pkg/metrics"
)

const callTimeout = 30 * time.Second

// Client is the production Gateway backed by the Gmail API.
type Client struct {
	svc *gmailapi.Service
}

var _ Gateway = (*Client)(nil)

// NewClient builds a Gateway from an authenticated token source.
func NewClient(ctx context.Context, ts oauth2.TokenSource) (*Client, error) {
	svc, err := gmailapi.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("gmail: create service: %w", err)
	}
	return &Client{svc: svc}, nil
}

func observe(operation string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.RecordGmailCallLatency(operation, status, time.Since(start))
}

func (c *Client) ListMessageIDs(ctx context.Context, query string, max int64) (ids []string, err error) {
	defer observe("messages.list", time.Now(), err)

	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	res, err := c.svc.Users.Messages.List("me").
		Q(query).
		MaxResults(max).
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("gmail: list messages: %w", err)
	}
	for _, m := range res.Messages {
		ids = append(ids, m.Id)
	}
	return ids, nil
}

func (c *Client) GetFullMessage(ctx context.Context, id string) (msg *Message, err error) {
	defer observe("messages.get", time.Now(), err)

	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	raw, err := c.svc.Users.Messages.Get("me", id).
		Format("full").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("gmail: get message %s: %w", id, err)
	}
	return parseMessage(raw), nil
}

func (c *Client) GetMetadata(ctx context.Context, id string, headerNames ...string) (h Header, err error) {
	defer observe("messages.get_metadata", time.Now(), err)

	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	call := c.svc.Users.Messages.Get("me", id).Format("metadata")
	if len(headerNames) > 0 {
		call = call.MetadataHeaders(headerNames...)
	}
	raw, err := call.Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("gmail: get metadata %s: %w", id, err)
	}

	h = Header{}
	if raw.Payload != nil {
		for _, hdr := range raw.Payload.Headers {
			h.Set(hdr.Name, hdr.Value)
		}
	}
	return h, nil
}

// HistoryDelta reads messages added to the inbox since startHistoryID,
// following pagination. The label filter matches the registered watch,
// so sent mail and drafts never enter the delta. An unknown or expired
// cursor maps to ErrInvalidCursor.
func (c *Client) HistoryDelta(ctx context.Context, startHistoryID string) (delta *Delta, err error) {
	defer observe("history.list", time.Now(), err)

	start, err := strconv.ParseUint(startHistoryID, 10, 64)
	if err != nil {
		return nil, ErrInvalidCursor
	}

	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	delta = &Delta{NewHistoryID: startHistoryID}
	seen := map[string]bool{}
	pageToken := ""
	for {
		call := c.svc.Users.History.List("me").
			StartHistoryId(start).
			HistoryTypes("messageAdded").
			LabelId("INBOX").
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		res, err := call.Do()
		if err != nil {
			if isInvalidCursor(err) {
				return nil, ErrInvalidCursor
			}
			return nil, fmt.Errorf("gmail: list history: %w", err)
		}

		for _, h := range res.History {
			for _, added := range h.MessagesAdded {
				if added.Message == nil || seen[added.Message.Id] {
					continue
				}
				seen[added.Message.Id] = true
				delta.MessageIDs = append(delta.MessageIDs, added.Message.Id)
			}
		}
		if res.HistoryId > 0 {
			delta.NewHistoryID = strconv.FormatUint(res.HistoryId, 10)
		}
		if res.NextPageToken == "" {
			return delta, nil
		}
		pageToken = res.NextPageToken
	}
}

// isInvalidCursor matches the ways Gmail rejects a stale cursor: a 404
// on history.list, or a 400 complaining about startHistoryId.
func isInvalidCursor(err error) bool {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return false
	}
	if gerr.Code == 404 {
		return true
	}
	if gerr.Code == 400 {
		msg := strings.ToLower(gerr.Message)
		return strings.Contains(msg, "starthistoryid") || strings.Contains(msg, "invalid")
	}
	return false
}

func (c *Client) Archive(ctx context.Context, id string) (err error) {
	defer observe("messages.modify", time.Now(), err)

	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	_, err = c.svc.Users.Messages.Modify("me", id, &gmailapi.ModifyMessageRequest{
		RemoveLabelIds: []string{"INBOX"},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("gmail: archive %s: %w", id, err)
	}
	return nil
}

func (c *Client) Trash(ctx context.Context, id string) (err error) {
	defer observe("messages.trash", time.Now(), err)

	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	_, err = c.svc.Users.Messages.Trash("me", id).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("gmail: trash %s: %w", id, err)
	}
	return nil
}

func (c *Client) Profile(ctx context.Context) (p *Profile, err error) {
	defer observe("getprofile", time.Now(), err)

	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	raw, err := c.svc.Users.GetProfile("me").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("gmail: get profile: %w", err)
	}
	return &Profile{
		EmailAddress: raw.EmailAddress,
		HistoryID:    strconv.FormatUint(raw.HistoryId, 10),
	}, nil
}

// RegisterWatch subscribes the mailbox to Pub/Sub push notifications and
// returns the history cursor to seed the account with.
func (c *Client) RegisterWatch(ctx context.Context, topicName string) (w *Watch, err error) {
	defer observe("watch", time.Now(), err)

	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	res, err := c.svc.Users.Watch("me", &gmailapi.WatchRequest{
		TopicName:         topicName,
		LabelIds:          []string{"INBOX"},
		LabelFilterAction: "include",
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("gmail: register watch: %w", err)
	}

	w = &Watch{HistoryID: strconv.FormatUint(res.HistoryId, 10)}
	if res.Expiration > 0 {
		t := time.UnixMilli(res.Expiration).UTC()
		w.Expiration = &t
	}
	return w, nil
}
