package gmail

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	gmailapi "google.golang.org/api/gmail/v1"
)

func enc(s string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}

func TestParseMessageHeadersAreCaseInsensitive(t *testing.T) {
	raw := &gmailapi.Message{
		Id:       "m1",
		ThreadId: "t1",
		Payload: &gmailapi.MessagePart{
			Headers: []*gmailapi.MessagePartHeader{
				{Name: "FROM", Value: "a@example.com"},
				{Name: "Subject", Value: "hello"},
			},
		},
	}

	msg := parseMessage(raw)
	if got := msg.Headers.Get("From"); got != "a@example.com" {
		t.Errorf("From = %q", got)
	}
	if got := msg.Headers.Get("subject"); got != "hello" {
		t.Errorf("subject = %q", got)
	}
}

func TestParseMessageMultipart(t *testing.T) {
	raw := &gmailapi.Message{
		Id:      "m1",
		Snippet: "snip",
		Payload: &gmailapi.MessagePart{
			MimeType: "multipart/alternative",
			Parts: []*gmailapi.MessagePart{
				{
					MimeType: "text/plain",
					Body:     &gmailapi.MessagePartBody{Data: enc("plain body")},
				},
				{
					MimeType: "text/html",
					Body:     &gmailapi.MessagePartBody{Data: enc("<p>html body</p>")},
				},
			},
		},
	}

	msg := parseMessage(raw)
	if msg.BodyText != "plain body" {
		t.Errorf("BodyText = %q", msg.BodyText)
	}
	if msg.BodyHTML != "<p>html body</p>" {
		t.Errorf("BodyHTML = %q", msg.BodyHTML)
	}
}

func TestParseMessageNestedParts(t *testing.T) {
	raw := &gmailapi.Message{
		Id: "m1",
		Payload: &gmailapi.MessagePart{
			MimeType: "multipart/mixed",
			Parts: []*gmailapi.MessagePart{
				{
					MimeType: "multipart/alternative",
					Parts: []*gmailapi.MessagePart{
						{
							MimeType: "text/plain",
							Body:     &gmailapi.MessagePartBody{Data: enc("nested plain")},
						},
					},
				},
				{
					MimeType: "application/pdf",
					Body:     &gmailapi.MessagePartBody{Data: enc("binary")},
				},
			},
		},
	}

	msg := parseMessage(raw)
	if msg.BodyText != "nested plain" {
		t.Errorf("BodyText = %q", msg.BodyText)
	}
}

func TestParseMessageHTMLFallback(t *testing.T) {
	raw := &gmailapi.Message{
		Id: "m1",
		Payload: &gmailapi.MessagePart{
			MimeType: "text/html",
			Body: &gmailapi.MessagePartBody{
				Data: enc("<html><style>p{}</style><body><p>Visible</p><script>x()</script><p>text</p></body></html>"),
			},
		},
	}

	msg := parseMessage(raw)
	if !strings.Contains(msg.BodyText, "Visible") || !strings.Contains(msg.BodyText, "text") {
		t.Errorf("BodyText = %q, want stripped HTML text", msg.BodyText)
	}
	if strings.Contains(msg.BodyText, "x()") || strings.Contains(msg.BodyText, "p{}") {
		t.Errorf("BodyText = %q, script/style leaked", msg.BodyText)
	}
}

func TestParseMessageInternalDate(t *testing.T) {
	at := time.Date(2026, 8, 15, 9, 30, 0, 0, time.UTC)
	raw := &gmailapi.Message{Id: "m1", InternalDate: at.UnixMilli()}

	msg := parseMessage(raw)
	if msg.ReceivedAt == nil || !msg.ReceivedAt.Equal(at) {
		t.Errorf("ReceivedAt = %v, want %v", msg.ReceivedAt, at)
	}

	msg = parseMessage(&gmailapi.Message{Id: "m2"})
	if msg.ReceivedAt != nil {
		t.Errorf("ReceivedAt = %v, want nil without an internal date", msg.ReceivedAt)
	}
}

func TestDecodeBody(t *testing.T) {
	cases := []struct {
		name string
		data string
		want string
	}{
		{"raw urlsafe", base64.RawURLEncoding.EncodeToString([]byte("hello")), "hello"},
		{"padded urlsafe", base64.URLEncoding.EncodeToString([]byte("hello!")), "hello!"},
		{"garbage", "%%%not base64%%%", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := decodeBody(tc.data); got != tc.want {
				t.Errorf("decodeBody(%q) = %q, want %q", tc.data, got, tc.want)
			}
		})
	}
}

func TestHeaderSetGet(t *testing.T) {
	h := Header{}
	h.Set("List-Unsubscribe", "<https://x>")
	if h.Get("list-unsubscribe") != "<https://x>" {
		t.Error("lookup must ignore case")
	}
	if h.Get("missing") != "" {
		t.Error("missing header must be empty")
	}
}
