package gmail

import (
	"encoding/base64"
	"strings"
	"time"

	"golang.org/x/net/html"
	gmailapi "google.golang.org/api/gmail/v1"
)

// parseMessage flattens a raw Gmail message into the internal form:
// headers with case-insensitive lookup, first text/plain and text/html
// bodies, and the internal date as received time.
func parseMessage(raw *gmailapi.Message) *Message {
	msg := &Message{
		ID:       raw.Id,
		ThreadID: raw.ThreadId,
		Snippet:  raw.Snippet,
		Headers:  Header{},
	}

	if raw.InternalDate > 0 {
		t := time.UnixMilli(raw.InternalDate).UTC()
		msg.ReceivedAt = &t
	}

	if raw.Payload == nil {
		return msg
	}
	for _, h := range raw.Payload.Headers {
		msg.Headers.Set(h.Name, h.Value)
	}

	text, htmlBody := extractBodies(raw.Payload)
	msg.BodyHTML = htmlBody
	if text == "" && htmlBody != "" {
		// No plain part; fall back to stripped HTML.
		text = htmlToText(htmlBody)
	}
	msg.BodyText = text
	return msg
}

// extractBodies walks the MIME tree iteratively and returns the first
// text/plain and text/html bodies found.
func extractBodies(root *gmailapi.MessagePart) (text, htmlBody string) {
	stack := []*gmailapi.MessagePart{root}
	for len(stack) > 0 {
		part := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if part == nil {
			continue
		}

		if part.Body != nil && part.Body.Data != "" {
			body := decodeBody(part.Body.Data)
			switch {
			case strings.HasPrefix(part.MimeType, "text/plain") && text == "":
				text = body
			case strings.HasPrefix(part.MimeType, "text/html") && htmlBody == "":
				htmlBody = body
			}
		}
		if text != "" && htmlBody != "" {
			return text, htmlBody
		}

		// Push children in reverse so the walk stays in document order.
		for i := len(part.Parts) - 1; i >= 0; i-- {
			stack = append(stack, part.Parts[i])
		}
	}
	return text, htmlBody
}

// decodeBody handles Gmail's urlsafe base64, padded or not. Undecodable
// data yields an empty string rather than an error.
func decodeBody(data string) string {
	if b, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "=")); err == nil {
		return string(b)
	}
	if b, err := base64.URLEncoding.DecodeString(data); err == nil {
		return string(b)
	}
	return ""
}

// htmlToText extracts visible text from an HTML body. Script and style
// contents are skipped.
func htmlToText(src string) string {
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return ""
	}

	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(t)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return sb.String()
}
