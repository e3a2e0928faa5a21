package unsubscribe

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/JuliaRakitina/ai-email-sorter/internal/gmail"
)

// Terminal statuses for an unsubscribe attempt.
const (
	StatusNoTarget       = "no_target"
	StatusSuccess        = "success"
	StatusAttempted      = "attempted"
	StatusManualRequired = "manual_required"
	StatusFailed         = "failed"
)

// How the target was exercised or found.
const (
	MethodOneClick   = "one_click"
	MethodHeaderLink = "header_link"
	MethodBodyLink   = "body_link"
	MethodHTMLForm   = "html_form"
)

// Target is a discovered unsubscribe endpoint.
type Target struct {
	URL string
	// OneClick means the sender advertises RFC 8058 one-click POST.
	OneClick bool
	// Source records where the URL came from: MethodHeaderLink or
	// MethodBodyLink.
	Source string
}

const oneClickMarker = "List-Unsubscribe=One-Click"

// Discover finds the best unsubscribe target for a message. Header links
// beat body links; only https targets are accepted.
func Discover(headers gmail.Header, bodyHTML string) *Target {
	if t := fromHeader(headers); t != nil {
		return t
	}
	return fromBody(bodyHTML)
}

// fromHeader parses the List-Unsubscribe header. Values are a comma
// separated list of <...> entries, typically one mailto: and one https:
// link. Only the https link is usable here.
func fromHeader(headers gmail.Header) *Target {
	raw := headers.Get("List-Unsubscribe")
	if raw == "" {
		return nil
	}

	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		entry = strings.TrimPrefix(entry, "<")
		entry = strings.TrimSuffix(entry, ">")
		if !strings.HasPrefix(entry, "https://") {
			continue
		}
		return &Target{
			URL:      entry,
			OneClick: strings.TrimSpace(headers.Get("List-Unsubscribe-Post")) == oneClickMarker,
			Source:   MethodHeaderLink,
		}
	}
	return nil
}

// fromBody scans the HTML body for anchors that look like unsubscribe
// links, either in the href or the link text.
func fromBody(bodyHTML string) *Target {
	if bodyHTML == "" {
		return nil
	}
	doc, err := html.Parse(strings.NewReader(bodyHTML))
	if err != nil {
		return nil
	}

	var found *Target
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if found != nil {
			return
		}
		if n.Type == html.ElementNode && n.Data == "a" {
			href := attr(n, "href")
			text := strings.ToLower(nodeText(n))
			if strings.HasPrefix(href, "https://") &&
				(strings.Contains(strings.ToLower(href), "unsubscribe") || strings.Contains(text, "unsubscribe")) {
				found = &Target{URL: href, Source: MethodBodyLink}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return found
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		} else {
			sb.WriteString(nodeText(c))
		}
	}
	return strings.TrimSpace(sb.String())
}
