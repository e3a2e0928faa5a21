package unsubscribe

import (
	"testing"

	"github.com/JuliaRakitina/ai-email-sorter/internal/gmail"
)

func headerWith(pairs ...string) gmail.Header {
	h := gmail.Header{}
	for i := 0; i+1 < len(pairs); i += 2 {
		h.Set(pairs[i], pairs[i+1])
	}
	return h
}

func TestDiscoverHeaderLink(t *testing.T) {
	h := headerWith("List-Unsubscribe", "<https://example.com/unsub?id=42>")

	target := Discover(h, "")
	if target == nil {
		t.Fatal("no target found")
	}
	if target.URL != "https://example.com/unsub?id=42" {
		t.Errorf("url = %q", target.URL)
	}
	if target.Source != MethodHeaderLink {
		t.Errorf("source = %q, want header_link", target.Source)
	}
	if target.OneClick {
		t.Error("one-click must require the List-Unsubscribe-Post marker")
	}
}

func TestDiscoverOneClick(t *testing.T) {
	h := headerWith(
		"List-Unsubscribe", "<https://example.com/unsub>",
		"List-Unsubscribe-Post", "List-Unsubscribe=One-Click",
	)

	target := Discover(h, "")
	if target == nil || !target.OneClick {
		t.Fatalf("target = %+v, want one-click", target)
	}
}

func TestDiscoverSkipsMailtoAndHTTP(t *testing.T) {
	cases := []struct {
		name   string
		header string
	}{
		{"mailto only", "<mailto:unsub@example.com>"},
		{"plain http", "<http://example.com/unsub>"},
		{"empty", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := headerWith("List-Unsubscribe", tc.header)
			if target := Discover(h, ""); target != nil {
				t.Fatalf("target = %+v, want nil", target)
			}
		})
	}
}

func TestDiscoverPicksHTTPSFromMixedHeader(t *testing.T) {
	h := headerWith("List-Unsubscribe", "<mailto:unsub@example.com>, <https://example.com/unsub>")

	target := Discover(h, "")
	if target == nil || target.URL != "https://example.com/unsub" {
		t.Fatalf("target = %+v", target)
	}
}

func TestDiscoverBodyLink(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{
			"keyword in href",
			`<html><body><a href="https://x.com/unsubscribe?t=1">click</a></body></html>`,
			"https://x.com/unsubscribe?t=1",
		},
		{
			"keyword in link text",
			`<a href="https://x.com/optout">Unsubscribe here</a>`,
			"https://x.com/optout",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			target := Discover(gmail.Header{}, tc.body)
			if target == nil {
				t.Fatal("no target found")
			}
			if target.URL != tc.want {
				t.Errorf("url = %q, want %q", target.URL, tc.want)
			}
			if target.Source != MethodBodyLink {
				t.Errorf("source = %q, want body_link", target.Source)
			}
		})
	}
}

func TestDiscoverBodyRequiresHTTPS(t *testing.T) {
	body := `<a href="http://x.com/unsubscribe">unsubscribe</a>`
	if target := Discover(gmail.Header{}, body); target != nil {
		t.Fatalf("target = %+v, want nil for non-https body link", target)
	}
}

func TestDiscoverHeaderBeatsBody(t *testing.T) {
	h := headerWith("List-Unsubscribe", "<https://header.example.com/unsub>")
	body := `<a href="https://body.example.com/unsubscribe">unsubscribe</a>`

	target := Discover(h, body)
	if target == nil || target.URL != "https://header.example.com/unsub" {
		t.Fatalf("target = %+v, want the header link", target)
	}
}
