package unsubscribe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/JuliaRakitina/ai-email-sorter/pkg/metrics"
)

// Outcome is the terminal verdict of one unsubscribe attempt.
type Outcome struct {
	Status string
	Method string
	Error  string
}

// Attempter executes unsubscribe targets: RFC 8058 one-click POSTs and
// the form-crawling fallback for plain links.
type Attempter struct {
	http   *http.Client
	logger *zap.Logger
}

func NewAttempter(logger *zap.Logger) *Attempter {
	return &Attempter{
		http:   &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

// Attempt executes the target and returns a terminal outcome. email is
// used to fill address fields on unsubscribe forms.
func (a *Attempter) Attempt(ctx context.Context, target *Target, email string) Outcome {
	var out Outcome
	if target.OneClick {
		out = a.oneClick(ctx, target.URL)
	} else {
		out = a.form(ctx, target, email)
	}
	metrics.RecordUnsubscribeAttempt(out.Status, out.Method)
	return out
}

// oneClick POSTs the RFC 8058 body to the header URL. No confirmation
// page is involved; the status code is the whole answer.
func (a *Attempter) oneClick(ctx context.Context, rawURL string) Outcome {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL,
		strings.NewReader(oneClickMarker))
	if err != nil {
		return Outcome{Status: StatusFailed, Method: MethodOneClick, Error: err.Error()}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := a.http.Do(req)
	if err != nil {
		return Outcome{Status: StatusFailed, Method: MethodOneClick, Error: fmt.Sprintf("one-click POST failed: %v", err)}
	}
	defer res.Body.Close()
	io.Copy(io.Discard, io.LimitReader(res.Body, 1<<16))

	switch res.StatusCode {
	case http.StatusOK, http.StatusAccepted, http.StatusNoContent:
		return Outcome{Status: StatusSuccess, Method: MethodOneClick}
	default:
		return Outcome{
			Status: StatusAttempted,
			Method: MethodOneClick,
			Error:  fmt.Sprintf("one-click POST returned status %d", res.StatusCode),
		}
	}
}

// form fetches the target page, locates an unsubscribe form and submits
// it. A page with no recognizable form is left for the user.
func (a *Attempter) form(ctx context.Context, target *Target, email string) Outcome {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.URL, nil)
	if err != nil {
		return Outcome{Status: StatusFailed, Method: target.Source, Error: err.Error()}
	}
	res, err := a.http.Do(req)
	if err != nil {
		return Outcome{Status: StatusFailed, Method: target.Source, Error: fmt.Sprintf("failed to fetch unsubscribe page: %v", err)}
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(res.Body, 1<<16))
		return Outcome{
			Status: StatusFailed,
			Method: target.Source,
			Error:  fmt.Sprintf("unsubscribe page returned status %d", res.StatusCode),
		}
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return Outcome{Status: StatusFailed, Method: target.Source, Error: err.Error()}
	}

	// Redirects may have moved us; resolve form actions against where we
	// actually landed.
	pageURL := target.URL
	if res.Request != nil && res.Request.URL != nil {
		pageURL = res.Request.URL.String()
	}

	frm := findForm(string(body))
	if frm == nil {
		return Outcome{
			Status: StatusManualRequired,
			Method: target.Source,
			Error:  "No unsubscribe form found on page",
		}
	}
	return a.submit(ctx, frm, pageURL, email)
}

type formSpec struct {
	action string
	method string
	fields url.Values
}

// findForm locates the first form that mentions unsubscribing in its
// action or visible text, collecting its text, email and hidden inputs.
func findForm(page string) *formSpec {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return nil
	}

	var found *formSpec
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if found != nil {
			return
		}
		if n.Type == html.ElementNode && n.Data == "form" {
			action := attr(n, "action")
			text := strings.ToLower(nodeText(n))
			if strings.Contains(strings.ToLower(action), "unsubscribe") || strings.Contains(text, "unsubscribe") {
				found = &formSpec{
					action: action,
					method: strings.ToUpper(attr(n, "method")),
					fields: collectInputs(n),
				}
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

func collectInputs(form *html.Node) url.Values {
	fields := url.Values{}
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "input" {
			name := attr(n, "name")
			typ := strings.ToLower(attr(n, "type"))
			if name != "" && (typ == "" || typ == "text" || typ == "email" || typ == "hidden") {
				fields.Set(name, attr(n, "value"))
				if typ == "email" {
					// Marker so the submitter can fill the address in.
					fields.Set(name, "")
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(form)
	return fields
}

func (a *Attempter) submit(ctx context.Context, frm *formSpec, pageURL, email string) Outcome {
	actionURL, err := resolveAction(pageURL, frm.action)
	if err != nil {
		return Outcome{Status: StatusFailed, Method: MethodHTMLForm, Error: err.Error()}
	}

	// Empty address-like fields get the subscriber's email.
	for name, vals := range frm.fields {
		lower := strings.ToLower(name)
		if (vals[0] == "" || vals[0] == email) &&
			(strings.Contains(lower, "email") || strings.Contains(lower, "address")) {
			frm.fields.Set(name, email)
		}
	}

	var req *http.Request
	if frm.method == http.MethodPost {
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, actionURL,
			strings.NewReader(frm.fields.Encode()))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	} else {
		u := actionURL
		if enc := frm.fields.Encode(); enc != "" {
			if strings.Contains(u, "?") {
				u += "&" + enc
			} else {
				u += "?" + enc
			}
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	}
	if err != nil {
		return Outcome{Status: StatusFailed, Method: MethodHTMLForm, Error: err.Error()}
	}

	res, err := a.http.Do(req)
	if err != nil {
		return Outcome{Status: StatusFailed, Method: MethodHTMLForm, Error: fmt.Sprintf("form submit failed: %v", err)}
	}
	defer res.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return Outcome{
			Status: StatusAttempted,
			Method: MethodHTMLForm,
			Error:  fmt.Sprintf("form submit returned status %d", res.StatusCode),
		}
	}
	return classifyResult(string(body))
}

// resolveAction turns a form action into an absolute URL: already
// absolute, root-relative against the page's origin, or relative against
// the page itself. An empty action resubmits to the page.
func resolveAction(pageURL, action string) (string, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("invalid page url: %w", err)
	}
	if action == "" {
		return pageURL, nil
	}
	ref, err := url.Parse(action)
	if err != nil {
		return "", fmt.Errorf("invalid form action: %w", err)
	}
	return base.ResolveReference(ref).String(), nil
}

var (
	successKeywords = []string{"success", "unsubscribed", "confirmed", "removed", "updated"}
	errorKeywords   = []string{"error", "failed", "invalid", "not found"}
)

// classifyResult reads the confirmation page. Error wording wins over
// success wording; a quiet 2xx page counts as success.
func classifyResult(page string) Outcome {
	lower := strings.ToLower(htmlText(page))
	for _, kw := range errorKeywords {
		if strings.Contains(lower, kw) {
			return Outcome{
				Status: StatusFailed,
				Method: MethodHTMLForm,
				Error:  fmt.Sprintf("confirmation page reported %q", kw),
			}
		}
	}
	for _, kw := range successKeywords {
		if strings.Contains(lower, kw) {
			return Outcome{Status: StatusSuccess, Method: MethodHTMLForm}
		}
	}
	return Outcome{Status: StatusSuccess, Method: MethodHTMLForm}
}

func htmlText(page string) string {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return page
	}
	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return sb.String()
}
