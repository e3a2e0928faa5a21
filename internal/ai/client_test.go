package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/JuliaRakitina/ai-email-sorter/internal/config"
)

type capturedRequest struct {
	Model          string         `json:"model"`
	Temperature    float64        `json:"temperature"`
	ResponseFormat map[string]any `json:"response_format"`
	Messages       []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func newTestClient(t *testing.T, reply string, captured *capturedRequest) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("auth header = %q", got)
		}
		if captured != nil {
			if err := json.NewDecoder(r.Body).Decode(captured); err != nil {
				t.Errorf("decode request: %v", err)
			}
		}
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": reply}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)

	client := NewClient(config.AIConfig{
		APIKey:  "test-key",
		Model:   "gpt-4o-mini",
		BaseURL: srv.URL,
	}, zap.NewNop())
	return client, srv
}

func TestChooseCategoryExactMatch(t *testing.T) {
	options := []CategoryOption{
		{Name: "Newsletters", Description: "Bulk mail"},
		{Name: "Receipts", Description: "Purchases"},
	}

	cases := []struct {
		name  string
		reply string
		want  string
	}{
		{"matching option", `{"category": "Receipts"}`, "Receipts"},
		{"none answer", `{"category": "None"}`, ""},
		{"invented name", `{"category": "Shopping"}`, ""},
		{"case mismatch is rejected", `{"category": "receipts"}`, ""},
		{"not json", `Receipts`, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client, _ := newTestClient(t, tc.reply, nil)
			got, err := client.ChooseCategory(context.Background(), EmailContent{Subject: "s", Body: "b"}, options)
			if err != nil {
				t.Fatalf("ChooseCategory: %v", err)
			}
			if got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestChooseCategoryNoOptions(t *testing.T) {
	client, _ := newTestClient(t, `{"category": "x"}`, nil)
	got, err := client.ChooseCategory(context.Background(), EmailContent{}, nil)
	if err != nil || got != "" {
		t.Fatalf("got (%q, %v), want no call and empty result", got, err)
	}
}

func TestChooseCategoryRequestShape(t *testing.T) {
	var captured capturedRequest
	client, _ := newTestClient(t, `{"category": "None"}`, &captured)

	longBody := strings.Repeat("q", 10000)
	_, err := client.ChooseCategory(context.Background(),
		EmailContent{From: "a@b.c", Subject: "s", Body: longBody},
		[]CategoryOption{{Name: "A", Description: "d"}})
	if err != nil {
		t.Fatalf("ChooseCategory: %v", err)
	}

	if captured.Model != "gpt-4o-mini" {
		t.Errorf("model = %q", captured.Model)
	}
	if captured.Temperature != 0 {
		t.Errorf("temperature = %v, want 0", captured.Temperature)
	}
	if captured.ResponseFormat["type"] != "json_object" {
		t.Errorf("response_format = %v", captured.ResponseFormat)
	}
	prompt := captured.Messages[0].Content
	if strings.Count(prompt, "q") != categorizeBodyLimit {
		t.Errorf("body length in prompt = %d, want truncation to %d", strings.Count(prompt, "q"), categorizeBodyLimit)
	}
}

func TestSummarizeRequestShape(t *testing.T) {
	var captured capturedRequest
	client, _ := newTestClient(t, "  A short summary.  ", &captured)

	longBody := strings.Repeat("q", 10000)
	got, err := client.Summarize(context.Background(), EmailContent{From: "a@b.c", Subject: "s", Body: longBody})
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if got != "A short summary." {
		t.Errorf("summary = %q, want trimmed", got)
	}
	if captured.Temperature != 0.2 {
		t.Errorf("temperature = %v, want 0.2", captured.Temperature)
	}
	if captured.ResponseFormat != nil {
		t.Errorf("response_format = %v, want none", captured.ResponseFormat)
	}
	prompt := captured.Messages[0].Content
	if strings.Count(prompt, "q") != summarizeBodyLimit {
		t.Errorf("body length in prompt = %d, want truncation to %d", strings.Count(prompt, "q"), summarizeBodyLimit)
	}
}

func TestChatErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "rate limited"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewClient(config.AIConfig{APIKey: "k", Model: "m", BaseURL: srv.URL}, zap.NewNop())
	if _, err := client.Summarize(context.Background(), EmailContent{Body: "b"}); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}
