package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JuliaRakitina/ai-email-sorter/internal/config"
	"github.com/JuliaRakitina/ai-email-sorter/pkg/circuitbreaker"
	"github.com/JuliaRakitina/ai-email-sorter/pkg/metrics"
)

// Body truncation limits keep prompts inside model context windows.
const (
	categorizeBodyLimit = 4000
	summarizeBodyLimit  = 6000
)

// CategoryOption is one classification candidate offered to the model.
type CategoryOption struct {
	Name        string
	Description string
}

// EmailContent is the model-facing view of an email.
type EmailContent struct {
	From    string
	Subject string
	Body    string
}

// Service chooses categories and writes summaries. Implemented by Client
// in production; tests substitute fakes.
type Service interface {
	ChooseCategory(ctx context.Context, email EmailContent, options []CategoryOption) (string, error)
	Summarize(ctx context.Context, email EmailContent) (string, error)
}

// Client talks to an OpenAI-compatible chat completions endpoint.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
	breaker *circuitbreaker.CircuitBreaker
	logger  *zap.Logger
}

var _ Service = (*Client)(nil)

func NewClient(cfg config.AIConfig, logger *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		http:    &http.Client{Timeout: 60 * time.Second},
		breaker: circuitbreaker.New(circuitbreaker.DefaultConfig()),
		logger:  logger,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    float64        `json:"temperature"`
	ResponseFormat map[string]any `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// ChooseCategory asks the model to pick one of the offered categories by
// name. An answer that matches no option (or "None") comes back as "".
func (c *Client) ChooseCategory(ctx context.Context, email EmailContent, options []CategoryOption) (string, error) {
	if len(options) == 0 {
		return "", nil
	}

	var list strings.Builder
	for _, opt := range options {
		fmt.Fprintf(&list, "- %s: %s\n", opt.Name, opt.Description)
	}

	prompt := fmt.Sprintf(
		"You are an email classifier. Pick the single best category for the email below, "+
			"or \"None\" if nothing fits.\n\nCategories:\n%s\n"+
			"Email:\nFrom: %s\nSubject: %s\nBody:\n%s\n\n"+
			"Respond with JSON: {\"category\": \"<name or None>\"}",
		list.String(), email.From, email.Subject, truncate(email.Body, categorizeBodyLimit),
	)

	content, err := c.chat(ctx, "categorize", chatRequest{
		Model:          c.model,
		Messages:       []chatMessage{{Role: "user", Content: prompt}},
		Temperature:    0,
		ResponseFormat: map[string]any{"type": "json_object"},
	})
	if err != nil {
		return "", err
	}

	var out struct {
		Category string `json:"category"`
	}
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		c.logger.Warn("categorize response was not valid JSON", zap.String("content", content))
		return "", nil
	}

	// Only exact matches count; anything else is unclassified.
	for _, opt := range options {
		if out.Category == opt.Name {
			return opt.Name, nil
		}
	}
	return "", nil
}

// Summarize produces a short plain-text summary of the email.
func (c *Client) Summarize(ctx context.Context, email EmailContent) (string, error) {
	prompt := fmt.Sprintf(
		"Summarize this email in 1-2 sentences. Be specific about the key point or action needed.\n\n"+
			"From: %s\nSubject: %s\nBody:\n%s",
		email.From, email.Subject, truncate(email.Body, summarizeBodyLimit),
	)

	content, err := c.chat(ctx, "summarize", chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: 0.2,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(content), nil
}

func (c *Client) chat(ctx context.Context, endpoint string, req chatRequest) (string, error) {
	start := time.Now()
	var content string
	err := c.breaker.Execute(func() error {
		var err error
		content, err = c.doChat(ctx, req)
		return err
	})

	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.RecordAICallLatency(endpoint, status, time.Since(start))

	if err != nil {
		return "", err
	}
	return content, nil
}

func (c *Client) doChat(ctx context.Context, req chatRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("ai: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("ai: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	res, err := c.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("ai: call failed: %w", err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("ai: read response: %w", err)
	}
	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ai: unexpected status %d: %s", res.StatusCode, truncate(string(raw), 200))
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("ai: decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("ai: empty response")
	}
	return parsed.Choices[0].Message.Content, nil
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
