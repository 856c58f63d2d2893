// Package completion wraps an OpenAI-compatible chat completions endpoint
// behind a small client interface. The client sends exactly one outbound
// request per call and never retries; retry policy belongs to callers that
// know the cost and urgency of their call site.
package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const errorBodyLimit = 512

// Request is one completion call. Timeout is a hard per-call deadline;
// callers choose shorter values for SQL generation and longer ones for the
// comprehensive composition call.
type Request struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Error reports an upstream completion failure: a non-success status, a
// malformed envelope, or a timeout. Callers must treat it as recoverable.
type Error struct {
	Status  int
	Body    string
	Timeout bool
	Reason  string
}

func (e *Error) Error() string {
	if e.Timeout {
		return "completion timed out: " + e.Reason
	}
	if e.Status > 0 {
		return fmt.Sprintf("completion failed status=%d body=%s", e.Status, e.Body)
	}
	return "completion failed: " + e.Reason
}

type Config struct {
	BaseURL        string
	APIKey         string
	Model          string
	DefaultTimeout time.Duration
}

type HTTPClient struct {
	baseURL string
	apiKey  string
	model   string
	timeout time.Duration
	client  *http.Client
}

func NewHTTPClient(cfg Config) (*HTTPClient, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		return nil, fmt.Errorf("model is required")
	}
	timeout := cfg.DefaultTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:  strings.TrimSpace(cfg.APIKey),
		model:   model,
		timeout: timeout,
		client:  &http.Client{},
	}, nil
}

func (c *HTTPClient) Complete(ctx context.Context, req Request) (string, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	payload := map[string]any{
		"model":       c.model,
		"messages":    buildMessages(req),
		"temperature": req.Temperature,
	}
	if req.MaxTokens > 0 {
		payload["max_tokens"] = req.MaxTokens
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal completion payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build completion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", &Error{Timeout: true, Reason: err.Error()}
		}
		return "", &Error{Reason: err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()

	rawBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", &Error{Reason: "read completion response: " + err.Error()}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &Error{Status: resp.StatusCode, Body: truncate(string(rawBody), errorBodyLimit)}
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(rawBody, &parsed); err != nil {
		return "", &Error{Reason: "decode completion response: " + err.Error()}
	}
	if len(parsed.Choices) == 0 {
		return "", &Error{Reason: "empty completion choices"}
	}
	return parsed.Choices[0].Message.Content, nil
}

func buildMessages(req Request) []map[string]string {
	messages := make([]map[string]string, 0, 2)
	if strings.TrimSpace(req.System) != "" {
		messages = append(messages, map[string]string{"role": "system", "content": req.System})
	}
	messages = append(messages, map[string]string{"role": "user", "content": req.Prompt})
	return messages
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
