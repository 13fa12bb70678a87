package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/foxseedlab/tsuyaku/internal/llm"
	"github.com/foxseedlab/tsuyaku/internal/translation"
)

const maxErrorBodyBytes = 4096

// OpenAIClient talks to an OpenAI compatible chat completions endpoint.
type OpenAIClient struct {
	baseURL     string
	model       string
	credentials llm.CredentialSource
	client      *http.Client
}

func NewOpenAIClient(baseURL, model string, timeout time.Duration, credentials llm.CredentialSource) *OpenAIClient {
	return &OpenAIClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		model:       model,
		credentials: credentials,
		client:      &http.Client{Timeout: timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *OpenAIClient) Translate(ctx context.Context, req translation.Request) (string, error) {
	out, err := c.complete(ctx, chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: translationPrompt(req)},
			{Role: "user", Content: req.Text},
		},
	})
	if err != nil {
		return "", fmt.Errorf("translate: %w", err)
	}
	return strings.TrimSpace(out), nil
}

func (c *OpenAIClient) Summarize(ctx context.Context, req llm.SummaryRequest) (llm.Summary, error) {
	out, err := c.complete(ctx, chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: summaryPrompt(req.Language)},
			{Role: "user", Content: req.Text},
		},
		ResponseFormat: &responseFormat{Type: "json_object"},
	})
	if err != nil {
		return llm.Summary{}, fmt.Errorf("summarize: %w", err)
	}
	var s llm.Summary
	if err := json.Unmarshal([]byte(stripCodeFence(out)), &s); err != nil {
		return llm.Summary{}, fmt.Errorf("failed to parse summary reply: %w", err)
	}
	return s, nil
}

func (c *OpenAIClient) complete(ctx context.Context, body chatRequest) (string, error) {
	key, err := c.credentials.APIKey(ctx)
	if err != nil {
		return "", err
	}

	b, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+key)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if !isHTTPSuccessStatus(resp.StatusCode) {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		var e errorResponse
		if json.Unmarshal(raw, &e) == nil && e.Error.Message != "" {
			return "", fmt.Errorf("api returned status %d: %s", resp.StatusCode, e.Error.Message)
		}
		return "", fmt.Errorf("api returned status %d", resp.StatusCode)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("response has no choices")
	}
	return out.Choices[0].Message.Content, nil
}

func isHTTPSuccessStatus(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
