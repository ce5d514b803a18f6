// Package agent wraps the external AI provider behind a single
// text-to-structured-JSON capability. The provider's semantics are opaque to
// the rest of the system; only transport, retries, and output validation
// live here.
package agent

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

const (
	// DefaultBaseURL targets an OpenAI-compatible chat completions endpoint
	DefaultBaseURL = "https://api.groq.com/openai/v1/chat/completions"
	// DefaultModel is used when no model is configured
	DefaultModel = "llama-3.3-70b-versatile"
	// DefaultTimeout bounds a single provider round-trip
	DefaultTimeout = 60 * time.Second

	maxRetries     = 3
	initialBackoff = 1 * time.Second
	maxBackoff     = 30 * time.Second
)

// ErrNotConfigured is returned when no API key is set
var ErrNotConfigured = errors.New("agent provider not configured")

// Client handles communication with the AI provider
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a provider client. An empty baseURL or model selects the
// defaults.
func NewClient(apiKey, model, baseURL string) *Client {
	if model == "" {
		model = DefaultModel
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		apiKey:  apiKey,
		model:   model,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// Configured reports whether the provider can be called
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}

// Transform sends the instruction and input to the provider and returns the
// structured JSON the model produced. Non-JSON output is rejected here so
// callers never see free text.
func (c *Client) Transform(ctx context.Context, instruction, input string) (json.RawMessage, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: instruction + "\nRespond with a single JSON object and nothing else."},
			{Role: "user", Content: input},
		},
		Temperature: 0.2,
		MaxTokens:   1024,
	}

	content, err := c.chat(ctx, &req)
	if err != nil {
		return nil, err
	}

	raw := json.RawMessage(stripCodeFence(content))
	if !json.Valid(raw) {
		return nil, fmt.Errorf("provider returned non-JSON output")
	}
	return raw, nil
}

// chat performs the request with exponential backoff on transient failures
func (c *Client) chat(ctx context.Context, req *chatRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	var lastErr error
	backoff := initialBackoff

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
		if err != nil {
			return "", fmt.Errorf("failed to build request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			lastErr = err
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}

		// Retry on rate limiting and server errors only
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("provider returned status %d", resp.StatusCode)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("provider returned status %d: %s", resp.StatusCode, respBody)
		}

		var parsed chatResponse
		if err := json.Unmarshal(respBody, &parsed); err != nil {
			return "", fmt.Errorf("failed to decode provider response: %w", err)
		}
		if len(parsed.Choices) == 0 {
			return "", fmt.Errorf("provider returned no choices")
		}
		return parsed.Choices[0].Message.Content, nil
	}

	return "", fmt.Errorf("provider unavailable after %d attempts: %w", maxRetries+1, lastErr)
}

// stripCodeFence removes a markdown code fence some models wrap JSON in
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
	}
	return strings.TrimSpace(s)
}
