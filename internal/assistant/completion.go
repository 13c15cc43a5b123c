package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/codearena-dev/codearena/internal/config"
)

// systemInstruction is sent with every completion request.
const systemInstruction = "You are a helpful coding assistant."

// emptyCompletionFallback is returned when the endpoint answers 2xx but
// produces no text. A send attempt never silently yields nothing.
const emptyCompletionFallback = "No response from AI."

// Generation parameters, fixed for every request.
const (
	completionMaxTokens   = 512
	completionTemperature = 0.2
)

// SupportedModels is the fixed set of model identifiers a chat request may
// name. Requests for anything else are rejected before any network call.
var SupportedModels = []string{
	"openai/gpt-4o-mini",
	"anthropic/claude-3.5-sonnet",
	"meta-llama/llama-3.1-70b-instruct",
}

// DefaultModel is used when a chat request names no model.
const DefaultModel = "openai/gpt-4o-mini"

// IsSupportedModel reports whether model belongs to the fixed set.
func IsSupportedModel(model string) bool {
	for _, m := range SupportedModels {
		if m == model {
			return true
		}
	}
	return false
}

// CompletionError is a non-success response from the completion endpoint.
// Body carries the raw response text for diagnostics.
type CompletionError struct {
	StatusCode int
	Body       string
}

func (e *CompletionError) Error() string {
	return fmt.Sprintf("completion request failed with status %d: %s", e.StatusCode, e.Body)
}

// Client calls a remote OpenAI-compatible chat-completion endpoint. One
// outbound request per Complete call: no retry, no caching, no local
// timeout beyond the transport's own. Callers prevent concurrent duplicate
// sends (the session keeps one completion in flight at a time).
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewClient creates a completion client for the configured endpoint.
func NewClient(cfg config.CompletionConfig) *Client {
	return &Client{
		httpClient: &http.Client{},
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
	}
}

type completionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model       string              `json:"model"`
	Messages    []completionMessage `json:"messages"`
	MaxTokens   int                 `json:"max_tokens"`
	Temperature float64             `json:"temperature"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends one prompt and returns the assistant text.
func (c *Client) Complete(ctx context.Context, prompt, model string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("prompt must not be empty")
	}
	if !IsSupportedModel(model) {
		return "", fmt.Errorf("unsupported model %q", model)
	}

	payload, err := json.Marshal(completionRequest{
		Model: model,
		Messages: []completionMessage{
			{Role: "system", Content: systemInstruction},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   completionMaxTokens,
		Temperature: completionTemperature,
	})
	if err != nil {
		return "", fmt.Errorf("encode completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("call completion endpoint: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Debug("failed to close completion response body", "error", closeErr)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read completion response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &CompletionError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var decoded completionResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", fmt.Errorf("decode completion response: %w", err)
	}

	if len(decoded.Choices) == 0 {
		return emptyCompletionFallback, nil
	}
	text := strings.TrimSpace(decoded.Choices[0].Message.Content)
	if text == "" {
		return emptyCompletionFallback, nil
	}
	return text, nil
}
