package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/codearena-dev/codearena/internal/config"
)

// RemoteRunner executes code through a Judge0-style HTTP execution API.
type RemoteRunner struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	apiHost    string
}

// NewRemoteRunner creates a runner for the configured execution API.
func NewRemoteRunner(cfg config.SandboxConfig) *RemoteRunner {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RemoteRunner{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		apiHost:    cfg.APIHost,
	}
}

type remoteSubmission struct {
	SourceCode string `json:"source_code"`
	LanguageID int    `json:"language_id"`
}

type remoteResult struct {
	Stdout        string `json:"stdout"`
	Stderr        string `json:"stderr"`
	CompileOutput string `json:"compile_output"`
	Message       string `json:"message"`
}

// Run submits the source for synchronous execution. Unsupported language
// tags short-circuit locally with a fixed message and no network call.
func (r *RemoteRunner) Run(ctx context.Context, source, language string) (string, error) {
	languageID, ok := languageIDs[language]
	if !ok {
		return UnsupportedLanguageMessage, nil
	}

	payload, err := json.Marshal(remoteSubmission{
		SourceCode: source,
		LanguageID: languageID,
	})
	if err != nil {
		return "", fmt.Errorf("encode submission: %w", err)
	}

	url := r.baseURL + "/submissions?base64_encoded=false&wait=true"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create submission request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("X-RapidAPI-Key", r.apiKey)
	}
	if r.apiHost != "" {
		req.Header.Set("X-RapidAPI-Host", r.apiHost)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("submit code: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Debug("failed to close sandbox response body", "error", closeErr)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read sandbox response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("sandbox returned status %d: %s", resp.StatusCode, string(body))
	}

	var result remoteResult
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("decode sandbox response: %w", err)
	}

	return result.output(), nil
}

// output picks the user-facing text in fixed priority order.
func (res *remoteResult) output() string {
	for _, candidate := range []string{res.Stdout, res.Stderr, res.CompileOutput, res.Message} {
		if candidate != "" {
			return candidate
		}
	}
	return NoOutputMessage
}
