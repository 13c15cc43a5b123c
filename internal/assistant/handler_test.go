package assistant

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/codearena-dev/codearena/internal/config"
	"github.com/codearena-dev/codearena/internal/domain"
	"github.com/codearena-dev/codearena/internal/identity"
)

func testConfig(apiKey string, limit int) *config.Config {
	return &config.Config{
		Completion: config.CompletionConfig{APIKey: apiKey},
		RateLimit: config.RateLimitConfig{
			RequestsPerWindow: limit,
			WindowDuration:    time.Minute,
		},
	}
}

func chatRequestBody(t *testing.T, message string) *strings.Reader {
	t.Helper()
	data, err := json.Marshal(chatRequest{Message: message})
	if err != nil {
		t.Fatalf("Failed to encode request: %v", err)
	}
	return strings.NewReader(string(data))
}

func TestChatEndpointUnconfigured(t *testing.T) {
	t.Parallel()
	repo := newFakeRepo()
	h := NewHandler(NewManager(repo, nil), nil, testConfig("", 10))

	req := httptest.NewRequest(http.MethodPost, "/api/assistant/chat", chatRequestBody(t, "hi"))
	w := httptest.NewRecorder()
	identity.Middleware(repo, true)(http.HandlerFunc(h.Chat)).ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestChatEndpointRoundTrip(t *testing.T) {
	t.Parallel()
	repo := newFakeRepo()
	completer := &fakeCompleter{reply: "```python\nprint(7)\n```"}
	h := NewHandler(NewManager(repo, nil), completer, testConfig("key", 10))

	req := httptest.NewRequest(http.MethodPost, "/api/assistant/chat", chatRequestBody(t, "show me"))
	w := httptest.NewRecorder()
	identity.Middleware(repo, true)(http.HandlerFunc(h.Chat)).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var snap StateSnapshot
	if err := json.NewDecoder(w.Body).Decode(&snap); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(snap.Transcript) != 2 {
		t.Fatalf("transcript length = %d, want 2", len(snap.Transcript))
	}
	if snap.Transcript[1].Role != domain.RoleAssistant {
		t.Errorf("second message role = %q", snap.Transcript[1].Role)
	}
	if snap.State != StatePendingInsert || snap.Pending == nil || snap.Pending.Code != "print(7)" {
		t.Errorf("suggestion state = %q, pending = %+v", snap.State, snap.Pending)
	}
}

func TestChatEndpointRateLimited(t *testing.T) {
	t.Parallel()
	repo := newFakeRepo()
	completer := &fakeCompleter{reply: "ok"}
	h := NewHandler(NewManager(repo, nil), completer, testConfig("key", 1))
	mw := identity.Middleware(repo, true)(http.HandlerFunc(h.Chat))

	first := httptest.NewRequest(http.MethodPost, "/api/assistant/chat", chatRequestBody(t, "one"))
	w1 := httptest.NewRecorder()
	mw.ServeHTTP(w1, first)
	if w1.Code != http.StatusOK {
		t.Fatalf("first request status = %d", w1.Code)
	}

	// Same anonymous identity via the cookie the first response set.
	second := httptest.NewRequest(http.MethodPost, "/api/assistant/chat", chatRequestBody(t, "two"))
	for _, c := range w1.Result().Cookies() {
		second.AddCookie(c)
	}
	w2 := httptest.NewRecorder()
	mw.ServeHTTP(w2, second)
	if w2.Code != http.StatusTooManyRequests {
		t.Errorf("second request status = %d, want 429", w2.Code)
	}
}

func TestChatEndpointRejectsBadPayloads(t *testing.T) {
	t.Parallel()
	repo := newFakeRepo()
	h := NewHandler(NewManager(repo, nil), &fakeCompleter{reply: "ok"}, testConfig("key", 10))
	mw := identity.Middleware(repo, true)(http.HandlerFunc(h.Chat))

	tests := []struct {
		name string
		body string
	}{
		{"empty message", `{"message":""}`},
		{"not json", `nope`},
		{"unknown model", `{"message":"hi","model":"made-up/model"}`},
		{"oversized message", `{"message":"` + strings.Repeat("a", maxChatMessageLength+1) + `"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/assistant/chat", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			mw.ServeHTTP(w, req)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
}

func TestAcceptEndpointWithNothingPending(t *testing.T) {
	t.Parallel()
	repo := newFakeRepo()
	h := NewHandler(NewManager(repo, nil), &fakeCompleter{reply: "ok"}, testConfig("key", 10))

	req := httptest.NewRequest(http.MethodPost, "/api/assistant/suggestion/accept", nil)
	w := httptest.NewRecorder()
	identity.Middleware(repo, true)(http.HandlerFunc(h.AcceptSuggestion)).ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Code)
	}
}

func TestStateEndpointStartsEmpty(t *testing.T) {
	t.Parallel()
	repo := newFakeRepo()
	h := NewHandler(NewManager(repo, nil), nil, testConfig("", 10))

	req := httptest.NewRequest(http.MethodGet, "/api/assistant/state", nil)
	w := httptest.NewRecorder()
	identity.Middleware(repo, true)(http.HandlerFunc(h.State)).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var snap StateSnapshot
	if err := json.NewDecoder(w.Body).Decode(&snap); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(snap.Transcript) != 0 || snap.State != StateIdle {
		t.Errorf("fresh session snapshot = %+v", snap)
	}
	if snap.PanelWidth != 384 {
		t.Errorf("PanelWidth = %d, want default 384", snap.PanelWidth)
	}
}
