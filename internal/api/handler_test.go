package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/codearena-dev/codearena/internal/config"
	"github.com/codearena-dev/codearena/internal/domain"
	"github.com/codearena-dev/codearena/internal/identity"
	"github.com/codearena-dev/codearena/internal/sandbox"
)

type fakeRepo struct {
	mu          sync.Mutex
	problems    map[string]*domain.Problem
	submissions []*domain.Submission
	users       map[string]*domain.User
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		problems: make(map[string]*domain.Problem),
		users:    make(map[string]*domain.User),
	}
}

func (f *fakeRepo) GetUser(_ context.Context, userID string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.users[userID]
	if u == nil {
		return nil, nil
	}
	copy := *u
	return &copy, nil
}

func (f *fakeRepo) UpsertUser(_ context.Context, user *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copy := *user
	f.users[user.UserID] = &copy
	return nil
}

func (f *fakeRepo) UpdateLastSeen(_ context.Context, _ string, _ time.Time) error { return nil }

func (f *fakeRepo) ListProblems(_ context.Context) ([]*domain.Problem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*domain.Problem, 0, len(f.problems))
	for _, p := range f.problems {
		copy := *p
		out = append(out, &copy)
	}
	return out, nil
}

func (f *fakeRepo) GetProblem(_ context.Context, problemID string) (*domain.Problem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.problems[problemID]
	if p == nil {
		return nil, nil
	}
	copy := *p
	return &copy, nil
}

func (f *fakeRepo) UpsertProblem(_ context.Context, p *domain.Problem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copy := *p
	f.problems[p.ProblemID] = &copy
	return nil
}

func (f *fakeRepo) CreateSubmission(_ context.Context, sub *domain.Submission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copy := *sub
	f.submissions = append(f.submissions, &copy)
	return nil
}

func (f *fakeRepo) ListSubmissions(_ context.Context, userID, problemID string) ([]*domain.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Submission
	for _, s := range f.submissions {
		if s.UserID == userID && s.ProblemID == problemID {
			copy := *s
			out = append(out, &copy)
		}
	}
	return out, nil
}

func (f *fakeRepo) GetAssistantSession(_ context.Context, _, _ string) (*domain.AssistantSession, error) {
	return nil, nil
}
func (f *fakeRepo) UpsertAssistantSession(_ context.Context, _ *domain.AssistantSession) error {
	return nil
}
func (f *fakeRepo) DeleteAssistantSession(_ context.Context, _, _ string) error { return nil }
func (f *fakeRepo) CleanupExpiredAssistantSessions(_ context.Context, _ time.Duration) (int64, error) {
	return 0, nil
}
func (f *fakeRepo) Ping(_ context.Context) error { return nil }
func (f *fakeRepo) Close() error                 { return nil }

// fakeRunner records the source it was asked to run.
type fakeRunner struct {
	mu     sync.Mutex
	output string
	err    error
	ran    []string
}

func (f *fakeRunner) Run(_ context.Context, source, language string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !sandbox.IsSupported(language) {
		return sandbox.UnsupportedLanguageMessage, nil
	}
	f.ran = append(f.ran, source)
	if f.err != nil {
		return "", f.err
	}
	return f.output, nil
}

func testRouter(h *Handler, repo *fakeRepo) http.Handler {
	r := chi.NewRouter()
	r.Use(identity.Middleware(repo, true))
	r.Get("/api/problems", h.ListProblems)
	r.Get("/api/problems/{problemID}", h.GetProblem)
	r.Get("/api/problems/{problemID}/submissions", h.ListSubmissions)
	r.Post("/api/run", h.Run)
	r.Post("/api/submit", h.Submit)
	r.Get("/api/me", h.Me)
	r.Get("/api/config", h.Config)
	return r
}

func seedProblem(t *testing.T, repo *fakeRepo) {
	t.Helper()
	err := repo.UpsertProblem(context.Background(), &domain.Problem{
		ProblemID:  "two-sum",
		Title:      "Two Sum",
		Difficulty: domain.DifficultyEasy,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"foo": "bar"}

	JSON(w, http.StatusOK, data)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if got["foo"] != "bar" {
		t.Errorf("Expected foo=bar, got %v", got["foo"])
	}
}

func TestGetProblem(t *testing.T) {
	t.Parallel()
	repo := newFakeRepo()
	seedProblem(t, repo)
	router := testRouter(NewHandler(repo, &fakeRunner{}, &config.Config{}), repo)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/problems/two-sum", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var got domain.Problem
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if got.Title != "Two Sum" {
		t.Errorf("Title = %q", got.Title)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/problems/unknown", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("status for unknown problem = %d, want 404", w.Code)
	}
}

func TestRunExecutesSanitizedCode(t *testing.T) {
	t.Parallel()
	repo := newFakeRepo()
	runner := &fakeRunner{output: "42\n"}
	router := testRouter(NewHandler(repo, runner, &config.Config{}), repo)

	body := `{"language":"python","code":"import os\nprint(42)"}`
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/run", strings.NewReader(body)))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp runResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Output != "42\n" {
		t.Errorf("Output = %q", resp.Output)
	}

	// The disallowed import must have been stripped before execution.
	runner.mu.Lock()
	defer runner.mu.Unlock()
	if len(runner.ran) != 1 {
		t.Fatalf("runner called %d times, want 1", len(runner.ran))
	}
	if strings.Contains(runner.ran[0], "import os") {
		t.Errorf("runner received unsanitized source: %q", runner.ran[0])
	}
}

func TestRunSurfacesExecutionFailureAsOutput(t *testing.T) {
	t.Parallel()
	repo := newFakeRepo()
	runner := &fakeRunner{err: context.DeadlineExceeded}
	router := testRouter(NewHandler(repo, runner, &config.Config{}), repo)

	body := `{"language":"python","code":"print(1)"}`
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/run", strings.NewReader(body)))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, execution failure must not fail the request", w.Code)
	}
	var resp runResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if !strings.HasPrefix(resp.Output, "Execution failed:") {
		t.Errorf("Output = %q", resp.Output)
	}
}

func TestSubmitPersistsSubmission(t *testing.T) {
	t.Parallel()
	repo := newFakeRepo()
	seedProblem(t, repo)
	router := testRouter(NewHandler(repo, &fakeRunner{}, &config.Config{}), repo)

	body := `{"problem_id":"two-sum","language":"python","code":"def two_sum(n, t):\n    pass"}`
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/submit", strings.NewReader(body)))

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var sub domain.Submission
	if err := json.NewDecoder(w.Body).Decode(&sub); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if sub.SubmissionID == "" {
		t.Error("submission has no id")
	}
	if sub.SubmittedAt.IsZero() {
		t.Error("submission has no server-assigned timestamp")
	}
	if len(repo.submissions) != 1 {
		t.Errorf("persisted %d submissions, want 1", len(repo.submissions))
	}
}

func TestSubmitBlockedBySanitizerViolations(t *testing.T) {
	t.Parallel()
	repo := newFakeRepo()
	seedProblem(t, repo)
	router := testRouter(NewHandler(repo, &fakeRunner{}, &config.Config{}), repo)

	body := `{"problem_id":"two-sum","language":"javascript","code":"eval(input)"}`
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/submit", strings.NewReader(body)))

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", w.Code)
	}
	if len(repo.submissions) != 0 {
		t.Error("violating submission was persisted")
	}
}

func TestSubmitValidation(t *testing.T) {
	t.Parallel()
	repo := newFakeRepo()
	seedProblem(t, repo)
	router := testRouter(NewHandler(repo, &fakeRunner{}, &config.Config{}), repo)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"missing problem", `{"language":"python","code":"x = 1"}`, http.StatusBadRequest},
		{"unknown problem", `{"problem_id":"nope","language":"python","code":"x = 1"}`, http.StatusNotFound},
		{"unsupported language", `{"problem_id":"two-sum","language":"cobol","code":"x"}`, http.StatusBadRequest},
		{"empty code", `{"problem_id":"two-sum","language":"python","code":""}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/submit", strings.NewReader(tt.body)))
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestListSubmissionsEmpty(t *testing.T) {
	t.Parallel()
	repo := newFakeRepo()
	seedProblem(t, repo)
	router := testRouter(NewHandler(repo, &fakeRunner{}, &config.Config{}), repo)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/problems/two-sum/submissions", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if body := strings.TrimSpace(w.Body.String()); body != "[]" {
		t.Errorf("body = %q, want empty array", body)
	}
}

func TestMe(t *testing.T) {
	t.Parallel()
	repo := newFakeRepo()
	cfg := &config.Config{SessionTTL: time.Hour}
	router := testRouter(NewHandler(repo, &fakeRunner{}, cfg), repo)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/me", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var got struct {
		User                 *domain.User `json:"user"`
		Username             string       `json:"username"`
		SessionExpiresInSecs int64        `json:"session_expires_in_secs"`
	}
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if got.User == nil || got.User.UserID == "" {
		t.Fatalf("user = %+v", got.User)
	}
	if got.Username == "" || got.Username != got.User.Username {
		t.Errorf("username = %q, user record has %q", got.Username, got.User.Username)
	}
	if got.SessionExpiresInSecs <= 0 || got.SessionExpiresInSecs > 3600 {
		t.Errorf("session_expires_in_secs = %d, want within the configured hour", got.SessionExpiresInSecs)
	}
}

func TestConfigEndpoint(t *testing.T) {
	t.Parallel()
	repo := newFakeRepo()
	cfg := &config.Config{Completion: config.CompletionConfig{APIKey: "k"}}
	router := testRouter(NewHandler(repo, &fakeRunner{}, cfg), repo)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/config", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var got struct {
		AIEnabled bool     `json:"ai_enabled"`
		Languages []string `json:"languages"`
	}
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if !got.AIEnabled {
		t.Error("ai_enabled = false with an API key configured")
	}
	if len(got.Languages) != 4 {
		t.Errorf("languages = %v, want 4 entries", got.Languages)
	}
}
