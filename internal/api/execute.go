package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/codearena-dev/codearena/internal/domain"
	"github.com/codearena-dev/codearena/internal/identity"
	"github.com/codearena-dev/codearena/internal/sandbox"
	"github.com/codearena-dev/codearena/internal/sanitize"
)

// maxCodeLength bounds run and submit payloads.
const maxCodeLength = 64 * 1024

type executeRequest struct {
	ProblemID string `json:"problem_id,omitempty"`
	Language  string `json:"language"`
	Code      string `json:"code"`
}

type runResponse struct {
	Output     string               `json:"output"`
	Violations []sanitize.Violation `json:"violations,omitempty"`
}

func decodeExecuteRequest(w http.ResponseWriter, r *http.Request) (*executeRequest, bool) {
	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return nil, false
	}
	if req.Code == "" {
		Error(w, http.StatusBadRequest, "code must not be empty")
		return nil, false
	}
	if len(req.Code) > maxCodeLength {
		Error(w, http.StatusBadRequest, "code too long")
		return nil, false
	}
	if req.Language == "" {
		Error(w, http.StatusBadRequest, "language must not be empty")
		return nil, false
	}
	return &req, true
}

// Run handles POST /api/run: sanitize, then execute. Execution failures are
// returned as output text with a 200 status; the editor renders whatever
// comes back.
func (h *Handler) Run(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeExecuteRequest(w, r)
	if !ok {
		return
	}

	result := sanitize.Sanitize(req.Code, req.Language)

	output, err := h.runner.Run(r.Context(), result.SanitizedText, req.Language)
	if err != nil {
		slog.Warn("code execution failed", "language", req.Language, "error", err)
		output = "Execution failed: " + err.Error()
	}
	JSON(w, http.StatusOK, runResponse{Output: output, Violations: result.Violations})
}

// Submit handles POST /api/submit. Sanitizer violations block the submission
// with 422 before anything is persisted or executed.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "no identity")
		return
	}

	req, ok := decodeExecuteRequest(w, r)
	if !ok {
		return
	}
	if req.ProblemID == "" {
		Error(w, http.StatusBadRequest, "problem_id must not be empty")
		return
	}
	if !sandbox.IsSupported(req.Language) {
		Error(w, http.StatusBadRequest, sandbox.UnsupportedLanguageMessage)
		return
	}

	if violations := sanitize.Check(req.Code); len(violations) > 0 {
		JSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":      "code contains disallowed constructs",
			"violations": violations,
		})
		return
	}

	problem, err := h.repo.GetProblem(r.Context(), req.ProblemID)
	if err != nil {
		slog.Error("failed to get problem for submit", "problem_id", req.ProblemID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load problem")
		return
	}
	if problem == nil {
		Error(w, http.StatusNotFound, "problem not found")
		return
	}

	sub := &domain.Submission{
		SubmissionID: uuid.NewString(),
		UserID:       userID,
		ProblemID:    req.ProblemID,
		Language:     req.Language,
		Code:         req.Code,
		SubmittedAt:  time.Now(),
	}
	if err := h.repo.CreateSubmission(r.Context(), sub); err != nil {
		slog.Error("failed to persist submission", "user_id", userID, "problem_id", req.ProblemID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to save submission")
		return
	}

	JSON(w, http.StatusCreated, sub)
}
