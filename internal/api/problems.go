package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/codearena-dev/codearena/internal/domain"
	"github.com/codearena-dev/codearena/internal/identity"
	"github.com/codearena-dev/codearena/internal/sandbox"
)

// ListProblems handles GET /api/problems.
func (h *Handler) ListProblems(w http.ResponseWriter, r *http.Request) {
	problems, err := h.repo.ListProblems(r.Context())
	if err != nil {
		slog.Error("failed to list problems", "error", err)
		Error(w, http.StatusInternalServerError, "failed to list problems")
		return
	}
	JSON(w, http.StatusOK, problems)
}

// GetProblem handles GET /api/problems/{problemID}.
func (h *Handler) GetProblem(w http.ResponseWriter, r *http.Request) {
	problemID := chi.URLParam(r, "problemID")
	problem, err := h.repo.GetProblem(r.Context(), problemID)
	if err != nil {
		slog.Error("failed to get problem", "problem_id", problemID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to get problem")
		return
	}
	if problem == nil {
		Error(w, http.StatusNotFound, "problem not found")
		return
	}
	JSON(w, http.StatusOK, problem)
}

// ListSubmissions handles GET /api/problems/{problemID}/submissions for the
// requesting user.
func (h *Handler) ListSubmissions(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "no identity")
		return
	}

	problemID := chi.URLParam(r, "problemID")
	subs, err := h.repo.ListSubmissions(r.Context(), userID, problemID)
	if err != nil {
		slog.Error("failed to list submissions", "user_id", userID, "problem_id", problemID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to list submissions")
		return
	}
	if subs == nil {
		subs = []*domain.Submission{}
	}
	JSON(w, http.StatusOK, subs)
}

// Me handles GET /api/me: the user record plus the display username and the
// time remaining before the practice session expires.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "no identity")
		return
	}

	user, err := h.repo.GetUser(r.Context(), userID)
	if err != nil {
		slog.Error("failed to get user", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to get user")
		return
	}
	if user == nil {
		Error(w, http.StatusNotFound, "user not found")
		return
	}

	JSON(w, http.StatusOK, map[string]any{
		"user":                    user,
		"username":                identity.UsernameFromContext(r.Context()),
		"session_expires_in_secs": int64(user.SessionTTL(h.cfg.SessionTTL).Seconds()),
	})
}

// Config handles GET /api/config, exposing the capability flags the SPA
// needs to render itself. Secrets never leave the server.
func (h *Handler) Config(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]any{
		"ai_enabled": h.cfg.AIEnabled(),
		"languages":  sandbox.SupportedLanguages(),
	})
}
