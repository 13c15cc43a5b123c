package assistant

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/codearena-dev/codearena/internal/config"
	"github.com/codearena-dev/codearena/internal/identity"
)

// maxChatMessageLength bounds a single chat prompt.
const maxChatMessageLength = 8192

// Handler exposes the chat panel over HTTP.
type Handler struct {
	manager     *Manager
	client      Completer
	rateLimiter *RateLimiter
	enabled     bool
}

// NewHandler creates the assistant HTTP handler. client may be nil when no
// completion API key is configured; chat requests then fail with 503.
func NewHandler(manager *Manager, client Completer, cfg *config.Config) *Handler {
	return &Handler{
		manager:     manager,
		client:      client,
		rateLimiter: NewRateLimiter(cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.WindowDuration),
		enabled:     cfg.AIEnabled(),
	}
}

type chatRequest struct {
	Message string `json:"message"`
	Model   string `json:"model,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "no identity")
		return nil, false
	}
	s, err := h.manager.GetOrCreate(r.Context(), userID, identity.SessionIDFromContext(r.Context()))
	if err != nil {
		slog.Error("failed to load assistant session", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load session")
		return nil, false
	}
	return s, true
}

// Chat handles POST /api/assistant/chat.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	if !h.enabled || h.client == nil {
		writeError(w, http.StatusServiceUnavailable, "assistant is not configured")
		return
	}

	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "no identity")
		return
	}
	if !h.rateLimiter.Allow(userID) {
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message must not be empty")
		return
	}
	if len(req.Message) > maxChatMessageLength {
		writeError(w, http.StatusBadRequest, "message too long")
		return
	}
	model := req.Model
	if model == "" {
		model = DefaultModel
	}
	if !IsSupportedModel(model) {
		writeError(w, http.StatusBadRequest, "unsupported model")
		return
	}

	s, ok := h.session(w, r)
	if !ok {
		return
	}

	snap, err := h.manager.SendChat(r.Context(), s, h.client, req.Message, model)
	if err != nil {
		if errors.Is(err, ErrCompletionInFlight) {
			writeError(w, http.StatusConflict, "a completion is already in progress")
			return
		}
		slog.Error("chat failed", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "chat failed")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// State handles GET /api/assistant/state.
func (h *Handler) State(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.Snapshot())
}

// AcceptSuggestion handles POST /api/assistant/suggestion/accept.
func (h *Handler) AcceptSuggestion(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	snap, err := h.manager.AcceptSuggestion(r.Context(), s)
	switch {
	case errors.Is(err, ErrNoPendingSuggestion):
		writeError(w, http.StatusConflict, "no pending suggestion")
	case errors.Is(err, ErrEditorUnavailable):
		writeError(w, http.StatusConflict, "editor unavailable")
	case err != nil:
		slog.Error("accept suggestion failed", "user_id", s.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "accept failed")
	default:
		writeJSON(w, http.StatusOK, snap)
	}
}

// RejectSuggestion handles POST /api/assistant/suggestion/reject.
func (h *Handler) RejectSuggestion(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	snap, err := h.manager.RejectSuggestion(r.Context(), s)
	switch {
	case errors.Is(err, ErrNoPendingSuggestion):
		writeError(w, http.StatusConflict, "no pending suggestion")
	case err != nil:
		slog.Error("reject suggestion failed", "user_id", s.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "reject failed")
	default:
		writeJSON(w, http.StatusOK, snap)
	}
}

// RegisterRoutes registers the chat panel routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/assistant/chat", h.Chat)
	r.Get("/api/assistant/state", h.State)
	r.Get("/api/assistant/models", h.Models)
	r.Post("/api/assistant/suggestion/accept", h.AcceptSuggestion)
	r.Post("/api/assistant/suggestion/reject", h.RejectSuggestion)
}

// Models handles GET /api/assistant/models.
func (h *Handler) Models(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"enabled": h.enabled,
		"models":  SupportedModels,
		"default": DefaultModel,
	})
}
