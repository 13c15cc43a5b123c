package assistant

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"

	"github.com/codearena-dev/codearena/internal/domain"
	"github.com/codearena-dev/codearena/internal/editor"
	"github.com/codearena-dev/codearena/internal/identity"
	"github.com/codearena-dev/codearena/internal/panel"
)

// SyncHandler handles the editor sync WebSocket. The browser editor mirrors
// its document, cursor, selection and panel drag gestures into the session;
// suggestion state changes flow back over the same connection.
type SyncHandler struct {
	manager       *Manager
	conns         *editor.ConnManager
	allowedOrigin string
	isDev         bool
}

// NewSyncHandler creates a new editor sync WebSocket handler.
func NewSyncHandler(manager *Manager, conns *editor.ConnManager, allowedOrigin string, isDev bool) *SyncHandler {
	return &SyncHandler{
		manager:       manager,
		conns:         conns,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// syncMessage represents a browser-to-server sync message.
type syncMessage struct {
	Type          string `json:"type"`
	Content       string `json:"content,omitempty"`
	Cursor        int    `json:"cursor,omitempty"`
	Start         int    `json:"start,omitempty"`
	End           int    `json:"end,omitempty"`
	ViewportWidth int    `json:"viewport_width,omitempty"`
	PointerX      int    `json:"pointer_x,omitempty"`
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *SyncHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	if userID == "" {
		http.Error(w, "no identity", http.StatusUnauthorized)
		return
	}
	slog.Info("Editor sync connection request",
		"user_id", userID, "session_id", sessionID, "ip", identity.IPFromRequest(r))

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	session, err := h.manager.GetOrCreate(r.Context(), userID, sessionID)
	if err != nil {
		slog.Error("Failed to load session for editor sync", "error", err, "user_id", userID)
		http.Error(w, "failed to load session", http.StatusInternalServerError)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "user_id", userID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "user_id", userID)
		}
	}()

	h.conns.Register(userID, sessionID, ws)
	defer h.conns.Unregister(userID, sessionID, ws)

	h.readLoop(r, ws, session)
	slog.Info("Editor sync session ended", "user_id", userID, "session_id", sessionID)
}

func (h *SyncHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func (h *SyncHandler) readLoop(r *http.Request, ws *websocket.Conn, session *Session) {
	ctx := r.Context()
	for {
		_, message, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("WebSocket closed by client", "user_id", session.UserID)
			} else {
				slog.Warn("WebSocket read error", "error", err, "user_id", session.UserID)
			}
			return
		}

		var msg syncMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			slog.Debug("Dropping malformed sync message", "error", err, "user_id", session.UserID)
			continue
		}

		switch msg.Type {
		case "content":
			session.WithEditor(func(b *editor.Buffer) {
				b.SetContent(msg.Content)
			})
		case "cursor":
			session.WithEditor(func(b *editor.Buffer) {
				b.SetCursor(msg.Cursor)
			})
		case "selection":
			session.WithEditor(func(b *editor.Buffer) {
				b.SetSelection(domain.SelectionRange{Start: msg.Start, End: msg.End})
			})
			// A selection change re-evaluates the suggestion state; tell
			// the browser if it produced an offer.
			h.manager.pushSuggestionState(ctx, session, session.Snapshot())
		case "panel_drag_begin":
			session.WithPanel(func(l *panel.Layout) {
				l.BeginDrag()
			})
		case "panel_drag":
			session.WithPanel(func(l *panel.Layout) {
				l.Drag(msg.ViewportWidth, msg.PointerX)
			})
		case "panel_drag_end":
			session.WithPanel(func(l *panel.Layout) {
				l.EndDrag()
			})
		case "ping":
			data, err := json.Marshal(map[string]string{"type": "pong"})
			if err != nil {
				slog.Error("Failed to marshal pong", "error", err)
				continue
			}
			if err := ws.Write(ctx, websocket.MessageText, data); err != nil {
				slog.Debug("Failed to send pong", "error", err, "user_id", session.UserID)
			}
		default:
			slog.Debug("Unknown sync message type", "type", msg.Type, "user_id", session.UserID)
		}
	}
}
