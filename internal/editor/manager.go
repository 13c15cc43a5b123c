package editor

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/coder/websocket"

	"github.com/codearena-dev/codearena/internal/domain"
)

// Event is a server-to-browser editor sync message.
type Event struct {
	Type       string                    `json:"type"`
	State      string                    `json:"state,omitempty"`
	Suggestion *domain.PendingSuggestion `json:"suggestion,omitempty"`
}

// ConnManager manages active editor-sync WebSocket connections for users.
type ConnManager struct {
	mu     sync.RWMutex
	active map[string]map[string]*websocket.Conn
}

// NewConnManager creates a new connection manager.
func NewConnManager() *ConnManager {
	return &ConnManager{
		active: make(map[string]map[string]*websocket.Conn),
	}
}

// GetActive returns the active connection for a user and session.
func (m *ConnManager) GetActive(userID, sessionID string) *websocket.Conn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if sessions, ok := m.active[userID]; ok {
		return sessions[sessionID]
	}
	return nil
}

// Register adds a new WebSocket connection for a user/session.
func (m *ConnManager) Register(userID, sessionID string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.active[userID]; !exists {
		m.active[userID] = make(map[string]*websocket.Conn)
	}

	if existing, exists := m.active[userID][sessionID]; exists && existing != conn {
		_ = existing.Close(websocket.StatusNormalClosure, "session replaced")
	}

	m.active[userID][sessionID] = conn
	slog.Info("Editor sync registered", "user_id", userID, "session_id", sessionID)
}

// Unregister removes a WebSocket connection for a user/session.
func (m *ConnManager) Unregister(userID, sessionID string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sessions, ok := m.active[userID]; ok {
		if current, exists := sessions[sessionID]; exists && current == conn {
			delete(sessions, sessionID)
			if len(sessions) == 0 {
				delete(m.active, userID)
			}
			slog.Info("Editor sync unregistered", "user_id", userID, "session_id", sessionID)
		}
	}
}

// CloseSession forcefully terminates the active connection for a user tab.
// Used when the session expires server-side.
func (m *ConnManager) CloseSession(userID, sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sessions, ok := m.active[userID]
	if !ok {
		return
	}
	conn, ok := sessions[sessionID]
	if !ok {
		return
	}

	_ = conn.Close(websocket.StatusNormalClosure, "session expired")
	delete(sessions, sessionID)
	if len(sessions) == 0 {
		delete(m.active, userID)
	}
	slog.Info("Editor sync closed", "user_id", userID, "session_id", sessionID)
}

// Push sends a JSON event to the active connection for a user/session, if
// any. Delivery is best-effort; a missing or failed connection is not an
// error, the browser resyncs on reconnect.
func (m *ConnManager) Push(ctx context.Context, userID, sessionID string, event any) {
	conn := m.GetActive(userID, sessionID)
	if conn == nil {
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		slog.Warn("failed to marshal editor sync event", "error", err, "user_id", userID)
		return
	}

	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		slog.Debug("editor sync push failed", "error", err, "user_id", userID, "session_id", sessionID)
	}
}
