package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/codearena-dev/codearena/internal/domain"
	"github.com/codearena-dev/codearena/internal/editor"
	"github.com/codearena-dev/codearena/internal/panel"
	"github.com/codearena-dev/codearena/internal/store"
)

// ErrCompletionInFlight is returned when a chat message arrives while a
// completion request for the same session is still outstanding.
var ErrCompletionInFlight = errors.New("completion already in flight")

// cleanupInterval is how often the TTL worker scans for idle sessions.
const cleanupInterval = 5 * time.Minute

// Completer is the completion client surface the session layer depends on.
type Completer interface {
	Complete(ctx context.Context, prompt, model string) (string, error)
}

// Session holds the live state of one chat panel tab: transcript, suggestion
// coordinator, editor buffer and panel layout. All access goes through mu;
// the completion call itself runs outside the lock so a slow endpoint never
// blocks reads of session state.
type Session struct {
	mu        sync.Mutex
	UserID    string
	SessionID string

	transcript *Transcript
	coord      *Coordinator
	editor     *editor.Buffer
	panel      *panel.Layout
	inFlight   bool
}

func newSession(userID, sessionID string) *Session {
	buf := editor.NewBuffer()
	s := &Session{
		UserID:     userID,
		SessionID:  sessionID,
		transcript: NewTranscript(),
		coord:      NewCoordinator(buf),
		editor:     buf,
		panel:      panel.New(),
	}
	// The suggestion state is re-evaluated on every selection change as well
	// as on transcript changes. The callback fires inside SetSelection, so
	// the caller already holds the session lock.
	buf.OnSelectionChange(func(domain.SelectionRange) {
		s.coord.Reevaluate(s.transcript.Snapshot())
	})
	return s
}

// Editor returns the session's editor buffer. Callers must hold no session
// state assumptions across their own calls; buffer mutations go through
// WithEditor to stay serialized.
func (s *Session) Editor() *editor.Buffer {
	return s.editor
}

// WithEditor runs fn against the editor buffer under the session lock.
func (s *Session) WithEditor(fn func(*editor.Buffer)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.editor)
}

// WithPanel runs fn against the panel layout under the session lock.
func (s *Session) WithPanel(fn func(*panel.Layout)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.panel)
}

// StateSnapshot is a point-in-time view of session state for API responses.
type StateSnapshot struct {
	Transcript    []domain.ChatMessage      `json:"transcript"`
	State         State                     `json:"state"`
	Pending       *domain.PendingSuggestion `json:"pending_suggestion,omitempty"`
	PanelWidth    int                       `json:"panel_width"`
	EditorContent string                    `json:"editor_content"`
	InFlight      bool                      `json:"in_flight"`
}

// Snapshot returns a consistent copy of the session's visible state.
func (s *Session) Snapshot() StateSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() StateSnapshot {
	snap := StateSnapshot{
		Transcript:    s.transcript.Snapshot(),
		State:         s.coord.State(),
		PanelWidth:    s.panel.Width(),
		EditorContent: s.editor.Content(),
		InFlight:      s.inFlight,
	}
	if p := s.coord.Pending(); p != nil {
		cp := *p
		if p.Range != nil {
			r := *p.Range
			cp.Range = &r
		}
		snap.Pending = &cp
	}
	return snap
}

// Manager owns all live sessions, restores them from the store on first
// access and persists transcript state after every mutation.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session

	repo  store.Repository
	conns *editor.ConnManager
}

// NewManager creates a session manager backed by repo. conns may be nil when
// no websocket fan-out is wanted (tests).
func NewManager(repo store.Repository, conns *editor.ConnManager) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		repo:     repo,
		conns:    conns,
	}
}

func sessionKey(userID, sessionID string) string {
	return userID + ":" + sessionID
}

// GetOrCreate returns the live session for a user tab, restoring persisted
// transcript state when one exists.
func (m *Manager) GetOrCreate(ctx context.Context, userID, sessionID string) (*Session, error) {
	m.mu.Lock()
	if s, ok := m.sessions[sessionKey(userID, sessionID)]; ok {
		m.mu.Unlock()
		return s, nil
	}
	m.mu.Unlock()

	// Load outside the manager lock; SQLite reads can stall under load.
	persisted, err := m.repo.GetAssistantSession(ctx, userID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load assistant session: %w", err)
	}

	s := newSession(userID, sessionID)
	if persisted != nil {
		transcript, err := restoreTranscript(persisted.TranscriptJSON)
		if err != nil {
			slog.Warn("discarding corrupt persisted transcript",
				"user_id", userID, "session_id", sessionID, "error", err)
		} else {
			s.transcript = transcript
			s.coord.SetLastSuggestedCode(persisted.LastSuggestedCode)
			// A restored transcript may end in an assistant code block
			// that was never offered; evaluate it now.
			if transcript.Len() > 0 {
				s.coord.Reevaluate(transcript.Snapshot())
			}
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.sessions[sessionKey(userID, sessionID)]; ok {
		return existing, nil
	}
	m.sessions[sessionKey(userID, sessionID)] = s
	return s, nil
}

// SendChat appends the user's message, requests a completion and appends the
// assistant's reply. A failed completion still produces an assistant-visible
// error message in the transcript. Returns the resulting snapshot.
func (m *Manager) SendChat(ctx context.Context, s *Session, client Completer, prompt, model string) (StateSnapshot, error) {
	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return StateSnapshot{}, ErrCompletionInFlight
	}
	s.inFlight = true
	s.transcript.Append(domain.ChatMessage{Role: domain.RoleUser, Content: prompt})
	s.mu.Unlock()

	m.persist(ctx, s)

	reply, err := client.Complete(ctx, prompt, model)

	s.mu.Lock()
	if err != nil {
		s.transcript.Append(domain.ChatMessage{Role: domain.RoleAssistant, Content: "Error: " + err.Error()})
	} else {
		s.transcript.Append(domain.ChatMessage{Role: domain.RoleAssistant, Content: reply})
	}
	s.coord.Reevaluate(s.transcript.Snapshot())
	s.inFlight = false
	snap := s.snapshotLocked()
	s.mu.Unlock()

	m.persist(ctx, s)
	m.pushSuggestionState(ctx, s, snap)
	return snap, nil
}

// AcceptSuggestion applies the pending suggestion to the editor.
func (m *Manager) AcceptSuggestion(ctx context.Context, s *Session) (StateSnapshot, error) {
	s.mu.Lock()
	err := s.coord.Accept()
	snap := s.snapshotLocked()
	s.mu.Unlock()
	if err != nil {
		return snap, err
	}
	m.persist(ctx, s)
	m.pushSuggestionState(ctx, s, snap)
	return snap, nil
}

// RejectSuggestion discards the pending suggestion.
func (m *Manager) RejectSuggestion(ctx context.Context, s *Session) (StateSnapshot, error) {
	s.mu.Lock()
	err := s.coord.Reject()
	snap := s.snapshotLocked()
	s.mu.Unlock()
	if err != nil {
		return snap, err
	}
	m.persist(ctx, s)
	m.pushSuggestionState(ctx, s, snap)
	return snap, nil
}

// persist writes the session's transcript state through to the store.
// Failures are logged, not surfaced; chat keeps working on the live copy.
func (m *Manager) persist(ctx context.Context, s *Session) {
	s.mu.Lock()
	data, err := json.Marshal(s.transcript)
	last := s.coord.LastSuggestedCode()
	s.mu.Unlock()
	if err != nil {
		slog.Error("failed to encode transcript", "user_id", s.UserID, "error", err)
		return
	}

	now := time.Now()
	err = m.repo.UpsertAssistantSession(ctx, &domain.AssistantSession{
		UserID:            s.UserID,
		SessionID:         s.SessionID,
		TranscriptJSON:    string(data),
		LastSuggestedCode: last,
		CreatedAt:         now,
		UpdatedAt:         now,
	})
	if err != nil {
		slog.Error("failed to persist assistant session",
			"user_id", s.UserID, "session_id", s.SessionID, "error", err)
	}
}

// pushSuggestionState notifies the session's editor websocket, if connected,
// that the suggestion state changed.
func (m *Manager) pushSuggestionState(ctx context.Context, s *Session, snap StateSnapshot) {
	if m.conns == nil {
		return
	}
	m.conns.Push(ctx, s.UserID, s.SessionID, editor.Event{
		Type:       "suggestion",
		State:      string(snap.State),
		Suggestion: snap.Pending,
	})
}

// Evict drops a live session from memory and closes its editor sync
// connection. Persisted state is untouched.
func (m *Manager) Evict(userID, sessionID string) {
	m.mu.Lock()
	delete(m.sessions, sessionKey(userID, sessionID))
	m.mu.Unlock()

	if m.conns != nil {
		m.conns.CloseSession(userID, sessionID)
	}
}

// StartCleanupWorker periodically removes idle persisted sessions and evicts
// the matching live copies. Runs until ctx is cancelled.
func (m *Manager) StartCleanupWorker(ctx context.Context, ttl time.Duration) {
	ticker := time.NewTicker(cleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := m.repo.CleanupExpiredAssistantSessions(ctx, ttl)
				if err != nil {
					slog.Error("assistant session cleanup failed", "error", err)
					continue
				}
				if n > 0 {
					slog.Info("cleaned up expired assistant sessions", "count", n)
					m.evictStale(ctx)
				}
			}
		}
	}()
}

// evictStale drops live sessions whose persisted rows no longer exist.
func (m *Manager) evictStale(ctx context.Context) {
	m.mu.Lock()
	live := make(map[string]*Session, len(m.sessions))
	for k, s := range m.sessions {
		live[k] = s
	}
	m.mu.Unlock()

	for key, s := range live {
		persisted, err := m.repo.GetAssistantSession(ctx, s.UserID, s.SessionID)
		if err != nil {
			slog.Debug("skipping eviction check", "key", key, "error", err)
			continue
		}
		if persisted == nil {
			m.Evict(s.UserID, s.SessionID)
		}
	}
}
