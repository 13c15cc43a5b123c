// Package assistant implements the AI chat panel: transcript state, the
// remote completion client, code-block extraction and the suggestion
// coordinator that offers extracted blocks to the editor.
package assistant

import (
	"encoding/json"
	"fmt"

	"github.com/codearena-dev/codearena/internal/domain"
)

// Transcript is the ordered, append-only sequence of chat messages for one
// panel session. Messages are immutable once appended; insertion order is
// the display and scan order. Not safe for concurrent use — the owning
// session serializes access.
type Transcript struct {
	messages []domain.ChatMessage
}

// NewTranscript returns an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{}
}

// Append adds a message to the end of the transcript.
func (t *Transcript) Append(msg domain.ChatMessage) {
	t.messages = append(t.messages, msg)
}

// Snapshot returns a copy of the message sequence in order.
func (t *Transcript) Snapshot() []domain.ChatMessage {
	out := make([]domain.ChatMessage, len(t.messages))
	copy(out, t.messages)
	return out
}

// Len returns the number of messages.
func (t *Transcript) Len() int {
	return len(t.messages)
}

// MarshalJSON serializes the transcript as a plain message array.
func (t *Transcript) MarshalJSON() ([]byte, error) {
	if t.messages == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(t.messages)
}

// restoreTranscript rebuilds a transcript from its persisted JSON form.
func restoreTranscript(data string) (*Transcript, error) {
	t := NewTranscript()
	if data == "" {
		return t, nil
	}
	if err := json.Unmarshal([]byte(data), &t.messages); err != nil {
		return nil, fmt.Errorf("decode transcript: %w", err)
	}
	return t, nil
}
