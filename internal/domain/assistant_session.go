package domain

import (
	"time"
)

// AssistantSession stores persisted chat-panel state for one user tab session.
// The transcript is serialized as a JSON array of ChatMessage.
type AssistantSession struct {
	UserID            string
	SessionID         string
	TranscriptJSON    string
	LastSuggestedCode string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
