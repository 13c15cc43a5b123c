// Package domain contains core domain types for the CodeArena application.
package domain

import (
	"time"
)

// User represents an anonymous practice user.
type User struct {
	UserID     string    `json:"user_id"`
	Username   string    `json:"username"`
	LastSeenAt time.Time `json:"last_seen_at"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// SessionTTL returns the time until the user's practice session expires.
// Returns 0 if the session has already expired.
func (u *User) SessionTTL(sessionDuration time.Duration) time.Duration {
	expiresAt := u.LastSeenAt.Add(sessionDuration)
	ttl := time.Until(expiresAt)
	if ttl < 0 {
		return 0
	}
	return ttl
}
