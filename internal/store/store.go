// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/codearena-dev/codearena/internal/domain"
)

// Repository defines the interface for persisting users, problems, submissions
// and assistant session state.
type Repository interface {
	// GetUser retrieves a user by their user ID. Returns (nil, nil) when the
	// user does not exist.
	GetUser(ctx context.Context, userID string) (*domain.User, error)

	// UpsertUser creates or updates a user record.
	UpsertUser(ctx context.Context, user *domain.User) error

	// UpdateLastSeen updates the last_seen_at timestamp for a user.
	UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error

	// ListProblems returns the problem catalog ordered by title.
	ListProblems(ctx context.Context) ([]*domain.Problem, error)

	// GetProblem retrieves one problem by ID. Returns (nil, nil) when absent.
	GetProblem(ctx context.Context, problemID string) (*domain.Problem, error)

	// UpsertProblem creates or updates a problem record.
	UpsertProblem(ctx context.Context, problem *domain.Problem) error

	// CreateSubmission persists one submission record.
	CreateSubmission(ctx context.Context, sub *domain.Submission) error

	// ListSubmissions returns a user's submissions for a problem, newest first.
	ListSubmissions(ctx context.Context, userID, problemID string) ([]*domain.Submission, error)

	// GetAssistantSession retrieves persisted chat-panel state for a user tab
	// session. Returns (nil, nil) when absent.
	GetAssistantSession(ctx context.Context, userID, sessionID string) (*domain.AssistantSession, error)

	// UpsertAssistantSession creates or updates chat-panel state.
	UpsertAssistantSession(ctx context.Context, session *domain.AssistantSession) error

	// DeleteAssistantSession removes chat-panel state for a user tab session.
	DeleteAssistantSession(ctx context.Context, userID, sessionID string) error

	// CleanupExpiredAssistantSessions removes sessions idle longer than TTL.
	CleanupExpiredAssistantSessions(ctx context.Context, ttl time.Duration) (int64, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
