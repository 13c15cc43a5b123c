package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/codearena-dev/codearena/internal/domain"
	"github.com/codearena-dev/codearena/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db        *sql.DB
	sessionMu sync.Mutex // Mutex for assistant session operations to prevent SQLITE_BUSY
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS users (
		user_id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		last_seen_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS problems (
		problem_id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		difficulty TEXT NOT NULL,
		description TEXT NOT NULL,
		starter_code_json TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS submissions (
		submission_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		problem_id TEXT NOT NULL,
		language TEXT NOT NULL,
		code TEXT NOT NULL,
		submitted_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_submissions_user_problem
		ON submissions(user_id, problem_id, submitted_at);

	CREATE TABLE IF NOT EXISTS assistant_sessions (
		user_id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		transcript_json TEXT NOT NULL,
		last_suggested_code TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (user_id, session_id)
	);
	CREATE INDEX IF NOT EXISTS idx_assistant_sessions_updated ON assistant_sessions(updated_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetUser retrieves a user by their user ID.
func (s *SQLiteStore) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	query := `
		SELECT user_id, username, last_seen_at, created_at, updated_at
		FROM users WHERE user_id = ?`

	row := s.db.QueryRowContext(ctx, query, userID)

	var user domain.User
	var lastSeen, createdAt, updatedAt int64

	err := row.Scan(&user.UserID, &user.Username, &lastSeen, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user row: %w", err)
	}

	user.LastSeenAt = time.Unix(lastSeen, 0)
	user.CreatedAt = time.Unix(createdAt, 0)
	user.UpdatedAt = time.Unix(updatedAt, 0)

	return &user, nil
}

// UpsertUser creates or updates a user record.
func (s *SQLiteStore) UpsertUser(ctx context.Context, user *domain.User) error {
	query := `
	INSERT INTO users (user_id, username, last_seen_at, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		username = excluded.username,
		last_seen_at = excluded.last_seen_at,
		updated_at = excluded.updated_at`

	_, err := s.db.ExecContext(ctx, query,
		user.UserID, user.Username,
		user.LastSeenAt.Unix(), user.CreatedAt.Unix(), user.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// UpdateLastSeen updates the last_seen_at timestamp for a user.
func (s *SQLiteStore) UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error {
	query := `UPDATE users SET last_seen_at = ?, updated_at = ? WHERE user_id = ?`
	result, err := s.db.ExecContext(ctx, query, lastSeen.Unix(), time.Now().Unix(), userID)
	if err != nil {
		return fmt.Errorf("update last_seen: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		slog.Warn("UpdateLastSeen affected 0 rows", "user_id", userID)
	}

	return nil
}

// ListProblems returns the problem catalog ordered by title.
func (s *SQLiteStore) ListProblems(ctx context.Context) ([]*domain.Problem, error) {
	query := `
		SELECT problem_id, title, difficulty, description, starter_code_json
		FROM problems ORDER BY title`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query problems: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close problems rows", "error", closeErr)
		}
	}()

	var problems []*domain.Problem
	for rows.Next() {
		var p domain.Problem
		var starterJSON string

		if err := rows.Scan(&p.ProblemID, &p.Title, &p.Difficulty, &p.Description, &starterJSON); err != nil {
			return nil, fmt.Errorf("scan problem row: %w", err)
		}
		if err := json.Unmarshal([]byte(starterJSON), &p.StarterCode); err != nil {
			return nil, fmt.Errorf("decode starter code for %s: %w", p.ProblemID, err)
		}
		problems = append(problems, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate problems: %w", err)
	}

	return problems, nil
}

// GetProblem retrieves one problem by ID.
func (s *SQLiteStore) GetProblem(ctx context.Context, problemID string) (*domain.Problem, error) {
	query := `
		SELECT problem_id, title, difficulty, description, starter_code_json
		FROM problems WHERE problem_id = ?`

	row := s.db.QueryRowContext(ctx, query, problemID)

	var p domain.Problem
	var starterJSON string

	err := row.Scan(&p.ProblemID, &p.Title, &p.Difficulty, &p.Description, &starterJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan problem row: %w", err)
	}

	if err := json.Unmarshal([]byte(starterJSON), &p.StarterCode); err != nil {
		return nil, fmt.Errorf("decode starter code for %s: %w", p.ProblemID, err)
	}

	return &p, nil
}

// UpsertProblem creates or updates a problem record.
func (s *SQLiteStore) UpsertProblem(ctx context.Context, problem *domain.Problem) error {
	starterJSON, err := json.Marshal(problem.StarterCode)
	if err != nil {
		return fmt.Errorf("encode starter code: %w", err)
	}

	now := time.Now().Unix()
	query := `
	INSERT INTO problems (problem_id, title, difficulty, description, starter_code_json, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(problem_id) DO UPDATE SET
		title = excluded.title,
		difficulty = excluded.difficulty,
		description = excluded.description,
		starter_code_json = excluded.starter_code_json,
		updated_at = excluded.updated_at`

	_, err = s.db.ExecContext(ctx, query,
		problem.ProblemID, problem.Title, string(problem.Difficulty),
		problem.Description, string(starterJSON), now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert problem: %w", err)
	}
	return nil
}

// CreateSubmission persists one submission record.
func (s *SQLiteStore) CreateSubmission(ctx context.Context, sub *domain.Submission) error {
	query := `
	INSERT INTO submissions (submission_id, user_id, problem_id, language, code, submitted_at)
	VALUES (?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		sub.SubmissionID, sub.UserID, sub.ProblemID,
		sub.Language, sub.Code, sub.SubmittedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("create submission: %w", err)
	}
	return nil
}

// ListSubmissions returns a user's submissions for a problem, newest first.
func (s *SQLiteStore) ListSubmissions(ctx context.Context, userID, problemID string) ([]*domain.Submission, error) {
	query := `
		SELECT submission_id, user_id, problem_id, language, code, submitted_at
		FROM submissions WHERE user_id = ? AND problem_id = ?
		ORDER BY submitted_at DESC`

	rows, err := s.db.QueryContext(ctx, query, userID, problemID)
	if err != nil {
		return nil, fmt.Errorf("query submissions: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close submissions rows", "error", closeErr)
		}
	}()

	var subs []*domain.Submission
	for rows.Next() {
		var sub domain.Submission
		var submittedAt int64

		if err := rows.Scan(
			&sub.SubmissionID, &sub.UserID, &sub.ProblemID,
			&sub.Language, &sub.Code, &submittedAt,
		); err != nil {
			return nil, fmt.Errorf("scan submission row: %w", err)
		}

		sub.SubmittedAt = time.Unix(submittedAt, 0)
		subs = append(subs, &sub)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate submissions: %w", err)
	}

	return subs, nil
}

// GetAssistantSession retrieves persisted chat-panel state for a user tab session.
func (s *SQLiteStore) GetAssistantSession(ctx context.Context, userID, sessionID string) (*domain.AssistantSession, error) {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()

	query := `
		SELECT user_id, session_id, transcript_json, last_suggested_code, created_at, updated_at
		FROM assistant_sessions WHERE user_id = ? AND session_id = ?`

	row := s.db.QueryRowContext(ctx, query, userID, sessionID)

	var session domain.AssistantSession
	var createdAt, updatedAt int64

	err := row.Scan(
		&session.UserID, &session.SessionID,
		&session.TranscriptJSON, &session.LastSuggestedCode,
		&createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan assistant session: %w", err)
	}

	session.CreatedAt = time.Unix(createdAt, 0)
	session.UpdatedAt = time.Unix(updatedAt, 0)

	return &session, nil
}

// UpsertAssistantSession creates or updates chat-panel state.
func (s *SQLiteStore) UpsertAssistantSession(ctx context.Context, session *domain.AssistantSession) error {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()

	query := `
		INSERT INTO assistant_sessions (
			user_id, session_id, transcript_json, last_suggested_code, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, session_id) DO UPDATE SET
			transcript_json = excluded.transcript_json,
			last_suggested_code = excluded.last_suggested_code,
			updated_at = excluded.updated_at`

	_, err := s.db.ExecContext(ctx, query,
		session.UserID, session.SessionID,
		session.TranscriptJSON, session.LastSuggestedCode,
		session.CreatedAt.Unix(), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert assistant session: %w", err)
	}
	return nil
}

// DeleteAssistantSession removes chat-panel state for a user tab session.
// Implements retry logic with exponential backoff to handle SQLITE_BUSY errors.
func (s *SQLiteStore) DeleteAssistantSession(ctx context.Context, userID, sessionID string) error {
	maxRetries := 3
	baseDelay := 100 * time.Millisecond

	for i := 0; i < maxRetries; i++ {
		err := s.deleteAssistantSessionOnce(ctx, userID, sessionID)
		if err == nil {
			return nil
		}

		if shared.IsSQLiteConflictError(err) {
			if i < maxRetries-1 {
				delay := baseDelay * time.Duration(1<<i) // exponential backoff: 100ms, 200ms, 400ms
				slog.Debug("DeleteAssistantSession failed with SQLITE_BUSY, retrying",
					"user_id", userID,
					"session_id", sessionID,
					"attempt", i+1,
					"delay", delay)
				time.Sleep(delay)
				continue
			}
		}

		// Non-retryable error or max retries exceeded
		return fmt.Errorf("failed to delete assistant session for %s after %d attempts: %w", userID, maxRetries, err)
	}

	return nil
}

func (s *SQLiteStore) deleteAssistantSessionOnce(ctx context.Context, userID, sessionID string) error {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()

	query := `DELETE FROM assistant_sessions WHERE user_id = ? AND session_id = ?`
	_, err := s.db.ExecContext(ctx, query, userID, sessionID)
	if err != nil {
		return fmt.Errorf("delete assistant session: %w", err)
	}
	return nil
}

// CleanupExpiredAssistantSessions removes sessions idle longer than TTL.
func (s *SQLiteStore) CleanupExpiredAssistantSessions(ctx context.Context, ttl time.Duration) (int64, error) {
	threshold := time.Now().Add(-ttl).Unix()
	query := `DELETE FROM assistant_sessions WHERE updated_at < ?`
	result, err := s.db.ExecContext(ctx, query, threshold)
	if err != nil {
		return 0, fmt.Errorf("cleanup expired assistant sessions: %w", err)
	}
	return result.RowsAffected()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
