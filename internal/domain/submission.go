package domain

import (
	"time"
)

// Submission records one successful submit action for a problem.
// SubmittedAt is assigned server-side, never taken from the client.
type Submission struct {
	SubmissionID string    `json:"submission_id"`
	UserID       string    `json:"user_id"`
	ProblemID    string    `json:"problem_id"`
	Language     string    `json:"language"`
	Code         string    `json:"code"`
	SubmittedAt  time.Time `json:"submitted_at"`
}
