package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus is the lifecycle status of an interview session row.
type SessionStatus string

const (
	StatusScheduled  SessionStatus = "scheduled"
	StatusInProgress SessionStatus = "in_progress"
	StatusCompleted  SessionStatus = "completed"
)

// InterviewSession is one interview attempt. It is mutated to completed
// exactly once and is immutable afterward except for the transcript key.
type InterviewSession struct {
	ID              uuid.UUID     `json:"id"`
	UserID          uuid.UUID     `json:"user_id"`
	Title           string        `json:"title"`
	Company         string        `json:"company"`
	Role            string        `json:"role"`
	DurationMinutes int           `json:"duration_minutes"`
	Status          SessionStatus `json:"status"`
	StartedAt       *time.Time    `json:"started_at,omitempty"`
	EndedAt         *time.Time    `json:"ended_at,omitempty"`
	TranscriptKey   *string       `json:"transcript_key,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// Question is one entry in a session's ordered question list. Asked flips
// false to true monotonically as the session progresses, never back.
type Question struct {
	ID    string `json:"id"`
	Text  string `json:"text"`
	Asked bool   `json:"asked"`
}
