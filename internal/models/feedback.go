package models

import (
	"time"

	"github.com/google/uuid"
)

// QuestionFeedback is the per-question portion of an interview feedback
// report; one entry per question that was asked before completion.
type QuestionFeedback struct {
	Question string   `json:"question"`
	Summary  string   `json:"summary"`
	Tips     []string `json:"tips"`
	Score    float64  `json:"score"`
}

// InterviewFeedback is the scored report for a completed session. Created
// exactly once at completion and never updated in place; removing it is a
// delete-and-recreate operation paired with the session row.
type InterviewFeedback struct {
	ID           uuid.UUID          `json:"id"`
	SessionID    uuid.UUID          `json:"session_id"`
	General      string             `json:"general"`
	WentWell     []string           `json:"went_well"`
	ToImprove    []string           `json:"to_improve"`
	PerQuestion  []QuestionFeedback `json:"per_question"`
	ScoreOverall *float64           `json:"score_overall,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
}

// FeedbackPayload is what the session state machine synthesizes at
// completion and hands to the completion writer.
type FeedbackPayload struct {
	General      string             `json:"general"`
	WentWell     []string           `json:"went_well"`
	ToImprove    []string           `json:"to_improve"`
	PerQuestion  []QuestionFeedback `json:"per_question"`
	ScoreOverall float64            `json:"score_overall"`
}
