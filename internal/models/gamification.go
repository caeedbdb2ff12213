package models

import (
	"time"

	"github.com/google/uuid"
)

// UserStreak tracks consecutive-day activity for a user.
type UserStreak struct {
	UserID           uuid.UUID  `json:"user_id"`
	CurrentStreak    int        `json:"current_streak"`
	BestStreak       int        `json:"best_streak"`
	LastActivityDate *time.Time `json:"last_activity_date,omitempty"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// LeaderboardEntry is one row of the streak leaderboard.
type LeaderboardEntry struct {
	Rank          int       `json:"rank"`
	UserID        uuid.UUID `json:"user_id"`
	FullName      string    `json:"full_name"`
	CurrentStreak int       `json:"current_streak"`
	BestStreak    int       `json:"best_streak"`
}

// Challenge is a company-branded practice challenge.
type Challenge struct {
	ID               uuid.UUID `json:"id"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	Company          string    `json:"company"`
	Difficulty       string    `json:"difficulty"`
	Reward           string    `json:"reward"`
	IsActive         bool      `json:"is_active"`
	ParticipantCount int       `json:"participant_count"`
	Joined           bool      `json:"joined"`
	CreatedAt        time.Time `json:"created_at"`
}
