package models

import (
	"time"

	"github.com/google/uuid"
)

// Profile holds the onboarding/profile fields for a user.
type Profile struct {
	ID           uuid.UUID  `json:"id"` // same as users.id
	FirstName    *string    `json:"first_name,omitempty"`
	LastName     *string    `json:"last_name,omitempty"`
	DOB          *time.Time `json:"dob,omitempty"`
	School       *string    `json:"school,omitempty"`
	LinkedInURL  *string    `json:"linkedin_url,omitempty"`
	Sector       *string    `json:"sector,omitempty"`
	Referral     *string    `json:"referral,omitempty"`
	RoleInterest *string    `json:"role_interest,omitempty"`
	CVPath       *string    `json:"cv_path,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
