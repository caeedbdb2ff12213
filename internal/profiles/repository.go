package profiles

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/financebro/backend/internal/models"
)

// ErrNotFound is returned when no profile row exists for a user.
var ErrNotFound = errors.New("profile not found")

// Repository handles profile persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a profile repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const profileColumns = `id, first_name, last_name, dob, school, linkedin_url, sector, referral, role_interest, cv_path, updated_at`

// Get returns the profile for a user.
func (r *Repository) Get(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	q := `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`
	var p models.Profile
	err := r.pool.QueryRow(ctx, q, userID).Scan(
		&p.ID, &p.FirstName, &p.LastName, &p.DOB, &p.School,
		&p.LinkedInURL, &p.Sector, &p.Referral, &p.RoleInterest, &p.CVPath,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return &p, nil
}

// Update writes the editable profile fields and returns the fresh row.
func (r *Repository) Update(ctx context.Context, p *models.Profile) (*models.Profile, error) {
	q := `
		UPDATE profiles SET
			first_name = $2, last_name = $3, dob = $4, school = $5,
			linkedin_url = $6, sector = $7, referral = $8, role_interest = $9,
			cv_path = $10, updated_at = now()
		WHERE id = $1
		RETURNING ` + profileColumns
	var out models.Profile
	err := r.pool.QueryRow(ctx, q,
		p.ID, p.FirstName, p.LastName, p.DOB, p.School,
		p.LinkedInURL, p.Sector, p.Referral, p.RoleInterest, p.CVPath,
	).Scan(
		&out.ID, &out.FirstName, &out.LastName, &out.DOB, &out.School,
		&out.LinkedInURL, &out.Sector, &out.Referral, &out.RoleInterest, &out.CVPath,
		&out.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return &out, nil
}
