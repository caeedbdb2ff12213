package gamification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/financebro/backend/internal/models"
)

// ErrChallengeNotFound is returned when a challenge does not exist.
var ErrChallengeNotFound = errors.New("challenge not found")

// ActivityType classifies a daily activity entry.
type ActivityType string

const (
	ActivityInterview ActivityType = "interview"
	ActivityLogin     ActivityType = "login"
	ActivityChallenge ActivityType = "challenge"
)

// Repository handles streak, activity and challenge persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a gamification repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// LogActivity records an activity for the day and rolls the user's streak.
// A repeated activity of the same type on the same day is a no-op. Returns
// the streak after the update.
func (r *Repository) LogActivity(ctx context.Context, userID uuid.UUID, activity ActivityType, day time.Time) (*models.UserStreak, error) {
	day = day.UTC().Truncate(24 * time.Hour)

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	const insertLog = `
		INSERT INTO user_activity_logs (user_id, activity_date, activity_type)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, activity_date, activity_type) DO NOTHING`
	tag, err := tx.Exec(ctx, insertLog, userID, day, string(activity))
	if err != nil {
		return nil, fmt.Errorf("insert activity: %w", err)
	}
	firstOfDay := tag.RowsAffected() > 0

	if firstOfDay {
		// One row per user; the streak continues on consecutive days and
		// resets otherwise. Same-day repeats never touch the counters.
		const upsertStreak = `
			INSERT INTO user_streaks (user_id, current_streak, best_streak, last_activity_date)
			VALUES ($1, 1, 1, $2)
			ON CONFLICT (user_id) DO UPDATE SET
				current_streak = CASE
					WHEN user_streaks.last_activity_date = $2 THEN user_streaks.current_streak
					WHEN user_streaks.last_activity_date = $2::date - 1 THEN user_streaks.current_streak + 1
					ELSE 1
				END,
				best_streak = GREATEST(user_streaks.best_streak, CASE
					WHEN user_streaks.last_activity_date = $2 THEN user_streaks.current_streak
					WHEN user_streaks.last_activity_date = $2::date - 1 THEN user_streaks.current_streak + 1
					ELSE 1
				END),
				last_activity_date = GREATEST(user_streaks.last_activity_date, $2),
				updated_at = now()`
		if _, err := tx.Exec(ctx, upsertStreak, userID, day); err != nil {
			return nil, fmt.Errorf("upsert streak: %w", err)
		}
	}

	streak, err := getStreak(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return streak, nil
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getStreak(ctx context.Context, q querier, userID uuid.UUID) (*models.UserStreak, error) {
	const query = `
		SELECT user_id, current_streak, best_streak, last_activity_date, updated_at
		FROM user_streaks WHERE user_id = $1`
	var s models.UserStreak
	err := q.QueryRow(ctx, query, userID).Scan(&s.UserID, &s.CurrentStreak, &s.BestStreak, &s.LastActivityDate, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &models.UserStreak{UserID: userID}, nil
		}
		return nil, fmt.Errorf("get streak: %w", err)
	}
	return &s, nil
}

// GetStreak returns the user's streak; a user with no activity gets zeroes.
func (r *Repository) GetStreak(ctx context.Context, userID uuid.UUID) (*models.UserStreak, error) {
	return getStreak(ctx, r.pool, userID)
}

// Leaderboard returns the top users by current streak.
func (r *Repository) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	const q = `
		SELECT s.user_id, u.full_name, s.current_streak, s.best_streak
		FROM user_streaks s
		JOIN users u ON u.id = s.user_id
		ORDER BY s.current_streak DESC, s.best_streak DESC, u.full_name ASC
		LIMIT $1`
	rows, err := r.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	defer rows.Close()

	entries := make([]models.LeaderboardEntry, 0, limit)
	rank := 0
	for rows.Next() {
		var e models.LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.FullName, &e.CurrentStreak, &e.BestStreak); err != nil {
			return nil, fmt.Errorf("scan leaderboard: %w", err)
		}
		rank++
		e.Rank = rank
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ListChallenges returns all challenges with participant counts and whether
// the caller joined each.
func (r *Repository) ListChallenges(ctx context.Context, userID uuid.UUID) ([]models.Challenge, error) {
	const q = `
		SELECT c.id, c.title, c.description, c.company, c.difficulty, c.reward,
		       c.is_active, c.created_at,
		       count(p.user_id) AS participant_count,
		       bool_or(p.user_id = $1) AS joined
		FROM challenges c
		LEFT JOIN challenge_participants p ON p.challenge_id = c.id
		WHERE c.is_active
		GROUP BY c.id
		ORDER BY c.created_at DESC`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list challenges: %w", err)
	}
	defer rows.Close()

	var challenges []models.Challenge
	for rows.Next() {
		var c models.Challenge
		var joined *bool // bool_or over zero rows is NULL
		if err := rows.Scan(&c.ID, &c.Title, &c.Description, &c.Company, &c.Difficulty, &c.Reward, &c.IsActive, &c.CreatedAt, &c.ParticipantCount, &joined); err != nil {
			return nil, fmt.Errorf("scan challenge: %w", err)
		}
		c.Joined = joined != nil && *joined
		challenges = append(challenges, c)
	}
	return challenges, rows.Err()
}

// CreateChallenge inserts a new challenge and fills in the generated fields.
func (r *Repository) CreateChallenge(ctx context.Context, ch *models.Challenge) error {
	const q = `
		INSERT INTO challenges (title, description, company, difficulty, reward, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`
	err := r.pool.QueryRow(ctx, q,
		ch.Title, ch.Description, ch.Company, ch.Difficulty, ch.Reward, ch.IsActive,
	).Scan(&ch.ID, &ch.CreatedAt)
	if err != nil {
		return fmt.Errorf("create challenge: %w", err)
	}
	return nil
}

// JoinChallenge enrolls the user. Joining twice is a no-op.
func (r *Repository) JoinChallenge(ctx context.Context, userID, challengeID uuid.UUID) error {
	const exists = `SELECT 1 FROM challenges WHERE id = $1`
	var one int
	if err := r.pool.QueryRow(ctx, exists, challengeID).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrChallengeNotFound
		}
		return fmt.Errorf("check challenge: %w", err)
	}
	const q = `
		INSERT INTO challenge_participants (challenge_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (challenge_id, user_id) DO NOTHING`
	if _, err := r.pool.Exec(ctx, q, challengeID, userID); err != nil {
		return fmt.Errorf("join challenge: %w", err)
	}
	return nil
}
