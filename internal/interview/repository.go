package interview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/financebro/backend/internal/models"
)

var (
	// ErrSessionNotFound is returned when no session matches the lookup.
	ErrSessionNotFound = errors.New("interview session not found")
	// ErrAlreadyCompleted is returned by CompleteSession when the session
	// has already been finalized by an earlier attempt.
	ErrAlreadyCompleted = errors.New("interview session already completed")
	// ErrFeedbackNotFound is returned when a session has no feedback row.
	ErrFeedbackNotFound = errors.New("interview feedback not found")
)

// Repository handles interview session and feedback persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an interview repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const sessionColumns = `id, user_id, title, company, role, duration_minutes, status, started_at, ended_at, transcript_key, created_at, updated_at`

func scanSession(row pgx.Row) (*models.InterviewSession, error) {
	var s models.InterviewSession
	err := row.Scan(&s.ID, &s.UserID, &s.Title, &s.Company, &s.Role, &s.DurationMinutes, &s.Status,
		&s.StartedAt, &s.EndedAt, &s.TranscriptKey, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &s, nil
}

// CreateSession inserts a new scheduled session.
func (r *Repository) CreateSession(ctx context.Context, s *models.InterviewSession) error {
	const q = `INSERT INTO interview_sessions (user_id, title, company, role, duration_minutes)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + sessionColumns
	created, err := scanSession(r.pool.QueryRow(ctx, q, s.UserID, s.Title, s.Company, s.Role, s.DurationMinutes))
	if err != nil {
		return err
	}
	*s = *created
	return nil
}

// GetSession returns a session by ID.
func (r *Repository) GetSession(ctx context.Context, id uuid.UUID) (*models.InterviewSession, error) {
	const q = `SELECT ` + sessionColumns + ` FROM interview_sessions WHERE id = $1`
	return scanSession(r.pool.QueryRow(ctx, q, id))
}

// GetSessionForUser returns a session by ID scoped to its owner.
func (r *Repository) GetSessionForUser(ctx context.Context, id, userID uuid.UUID) (*models.InterviewSession, error) {
	const q = `SELECT ` + sessionColumns + ` FROM interview_sessions WHERE id = $1 AND user_id = $2`
	return scanSession(r.pool.QueryRow(ctx, q, id, userID))
}

// ListSessions returns a user's sessions, newest first.
func (r *Repository) ListSessions(ctx context.Context, userID uuid.UUID) ([]models.InterviewSession, error) {
	const q = `SELECT ` + sessionColumns + ` FROM interview_sessions WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.InterviewSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *s)
	}
	return list, rows.Err()
}

// MarkInProgress moves a scheduled session to in_progress with started_at set.
func (r *Repository) MarkInProgress(ctx context.Context, id uuid.UUID) error {
	const q = `UPDATE interview_sessions
		SET status = 'in_progress', started_at = COALESCE(started_at, NOW()), updated_at = NOW()
		WHERE id = $1 AND status = 'scheduled'`
	_, err := r.pool.Exec(ctx, q, id)
	return err
}

// SetTranscriptKey records the S3 object key of the archived conversation log.
func (r *Repository) SetTranscriptKey(ctx context.Context, id uuid.UUID, key string) error {
	const q = `UPDATE interview_sessions SET transcript_key = $1, updated_at = NOW() WHERE id = $2`
	_, err := r.pool.Exec(ctx, q, key, id)
	return err
}

// CompleteSession finalizes a session and writes its feedback in one
// transaction: check the session is not already completed, flip status with
// ended_at, insert the feedback row, return the new feedback id. A crash
// between the two writes can never leave a completed session without
// feedback.
func (r *Repository) CompleteSession(ctx context.Context, sessionID uuid.UUID, payload models.FeedbackPayload) (uuid.UUID, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var status models.SessionStatus
	err = tx.QueryRow(ctx, `SELECT status FROM interview_sessions WHERE id = $1 FOR UPDATE`, sessionID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, ErrSessionNotFound
		}
		return uuid.Nil, err
	}
	if status == models.StatusCompleted {
		return uuid.Nil, ErrAlreadyCompleted
	}

	_, err = tx.Exec(ctx,
		`UPDATE interview_sessions SET status = 'completed', ended_at = NOW(), updated_at = NOW() WHERE id = $1`,
		sessionID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("update session: %w", err)
	}

	perQuestion, err := json.Marshal(payload.PerQuestion)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal per-question feedback: %w", err)
	}
	var feedbackID uuid.UUID
	err = tx.QueryRow(ctx,
		`INSERT INTO interview_feedback (session_id, general, went_well, to_improve, per_question, score_overall)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		sessionID, payload.General, payload.WentWell, payload.ToImprove, perQuestion, payload.ScoreOverall,
	).Scan(&feedbackID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert feedback: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, fmt.Errorf("commit: %w", err)
	}
	return feedbackID, nil
}

// GetFeedback returns the feedback for a session scoped to its owner.
func (r *Repository) GetFeedback(ctx context.Context, sessionID, userID uuid.UUID) (*models.InterviewFeedback, error) {
	const q = `SELECT f.id, f.session_id, f.general, f.went_well, f.to_improve, f.per_question, f.score_overall, f.created_at
		FROM interview_feedback f
		JOIN interview_sessions s ON s.id = f.session_id
		WHERE f.session_id = $1 AND s.user_id = $2`
	var f models.InterviewFeedback
	var perQuestion []byte
	err := r.pool.QueryRow(ctx, q, sessionID, userID).
		Scan(&f.ID, &f.SessionID, &f.General, &f.WentWell, &f.ToImprove, &perQuestion, &f.ScoreOverall, &f.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrFeedbackNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(perQuestion, &f.PerQuestion); err != nil {
		return nil, fmt.Errorf("unmarshal per-question feedback: %w", err)
	}
	return &f, nil
}

// FeedbackSummary is one row of a user's feedback list.
type FeedbackSummary struct {
	SessionID    uuid.UUID  `json:"session_id"`
	Title        string     `json:"title"`
	Company      string     `json:"company"`
	Role         string     `json:"role"`
	ScoreOverall *float64   `json:"score_overall,omitempty"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
}

// ListFeedbackForUser returns summaries of a user's feedback reports, newest first.
func (r *Repository) ListFeedbackForUser(ctx context.Context, userID uuid.UUID) ([]FeedbackSummary, error) {
	const q = `SELECT s.id, s.title, s.company, s.role, f.score_overall, s.ended_at
		FROM interview_feedback f
		JOIN interview_sessions s ON s.id = f.session_id
		WHERE s.user_id = $1
		ORDER BY s.ended_at DESC NULLS LAST`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []FeedbackSummary
	for rows.Next() {
		var fs FeedbackSummary
		if err := rows.Scan(&fs.SessionID, &fs.Title, &fs.Company, &fs.Role, &fs.ScoreOverall, &fs.EndedAt); err != nil {
			return nil, err
		}
		list = append(list, fs)
	}
	return list, rows.Err()
}

// DeleteFeedback removes a session's feedback and the session row together,
// scoped to the owner. Both deletes ride one transaction so a failure leaves
// neither half applied. A second call for the same session returns
// ErrSessionNotFound.
func (r *Repository) DeleteFeedback(ctx context.Context, sessionID, userID uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`DELETE FROM interview_feedback WHERE session_id IN (
			SELECT id FROM interview_sessions WHERE id = $1 AND user_id = $2)`,
		sessionID, userID)
	if err != nil {
		return fmt.Errorf("delete feedback: %w", err)
	}

	tag, err := tx.Exec(ctx,
		`DELETE FROM interview_sessions WHERE id = $1 AND user_id = $2`, sessionID, userID)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return tx.Commit(ctx)
}

// FindCompletedWithoutFeedback returns ids of sessions stuck in the
// "completed with no feedback" state (only reachable if the transactional
// completion path was bypassed); the repair worker re-synthesizes these.
func (r *Repository) FindCompletedWithoutFeedback(ctx context.Context, olderThan time.Duration) ([]uuid.UUID, error) {
	const q = `SELECT s.id FROM interview_sessions s
		LEFT JOIN interview_feedback f ON f.session_id = s.id
		WHERE s.status = 'completed' AND f.id IS NULL AND s.ended_at < NOW() - $1::interval`
	rows, err := r.pool.Query(ctx, q, fmt.Sprintf("%d seconds", int(olderThan.Seconds())))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// InsertFeedbackOnly writes a feedback row for an already-completed session
// (repair path). The unique session_id constraint keeps this idempotent.
func (r *Repository) InsertFeedbackOnly(ctx context.Context, sessionID uuid.UUID, payload models.FeedbackPayload) (uuid.UUID, error) {
	perQuestion, err := json.Marshal(payload.PerQuestion)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal per-question feedback: %w", err)
	}
	var feedbackID uuid.UUID
	err = r.pool.QueryRow(ctx,
		`INSERT INTO interview_feedback (session_id, general, went_well, to_improve, per_question, score_overall)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (session_id) DO UPDATE SET session_id = interview_feedback.session_id
		 RETURNING id`,
		sessionID, payload.General, payload.WentWell, payload.ToImprove, perQuestion, payload.ScoreOverall,
	).Scan(&feedbackID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert feedback: %w", err)
	}
	return feedbackID, nil
}
