package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"app/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
)

// RecordingRepository stores processed recordings with their transcripts and
// summaries.
type RecordingRepository interface {
	// Create stores a finished recording. A nil expiresAt means the recording
	// is kept indefinitely.
	Create(ctx context.Context, rec *model.Recording, expiresAt *time.Time) error
	Get(ctx context.Context, id, userID string) (*model.Recording, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]model.Recording, error)
	// ClearExpiry removes retention deadlines from all of a user's
	// recordings. Runs when a user reaches a tier with unlimited history.
	ClearExpiry(ctx context.Context, userID string) error
	// DeleteExpired removes recordings past their retention deadline and
	// returns how many were dropped.
	DeleteExpired(ctx context.Context) (int, error)
}

type recordingRepo struct {
	pool *pgxpool.Pool
}

// NewRecordingRepo creates a new RecordingRepository.
func NewRecordingRepo(pool *pgxpool.Pool) RecordingRepository {
	return &recordingRepo{pool: pool}
}

func (r *recordingRepo) Create(ctx context.Context, rec *model.Recording, expiresAt *time.Time) error {
	summaryJSON, err := json.Marshal(rec.Summary)
	if err != nil {
		return fmt.Errorf("encoding summary for recording %s: %w", rec.ID, err)
	}

	const q = `
        INSERT INTO recordings (id, user_id, filename, duration_minutes, file_size_mb, credits_used, transcript, summary, expires_at, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
        RETURNING created_at
    `
	err = r.pool.QueryRow(ctx, q,
		rec.ID,
		rec.UserID,
		rec.Filename,
		rec.DurationMinutes,
		rec.FileSizeMB,
		rec.CreditsUsed,
		rec.Transcript,
		summaryJSON,
		expiresAt,
	).Scan(&rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating recording %s: %w", rec.ID, err)
	}
	rec.ExpiresAt = expiresAt
	return nil
}

const recordingColumns = `id, user_id, filename, duration_minutes, file_size_mb, credits_used, transcript, summary, expires_at, created_at`

func (r *recordingRepo) Get(ctx context.Context, id, userID string) (*model.Recording, error) {
	const q = `SELECT ` + recordingColumns + ` FROM recordings WHERE id = $1 AND user_id = $2`

	var rec model.Recording
	var summaryJSON []byte
	err := r.pool.QueryRow(ctx, q, id, userID).Scan(
		&rec.ID,
		&rec.UserID,
		&rec.Filename,
		&rec.DurationMinutes,
		&rec.FileSizeMB,
		&rec.CreditsUsed,
		&rec.Transcript,
		&summaryJSON,
		&rec.ExpiresAt,
		&rec.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("fetch recording %s: %w", id, err)
	}
	if err := json.Unmarshal(summaryJSON, &rec.Summary); err != nil {
		return nil, fmt.Errorf("decoding summary for recording %s: %w", id, err)
	}
	return &rec, nil
}

func (r *recordingRepo) ListByUser(ctx context.Context, userID string, limit int) ([]model.Recording, error) {
	const q = `
        SELECT ` + recordingColumns + `
        FROM recordings
        WHERE user_id = $1
        ORDER BY created_at DESC
        LIMIT $2
    `
	rows, err := r.pool.Query(ctx, q, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing recordings for user %s: %w", userID, err)
	}
	defer rows.Close()

	recordings := make([]model.Recording, 0)
	for rows.Next() {
		var rec model.Recording
		var summaryJSON []byte
		err := rows.Scan(
			&rec.ID,
			&rec.UserID,
			&rec.Filename,
			&rec.DurationMinutes,
			&rec.FileSizeMB,
			&rec.CreditsUsed,
			&rec.Transcript,
			&summaryJSON,
			&rec.ExpiresAt,
			&rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning recording row: %w", err)
		}
		if err := json.Unmarshal(summaryJSON, &rec.Summary); err != nil {
			return nil, fmt.Errorf("decoding summary for recording %s: %w", rec.ID, err)
		}
		recordings = append(recordings, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating recording rows: %w", err)
	}
	return recordings, nil
}

func (r *recordingRepo) ClearExpiry(ctx context.Context, userID string) error {
	const q = `UPDATE recordings SET expires_at = NULL WHERE user_id = $1 AND expires_at IS NOT NULL`
	if _, err := r.pool.Exec(ctx, q, userID); err != nil {
		return fmt.Errorf("clearing recording expiry for user %s: %w", userID, err)
	}
	return nil
}

func (r *recordingRepo) DeleteExpired(ctx context.Context) (int, error) {
	const q = `DELETE FROM recordings WHERE expires_at IS NOT NULL AND expires_at <= NOW()`
	tag, err := r.pool.Exec(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("deleting expired recordings: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
