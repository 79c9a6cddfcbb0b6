package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"app/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UsageRepository tracks per-period upload and minute consumption for
// subscription limits.
type UsageRepository interface {
	// GetWindow returns the usage window starting at periodStart, or a zeroed
	// window when the user has no activity in the period yet.
	GetWindow(ctx context.Context, userID string, periodStart, periodEnd time.Time) (*model.UsageWindow, error)
	// Increment adds one upload and its minutes to the user's window for the
	// period, creating the window on first use.
	Increment(ctx context.Context, userID string, periodStart, periodEnd time.Time, minutes float64) error
}

type usageRepo struct {
	pool *pgxpool.Pool
}

// NewUsageRepo creates a new UsageRepository.
func NewUsageRepo(pool *pgxpool.Pool) UsageRepository {
	return &usageRepo{pool: pool}
}

func (r *usageRepo) GetWindow(ctx context.Context, userID string, periodStart, periodEnd time.Time) (*model.UsageWindow, error) {
	const q = `
        SELECT user_id, period_start, period_end, uploads_used, minutes_used
        FROM usage_windows
        WHERE user_id = $1 AND period_start = $2
    `
	var w model.UsageWindow
	err := r.pool.QueryRow(ctx, q, userID, periodStart).Scan(
		&w.UserID,
		&w.PeriodStart,
		&w.PeriodEnd,
		&w.UploadsUsed,
		&w.MinutesUsed,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return &model.UsageWindow{
			UserID:      userID,
			PeriodStart: periodStart,
			PeriodEnd:   periodEnd,
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch usage window for user %s: %w", userID, err)
	}
	return &w, nil
}

func (r *usageRepo) Increment(ctx context.Context, userID string, periodStart, periodEnd time.Time, minutes float64) error {
	const q = `
        INSERT INTO usage_windows (user_id, period_start, period_end, uploads_used, minutes_used)
        VALUES ($1, $2, $3, 1, $4)
        ON CONFLICT (user_id, period_start) DO UPDATE
        SET uploads_used = usage_windows.uploads_used + 1,
            minutes_used = usage_windows.minutes_used + EXCLUDED.minutes_used
    `
	if _, err := r.pool.Exec(ctx, q, userID, periodStart, periodEnd, minutes); err != nil {
		return fmt.Errorf("incrementing usage window for user %s: %w", userID, err)
	}
	return nil
}
