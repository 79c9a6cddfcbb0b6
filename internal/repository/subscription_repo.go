package repository

import (
	"context"
	"fmt"

	"app/internal/model"
	"app/internal/pricing"

	"github.com/jackc/pgx/v5/pgxpool"
)

// SubscriptionRepository manages per-user subscription tiers.
type SubscriptionRepository interface {
	// GetOrCreate returns the user's subscription, creating a free active one
	// on first touch. Expired paid tiers are downgraded to free before the
	// row is returned, so callers always see the effective tier.
	GetOrCreate(ctx context.Context, userID string) (*model.Subscription, error)
	// Upgrade moves the user to a paid tier for thirty days from now.
	Upgrade(ctx context.Context, userID, tier string) (*model.Subscription, error)
}

type subscriptionRepo struct {
	pool *pgxpool.Pool
}

// NewSubscriptionRepo creates a new SubscriptionRepository.
func NewSubscriptionRepo(pool *pgxpool.Pool) SubscriptionRepository {
	return &subscriptionRepo{pool: pool}
}

func (r *subscriptionRepo) GetOrCreate(ctx context.Context, userID string) (*model.Subscription, error) {
	const insertQ = `
        INSERT INTO subscriptions (user_id, tier, status, started_at, created_at, updated_at)
        VALUES ($1, $2, $3, NOW(), NOW(), NOW())
        ON CONFLICT (user_id) DO NOTHING
    `
	if _, err := r.pool.Exec(ctx, insertQ, userID, pricing.TierFree, model.SubscriptionStatusActive); err != nil {
		return nil, fmt.Errorf("creating subscription for user %s: %w", userID, err)
	}

	// Lazy expiry. Paid tiers past their end date fall back to free on the
	// next read; there is no renewal job to race with.
	const expireQ = `
        UPDATE subscriptions
        SET tier = $2,
            status = $3,
            updated_at = NOW()
        WHERE user_id = $1
          AND tier <> $2
          AND expires_at IS NOT NULL
          AND expires_at <= NOW()
    `
	if _, err := r.pool.Exec(ctx, expireQ, userID, pricing.TierFree, model.SubscriptionStatusExpired); err != nil {
		return nil, fmt.Errorf("expiring subscription for user %s: %w", userID, err)
	}

	const q = `
        SELECT user_id, tier, status, started_at, expires_at, created_at, updated_at
        FROM subscriptions
        WHERE user_id = $1
    `
	var sub model.Subscription
	err := r.pool.QueryRow(ctx, q, userID).Scan(
		&sub.UserID,
		&sub.Tier,
		&sub.Status,
		&sub.StartedAt,
		&sub.ExpiresAt,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("fetch subscription for user %s: %w", userID, err)
	}
	return &sub, nil
}

func (r *subscriptionRepo) Upgrade(ctx context.Context, userID, tier string) (*model.Subscription, error) {
	const q = `
        INSERT INTO subscriptions (user_id, tier, status, started_at, expires_at, created_at, updated_at)
        VALUES ($1, $2, $3, NOW(), NOW() + INTERVAL '30 days', NOW(), NOW())
        ON CONFLICT (user_id) DO UPDATE
        SET tier = EXCLUDED.tier,
            status = EXCLUDED.status,
            started_at = NOW(),
            expires_at = NOW() + INTERVAL '30 days',
            updated_at = NOW()
        RETURNING user_id, tier, status, started_at, expires_at, created_at, updated_at
    `
	var sub model.Subscription
	err := r.pool.QueryRow(ctx, q, userID, tier, model.SubscriptionStatusActive).Scan(
		&sub.UserID,
		&sub.Tier,
		&sub.Status,
		&sub.StartedAt,
		&sub.ExpiresAt,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("upgrading user %s to %s: %w", userID, tier, err)
	}
	return &sub, nil
}
