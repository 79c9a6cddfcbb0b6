package repository

import (
	"context"
	"fmt"

	"app/internal/model"
	"app/internal/pricing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CreditRepository manages per-user credit accounts and their usage log.
type CreditRepository interface {
	// GetOrCreateAccount returns the user's credit account, creating one with
	// the weekly free allowance on first touch. Reads apply the weekly free
	// credit reset before returning.
	GetOrCreateAccount(ctx context.Context, userID string) (*model.CreditAccount, error)
	// Spend atomically deducts credits (free first, then paid) and records a
	// usage entry. It never refuses the deduction; limit checks happen before
	// work starts, not here.
	Spend(ctx context.Context, userID string, credits int, recordingID, filename string, durationMinutes float64) (*model.SpendReceipt, error)
	// AddCredits adds purchased credits to the user's balance.
	AddCredits(ctx context.Context, tx pgx.Tx, userID string, credits int) error
	// ListUsage returns the most recent usage entries for a user.
	ListUsage(ctx context.Context, userID string, limit int) ([]model.CreditUsage, error)
}

type creditRepo struct {
	pool *pgxpool.Pool
}

// NewCreditRepo creates a new CreditRepository.
func NewCreditRepo(pool *pgxpool.Pool) CreditRepository {
	return &creditRepo{pool: pool}
}

func (r *creditRepo) GetOrCreateAccount(ctx context.Context, userID string) (*model.CreditAccount, error) {
	const insertQ = `
        INSERT INTO credit_accounts (user_id, balance, free_credits, free_credits_reset_at, created_at, updated_at)
        VALUES ($1, 0, $2, NOW(), NOW(), NOW())
        ON CONFLICT (user_id) DO NOTHING
    `
	if _, err := r.pool.Exec(ctx, insertQ, userID, pricing.FreeWeeklyCredits); err != nil {
		return nil, fmt.Errorf("creating credit account for user %s: %w", userID, err)
	}

	// Weekly reset on read. The WHERE clause makes concurrent readers
	// race-safe: only one of them moves the reset timestamp forward.
	const resetQ = `
        UPDATE credit_accounts
        SET free_credits = $2,
            free_credits_reset_at = NOW(),
            updated_at = NOW()
        WHERE user_id = $1
          AND free_credits_reset_at <= NOW() - INTERVAL '7 days'
    `
	if _, err := r.pool.Exec(ctx, resetQ, userID, pricing.FreeWeeklyCredits); err != nil {
		return nil, fmt.Errorf("resetting free credits for user %s: %w", userID, err)
	}

	const q = `
        SELECT user_id, balance, free_credits, free_credits_reset_at, total_purchased, total_used, created_at, updated_at
        FROM credit_accounts
        WHERE user_id = $1
    `
	var acc model.CreditAccount
	err := r.pool.QueryRow(ctx, q, userID).Scan(
		&acc.UserID,
		&acc.Balance,
		&acc.FreeCredits,
		&acc.FreeCreditsResetAt,
		&acc.TotalPurchased,
		&acc.TotalUsed,
		&acc.CreatedAt,
		&acc.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("fetch credit account for user %s: %w", userID, err)
	}
	return &acc, nil
}

func (r *creditRepo) Spend(ctx context.Context, userID string, credits int, recordingID, filename string, durationMinutes float64) (*model.SpendReceipt, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return nil, fmt.Errorf("starting transaction for credit spend: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	const lockQ = `
        SELECT balance, free_credits
        FROM credit_accounts
        WHERE user_id = $1
        FOR UPDATE
    `
	var balance, freeCredits int
	if err := tx.QueryRow(ctx, lockQ, userID).Scan(&balance, &freeCredits); err != nil {
		return nil, fmt.Errorf("locking credit account for user %s: %w", userID, err)
	}

	freeUsed, paidUsed := splitSpend(freeCredits, credits)

	const updateQ = `
        UPDATE credit_accounts
        SET balance = balance - $2,
            free_credits = free_credits - $3,
            total_used = total_used + $4,
            updated_at = NOW()
        WHERE user_id = $1
    `
	if _, err := tx.Exec(ctx, updateQ, userID, paidUsed, freeUsed, credits); err != nil {
		return nil, fmt.Errorf("deducting credits for user %s: %w", userID, err)
	}

	const usageQ = `
        INSERT INTO credit_usage (user_id, recording_id, filename, duration_minutes, credits_used, credit_type, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, NOW())
    `
	creditType := spendType(freeUsed, paidUsed)
	var recID *string
	if recordingID != "" {
		recID = &recordingID
	}
	if _, err := tx.Exec(ctx, usageQ, userID, recID, filename, durationMinutes, credits, creditType); err != nil {
		return nil, fmt.Errorf("recording credit usage for user %s: %w", userID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing credit spend for user %s: %w", userID, err)
	}

	return &model.SpendReceipt{
		CreditsUsed:   credits,
		FreeUsed:      freeUsed,
		PaidUsed:      paidUsed,
		RemainingFree: freeCredits - freeUsed,
		RemainingPaid: balance - paidUsed,
	}, nil
}

// AddCredits runs inside the caller's transaction so purchase approval and the
// balance credit commit together.
func (r *creditRepo) AddCredits(ctx context.Context, tx pgx.Tx, userID string, credits int) error {
	const q = `
        UPDATE credit_accounts
        SET balance = balance + $2,
            total_purchased = total_purchased + $2,
            updated_at = NOW()
        WHERE user_id = $1
    `
	tag, err := tx.Exec(ctx, q, userID, credits)
	if err != nil {
		return fmt.Errorf("adding %d credits for user %s: %w", credits, userID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("no credit account exists for user %s", userID)
	}
	return nil
}

func (r *creditRepo) ListUsage(ctx context.Context, userID string, limit int) ([]model.CreditUsage, error) {
	const q = `
        SELECT id, user_id, recording_id, filename, duration_minutes, credits_used, credit_type, created_at
        FROM credit_usage
        WHERE user_id = $1
        ORDER BY created_at DESC
        LIMIT $2
    `
	rows, err := r.pool.Query(ctx, q, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing credit usage for user %s: %w", userID, err)
	}
	defer rows.Close()

	usage := make([]model.CreditUsage, 0)
	for rows.Next() {
		var u model.CreditUsage
		if err := rows.Scan(&u.ID, &u.UserID, &u.RecordingID, &u.Filename, &u.DurationMinutes, &u.CreditsUsed, &u.CreditType, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning credit usage row: %w", err)
		}
		usage = append(usage, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating credit usage rows: %w", err)
	}
	return usage, nil
}

// splitSpend divides a deduction between free and paid credits, free first.
// The paid share may exceed the paid balance; overdraft under concurrent
// spends is accepted and surfaces as a negative balance.
func splitSpend(freeAvailable, cost int) (freeUsed, paidUsed int) {
	if freeAvailable < 0 {
		freeAvailable = 0
	}
	freeUsed = cost
	if freeUsed > freeAvailable {
		freeUsed = freeAvailable
	}
	paidUsed = cost - freeUsed
	return freeUsed, paidUsed
}

func spendType(freeUsed, paidUsed int) string {
	switch {
	case paidUsed == 0:
		return model.CreditTypeFree
	case freeUsed == 0:
		return model.CreditTypePaid
	default:
		return model.CreditTypeMixed
	}
}
