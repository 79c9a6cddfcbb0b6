package repository

import (
	"context"
	"errors"
	"fmt"

	"app/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrPurchaseAlreadyProcessed is returned when approving or rejecting a
// purchase that is no longer pending.
var ErrPurchaseAlreadyProcessed = errors.New("purchase_already_processed")

// PurchaseRepository manages manual credit purchases and their verification.
type PurchaseRepository interface {
	Create(ctx context.Context, p *model.Purchase) error
	Get(ctx context.Context, id string) (*model.Purchase, error)
	ListByUser(ctx context.Context, userID string) ([]model.Purchase, error)
	ListPending(ctx context.Context) ([]model.Purchase, error)
	AttachProof(ctx context.Context, id, proofPath, proofFilename string) error
	// Approve flips a pending purchase to approved and credits the buyer's
	// balance in the same transaction. Returns ErrPurchaseAlreadyProcessed
	// if the purchase was already decided.
	Approve(ctx context.Context, id, adminNotes string, credits CreditRepository) (*model.Purchase, error)
	// Reject flips a pending purchase to rejected without touching balances.
	Reject(ctx context.Context, id, adminNotes string) (*model.Purchase, error)
}

type purchaseRepo struct {
	pool *pgxpool.Pool
}

// NewPurchaseRepo creates a new PurchaseRepository.
func NewPurchaseRepo(pool *pgxpool.Pool) PurchaseRepository {
	return &purchaseRepo{pool: pool}
}

const purchaseColumns = `id, user_id, package_id, credits, amount, status, proof_path, proof_filename, admin_notes, verified_at, created_at`

func scanPurchase(row pgx.Row) (*model.Purchase, error) {
	var p model.Purchase
	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.PackageID,
		&p.Credits,
		&p.Amount,
		&p.Status,
		&p.ProofPath,
		&p.ProofFilename,
		&p.AdminNotes,
		&p.VerifiedAt,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *purchaseRepo) Create(ctx context.Context, p *model.Purchase) error {
	const q = `
        INSERT INTO credit_purchases (id, user_id, package_id, credits, amount, status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, NOW())
        RETURNING created_at
    `
	err := r.pool.QueryRow(ctx, q, p.ID, p.UserID, p.PackageID, p.Credits, p.Amount, p.Status).Scan(&p.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating purchase for user %s: %w", p.UserID, err)
	}
	return nil
}

func (r *purchaseRepo) Get(ctx context.Context, id string) (*model.Purchase, error) {
	const q = `SELECT ` + purchaseColumns + ` FROM credit_purchases WHERE id = $1`
	p, err := scanPurchase(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		return nil, fmt.Errorf("fetch purchase %s: %w", id, err)
	}
	return p, nil
}

func (r *purchaseRepo) ListByUser(ctx context.Context, userID string) ([]model.Purchase, error) {
	const q = `
        SELECT ` + purchaseColumns + `
        FROM credit_purchases
        WHERE user_id = $1
        ORDER BY created_at DESC
    `
	return r.list(ctx, q, userID)
}

func (r *purchaseRepo) ListPending(ctx context.Context) ([]model.Purchase, error) {
	const q = `
        SELECT ` + purchaseColumns + `
        FROM credit_purchases
        WHERE status = 'pending'
        ORDER BY created_at ASC
    `
	return r.list(ctx, q)
}

func (r *purchaseRepo) list(ctx context.Context, q string, args ...any) ([]model.Purchase, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("listing purchases: %w", err)
	}
	defer rows.Close()

	purchases := make([]model.Purchase, 0)
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning purchase row: %w", err)
		}
		purchases = append(purchases, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating purchase rows: %w", err)
	}
	return purchases, nil
}

func (r *purchaseRepo) AttachProof(ctx context.Context, id, proofPath, proofFilename string) error {
	const q = `
        UPDATE credit_purchases
        SET proof_path = $2, proof_filename = $3
        WHERE id = $1 AND status = 'pending'
    `
	tag, err := r.pool.Exec(ctx, q, id, proofPath, proofFilename)
	if err != nil {
		return fmt.Errorf("attaching proof to purchase %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPurchaseAlreadyProcessed
	}
	return nil
}

func (r *purchaseRepo) Approve(ctx context.Context, id, adminNotes string, credits CreditRepository) (*model.Purchase, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return nil, fmt.Errorf("starting transaction for purchase approval: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	// The status guard makes approval exactly-once: a second approval (or an
	// approval after a rejection) updates zero rows.
	const q = `
        UPDATE credit_purchases
        SET status = 'approved', admin_notes = $2, verified_at = NOW()
        WHERE id = $1 AND status = 'pending'
        RETURNING ` + purchaseColumns

	p, err := scanPurchase(tx.QueryRow(ctx, q, id, nullable(adminNotes)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPurchaseAlreadyProcessed
	}
	if err != nil {
		return nil, fmt.Errorf("approving purchase %s: %w", id, err)
	}

	if err := credits.AddCredits(ctx, tx, p.UserID, p.Credits); err != nil {
		return nil, fmt.Errorf("crediting approved purchase %s: %w", id, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing purchase approval %s: %w", id, err)
	}
	return p, nil
}

func (r *purchaseRepo) Reject(ctx context.Context, id, adminNotes string) (*model.Purchase, error) {
	const q = `
        UPDATE credit_purchases
        SET status = 'rejected', admin_notes = $2, verified_at = NOW()
        WHERE id = $1 AND status = 'pending'
        RETURNING ` + purchaseColumns

	p, err := scanPurchase(r.pool.QueryRow(ctx, q, id, nullable(adminNotes)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPurchaseAlreadyProcessed
	}
	if err != nil {
		return nil, fmt.Errorf("rejecting purchase %s: %w", id, err)
	}
	return p, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
