package repository

import (
	"context"
	"errors"
	"fmt"

	"app/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrPaymentAlreadySettled is returned when a webhook tries to settle a
// payment that is no longer pending.
var ErrPaymentAlreadySettled = errors.New("payment_already_settled")

// PaymentRepository stores subscription invoice payments.
type PaymentRepository interface {
	Create(ctx context.Context, p *model.Payment) error
	GetByInvoiceID(ctx context.Context, invoiceID string) (*model.Payment, error)
	ListByUser(ctx context.Context, userID string) ([]model.Payment, error)
	// MarkPaid settles a pending payment. Duplicate webhook deliveries get
	// ErrPaymentAlreadySettled instead of a second settlement.
	MarkPaid(ctx context.Context, invoiceID string) (*model.Payment, error)
	MarkExpired(ctx context.Context, invoiceID string) error
}

type paymentRepo struct {
	pool *pgxpool.Pool
}

// NewPaymentRepo creates a new PaymentRepository.
func NewPaymentRepo(pool *pgxpool.Pool) PaymentRepository {
	return &paymentRepo{pool: pool}
}

const paymentColumns = `id, user_id, tier, amount, status, xendit_invoice_id, xendit_invoice_url, paid_at, created_at`

func scanPayment(row pgx.Row) (*model.Payment, error) {
	var p model.Payment
	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.Tier,
		&p.Amount,
		&p.Status,
		&p.XenditInvoiceID,
		&p.XenditInvoiceURL,
		&p.PaidAt,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *paymentRepo) Create(ctx context.Context, p *model.Payment) error {
	const q = `
        INSERT INTO payments (id, user_id, tier, amount, status, xendit_invoice_id, xendit_invoice_url, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
        RETURNING created_at
    `
	err := r.pool.QueryRow(ctx, q, p.ID, p.UserID, p.Tier, p.Amount, p.Status, p.XenditInvoiceID, p.XenditInvoiceURL).Scan(&p.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating payment for user %s: %w", p.UserID, err)
	}
	return nil
}

func (r *paymentRepo) GetByInvoiceID(ctx context.Context, invoiceID string) (*model.Payment, error) {
	const q = `SELECT ` + paymentColumns + ` FROM payments WHERE xendit_invoice_id = $1`
	p, err := scanPayment(r.pool.QueryRow(ctx, q, invoiceID))
	if err != nil {
		return nil, fmt.Errorf("fetch payment for invoice %s: %w", invoiceID, err)
	}
	return p, nil
}

func (r *paymentRepo) ListByUser(ctx context.Context, userID string) ([]model.Payment, error) {
	const q = `
        SELECT ` + paymentColumns + `
        FROM payments
        WHERE user_id = $1
        ORDER BY created_at DESC
    `
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("listing payments for user %s: %w", userID, err)
	}
	defer rows.Close()

	payments := make([]model.Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning payment row: %w", err)
		}
		payments = append(payments, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating payment rows: %w", err)
	}
	return payments, nil
}

func (r *paymentRepo) MarkPaid(ctx context.Context, invoiceID string) (*model.Payment, error) {
	const q = `
        UPDATE payments
        SET status = 'paid', paid_at = NOW()
        WHERE xendit_invoice_id = $1 AND status = 'pending'
        RETURNING ` + paymentColumns

	p, err := scanPayment(r.pool.QueryRow(ctx, q, invoiceID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPaymentAlreadySettled
	}
	if err != nil {
		return nil, fmt.Errorf("settling payment for invoice %s: %w", invoiceID, err)
	}
	return p, nil
}

func (r *paymentRepo) MarkExpired(ctx context.Context, invoiceID string) error {
	const q = `
        UPDATE payments
        SET status = 'expired'
        WHERE xendit_invoice_id = $1 AND status = 'pending'
    `
	if _, err := r.pool.Exec(ctx, q, invoiceID); err != nil {
		return fmt.Errorf("expiring payment for invoice %s: %w", invoiceID, err)
	}
	return nil
}
