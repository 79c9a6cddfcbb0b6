package model

import "time"

// Payment states, driven by the invoice provider's webhook.
const (
	PaymentStatusPending = "pending"
	PaymentStatusPaid    = "paid"
	PaymentStatusExpired = "expired"
)

// Payment is a subscription-upgrade invoice issued through the payment
// provider. The paid transition is the sole trigger for a tier upgrade.
type Payment struct {
	ID               string     `db:"id" json:"id"`
	UserID           string     `db:"user_id" json:"user_id"`
	Tier             string     `db:"tier" json:"tier"`
	Amount           int        `db:"amount" json:"amount"`
	Status           string     `db:"status" json:"status"`
	XenditInvoiceID  string     `db:"xendit_invoice_id" json:"xendit_invoice_id"`
	XenditInvoiceURL string     `db:"xendit_invoice_url" json:"xendit_invoice_url"`
	PaidAt           *time.Time `db:"paid_at" json:"paid_at,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
}
