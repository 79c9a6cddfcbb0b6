package model

import "time"

// CreditAccount tracks a user's consumable balance. FreeCredits is the
// weekly-reset allotment; Balance is purchased credits. Spend always draws
// FreeCredits before Balance.
type CreditAccount struct {
	UserID             string    `db:"user_id" json:"user_id"`
	Balance            int       `db:"balance" json:"balance"`
	FreeCredits        int       `db:"free_credits" json:"free_credits"`
	FreeCreditsResetAt time.Time `db:"free_credits_reset_at" json:"free_credits_reset_at"`
	TotalPurchased     int       `db:"total_purchased" json:"total_purchased"`
	TotalUsed          int       `db:"total_used" json:"total_used"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

// Available is the total spendable balance.
func (a *CreditAccount) Available() int {
	return a.Balance + a.FreeCredits
}

// Credit usage log entry types.
const (
	CreditTypeFree  = "free"
	CreditTypePaid  = "paid"
	CreditTypeMixed = "mixed"
)

// CreditUsage is one usage-log line recorded per spend.
type CreditUsage struct {
	ID              string    `db:"id" json:"id"`
	UserID          string    `db:"user_id" json:"user_id"`
	CreditsUsed     int       `db:"credits_used" json:"credits_used"`
	CreditType      string    `db:"credit_type" json:"credit_type"`
	DurationMinutes float64   `db:"duration_minutes" json:"duration_minutes"`
	Filename        string    `db:"filename" json:"filename"`
	RecordingID     *string   `db:"recording_id" json:"recording_id,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// SpendReceipt reports how a spend was split across free and paid credits.
type SpendReceipt struct {
	CreditsUsed   int `json:"credits_used"`
	FreeUsed      int `json:"free_used"`
	PaidUsed      int `json:"paid_used"`
	RemainingFree int `json:"remaining_free"`
	RemainingPaid int `json:"remaining_paid"`
}
