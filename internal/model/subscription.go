package model

import "time"

// Subscription states.
const (
	SubscriptionStatusActive  = "active"
	SubscriptionStatusExpired = "expired"
)

// Subscription is a user's current plan. A paid subscription past ExpiresAt
// is lazily downgraded to the free tier on the next read.
type Subscription struct {
	UserID    string     `db:"user_id" json:"user_id"`
	Tier      string     `db:"tier" json:"tier"`
	Status    string     `db:"status" json:"status"`
	StartedAt time.Time  `db:"started_at" json:"started_at"`
	ExpiresAt *time.Time `db:"expires_at" json:"expires_at,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// UsageWindow counts chargeable uploads within one billing period. Exactly
// one window exists per (user, period_start).
type UsageWindow struct {
	UserID      string    `db:"user_id" json:"user_id"`
	PeriodStart time.Time `db:"period_start" json:"period_start"`
	PeriodEnd   time.Time `db:"period_end" json:"period_end"`
	UploadsUsed int       `db:"uploads_used" json:"uploads_used"`
	MinutesUsed float64   `db:"minutes_used" json:"minutes_used"`
}
