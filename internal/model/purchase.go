package model

import "time"

// Purchase lifecycle states. A purchase leaves pending exactly once.
const (
	PurchaseStatusPending  = "pending"
	PurchaseStatusApproved = "approved"
	PurchaseStatusRejected = "rejected"
)

// Purchase is a manual credit purchase awaiting admin verification against an
// uploaded transfer proof.
type Purchase struct {
	ID            string     `db:"id" json:"id"`
	UserID        string     `db:"user_id" json:"user_id"`
	PackageID     string     `db:"package_id" json:"package_id"`
	Credits       int        `db:"credits" json:"credits"`
	Amount        int        `db:"amount" json:"amount"`
	Status        string     `db:"status" json:"status"`
	ProofPath     *string    `db:"proof_path" json:"proof_path,omitempty"`
	ProofFilename *string    `db:"proof_filename" json:"proof_filename,omitempty"`
	AdminNotes    *string    `db:"admin_notes" json:"admin_notes,omitempty"`
	VerifiedAt    *time.Time `db:"verified_at" json:"verified_at,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}
