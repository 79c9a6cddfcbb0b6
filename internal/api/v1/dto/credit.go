package dto

// PurchaseRequest opens a pending purchase for a credit package.
type PurchaseRequest struct {
	PackageID string `json:"package_id" validate:"required"`
}

// VerifyPurchaseRequest carries the operator's decision notes.
type VerifyPurchaseRequest struct {
	Notes string `json:"notes" validate:"max=1000"`
}
