package dto

// UpgradeRequest starts a paid-tier upgrade via a hosted invoice.
type UpgradeRequest struct {
	Tier string `json:"tier" validate:"required,oneof=basic pro"`
}

// UpgradeResponse points the user at the invoice to pay.
type UpgradeResponse struct {
	PaymentID  string `json:"payment_id"`
	InvoiceURL string `json:"invoice_url"`
	Amount     int    `json:"amount"`
}
