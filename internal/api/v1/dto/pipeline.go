package dto

// RetrySummaryRequest asks for a new summary from a cached transcript.
type RetrySummaryRequest struct {
	Fingerprint string `json:"fingerprint" validate:"required,len=16,hexadecimal"`
}

// CheckUploadRequest asks whether a recording of the given shape would be
// accepted and what it would cost, before the file is sent.
type CheckUploadRequest struct {
	FileSizeMB      float64 `json:"file_size_mb" validate:"required,gt=0"`
	DurationMinutes float64 `json:"duration_minutes" validate:"required,gt=0"`
}

// CheckUploadResponse is the pre-flight answer. A denial says what would fix
// it: buy credits (NeedsPurchase), move to a higher tier (UpgradeRequired),
// or nothing when neither flag is set (hard ceiling).
type CheckUploadResponse struct {
	Allowed         bool   `json:"allowed"`
	Reason          string `json:"reason,omitempty"`
	NeedsPurchase   bool   `json:"needs_purchase"`
	UpgradeRequired bool   `json:"upgrade_required"`
	CreditsRequired int    `json:"credits_required"`
	FreeAvailable   int    `json:"free_available"`
	PaidAvailable   int    `json:"paid_available"`
}
