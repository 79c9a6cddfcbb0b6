package model

import "time"

// Summary is the structured output of the summarization stage.
type Summary struct {
	ShortSummary string   `json:"short_summary"`
	KeyPoints    []string `json:"key_points"`
	ActionItems  []string `json:"action_items"`
}

// Recording is a processed upload persisted to a user's history. ExpiresAt
// is derived from the tier's retention window; nil means kept forever.
type Recording struct {
	ID              string     `db:"id" json:"id"`
	UserID          string     `db:"user_id" json:"user_id"`
	Filename        string     `db:"filename" json:"filename"`
	DurationMinutes float64    `db:"duration_minutes" json:"duration_minutes"`
	FileSizeMB      float64    `db:"file_size_mb" json:"file_size_mb"`
	CreditsUsed     int        `db:"credits_used" json:"credits_used"`
	Transcript      string     `db:"transcript" json:"transcript"`
	Summary         Summary    `db:"summary" json:"summary"`
	ExpiresAt       *time.Time `db:"expires_at" json:"expires_at,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
}
