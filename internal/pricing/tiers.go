package pricing

// Subscription tier identifiers.
const (
	TierFree  = "free"
	TierBasic = "basic"
	TierPro   = "pro"
)

// TierLimits describes what a subscription tier allows per billing period.
type TierLimits struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	UploadsPerPeriod   int    `json:"uploads_per_period"`
	PeriodDays         int    `json:"period_days"` // 7 for weekly, 30 for monthly
	MaxFileMB          int    `json:"max_file_mb"`
	MaxDurationMinutes int    `json:"max_duration_minutes"`
	HasPDFExport       bool   `json:"has_pdf_export"`
	HasPriorityQueue   bool   `json:"has_priority_queue"`
	HistoryDays        int    `json:"history_days"` // 0 = unlimited retention
}

var tierLimits = map[string]TierLimits{
	TierFree: {
		ID:                 TierFree,
		Name:               "Free",
		UploadsPerPeriod:   2,
		PeriodDays:         7,
		MaxFileMB:          40,
		MaxDurationMinutes: 20,
		HistoryDays:        30,
	},
	TierBasic: {
		ID:                 TierBasic,
		Name:               "Basic",
		UploadsPerPeriod:   30,
		PeriodDays:         30,
		MaxFileMB:          50,
		MaxDurationMinutes: 60,
		HasPDFExport:       true,
		HistoryDays:        180,
	},
	TierPro: {
		ID:                 TierPro,
		Name:               "Pro",
		UploadsPerPeriod:   40,
		PeriodDays:         30,
		MaxFileMB:          100,
		MaxDurationMinutes: 90,
		HasPDFExport:       true,
		HasPriorityQueue:   true,
		HistoryDays:        0,
	},
}

var tierPricing = map[string]int{
	TierFree:  0,
	TierBasic: 199000,
	TierPro:   399000,
}

// LimitsFor returns the limits for a tier, falling back to the free tier for
// unknown values so a corrupt subscription row never grants extra quota.
func LimitsFor(tier string) TierLimits {
	if l, ok := tierLimits[tier]; ok {
		return l
	}
	return tierLimits[TierFree]
}

// PriceFor returns the monthly price of a tier in IDR.
func PriceFor(tier string) int {
	return tierPricing[tier]
}

// KnownTier reports whether the tier id is a valid plan.
func KnownTier(tier string) bool {
	_, ok := tierLimits[tier]
	return ok
}

// AllTiers returns every tier in ascending price order.
func AllTiers() []TierLimits {
	return []TierLimits{tierLimits[TierFree], tierLimits[TierBasic], tierLimits[TierPro]}
}
