package pricing

// CreditPackage is a purchasable bundle of credits. Prices are in IDR.
type CreditPackage struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Credits        int     `json:"credits"`
	Price          int     `json:"price"`
	PricePerCredit float64 `json:"price_per_credit"`
	IsPopular      bool    `json:"is_popular"`
}

var creditPackages = map[string]CreditPackage{
	"starter": {ID: "starter", Name: "Starter", Credits: 10, Price: 99000, PricePerCredit: 9900},
	"value":   {ID: "value", Name: "Value", Credits: 30, Price: 249000, PricePerCredit: 8300, IsPopular: true},
	"pro":     {ID: "pro", Name: "Pro", Credits: 60, Price: 449000, PricePerCredit: 7483},
}

// Package returns the package with the given id.
func Package(id string) (CreditPackage, bool) {
	p, ok := creditPackages[id]
	return p, ok
}

// AllPackages returns every purchasable package in display order.
func AllPackages() []CreditPackage {
	return []CreditPackage{creditPackages["starter"], creditPackages["value"], creditPackages["pro"]}
}

// DurationTier maps a recording length to its credit cost.
type DurationTier struct {
	MaxMinutes      int `json:"max_minutes"`
	CreditsRequired int `json:"credits_required"`
	MaxFileMB       int `json:"max_file_mb"`
}

// DurationTiers is ordered by ascending ceiling; CreditsRequired is monotonic.
var DurationTiers = []DurationTier{
	{MaxMinutes: 20, CreditsRequired: 1, MaxFileMB: 150},
	{MaxMinutes: 45, CreditsRequired: 2, MaxFileMB: 300},
	{MaxMinutes: 90, CreditsRequired: 3, MaxFileMB: 500},
}

// FreeWeeklyCredits is the recurring allotment granted to every account,
// reset every seven days on read.
const FreeWeeklyCredits = 2

// CreditsRequired returns the cost of processing a recording of the given
// length: the smallest tier whose ceiling covers it, or the top tier's cost
// for anything longer.
func CreditsRequired(durationMinutes float64) int {
	for _, t := range DurationTiers {
		if durationMinutes <= float64(t.MaxMinutes) {
			return t.CreditsRequired
		}
	}
	return DurationTiers[len(DurationTiers)-1].CreditsRequired
}

// MaxFileSizeMB returns the file-size ceiling for a recording of the given
// expected length.
func MaxFileSizeMB(durationMinutes float64) int {
	for _, t := range DurationTiers {
		if durationMinutes <= float64(t.MaxMinutes) {
			return t.MaxFileMB
		}
	}
	return DurationTiers[len(DurationTiers)-1].MaxFileMB
}
