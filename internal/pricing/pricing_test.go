package pricing

import (
	"testing"
	"time"
)

func TestCreditsRequired(t *testing.T) {
	tests := []struct {
		minutes float64
		want    int
	}{
		{0, 1},
		{19.9, 1},
		{20, 1},
		{20.1, 2},
		{45, 2},
		{90, 3},
		{240, 3}, // anything past the top tier costs the top tier
	}
	for _, tt := range tests {
		if got := CreditsRequired(tt.minutes); got != tt.want {
			t.Errorf("CreditsRequired(%v) = %d, want %d", tt.minutes, got, tt.want)
		}
	}
}

func TestMaxFileSizeMB(t *testing.T) {
	if got := MaxFileSizeMB(15); got != 150 {
		t.Errorf("MaxFileSizeMB(15) = %d, want 150", got)
	}
	if got := MaxFileSizeMB(200); got != 500 {
		t.Errorf("MaxFileSizeMB(200) = %d, want 500", got)
	}
}

func TestLimitsForUnknownTierFallsBackToFree(t *testing.T) {
	limits := LimitsFor("enterprise")
	if limits.ID != TierFree {
		t.Fatalf("unknown tier resolved to %q, want %q", limits.ID, TierFree)
	}
}

func TestCurrentPeriodWeeklyAlignsToMonday(t *testing.T) {
	// Thursday 2024-03-14 10:30 local.
	now := time.Date(2024, 3, 14, 10, 30, 0, 0, time.UTC)
	start, end := CurrentPeriod(TierFree, now)

	wantStart := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC) // Monday
	if !start.Equal(wantStart) {
		t.Errorf("weekly period start = %v, want %v", start, wantStart)
	}
	if !end.Equal(wantStart.AddDate(0, 0, 7)) {
		t.Errorf("weekly period end = %v, want %v", end, wantStart.AddDate(0, 0, 7))
	}

	// A Monday must be its own period start.
	monday := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)
	start, _ = CurrentPeriod(TierFree, monday)
	if !start.Equal(monday) {
		t.Errorf("period start on a Monday = %v, want %v", start, monday)
	}

	// Sunday still belongs to the week that started six days earlier.
	sunday := time.Date(2024, 3, 17, 23, 59, 0, 0, time.UTC)
	start, _ = CurrentPeriod(TierFree, sunday)
	if !start.Equal(wantStart) {
		t.Errorf("period start on Sunday = %v, want %v", start, wantStart)
	}
}

func TestCurrentPeriodMonthlyAlignsToFirst(t *testing.T) {
	now := time.Date(2024, 12, 20, 8, 0, 0, 0, time.UTC)
	start, end := CurrentPeriod(TierPro, now)

	if !start.Equal(time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("monthly period start = %v", start)
	}
	// December rolls over into January of the next year.
	if !end.Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("monthly period end = %v", end)
	}
}

func TestCurrentPeriodDeterministic(t *testing.T) {
	now := time.Date(2024, 6, 5, 12, 0, 0, 0, time.UTC)
	s1, e1 := CurrentPeriod(TierBasic, now)
	s2, e2 := CurrentPeriod(TierBasic, now)
	if !s1.Equal(s2) || !e1.Equal(e2) {
		t.Fatal("CurrentPeriod is not deterministic for a fixed now")
	}
}
