package pricing

import "time"

// CurrentPeriod returns the billing window containing now for the given tier.
// Weekly tiers align to the most recent Monday 00:00 local time; monthly
// tiers align to the first of the month. Pure: callers inject now.
func CurrentPeriod(tier string, now time.Time) (start, end time.Time) {
	limits := LimitsFor(tier)

	if limits.PeriodDays == 7 {
		// Monday is day 1; Sunday wraps to 6 days back.
		offset := (int(now.Weekday()) + 6) % 7
		start = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).
			AddDate(0, 0, -offset)
		return start, start.AddDate(0, 0, 7)
	}

	start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return start, start.AddDate(0, 1, 0)
}
