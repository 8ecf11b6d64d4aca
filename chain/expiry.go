package chain

import "time"

// secondsPerYear uses a 365.25 day year.
const secondsPerYear = 365.25 * 24 * 3600

// TimeToExpiry returns the year fraction between now and expiry, floored at 0.
func TimeToExpiry(expiry, now time.Time) float64 {
	years := expiry.Sub(now).Seconds() / secondsPerYear
	if years < 0 {
		return 0
	}
	return years
}

// NextFriday returns the next Friday strictly after now, at the same wall clock time.
func NextFriday(now time.Time) time.Time {
	daysUntilFriday := (int(time.Friday) - int(now.Weekday()) + 7) % 7
	if daysUntilFriday == 0 {
		daysUntilFriday = 7
	}
	return now.AddDate(0, 0, daysUntilFriday)
}
