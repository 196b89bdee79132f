package usecase

import "time"

// DefaultFreshnessWindow is the age limit for items that still trigger alerts.
const DefaultFreshnessWindow = 24 * time.Hour

// IsFresh reports whether ts lies within window of now. Future timestamps are fresh.
// A zero timestamp is never fresh.
func IsFresh(ts, now time.Time, window time.Duration) bool {
	if ts.IsZero() {
		return false
	}
	return now.Sub(ts) <= window
}
