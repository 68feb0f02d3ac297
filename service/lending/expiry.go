package lending

import "time"

// ExpiryAt returns the instant an approved-but-uncollected reservation stops
// being honored.
func ExpiryAt(approvedAt time.Time, holdWindow time.Duration) time.Time {
	return approvedAt.Add(holdWindow)
}

// TimeUntilExpiry reports the remaining hold window. Reading never mutates
// anything; only an explicit dismiss releases stock. The boundary is
// exclusive of "still valid": exactly at the window edge counts as expired.
func TimeUntilExpiry(approvedAt time.Time, holdWindow time.Duration, now time.Time) (remaining time.Duration, expired bool) {
	expiry := ExpiryAt(approvedAt, holdWindow)
	if !now.Before(expiry) {
		return 0, true
	}
	return expiry.Sub(now), false
}
