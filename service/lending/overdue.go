package lending

import (
	"math"
	"time"
)

// Pure overdue/fine calculations. Nothing here mutates state; callers query
// these for display and for settlement at confirmed return.

// IsOverdue reports whether a due date has passed. Only meaningful while the
// request is COLLECTED.
func IsOverdue(requiredBy, now time.Time) bool {
	return now.After(requiredBy)
}

// OverdueDays returns the whole days late, rounded up, minimum 1 once
// overdue, 0 otherwise.
func OverdueDays(requiredBy, now time.Time) int {
	if !now.After(requiredBy) {
		return 0
	}
	days := int(math.Ceil(now.Sub(requiredBy).Hours() / 24))
	if days < 1 {
		days = 1
	}
	return days
}

// Fine is overdueDays * ratePerDay, 0 when not overdue. Monotonically
// non-decreasing in days.
func Fine(overdueDays int, ratePerDay float64) float64 {
	if overdueDays <= 0 {
		return 0
	}
	return float64(overdueDays) * ratePerDay
}
