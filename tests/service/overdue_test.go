package servicetest

import (
	"testing"
	"time"

	lendingEntity "lendhub.GO/model/entity/lending"
	lendingSvc "lendhub.GO/service/lending"
)

func status(s string) lendingEntity.Status {
	return lendingEntity.Status(s)
}

func TestOverdueDays(t *testing.T) {
	due := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		now  time.Time
		want int
	}{
		{"before due", due.Add(-time.Hour), 0},
		{"exactly due", due, 0},
		{"one hour late rounds up to a day", due.Add(time.Hour), 1},
		{"exactly one day", due.Add(24 * time.Hour), 1},
		{"one day and an hour", due.Add(25 * time.Hour), 2},
		{"three days", due.Add(3 * 24 * time.Hour), 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := lendingSvc.OverdueDays(due, tc.now); got != tc.want {
				t.Errorf("OverdueDays = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestFine(t *testing.T) {
	if got := lendingSvc.Fine(0, 5); got != 0 {
		t.Errorf("Fine(0 days) = %v, want 0", got)
	}
	if got := lendingSvc.Fine(3, 5); got != 15 {
		t.Errorf("Fine(3 days) = %v, want 15", got)
	}
	// More days never means a smaller fine.
	prev := 0.0
	for days := 1; days <= 10; days++ {
		f := lendingSvc.Fine(days, 5)
		if f < prev {
			t.Fatalf("fine decreased: %v days -> %v, previous %v", days, f, prev)
		}
		prev = f
	}
}

func TestTimeUntilExpiry_Boundary(t *testing.T) {
	approvedAt := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	window := 2 * time.Hour

	remaining, expired := lendingSvc.TimeUntilExpiry(approvedAt, window, approvedAt.Add(time.Hour))
	if expired || remaining != time.Hour {
		t.Errorf("mid-window: remaining=%v expired=%v, want 1h/false", remaining, expired)
	}

	// Exactly at the window edge counts as expired.
	remaining, expired = lendingSvc.TimeUntilExpiry(approvedAt, window, approvedAt.Add(window))
	if !expired || remaining != 0 {
		t.Errorf("at edge: remaining=%v expired=%v, want 0/true", remaining, expired)
	}

	_, expired = lendingSvc.TimeUntilExpiry(approvedAt, window, approvedAt.Add(window+time.Second))
	if !expired {
		t.Error("past edge not expired")
	}
}

func TestCanTransition(t *testing.T) {
	legal := []struct{ from, to string }{
		{"PENDING", "APPROVED"},
		{"PENDING", "REJECTED"},
		{"APPROVED", "COLLECTED"},
		{"APPROVED", "EXPIRED"},
		{"COLLECTED", "USER_RETURNED"},
		{"COLLECTED", "RETURNED"},
		{"COLLECTED", "OVERDUE"},
		{"USER_RETURNED", "RETURNED"},
		{"OVERDUE", "RETURNED"},
	}
	for _, c := range legal {
		if !lendingSvc.CanTransition(status(c.from), status(c.to)) {
			t.Errorf("CanTransition(%s, %s) = false, want true", c.from, c.to)
		}
	}

	illegal := []struct{ from, to string }{
		{"PENDING", "COLLECTED"},
		{"APPROVED", "RETURNED"},
		{"RETURNED", "COLLECTED"},
		{"REJECTED", "APPROVED"},
		{"EXPIRED", "APPROVED"},
		{"USER_RETURNED", "COLLECTED"},
	}
	for _, c := range illegal {
		if lendingSvc.CanTransition(status(c.from), status(c.to)) {
			t.Errorf("CanTransition(%s, %s) = true, want false", c.from, c.to)
		}
	}
}
