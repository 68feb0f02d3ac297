package config

import (
	"os"
	"strconv"
	"time"

	lendingSvc "lendhub.GO/service/lending"
)

// LendingPolicy reads the lending policy from env. Defaults: 2h collection
// hold window, 5 currency units per overdue day.
func LendingPolicy() lendingSvc.Policy {
	p := lendingSvc.DefaultPolicy()
	if v := os.Getenv("HOLD_WINDOW_MINUTES"); v != "" {
		if minutes, err := strconv.Atoi(v); err == nil && minutes > 0 {
			p.HoldWindow = time.Duration(minutes) * time.Minute
		}
	}
	if v := os.Getenv("FINE_RATE_PER_DAY"); v != "" {
		if rate, err := strconv.ParseFloat(v, 64); err == nil && rate >= 0 {
			p.FineRatePerDay = rate
		}
	}
	if v := os.Getenv("FINE_CURRENCY"); v != "" {
		p.Currency = v
	}
	return p
}
