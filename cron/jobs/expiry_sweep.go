package jobs

import (
	"log"
	"sync"

	"gorm.io/gorm"

	lendingRepo "lendhub.GO/model/repository/lending"
	lendingSvc "lendhub.GO/service/lending"
)

var (
	mu     sync.Mutex
	ledger *lendingSvc.Ledger
	pools  *lendingRepo.PoolRepository
)

// Init wires the sweep's dependencies. Called once at startup (main or CLI)
// after the DB and policy are loaded; jobs are no-ops until then.
func Init(db *gorm.DB, policy lendingSvc.Policy) {
	mu.Lock()
	defer mu.Unlock()
	ledger = lendingSvc.NewLedger(db, policy)
	pools = lendingRepo.NewPoolRepository(db)
}

// Ledger returns the sweep ledger (for subscribing to its events).
func Ledger() *lendingSvc.Ledger {
	mu.Lock()
	defer mu.Unlock()
	return ledger
}

// ExpirySweepJob flags APPROVED-but-uncollected reservations past the hold
// window and alerts on broken pool invariants. It never releases stock; that
// happens on explicit dismissal only, so a crashed or doubled sweep cannot
// double-release.
func ExpirySweepJob(args ...string) {
	mu.Lock()
	l, p := ledger, pools
	mu.Unlock()
	if l == nil {
		log.Println("expirysweep: not initialized, skipping")
		return
	}

	expired, err := l.SweepExpired()
	if err != nil {
		log.Printf("expirysweep: %v", err)
		return
	}
	if len(expired) > 0 {
		log.Printf("expirysweep: %d uncollected reservation(s) past hold window", len(expired))
	}

	bad, err := p.CountInconsistent()
	if err != nil {
		log.Printf("expirysweep: invariant check failed: %v", err)
		return
	}
	if bad > 0 {
		// available < 0 or available > total means a broken invariant, not a
		// business rejection. Loud on purpose.
		log.Printf("ALERT expirysweep: %d pool(s) with inconsistent counters", bad)
	}
}
