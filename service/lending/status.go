package lending

import (
	lendingEntity "lendhub.GO/model/entity/lending"
)

// transitions is the legal state machine, shared by library items and lab
// components. Library items enter at APPROVED (auto-granted), lab components
// at PENDING. EXPIRED is additionally reachable from PENDING through Dismiss,
// which is handled outside this table.
var transitions = map[lendingEntity.Status][]lendingEntity.Status{
	lendingEntity.StatusPending:      {lendingEntity.StatusApproved, lendingEntity.StatusRejected},
	lendingEntity.StatusApproved:     {lendingEntity.StatusCollected, lendingEntity.StatusExpired},
	lendingEntity.StatusCollected:    {lendingEntity.StatusUserReturned, lendingEntity.StatusReturned, lendingEntity.StatusOverdue},
	lendingEntity.StatusUserReturned: {lendingEntity.StatusReturned},
	lendingEntity.StatusOverdue:      {lendingEntity.StatusUserReturned, lendingEntity.StatusReturned},
}

// CanTransition reports whether from -> to is in the state machine.
func CanTransition(from, to lendingEntity.Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// releasesStock reports whether entering `to` returns the reserved units to
// the pool. Each request releases at most once, guarded by released_at.
func releasesStock(to lendingEntity.Status) bool {
	switch to {
	case lendingEntity.StatusRejected, lendingEntity.StatusReturned, lendingEntity.StatusExpired:
		return true
	}
	return false
}
