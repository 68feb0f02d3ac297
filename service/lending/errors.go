package lending

import (
	"errors"
	"fmt"

	lendingEntity "lendhub.GO/model/entity/lending"
)

var (
	// ErrNotFound wraps missing pools/requests so handlers can map to 404.
	ErrNotFound = errors.New("not found")
	// ErrForbidden: the actor's role may not perform this transition.
	ErrForbidden = errors.New("action not allowed for this role")
)

// InsufficientStockError rejects a reservation that asked for more than the
// pool currently has. Carries current availability so the caller can decide
// whether to retry with less or wait.
type InsufficientStockError struct {
	ResourceID string
	Requested  int
	Available  int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d",
		e.ResourceID, e.Requested, e.Available)
}

// InvalidTransitionError rejects a state change that is not legal from the
// request's current status, including duplicate/retried transition calls.
type InvalidTransitionError struct {
	RequestID string
	From      lendingEntity.Status
	To        lendingEntity.Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition for request %s: %s -> %s", e.RequestID, e.From, e.To)
}

// ValidationError rejects malformed input before any mutation happens.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
