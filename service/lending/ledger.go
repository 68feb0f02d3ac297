package lending

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"lendhub.GO/core/identity"
	lendingEntity "lendhub.GO/model/entity/lending"
	lendingRepo "lendhub.GO/model/repository/lending"
)

// Policy is the externally supplied lending configuration.
type Policy struct {
	HoldWindow     time.Duration
	FineRatePerDay float64
	Currency       string
}

// DefaultPolicy: 2h hold window, 5/day fine.
func DefaultPolicy() Policy {
	return Policy{
		HoldWindow:     2 * time.Hour,
		FineRatePerDay: 5,
		Currency:       "INR",
	}
}

// Ledger is the audit-producing façade over the pool and request
// repositories. Every mutating call runs inside one transaction: the pool
// delta and the status write commit or roll back together, and the state
// guards double-apply nothing on retries.
type Ledger struct {
	db       *gorm.DB
	pools    *lendingRepo.PoolRepository
	requests *lendingRepo.RequestRepository
	policy   Policy
	bus      *Bus
	now      func() time.Time
}

func NewLedger(db *gorm.DB, policy Policy) *Ledger {
	return &Ledger{
		db:       db,
		pools:    lendingRepo.NewPoolRepository(db),
		requests: lendingRepo.NewRequestRepository(db),
		policy:   policy,
		bus:      NewBus(),
		now:      time.Now,
	}
}

// Bus exposes the event bus for subscribers (notifications, tests).
func (l *Ledger) Bus() *Bus {
	return l.bus
}

// Policy returns the active lending policy.
func (l *Ledger) Policy() Policy {
	return l.policy
}

// SetClock overrides the time source (tests).
func (l *Ledger) SetClock(now func() time.Time) {
	l.now = now
}

// ReserveInput is one submission: one requester, N units, one resource.
type ReserveInput struct {
	ResourceID       string
	Quantity         int
	RequiredByDate   time.Time
	Purpose          string
	Notes            string
	JustificationRef *string
}

// Reserve validates the request against the pool, atomically decrements
// availability and creates the LoanRequest. Library items enter APPROVED,
// lab components PENDING with a required justification project.
func (l *Ledger) Reserve(actor identity.Actor, in ReserveInput) (*lendingEntity.LoanRequest, error) {
	if in.Quantity < 1 {
		return nil, &ValidationError{Field: "quantity", Reason: "must be at least 1"}
	}
	if in.RequiredByDate.IsZero() {
		return nil, &ValidationError{Field: "required_by_date", Reason: "is required"}
	}

	pool, err := l.pools.FindByResourceID(in.ResourceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if pool.Kind.RequiresApproval() && (in.JustificationRef == nil || *in.JustificationRef == "") {
		return nil, &ValidationError{Field: "justification_ref", Reason: "lab component requests need an approved project"}
	}

	now := l.now()
	req := &lendingEntity.LoanRequest{
		ID:               uuid.NewString(),
		ResourceID:       in.ResourceID,
		RequesterID:      actor.ID,
		RequesterRole:    string(actor.Role),
		Quantity:         in.Quantity,
		Purpose:          in.Purpose,
		Notes:            in.Notes,
		JustificationRef: in.JustificationRef,
		RequestedAt:      now,
		RequiredByDate:   in.RequiredByDate,
	}
	if pool.Kind.RequiresApproval() {
		req.Status = lendingEntity.StatusPending
	} else {
		req.Status = lendingEntity.StatusApproved
		req.ApprovedAt = &now
	}
	req.AuditTrail = appendAudit(nil, lendingEntity.AuditEntry{
		At: now, ActorID: actor.ID, Action: "reserve", To: req.Status,
	})

	err = l.db.Transaction(func(tx *gorm.DB) error {
		reserved, found, err := l.pools.WithTx(tx).TryReserve(in.ResourceID, in.Quantity)
		if err != nil {
			return err
		}
		if !found {
			return ErrNotFound
		}
		if !reserved {
			current, err := l.pools.WithTx(tx).FindByResourceID(in.ResourceID)
			if err != nil {
				return err
			}
			return &InsufficientStockError{
				ResourceID: in.ResourceID,
				Requested:  in.Quantity,
				Available:  current.AvailableQuantity,
			}
		}
		return l.requests.WithTx(tx).Create(req)
	})
	if err != nil {
		return nil, err
	}

	l.publish(EventRequestCreated, req)
	return req, nil
}

// Approve moves PENDING -> APPROVED. Stock was already reserved at
// submission; no pool mutation here.
func (l *Ledger) Approve(actor identity.Actor, requestID string) (*lendingEntity.LoanRequest, error) {
	if !actor.Role.Staff() {
		return nil, ErrForbidden
	}
	now := l.now()
	return l.transition(actor, requestID, lendingEntity.StatusPending, lendingEntity.StatusApproved,
		"approve", "", map[string]interface{}{"approved_at": now})
}

// Reject moves PENDING -> REJECTED and releases the reserved stock.
func (l *Ledger) Reject(actor identity.Actor, requestID, notes string) (*lendingEntity.LoanRequest, error) {
	if !actor.Role.Staff() {
		return nil, ErrForbidden
	}
	updates := map[string]interface{}{}
	if notes != "" {
		updates["staff_notes"] = notes
	}
	return l.transition(actor, requestID, lendingEntity.StatusPending, lendingEntity.StatusRejected,
		"reject", notes, updates)
}

// Collect marks the physical hand-off. Refused once the hold window has
// lapsed: an expired reservation is no longer honored and must be dismissed.
func (l *Ledger) Collect(actor identity.Actor, requestID string) (*lendingEntity.LoanRequest, error) {
	req, err := l.get(requestID)
	if err != nil {
		return nil, err
	}
	if !actor.Role.Staff() && req.RequesterID != actor.ID {
		return nil, ErrForbidden
	}
	if req.Status == lendingEntity.StatusApproved && req.ApprovedAt != nil {
		if _, expired := TimeUntilExpiry(*req.ApprovedAt, l.policy.HoldWindow, l.now()); expired {
			return nil, &InvalidTransitionError{RequestID: requestID,
				From: lendingEntity.StatusApproved, To: lendingEntity.StatusCollected}
		}
	}
	now := l.now()
	return l.transition(actor, requestID, lendingEntity.StatusApproved, lendingEntity.StatusCollected,
		"collect", "", map[string]interface{}{"collected_at": now})
}

// MarkUserReturned records a requester's self-reported return. Stock stays
// decremented until staff verify the physical item.
func (l *Ledger) MarkUserReturned(actor identity.Actor, requestID string) (*lendingEntity.LoanRequest, error) {
	req, err := l.get(requestID)
	if err != nil {
		return nil, err
	}
	if !actor.Role.Staff() && req.RequesterID != actor.ID {
		return nil, ErrForbidden
	}
	from := req.Status
	if from != lendingEntity.StatusCollected && from != lendingEntity.StatusOverdue {
		return nil, &InvalidTransitionError{RequestID: requestID, From: from, To: lendingEntity.StatusUserReturned}
	}
	now := l.now()
	return l.transition(actor, requestID, from, lendingEntity.StatusUserReturned,
		"user_return", "", map[string]interface{}{"user_returned_at": now})
}

// PinOverdue stores the derived overdue condition as an explicit status, for
// staff who want it pinned on the record. Stock release stays deferred until
// the actual return.
func (l *Ledger) PinOverdue(actor identity.Actor, requestID string) (*lendingEntity.LoanRequest, error) {
	if !actor.Role.Staff() {
		return nil, ErrForbidden
	}
	req, err := l.get(requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != lendingEntity.StatusCollected || !IsOverdue(req.RequiredByDate, l.now()) {
		return nil, &InvalidTransitionError{RequestID: requestID, From: req.Status, To: lendingEntity.StatusOverdue}
	}
	return l.transition(actor, requestID, lendingEntity.StatusCollected, lendingEntity.StatusOverdue,
		"pin_overdue", "", nil)
}

// ConfirmReturn verifies the return (from COLLECTED directly or from
// USER_RETURNED), releases stock and pins the settled fine when the item came
// back past its due date.
func (l *Ledger) ConfirmReturn(actor identity.Actor, requestID, notes string) (*lendingEntity.LoanRequest, error) {
	if !actor.Role.Staff() {
		return nil, ErrForbidden
	}
	req, err := l.get(requestID)
	if err != nil {
		return nil, err
	}
	from := req.Status
	if from != lendingEntity.StatusCollected && from != lendingEntity.StatusUserReturned && from != lendingEntity.StatusOverdue {
		return nil, &InvalidTransitionError{RequestID: requestID, From: from, To: lendingEntity.StatusReturned}
	}
	now := l.now()
	updates := map[string]interface{}{"returned_at": now}
	if notes != "" {
		updates["staff_notes"] = notes
	}
	fine := Fine(OverdueDays(req.RequiredByDate, now), l.policy.FineRatePerDay)
	if fine > 0 {
		updates["fine_amount"] = fine
	}
	return l.transition(actor, requestID, from, lendingEntity.StatusReturned, "return", notes, updates)
}

// Dismiss expires an uncollected reservation (PENDING or APPROVED) and
// releases the stock exactly once. Collected items cannot be dismissed; their
// units are physically out and only a return brings them back. Dismissing an
// already-EXPIRED request is a no-op. Students may only dismiss their own.
func (l *Ledger) Dismiss(actor identity.Actor, requestID string) (*lendingEntity.LoanRequest, error) {
	req, err := l.get(requestID)
	if err != nil {
		return nil, err
	}
	if !actor.Role.Staff() && req.RequesterID != actor.ID {
		return nil, ErrForbidden
	}
	if req.Status == lendingEntity.StatusExpired {
		return req, nil
	}
	if req.Status != lendingEntity.StatusPending && req.Status != lendingEntity.StatusApproved {
		return nil, &InvalidTransitionError{RequestID: requestID, From: req.Status, To: lendingEntity.StatusExpired}
	}
	return l.transition(actor, requestID, req.Status, lendingEntity.StatusExpired, "dismiss", "", nil)
}

// SettleFine records payment of a fine pinned at return. The amount is
// immutable once pinned; only the paid flag moves, and only once.
func (l *Ledger) SettleFine(actor identity.Actor, requestID string) (*lendingEntity.LoanRequest, error) {
	if !actor.Role.Staff() {
		return nil, ErrForbidden
	}
	req, err := l.get(requestID)
	if err != nil {
		return nil, err
	}
	settled, err := l.requests.SettleFine(requestID)
	if err != nil {
		return nil, err
	}
	if !settled {
		if req.FinePaid {
			return nil, &ValidationError{Field: "fine", Reason: "already settled"}
		}
		return nil, &ValidationError{Field: "fine", Reason: "no fine on this request"}
	}
	now := l.now()
	req.AuditTrail = appendAudit(req.AuditTrail, lendingEntity.AuditEntry{
		At: now, ActorID: actor.ID, Action: "settle_fine",
	})
	if err := l.requests.SaveAudit(requestID, req.AuditTrail); err != nil {
		return nil, err
	}
	return l.get(requestID)
}

// Get returns one request; requesters see their own, staff see all.
func (l *Ledger) Get(actor identity.Actor, requestID string) (*lendingEntity.LoanRequest, error) {
	req, err := l.get(requestID)
	if err != nil {
		return nil, err
	}
	if !actor.Role.Staff() && req.RequesterID != actor.ID {
		return nil, ErrForbidden
	}
	return req, nil
}

// List returns requests visible to the actor, newest first.
func (l *Ledger) List(actor identity.Actor, status lendingEntity.Status) ([]lendingEntity.LoanRequest, error) {
	if actor.Role.Staff() {
		return l.requests.ListAll(status)
	}
	return l.requests.ListByRequester(actor.ID, status)
}

// OverdueReport computes the derived overdue state of a request for display.
// Never mutates anything.
type OverdueReport struct {
	Overdue     bool    `json:"overdue"`
	OverdueDays int     `json:"overdue_days"`
	Fine        float64 `json:"fine"`
	Currency    string  `json:"currency"`
}

func (l *Ledger) Overdue(req *lendingEntity.LoanRequest) OverdueReport {
	if req.Status != lendingEntity.StatusCollected && req.Status != lendingEntity.StatusOverdue {
		return OverdueReport{Currency: l.policy.Currency}
	}
	now := l.now()
	days := OverdueDays(req.RequiredByDate, now)
	return OverdueReport{
		Overdue:     days > 0,
		OverdueDays: days,
		Fine:        Fine(days, l.policy.FineRatePerDay),
		Currency:    l.policy.Currency,
	}
}

// SweepExpired flags APPROVED-but-uncollected requests past the hold window.
// Flagging only: state and stock are untouched until an explicit Dismiss, so
// the audit trail keeps "expired" and "purged" apart.
func (l *Ledger) SweepExpired() ([]lendingEntity.LoanRequest, error) {
	cutoff := l.now().Add(-l.policy.HoldWindow)
	expired, err := l.requests.ListUncollectedApprovedBefore(cutoff)
	if err != nil {
		return nil, err
	}
	for i := range expired {
		l.publish(EventExpiryFlagged, &expired[i])
	}
	return expired, nil
}

// TimeUntilExpiry reports the remaining hold window of an APPROVED request.
func (l *Ledger) TimeUntilExpiry(req *lendingEntity.LoanRequest) (time.Duration, bool) {
	if req.Status != lendingEntity.StatusApproved || req.ApprovedAt == nil {
		return 0, false
	}
	return TimeUntilExpiry(*req.ApprovedAt, l.policy.HoldWindow, l.now())
}

// transition applies one guarded status move plus its stock release inside a
// transaction, then re-reads and publishes.
func (l *Ledger) transition(actor identity.Actor, requestID string, from, to lendingEntity.Status,
	action, note string, updates map[string]interface{}) (*lendingEntity.LoanRequest, error) {

	if !CanTransition(from, to) && to != lendingEntity.StatusExpired {
		return nil, &InvalidTransitionError{RequestID: requestID, From: from, To: to}
	}

	now := l.now()
	var out *lendingEntity.LoanRequest
	err := l.db.Transaction(func(tx *gorm.DB) error {
		requests := l.requests.WithTx(tx)

		moved, err := requests.UpdateStatusGuarded(requestID, from, to, updates)
		if err != nil {
			return err
		}
		if !moved {
			// Someone got there first (retry, double click, concurrent staff).
			current, err := requests.FindByID(requestID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrNotFound
				}
				return err
			}
			return &InvalidTransitionError{RequestID: requestID, From: current.Status, To: to}
		}

		req, err := requests.FindByID(requestID)
		if err != nil {
			return err
		}

		if releasesStock(to) {
			owns, err := requests.MarkReleased(requestID, now)
			if err != nil {
				return err
			}
			if owns {
				if err := l.pools.WithTx(tx).Release(req.ResourceID, req.Quantity); err != nil {
					return err
				}
			}
		}

		req.AuditTrail = appendAudit(req.AuditTrail, lendingEntity.AuditEntry{
			At: now, ActorID: actor.ID, Action: action, From: from, To: to, Note: note,
		})
		if err := requests.SaveAudit(requestID, req.AuditTrail); err != nil {
			return err
		}
		out = req
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.publish(eventFor(to), out)
	return out, nil
}

func (l *Ledger) get(requestID string) (*lendingEntity.LoanRequest, error) {
	req, err := l.requests.FindByID(requestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return req, nil
}

func (l *Ledger) publish(name string, req *lendingEntity.LoanRequest) {
	l.bus.Publish(name, map[string]interface{}{
		"request_id":   req.ID,
		"resource_id":  req.ResourceID,
		"requester_id": req.RequesterID,
		"quantity":     req.Quantity,
		"status":       string(req.Status),
		"fine_amount":  req.FineAmount,
	})
}

func eventFor(to lendingEntity.Status) string {
	switch to {
	case lendingEntity.StatusApproved:
		return EventRequestApproved
	case lendingEntity.StatusRejected:
		return EventRequestRejected
	case lendingEntity.StatusCollected:
		return EventRequestCollected
	case lendingEntity.StatusUserReturned:
		return EventRequestUserReturned
	case lendingEntity.StatusReturned:
		return EventRequestReturned
	case lendingEntity.StatusExpired:
		return EventRequestExpired
	}
	return "lending.request.updated"
}

func appendAudit(trail []byte, entry lendingEntity.AuditEntry) []byte {
	var entries []lendingEntity.AuditEntry
	if len(trail) > 0 {
		_ = json.Unmarshal(trail, &entries)
	}
	entries = append(entries, entry)
	out, err := json.Marshal(entries)
	if err != nil {
		return trail
	}
	return out
}
