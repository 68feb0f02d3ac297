package lending

import (
	"time"

	"gorm.io/gorm"

	lendingEntity "lendhub.GO/model/entity/lending"
)

// RequestRepository persists loan requests. Status changes go through
// UpdateStatusGuarded so a retried or duplicated call cannot re-apply a
// transition, and stock release is armed through MarkReleased exactly once.
type RequestRepository struct {
	db *gorm.DB
}

func NewRequestRepository(db *gorm.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *RequestRepository) WithTx(tx *gorm.DB) *RequestRepository {
	return &RequestRepository{db: tx}
}

func (r *RequestRepository) Create(req *lendingEntity.LoanRequest) error {
	return r.db.Create(req).Error
}

func (r *RequestRepository) FindByID(id string) (*lendingEntity.LoanRequest, error) {
	var req lendingEntity.LoanRequest
	err := r.db.Where("id = ?", id).First(&req).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// ListByRequester returns a requester's requests, newest first. Empty status
// means all statuses.
func (r *RequestRepository) ListByRequester(requesterID string, status lendingEntity.Status) ([]lendingEntity.LoanRequest, error) {
	q := r.db.Where("requester_id = ?", requesterID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var reqs []lendingEntity.LoanRequest
	err := q.Order("requested_at DESC").Find(&reqs).Error
	return reqs, err
}

// ListAll returns requests across requesters, newest first, optionally
// filtered by status. Staff/admin view.
func (r *RequestRepository) ListAll(status lendingEntity.Status) ([]lendingEntity.LoanRequest, error) {
	q := r.db.Session(&gorm.Session{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var reqs []lendingEntity.LoanRequest
	err := q.Order("requested_at DESC").Find(&reqs).Error
	return reqs, err
}

// ListUncollectedApprovedBefore returns APPROVED requests whose approval is at
// or before cutoff and that were never collected. The expiry sweep feeds on
// this; the boundary is inclusive because a reservation exactly at the window
// edge counts as expired.
func (r *RequestRepository) ListUncollectedApprovedBefore(cutoff time.Time) ([]lendingEntity.LoanRequest, error) {
	var reqs []lendingEntity.LoanRequest
	err := r.db.
		Where("status = ? AND approved_at IS NOT NULL AND approved_at <= ? AND collected_at IS NULL",
			lendingEntity.StatusApproved, cutoff).
		Order("approved_at").
		Find(&reqs).Error
	return reqs, err
}

// ListCollectedDueBefore returns COLLECTED requests whose due date has passed:
// the overdue set as of now.
func (r *RequestRepository) ListCollectedDueBefore(now time.Time) ([]lendingEntity.LoanRequest, error) {
	var reqs []lendingEntity.LoanRequest
	err := r.db.
		Where("status = ? AND required_by_date < ?", lendingEntity.StatusCollected, now).
		Order("required_by_date").
		Find(&reqs).Error
	return reqs, err
}

// UpdateStatusGuarded moves a request from exactly `from` to `to`, applying
// extra column updates in the same statement. Returns false when the row was
// not in `from` anymore — the caller surfaces that as an invalid transition
// instead of double-applying side effects.
func (r *RequestRepository) UpdateStatusGuarded(id string, from, to lendingEntity.Status, updates map[string]interface{}) (bool, error) {
	cols := map[string]interface{}{"status": to}
	for k, v := range updates {
		cols[k] = v
	}
	res := r.db.Model(&lendingEntity.LoanRequest{}).
		Where("id = ? AND status = ?", id, from).
		UpdateColumns(cols)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// MarkReleased stamps released_at iff it was never stamped. True means this
// caller owns the one-and-only stock release for the request.
func (r *RequestRepository) MarkReleased(id string, at time.Time) (bool, error) {
	res := r.db.Model(&lendingEntity.LoanRequest{}).
		Where("id = ? AND released_at IS NULL", id).
		UpdateColumn("released_at", at)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// SaveAudit overwrites the audit_trail column. Called inside the transaction
// that performed the transition.
func (r *RequestRepository) SaveAudit(id string, trail []byte) error {
	return r.db.Model(&lendingEntity.LoanRequest{}).
		Where("id = ?", id).
		UpdateColumn("audit_trail", trail).Error
}

// SettleFine marks a pinned fine as paid. False when the request carries no
// unpaid fine.
func (r *RequestRepository) SettleFine(id string) (bool, error) {
	res := r.db.Model(&lendingEntity.LoanRequest{}).
		Where("id = ? AND fine_amount > 0 AND fine_paid = ?", id, false).
		UpdateColumn("fine_paid", true)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
