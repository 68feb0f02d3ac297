package lending

import (
	"errors"

	"gorm.io/gorm"

	lendingEntity "lendhub.GO/model/entity/lending"
)

// PoolRepository owns all writes to lending_inventory_pool. Reserve and
// release run as single conditional statements so concurrent callers on the
// same resource cannot oversell or lose updates.
type PoolRepository struct {
	db *gorm.DB
}

func NewPoolRepository(db *gorm.DB) *PoolRepository {
	return &PoolRepository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *PoolRepository) WithTx(tx *gorm.DB) *PoolRepository {
	return &PoolRepository{db: tx}
}

func (r *PoolRepository) Create(pool *lendingEntity.InventoryPool) error {
	return r.db.Create(pool).Error
}

func (r *PoolRepository) FindByResourceID(resourceID string) (*lendingEntity.InventoryPool, error) {
	var pool lendingEntity.InventoryPool
	err := r.db.Where("resource_id = ?", resourceID).First(&pool).Error
	if err != nil {
		return nil, err
	}
	return &pool, nil
}

func (r *PoolRepository) List() ([]lendingEntity.InventoryPool, error) {
	var pools []lendingEntity.InventoryPool
	err := r.db.Order("resource_id").Find(&pools).Error
	return pools, err
}

// TryReserve decrements available_quantity by n iff enough stock remains.
// The availability check and the decrement are one UPDATE, so two concurrent
// reservations against the last unit resolve to exactly one success.
// Returns (reserved, found, err); reserved == false with found == true means
// insufficient stock.
func (r *PoolRepository) TryReserve(resourceID string, n int) (bool, bool, error) {
	res := r.db.Model(&lendingEntity.InventoryPool{}).
		Where("resource_id = ? AND available_quantity >= ?", resourceID, n).
		UpdateColumn("available_quantity", gorm.Expr("available_quantity - ?", n))
	if res.Error != nil {
		return false, false, res.Error
	}
	if res.RowsAffected == 1 {
		return true, true, nil
	}
	// Distinguish "no such pool" from "not enough stock".
	if _, err := r.FindByResourceID(resourceID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, false, nil
		}
		return false, false, err
	}
	return false, true, nil
}

// Release returns n units to the pool, clamped so available never exceeds
// total. Callers guard against double release via the request's released_at.
func (r *PoolRepository) Release(resourceID string, n int) error {
	res := r.db.Model(&lendingEntity.InventoryPool{}).
		Where("resource_id = ?", resourceID).
		UpdateColumn("available_quantity", gorm.Expr(
			"CASE WHEN available_quantity + ? > total_quantity THEN total_quantity ELSE available_quantity + ? END", n, n))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// AdjustTotal applies an administrative delta to total_quantity. Increases
// also raise available_quantity by the same delta; decreases clamp available
// down to the new total. Fails when the new total would go negative.
func (r *PoolRepository) AdjustTotal(resourceID string, delta int) (bool, error) {
	res := r.db.Model(&lendingEntity.InventoryPool{}).
		Where("resource_id = ? AND total_quantity + ? >= 0", resourceID, delta).
		UpdateColumns(map[string]interface{}{
			"total_quantity": gorm.Expr("total_quantity + ?", delta),
			"available_quantity": gorm.Expr(
				"CASE WHEN ? > 0 THEN available_quantity + ? "+
					"WHEN available_quantity > total_quantity + ? THEN total_quantity + ? "+
					"ELSE available_quantity END", delta, delta, delta, delta),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// CountInconsistent reports pools whose counters broke the 0 <= available <=
// total invariant. Non-zero means a programming error, not a business
// rejection; the sweep job logs it as fatal-grade.
func (r *PoolRepository) CountInconsistent() (int64, error) {
	var n int64
	err := r.db.Model(&lendingEntity.InventoryPool{}).
		Where("available_quantity < 0 OR available_quantity > total_quantity").
		Count(&n).Error
	return n, err
}
