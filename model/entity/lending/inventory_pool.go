package lending

import "time"

// ResourceKind selects the approval policy for a pool's loan requests.
type ResourceKind string

const (
	// KindLibraryItem requests are auto-approved at submission.
	KindLibraryItem ResourceKind = "LIBRARY_ITEM"
	// KindLabComponent requests start PENDING and need a justification project.
	KindLabComponent ResourceKind = "LAB_COMPONENT"
)

// RequiresApproval reports whether requests for this kind pass a human
// approval gate before collection.
func (k ResourceKind) RequiresApproval() bool {
	return k == KindLabComponent
}

// InventoryPool represents lending_inventory_pool: the counted stock of one
// lendable resource. available_quantity only changes through the pool
// repository's guarded reserve/release/restock statements.
type InventoryPool struct {
	ResourceID        string       `gorm:"column:resource_id;type:varchar(64);primaryKey" json:"resource_id"`
	Kind              ResourceKind `gorm:"column:kind;type:varchar(32);not null" json:"kind"`
	Name              string       `gorm:"column:name;type:varchar(255);not null" json:"name"`
	Location          string       `gorm:"column:location;type:varchar(255)" json:"location,omitempty"`
	TotalQuantity     int          `gorm:"column:total_quantity;not null;default:0" json:"total_quantity"`
	AvailableQuantity int          `gorm:"column:available_quantity;not null;default:0" json:"available_quantity"`
	CreatedAt         time.Time    `gorm:"column:created_at" json:"created_at"`
	UpdatedAt         time.Time    `gorm:"column:updated_at" json:"updated_at"`
}

func (InventoryPool) TableName() string {
	return "lending_inventory_pool"
}
