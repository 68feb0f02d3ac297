package enrollment

import "time"

// WindowStatus is the acceptance state of a project's enrollment window.
type WindowStatus string

const (
	WindowNotStarted WindowStatus = "NOT_STARTED"
	WindowOpen       WindowStatus = "OPEN"
	WindowClosed     WindowStatus = "CLOSED"
)

// EnrollmentWindow represents enrollment_window: the capped admission gate of
// one project. approved_count only moves through the repository's guarded
// approve statement and never exceeds cap.
type EnrollmentWindow struct {
	ProjectID     string       `gorm:"column:project_id;type:varchar(36);primaryKey" json:"project_id"`
	OwnerID       string       `gorm:"column:owner_id;type:varchar(64);index;not null" json:"owner_id"`
	Cap           int          `gorm:"column:cap;not null" json:"cap"`
	Status        WindowStatus `gorm:"column:status;type:varchar(16);not null;default:'NOT_STARTED'" json:"status"`
	ApprovedCount int          `gorm:"column:approved_count;not null;default:0" json:"approved_count"`
	OpenedAt      *time.Time   `gorm:"column:opened_at" json:"opened_at,omitempty"`
	ClosedAt      *time.Time   `gorm:"column:closed_at" json:"closed_at,omitempty"`
	CreatedAt     time.Time    `gorm:"column:created_at" json:"created_at"`
	UpdatedAt     time.Time    `gorm:"column:updated_at" json:"updated_at"`
}

func (EnrollmentWindow) TableName() string {
	return "enrollment_window"
}
