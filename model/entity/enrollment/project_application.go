package enrollment

import (
	"time"

	"gorm.io/datatypes"
)

// ApplicationStatus is a ProjectApplication decision state.
type ApplicationStatus string

const (
	ApplicationPending  ApplicationStatus = "PENDING"
	ApplicationApproved ApplicationStatus = "APPROVED"
	ApplicationRejected ApplicationStatus = "REJECTED"
)

// ProjectApplication represents enrollment_application: one applicant asking
// for a seat in a project. Approval goes through the cap-guarded statement in
// the repository; rejection is unconditional.
type ProjectApplication struct {
	ID          string            `gorm:"column:id;type:varchar(36);primaryKey" json:"id"`
	ProjectID   string            `gorm:"column:project_id;type:varchar(36);index;not null" json:"project_id"`
	ApplicantID string            `gorm:"column:applicant_id;type:varchar(64);index;not null" json:"applicant_id"`
	Status      ApplicationStatus `gorm:"column:status;type:varchar(16);index;not null;default:'PENDING'" json:"status"`
	Metadata    datatypes.JSON    `gorm:"column:metadata" json:"metadata,omitempty"`
	AppliedAt   time.Time         `gorm:"column:applied_at;not null" json:"applied_at"`
	DecidedAt   *time.Time        `gorm:"column:decided_at" json:"decided_at,omitempty"`
	DecidedBy   string            `gorm:"column:decided_by;type:varchar(64)" json:"decided_by,omitempty"`
	CreatedAt   time.Time         `gorm:"column:created_at" json:"created_at"`
	UpdatedAt   time.Time         `gorm:"column:updated_at" json:"updated_at"`
}

func (ProjectApplication) TableName() string {
	return "enrollment_application"
}
