package lending

import (
	"time"

	"gorm.io/datatypes"
)

// Status is a LoanRequest lifecycle state.
type Status string

const (
	StatusPending      Status = "PENDING"
	StatusApproved     Status = "APPROVED"
	StatusCollected    Status = "COLLECTED"
	StatusUserReturned Status = "USER_RETURNED"
	StatusReturned     Status = "RETURNED"
	StatusRejected     Status = "REJECTED"
	StatusOverdue      Status = "OVERDUE"
	StatusExpired      Status = "EXPIRED"
)

// Terminal reports whether a request in this status is immutable except for
// audit fields.
func (s Status) Terminal() bool {
	return s == StatusReturned || s == StatusRejected || s == StatusExpired
}

// LoanRequest represents lending_loan_request: one requester's claim on N
// units of a resource. Stock is reserved once at creation and released exactly
// once on terminal exit; released_at guards the release against duplicates.
type LoanRequest struct {
	ID               string         `gorm:"column:id;type:varchar(36);primaryKey" json:"id"`
	ResourceID       string         `gorm:"column:resource_id;type:varchar(64);index;not null" json:"resource_id"`
	RequesterID      string         `gorm:"column:requester_id;type:varchar(64);index;not null" json:"requester_id"`
	RequesterRole    string         `gorm:"column:requester_role;type:varchar(16)" json:"requester_role"`
	Quantity         int            `gorm:"column:quantity;not null" json:"quantity"`
	Purpose          string         `gorm:"column:purpose;type:varchar(255)" json:"purpose,omitempty"`
	Notes            string         `gorm:"column:notes;type:text" json:"notes,omitempty"`
	StaffNotes       string         `gorm:"column:staff_notes;type:text" json:"staff_notes,omitempty"`
	JustificationRef *string        `gorm:"column:justification_ref;type:varchar(36);index" json:"justification_ref,omitempty"`
	Status           Status         `gorm:"column:status;type:varchar(16);index;not null" json:"status"`
	RequestedAt      time.Time      `gorm:"column:requested_at;not null" json:"requested_at"`
	RequiredByDate   time.Time      `gorm:"column:required_by_date;not null" json:"required_by_date"`
	ApprovedAt       *time.Time     `gorm:"column:approved_at" json:"approved_at,omitempty"`
	CollectedAt      *time.Time     `gorm:"column:collected_at" json:"collected_at,omitempty"`
	UserReturnedAt   *time.Time     `gorm:"column:user_returned_at" json:"user_returned_at,omitempty"`
	ReturnedAt       *time.Time     `gorm:"column:returned_at" json:"returned_at,omitempty"`
	ReleasedAt       *time.Time     `gorm:"column:released_at" json:"released_at,omitempty"`
	FineAmount       float64        `gorm:"column:fine_amount;not null;default:0" json:"fine_amount"`
	FinePaid         bool           `gorm:"column:fine_paid;not null;default:false" json:"fine_paid"`
	AuditTrail       datatypes.JSON `gorm:"column:audit_trail" json:"audit_trail,omitempty"`
	CreatedAt        time.Time      `gorm:"column:created_at" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"column:updated_at" json:"updated_at"`
}

func (LoanRequest) TableName() string {
	return "lending_loan_request"
}

// AuditEntry is one element of the audit_trail JSON column.
type AuditEntry struct {
	At      time.Time `json:"at"`
	ActorID string    `json:"actor_id"`
	Action  string    `json:"action"`
	From    Status    `json:"from,omitempty"`
	To      Status    `json:"to,omitempty"`
	Note    string    `json:"note,omitempty"`
}
