package enrollment

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"lendhub.GO/core/identity"
	enrollmentEntity "lendhub.GO/model/entity/enrollment"
	enrollmentRepo "lendhub.GO/model/repository/enrollment"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("action not allowed for this role")
	// ErrConcurrencyConflict: the application was decided by another actor
	// between our read and the guarded write. Retry from a fresh read.
	ErrConcurrencyConflict = errors.New("application decided concurrently, retry from a fresh read")
)

// CapReachedError rejects an approval past the enrollment cap. Carries the
// current count so the caller can show it.
type CapReachedError struct {
	ProjectID     string
	Cap           int
	ApprovedCount int
}

func (e *CapReachedError) Error() string {
	return fmt.Sprintf("enrollment cap reached for project %s: %d/%d approved",
		e.ProjectID, e.ApprovedCount, e.Cap)
}

// WindowStateError rejects window lifecycle actions that are not legal from
// the current window status, and submissions against a window that is not
// open.
type WindowStateError struct {
	ProjectID string
	Status    enrollmentEntity.WindowStatus
	Action    string
}

func (e *WindowStateError) Error() string {
	return fmt.Sprintf("cannot %s enrollment for project %s in status %s",
		e.Action, e.ProjectID, e.Status)
}

// AdmissionController gates application approval against a fixed per-project
// cap. The cap check and the count increment are one atomic unit in the
// repository, so concurrent approvals cannot overshoot.
type AdmissionController struct {
	db          *gorm.DB
	enrollments *enrollmentRepo.EnrollmentRepository
	now         func() time.Time
}

func NewAdmissionController(db *gorm.DB) *AdmissionController {
	return &AdmissionController{
		db:          db,
		enrollments: enrollmentRepo.NewEnrollmentRepository(db),
		now:         time.Now,
	}
}

// SetClock overrides the time source (tests).
func (a *AdmissionController) SetClock(now func() time.Time) {
	a.now = now
}

// OpenWindow starts enrollment for a project with the given cap. Only the
// faculty owner or an admin; cap must be at least 1.
func (a *AdmissionController) OpenWindow(actor identity.Actor, projectID string, cap int) (*enrollmentEntity.EnrollmentWindow, error) {
	if !actor.Role.Staff() {
		return nil, ErrForbidden
	}
	if cap < 1 {
		return nil, fmt.Errorf("enrollment cap must be at least 1, got %d", cap)
	}
	now := a.now()
	w := &enrollmentEntity.EnrollmentWindow{
		ProjectID: projectID,
		OwnerID:   actor.ID,
		Cap:       cap,
		Status:    enrollmentEntity.WindowOpen,
		OpenedAt:  &now,
	}
	if existing, err := a.enrollments.FindWindow(projectID); err == nil {
		if existing.Status != enrollmentEntity.WindowNotStarted {
			return nil, &WindowStateError{ProjectID: projectID, Status: existing.Status, Action: "start"}
		}
		moved, err := a.enrollments.SetWindowStatusGuarded(projectID,
			enrollmentEntity.WindowNotStarted, enrollmentEntity.WindowOpen,
			map[string]interface{}{"cap": cap, "opened_at": now})
		if err != nil {
			return nil, err
		}
		if !moved {
			return nil, &WindowStateError{ProjectID: projectID, Status: existing.Status, Action: "start"}
		}
		return a.enrollments.FindWindow(projectID)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if err := a.enrollments.CreateWindow(w); err != nil {
		return nil, err
	}
	return w, nil
}

// CloseWindow stops accepting new applications. Existing APPROVED
// applications are not touched.
func (a *AdmissionController) CloseWindow(actor identity.Actor, projectID string) (*enrollmentEntity.EnrollmentWindow, error) {
	return a.toggleWindow(actor, projectID, enrollmentEntity.WindowOpen, enrollmentEntity.WindowClosed, "close",
		map[string]interface{}{"closed_at": a.now()})
}

// ReopenWindow resumes accepting applications on a closed window.
func (a *AdmissionController) ReopenWindow(actor identity.Actor, projectID string) (*enrollmentEntity.EnrollmentWindow, error) {
	return a.toggleWindow(actor, projectID, enrollmentEntity.WindowClosed, enrollmentEntity.WindowOpen, "reopen",
		map[string]interface{}{"closed_at": nil})
}

func (a *AdmissionController) toggleWindow(actor identity.Actor, projectID string,
	from, to enrollmentEntity.WindowStatus, action string, updates map[string]interface{}) (*enrollmentEntity.EnrollmentWindow, error) {

	if !actor.Role.Staff() {
		return nil, ErrForbidden
	}
	moved, err := a.enrollments.SetWindowStatusGuarded(projectID, from, to, updates)
	if err != nil {
		return nil, err
	}
	if !moved {
		w, err := a.enrollments.FindWindow(projectID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrNotFound
			}
			return nil, err
		}
		return nil, &WindowStateError{ProjectID: projectID, Status: w.Status, Action: action}
	}
	return a.enrollments.FindWindow(projectID)
}

// Window returns a project's enrollment window.
func (a *AdmissionController) Window(projectID string) (*enrollmentEntity.EnrollmentWindow, error) {
	w, err := a.enrollments.FindWindow(projectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return w, nil
}

// Submit files an application against an open window. One pending
// application per applicant per project.
func (a *AdmissionController) Submit(actor identity.Actor, projectID string, metadata datatypes.JSON) (*enrollmentEntity.ProjectApplication, error) {
	w, err := a.Window(projectID)
	if err != nil {
		return nil, err
	}
	if w.Status != enrollmentEntity.WindowOpen {
		return nil, &WindowStateError{ProjectID: projectID, Status: w.Status, Action: "apply to"}
	}
	if _, err := a.enrollments.FindPendingByApplicant(projectID, actor.ID); err == nil {
		return nil, fmt.Errorf("applicant %s already has a pending application for project %s", actor.ID, projectID)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	app := &enrollmentEntity.ProjectApplication{
		ID:          uuid.NewString(),
		ProjectID:   projectID,
		ApplicantID: actor.ID,
		Status:      enrollmentEntity.ApplicationPending,
		Metadata:    metadata,
		AppliedAt:   a.now(),
	}
	if err := a.enrollments.CreateApplication(app); err != nil {
		return nil, err
	}
	return app, nil
}

// Approve admits one pending application. The seat increment and the
// decision write commit together; a reached cap rolls both back.
func (a *AdmissionController) Approve(actor identity.Actor, applicationID string) (*enrollmentEntity.ProjectApplication, error) {
	if !actor.Role.Staff() {
		return nil, ErrForbidden
	}
	app, err := a.application(applicationID)
	if err != nil {
		return nil, err
	}
	err = a.db.Transaction(func(tx *gorm.DB) error {
		repo := a.enrollments.WithTx(tx)
		seated, err := repo.IncrementApprovedGuarded(app.ProjectID)
		if err != nil {
			return err
		}
		if !seated {
			w, err := repo.FindWindow(app.ProjectID)
			if err != nil {
				return err
			}
			return &CapReachedError{ProjectID: app.ProjectID, Cap: w.Cap, ApprovedCount: w.ApprovedCount}
		}
		decided, err := repo.DecideApplicationGuarded(applicationID,
			enrollmentEntity.ApplicationApproved, actor.ID, a.now())
		if err != nil {
			return err
		}
		if !decided {
			// Already decided elsewhere; roll the seat back with the tx.
			return fmt.Errorf("approve application %s: %w", applicationID, ErrConcurrencyConflict)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return a.application(applicationID)
}

// Reject declines a pending application. Never touches approved_count.
func (a *AdmissionController) Reject(actor identity.Actor, applicationID string) (*enrollmentEntity.ProjectApplication, error) {
	if !actor.Role.Staff() {
		return nil, ErrForbidden
	}
	app, err := a.application(applicationID)
	if err != nil {
		return nil, err
	}
	decided, err := a.enrollments.DecideApplicationGuarded(applicationID,
		enrollmentEntity.ApplicationRejected, actor.ID, a.now())
	if err != nil {
		return nil, err
	}
	if !decided {
		return nil, fmt.Errorf("reject application %s (was %s): %w", applicationID, app.Status, ErrConcurrencyConflict)
	}
	return a.application(applicationID)
}

// Applications lists a project's applications for review.
func (a *AdmissionController) Applications(actor identity.Actor, projectID string, status enrollmentEntity.ApplicationStatus) ([]enrollmentEntity.ProjectApplication, error) {
	if !actor.Role.Staff() {
		return nil, ErrForbidden
	}
	return a.enrollments.ListApplications(projectID, status)
}

func (a *AdmissionController) application(id string) (*enrollmentEntity.ProjectApplication, error) {
	app, err := a.enrollments.FindApplication(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return app, nil
}
