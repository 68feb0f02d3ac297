package enrollment

import (
	"time"

	"gorm.io/gorm"

	enrollmentEntity "lendhub.GO/model/entity/enrollment"
)

// EnrollmentRepository persists enrollment windows and applications. The cap
// check and the approved_count increment are a single conditional UPDATE, so
// two staff approving the last seat concurrently cannot both pass the cap.
type EnrollmentRepository struct {
	db *gorm.DB
}

func NewEnrollmentRepository(db *gorm.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *EnrollmentRepository) WithTx(tx *gorm.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: tx}
}

func (r *EnrollmentRepository) CreateWindow(w *enrollmentEntity.EnrollmentWindow) error {
	return r.db.Create(w).Error
}

func (r *EnrollmentRepository) FindWindow(projectID string) (*enrollmentEntity.EnrollmentWindow, error) {
	var w enrollmentEntity.EnrollmentWindow
	err := r.db.Where("project_id = ?", projectID).First(&w).Error
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// SetWindowStatusGuarded flips the window status iff it currently is `from`.
// Used by open/close/reopen; existing APPROVED applications are untouched.
func (r *EnrollmentRepository) SetWindowStatusGuarded(projectID string, from, to enrollmentEntity.WindowStatus, updates map[string]interface{}) (bool, error) {
	cols := map[string]interface{}{"status": to}
	for k, v := range updates {
		cols[k] = v
	}
	res := r.db.Model(&enrollmentEntity.EnrollmentWindow{}).
		Where("project_id = ? AND status = ?", projectID, from).
		UpdateColumns(cols)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *EnrollmentRepository) CreateApplication(a *enrollmentEntity.ProjectApplication) error {
	return r.db.Create(a).Error
}

func (r *EnrollmentRepository) FindApplication(id string) (*enrollmentEntity.ProjectApplication, error) {
	var a enrollmentEntity.ProjectApplication
	err := r.db.Where("id = ?", id).First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListApplications returns a project's applications, newest first. Empty
// status means all.
func (r *EnrollmentRepository) ListApplications(projectID string, status enrollmentEntity.ApplicationStatus) ([]enrollmentEntity.ProjectApplication, error) {
	q := r.db.Where("project_id = ?", projectID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var apps []enrollmentEntity.ProjectApplication
	err := q.Order("applied_at DESC").Find(&apps).Error
	return apps, err
}

// FindPendingByApplicant guards against duplicate submissions to one project.
func (r *EnrollmentRepository) FindPendingByApplicant(projectID, applicantID string) (*enrollmentEntity.ProjectApplication, error) {
	var a enrollmentEntity.ProjectApplication
	err := r.db.Where("project_id = ? AND applicant_id = ? AND status = ?",
		projectID, applicantID, enrollmentEntity.ApplicationPending).First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// IncrementApprovedGuarded bumps approved_count iff a seat remains under cap.
// False means the cap is reached.
func (r *EnrollmentRepository) IncrementApprovedGuarded(projectID string) (bool, error) {
	res := r.db.Model(&enrollmentEntity.EnrollmentWindow{}).
		Where("project_id = ? AND approved_count < cap", projectID).
		UpdateColumn("approved_count", gorm.Expr("approved_count + 1"))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// DecideApplicationGuarded moves a PENDING application to its decision.
// False means the application was already decided.
func (r *EnrollmentRepository) DecideApplicationGuarded(id string, to enrollmentEntity.ApplicationStatus, decidedBy string, at time.Time) (bool, error) {
	res := r.db.Model(&enrollmentEntity.ProjectApplication{}).
		Where("id = ? AND status = ?", id, enrollmentEntity.ApplicationPending).
		UpdateColumns(map[string]interface{}{
			"status":     to,
			"decided_by": decidedBy,
			"decided_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
