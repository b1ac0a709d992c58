package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sismepa/academic-api/internal/models"
)

// queryer abstracts *sqlx.DB and *sqlx.Tx so registration queries can run
// either standalone or inside the serialized transaction.
type queryer interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
}

// RegistrationTx exposes the queries the enrollment engine runs inside a
// single transaction serialized per student. All reads observe one
// snapshot; the detail creation commits with them or not at all.
type RegistrationTx interface {
	ActivePeriod(ctx context.Context) (*models.AcademicPeriod, error)
	FindEnrollment(ctx context.Context, studentID, periodID string) (*models.Enrollment, error)
	CreateEnrollment(ctx context.Context, enrollment *models.Enrollment) error
	HasDetailForCourse(ctx context.Context, studentID, periodID, courseID string) (bool, error)
	HasPassedCourse(ctx context.Context, studentID, courseID string) (bool, error)
	HasApprovedCourse(ctx context.Context, studentID, courseID string, passingGrade float64) (bool, error)
	SumApprovedCredits(ctx context.Context, studentID string, passingGrade float64) (int, error)
	EnrolledCredits(ctx context.Context, studentID, periodID string) (int, error)
	ListScheduledBlocks(ctx context.Context, studentID, periodID string) ([]models.ScheduledBlock, error)
	CreateDetail(ctx context.Context, detail *models.EnrollmentDetail) error
}

// EnrollmentRepository handles persistence for enrollments and details.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository instantiates an enrollment repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// Serialized runs fn inside a transaction holding a per-student advisory
// lock, so two concurrent registration attempts by the same student
// cannot interleave. The lock releases on commit or rollback.
func (r *EnrollmentRepository) Serialized(ctx context.Context, studentID string, fn func(tx RegistrationTx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin registration tx: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, studentID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("acquire student lock: %w", err)
	}

	if err := fn(&registrationTx{tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit registration tx: %w", err)
	}
	return nil
}

type registrationTx struct {
	tx *sqlx.Tx
}

func (t *registrationTx) ActivePeriod(ctx context.Context) (*models.AcademicPeriod, error) {
	return findActivePeriod(ctx, t.tx)
}

func (t *registrationTx) FindEnrollment(ctx context.Context, studentID, periodID string) (*models.Enrollment, error) {
	return findEnrollment(ctx, t.tx, studentID, periodID)
}

func (t *registrationTx) CreateEnrollment(ctx context.Context, enrollment *models.Enrollment) error {
	return createEnrollment(ctx, t.tx, enrollment)
}

func (t *registrationTx) HasDetailForCourse(ctx context.Context, studentID, periodID, courseID string) (bool, error) {
	return hasDetailForCourse(ctx, t.tx, studentID, periodID, courseID)
}

func (t *registrationTx) HasPassedCourse(ctx context.Context, studentID, courseID string) (bool, error) {
	return hasPassedCourse(ctx, t.tx, studentID, courseID)
}

func (t *registrationTx) HasApprovedCourse(ctx context.Context, studentID, courseID string, passingGrade float64) (bool, error) {
	return hasApprovedCourse(ctx, t.tx, studentID, courseID, passingGrade)
}

func (t *registrationTx) SumApprovedCredits(ctx context.Context, studentID string, passingGrade float64) (int, error) {
	return sumApprovedCredits(ctx, t.tx, studentID, passingGrade)
}

func (t *registrationTx) EnrolledCredits(ctx context.Context, studentID, periodID string) (int, error) {
	return enrolledCredits(ctx, t.tx, studentID, periodID)
}

func (t *registrationTx) ListScheduledBlocks(ctx context.Context, studentID, periodID string) ([]models.ScheduledBlock, error) {
	return listScheduledBlocks(ctx, t.tx, studentID, periodID)
}

func (t *registrationTx) CreateDetail(ctx context.Context, detail *models.EnrollmentDetail) error {
	return createDetail(ctx, t.tx, detail)
}

// FindEnrollment loads the enrollment of a student in a period.
func (r *EnrollmentRepository) FindEnrollment(ctx context.Context, studentID, periodID string) (*models.Enrollment, error) {
	return findEnrollment(ctx, r.db, studentID, periodID)
}

// FindDetailByID loads a detail by identifier.
func (r *EnrollmentRepository) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	const query = `SELECT id, enrollment_id, course_id, section_id, partial_1, partial_2, partial_3, partial_4,
		makeup_grade, final_grade, status, created_at, updated_at
		FROM enrollment_details WHERE id = $1`
	var detail models.EnrollmentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// FindDetailContext loads a detail together with the student, course and
// period data grading needs.
func (r *EnrollmentRepository) FindDetailContext(ctx context.Context, id string) (*models.EnrollmentDetailContext, error) {
	const query = `SELECT d.id, d.enrollment_id, d.course_id, d.section_id,
		d.partial_1, d.partial_2, d.partial_3, d.partial_4, d.makeup_grade, d.final_grade, d.status, d.created_at, d.updated_at,
		s.id AS student_id, s.full_name AS student_name, u.email AS student_email,
		c.code AS course_code, c.name AS course_name,
		p.id AS period_id, p.end_date AS period_end_date
		FROM enrollment_details d
		JOIN enrollments e ON e.id = d.enrollment_id
		JOIN students s ON s.id = e.student_id
		JOIN users u ON u.id = s.user_id
		JOIN courses c ON c.id = d.course_id
		JOIN academic_periods p ON p.id = e.period_id
		WHERE d.id = $1`
	var detail models.EnrollmentDetailContext
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// FindActiveDetailBySection locates the unique IN_PROGRESS detail of a
// student for a section.
func (r *EnrollmentRepository) FindActiveDetailBySection(ctx context.Context, studentID, sectionID string) (*models.EnrollmentDetail, error) {
	const query = `SELECT d.id, d.enrollment_id, d.course_id, d.section_id, d.partial_1, d.partial_2, d.partial_3, d.partial_4,
		d.makeup_grade, d.final_grade, d.status, d.created_at, d.updated_at
		FROM enrollment_details d
		JOIN enrollments e ON e.id = d.enrollment_id
		WHERE e.student_id = $1 AND d.section_id = $2 AND d.status = $3`
	var detail models.EnrollmentDetail
	if err := r.db.GetContext(ctx, &detail, query, studentID, sectionID, models.DetailStatusInProgress); err != nil {
		return nil, err
	}
	return &detail, nil
}

// UpdateDetailStatus writes the detail status.
func (r *EnrollmentRepository) UpdateDetailStatus(ctx context.Context, id string, status models.DetailStatus) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE enrollment_details SET status = $2, updated_at = $3 WHERE id = $1`, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update detail status: %w", err)
	}
	return nil
}

// UpdateDetailGrades persists the grade slots, final grade and status of
// a detail.
func (r *EnrollmentRepository) UpdateDetailGrades(ctx context.Context, detail *models.EnrollmentDetail) error {
	detail.UpdatedAt = time.Now().UTC()
	const query = `UPDATE enrollment_details SET partial_1 = :partial_1, partial_2 = :partial_2, partial_3 = :partial_3, partial_4 = :partial_4,
		makeup_grade = :makeup_grade, final_grade = :final_grade, status = :status, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, detail); err != nil {
		return fmt.Errorf("update detail grades: %w", err)
	}
	return nil
}

// ListDetailsByStudent returns all details of a student across periods.
func (r *EnrollmentRepository) ListDetailsByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	const query = `SELECT d.id, d.enrollment_id, d.course_id, d.section_id, d.partial_1, d.partial_2, d.partial_3, d.partial_4,
		d.makeup_grade, d.final_grade, d.status, d.created_at, d.updated_at
		FROM enrollment_details d
		JOIN enrollments e ON e.id = d.enrollment_id
		WHERE e.student_id = $1
		ORDER BY d.created_at ASC`
	var details []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &details, query, studentID); err != nil {
		return nil, fmt.Errorf("list student details: %w", err)
	}
	return details, nil
}

// ListDetailsByPeriod returns reporting rows for every detail in a period.
func (r *EnrollmentRepository) ListDetailsByPeriod(ctx context.Context, periodID string) ([]models.EnrollmentDetailRow, error) {
	const query = `SELECT d.id AS detail_id, s.full_name AS student_name, s.national_id,
		c.code AS course_code, c.name AS course_name, c.credits, sec.code AS section_code, d.final_grade, d.status
		FROM enrollment_details d
		JOIN enrollments e ON e.id = d.enrollment_id
		JOIN students s ON s.id = e.student_id
		JOIN courses c ON c.id = d.course_id
		LEFT JOIN sections sec ON sec.id = d.section_id
		WHERE e.period_id = $1
		ORDER BY s.full_name ASC, c.code ASC`
	var rows []models.EnrollmentDetailRow
	if err := r.db.SelectContext(ctx, &rows, query, periodID); err != nil {
		return nil, fmt.Errorf("list period details: %w", err)
	}
	return rows, nil
}

func findEnrollment(ctx context.Context, q queryer, studentID, periodID string) (*models.Enrollment, error) {
	const query = `SELECT id, student_id, period_id, enrolled_at FROM enrollments WHERE student_id = $1 AND period_id = $2`
	var enrollment models.Enrollment
	if err := q.GetContext(ctx, &enrollment, query, studentID, periodID); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

func createEnrollment(ctx context.Context, q queryer, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = time.Now().UTC()
	}
	const query = `INSERT INTO enrollments (id, student_id, period_id, enrolled_at) VALUES (:id, :student_id, :period_id, :enrolled_at)`
	if _, err := q.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

func hasDetailForCourse(ctx context.Context, q queryer, studentID, periodID, courseID string) (bool, error) {
	// WITHDRAWN rows are excluded: a withdrawn course may be retaken
	// within the same period.
	const query = `SELECT 1 FROM enrollment_details d
		JOIN enrollments e ON e.id = d.enrollment_id
		WHERE e.student_id = $1 AND e.period_id = $2 AND d.course_id = $3 AND d.status <> $4
		LIMIT 1`
	var exists int
	if err := q.GetContext(ctx, &exists, query, studentID, periodID, courseID, models.DetailStatusWithdrawn); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check duplicate detail: %w", err)
	}
	return true, nil
}

func hasPassedCourse(ctx context.Context, q queryer, studentID, courseID string) (bool, error) {
	const query = `SELECT 1 FROM enrollment_details d
		JOIN enrollments e ON e.id = d.enrollment_id
		WHERE e.student_id = $1 AND d.course_id = $2 AND d.status = $3
		LIMIT 1`
	var exists int
	if err := q.GetContext(ctx, &exists, query, studentID, courseID, models.DetailStatusPassed); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check passed course: %w", err)
	}
	return true, nil
}

func hasApprovedCourse(ctx context.Context, q queryer, studentID, courseID string, passingGrade float64) (bool, error) {
	const query = `SELECT 1 FROM enrollment_details d
		JOIN enrollments e ON e.id = d.enrollment_id
		WHERE e.student_id = $1 AND d.course_id = $2 AND (d.status = $3 OR d.final_grade >= $4)
		LIMIT 1`
	var exists int
	if err := q.GetContext(ctx, &exists, query, studentID, courseID, models.DetailStatusPassed, passingGrade); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check approved course: %w", err)
	}
	return true, nil
}

func sumApprovedCredits(ctx context.Context, q queryer, studentID string, passingGrade float64) (int, error) {
	const query = `SELECT COALESCE(SUM(c.credits), 0) FROM enrollment_details d
		JOIN enrollments e ON e.id = d.enrollment_id
		JOIN courses c ON c.id = d.course_id
		WHERE e.student_id = $1 AND (d.status = $2 OR d.final_grade >= $3)`
	var total int
	if err := q.GetContext(ctx, &total, query, studentID, models.DetailStatusPassed, passingGrade); err != nil {
		return 0, fmt.Errorf("sum approved credits: %w", err)
	}
	return total, nil
}

func enrolledCredits(ctx context.Context, q queryer, studentID, periodID string) (int, error) {
	const query = `SELECT COALESCE(SUM(c.credits), 0) FROM enrollment_details d
		JOIN enrollments e ON e.id = d.enrollment_id
		JOIN courses c ON c.id = d.course_id
		WHERE e.student_id = $1 AND e.period_id = $2 AND d.status <> $3`
	var total int
	if err := q.GetContext(ctx, &total, query, studentID, periodID, models.DetailStatusWithdrawn); err != nil {
		return 0, fmt.Errorf("sum enrolled credits: %w", err)
	}
	return total, nil
}

func listScheduledBlocks(ctx context.Context, q queryer, studentID, periodID string) ([]models.ScheduledBlock, error) {
	const query = `SELECT c.id AS course_id, c.name AS course_name, sec.code AS section_code,
		b.day, b.start_minute, b.end_minute
		FROM enrollment_details d
		JOIN enrollments e ON e.id = d.enrollment_id
		JOIN courses c ON c.id = d.course_id
		JOIN sections sec ON sec.id = d.section_id
		JOIN time_blocks b ON b.section_id = sec.id
		WHERE e.student_id = $1 AND e.period_id = $2 AND d.status = $3
		ORDER BY b.day ASC, b.start_minute ASC`
	var blocks []models.ScheduledBlock
	if err := q.SelectContext(ctx, &blocks, query, studentID, periodID, models.DetailStatusInProgress); err != nil {
		return nil, fmt.Errorf("list scheduled blocks: %w", err)
	}
	return blocks, nil
}

func createDetail(ctx context.Context, q queryer, detail *models.EnrollmentDetail) error {
	if detail.ID == "" {
		detail.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if detail.CreatedAt.IsZero() {
		detail.CreatedAt = now
	}
	detail.UpdatedAt = now
	const query = `INSERT INTO enrollment_details (id, enrollment_id, course_id, section_id, partial_1, partial_2, partial_3, partial_4,
		makeup_grade, final_grade, status, created_at, updated_at)
		VALUES (:id, :enrollment_id, :course_id, :section_id, :partial_1, :partial_2, :partial_3, :partial_4,
		:makeup_grade, :final_grade, :status, :created_at, :updated_at)`
	if _, err := q.NamedExecContext(ctx, query, detail); err != nil {
		return fmt.Errorf("create detail: %w", err)
	}
	return nil
}
