package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sismepa/academic-api/internal/models"
)

// CourseRepository handles persistence for courses and their
// prerequisite edges.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository instantiates a course repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

const courseColumns = "id, program_id, code, name, credits, semester, position, created_at, updated_at"

// List returns courses matching provided filters.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	base := "FROM courses WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.ProgramID != "" {
		conditions = append(conditions, fmt.Sprintf("program_id = $%d", len(args)+1))
		args = append(args, filter.ProgramID)
	}
	if filter.Semester != nil {
		conditions = append(conditions, fmt.Sprintf("semester = $%d", len(args)+1))
		args = append(args, *filter.Semester)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(name ILIKE $%d OR code ILIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{"code": true, "name": true, "semester": true, "position": true, "created_at": true}
	if !allowedSorts[sortBy] {
		sortBy = "position"
	}

	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", courseColumns, base, sortBy, order, size, offset)

	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}

	return courses, total, nil
}

// FindByID loads a course with its prerequisite list.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	query := fmt.Sprintf("SELECT %s FROM courses WHERE id = $1", courseColumns)
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, err
	}
	prereqs, err := r.ListPrerequisites(ctx, id)
	if err != nil {
		return nil, err
	}
	course.Prerequisites = prereqs
	return &course, nil
}

// ListPrerequisites returns the prerequisite courses of the given course,
// ordered by curriculum position for deterministic iteration.
func (r *CourseRepository) ListPrerequisites(ctx context.Context, courseID string) ([]models.CourseRef, error) {
	const query = `SELECT c.id, c.code, c.name, c.credits
		FROM course_prerequisites p
		JOIN courses c ON c.id = p.prerequisite_id
		WHERE p.course_id = $1
		ORDER BY c.position ASC`
	var prereqs []models.CourseRef
	if err := r.db.SelectContext(ctx, &prereqs, query, courseID); err != nil {
		return nil, fmt.Errorf("list prerequisites: %w", err)
	}
	return prereqs, nil
}

// AddPrerequisite inserts a prerequisite edge.
func (r *CourseRepository) AddPrerequisite(ctx context.Context, courseID, prerequisiteID string) error {
	const query = `INSERT INTO course_prerequisites (course_id, prerequisite_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, courseID, prerequisiteID); err != nil {
		return fmt.Errorf("add prerequisite: %w", err)
	}
	return nil
}

// RemovePrerequisite deletes a prerequisite edge.
func (r *CourseRepository) RemovePrerequisite(ctx context.Context, courseID, prerequisiteID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM course_prerequisites WHERE course_id = $1 AND prerequisite_id = $2`, courseID, prerequisiteID); err != nil {
		return fmt.Errorf("remove prerequisite: %w", err)
	}
	return nil
}

// ExistsByCode checks code uniqueness within a program.
func (r *CourseRepository) ExistsByCode(ctx context.Context, programID, code, excludeID string) (bool, error) {
	base := "SELECT 1 FROM courses WHERE program_id = $1 AND code = $2"
	args := []interface{}{programID, code}
	if excludeID != "" {
		base += " AND id <> $3"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, base+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check course code uniqueness: %w", err)
	}
	return true, nil
}

// Create inserts a new course record.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if course.CreatedAt.IsZero() {
		course.CreatedAt = now
	}
	course.UpdatedAt = now

	const query = `INSERT INTO courses (id, program_id, code, name, credits, semester, position, created_at, updated_at)
		VALUES (:id, :program_id, :code, :name, :credits, :semester, :position, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

// Update modifies an existing course.
func (r *CourseRepository) Update(ctx context.Context, course *models.Course) error {
	course.UpdatedAt = time.Now().UTC()
	const query = `UPDATE courses SET code = :code, name = :name, credits = :credits, semester = :semester, position = :position, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	return nil
}

// Delete removes a course permanently. Callers must verify the course is
// unreferenced by enrollment history first.
func (r *CourseRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM courses WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete course: %w", err)
	}
	return nil
}

// CountEnrollmentReferences returns how many enrollment details reference
// the course across all periods.
func (r *CourseRepository) CountEnrollmentReferences(ctx context.Context, id string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM enrollment_details WHERE course_id = $1`, id); err != nil {
		return 0, fmt.Errorf("count course references: %w", err)
	}
	return count, nil
}

// CountByProgram returns the number of courses in a program.
func (r *CourseRepository) CountByProgram(ctx context.Context, programID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM courses WHERE program_id = $1`, programID); err != nil {
		return 0, fmt.Errorf("count program courses: %w", err)
	}
	return count, nil
}

// TotalProgramCredits returns the summed credit weight of a program's courses.
func (r *CourseRepository) TotalProgramCredits(ctx context.Context, programID string) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COALESCE(SUM(credits), 0) FROM courses WHERE program_id = $1`, programID); err != nil {
		return 0, fmt.Errorf("sum program credits: %w", err)
	}
	return total, nil
}
