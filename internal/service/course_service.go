package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/sismepa/academic-api/internal/models"
	appErrors "github.com/sismepa/academic-api/pkg/errors"
)

type courseRepository interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error)
	FindByID(ctx context.Context, id string) (*models.Course, error)
	ListPrerequisites(ctx context.Context, courseID string) ([]models.CourseRef, error)
	AddPrerequisite(ctx context.Context, courseID, prerequisiteID string) error
	RemovePrerequisite(ctx context.Context, courseID, prerequisiteID string) error
	ExistsByCode(ctx context.Context, programID, code, excludeID string) (bool, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
	Delete(ctx context.Context, id string) error
	CountEnrollmentReferences(ctx context.Context, id string) (int, error)
}

type programReader interface {
	FindByID(ctx context.Context, id string) (*models.Program, error)
}

// CreateCourseRequest describes a new catalog course.
type CreateCourseRequest struct {
	ProgramID string `json:"program_id" validate:"required"`
	Code      string `json:"code" validate:"required"`
	Name      string `json:"name" validate:"required"`
	Credits   int    `json:"credits" validate:"required,min=1"`
	Semester  int    `json:"semester" validate:"required,min=1"`
	Position  int    `json:"position" validate:"min=0"`
}

// UpdateCourseRequest modifies an existing catalog course.
type UpdateCourseRequest struct {
	Code     string `json:"code" validate:"required"`
	Name     string `json:"name" validate:"required"`
	Credits  int    `json:"credits" validate:"required,min=1"`
	Semester int    `json:"semester" validate:"required,min=1"`
	Position int    `json:"position" validate:"min=0"`
}

// CourseService manages the course catalog and prerequisite edges.
type CourseService struct {
	repo      courseRepository
	programs  programReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseService constructs CourseService.
func NewCourseService(repo courseRepository, programs programReader, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{repo: repo, programs: programs, validator: validate, logger: logger}
}

// List returns catalog courses with pagination metadata.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, *models.Pagination, error) {
	courses, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return courses, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get loads a course including its prerequisite list.
func (s *CourseService) Get(ctx context.Context, id string) (*models.Course, error) {
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

// Create adds a catalog course after checking code uniqueness within the program.
func (s *CourseService) Create(ctx context.Context, req CreateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	if _, err := s.programs.FindByID(ctx, req.ProgramID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "program not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load program")
	}
	exists, err := s.repo.ExistsByCode(ctx, req.ProgramID, req.Code, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check course code")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("course code %s already exists in program", req.Code))
	}
	course := &models.Course{
		ProgramID: req.ProgramID,
		Code:      req.Code,
		Name:      req.Name,
		Credits:   req.Credits,
		Semester:  req.Semester,
		Position:  req.Position,
	}
	if err := s.repo.Create(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}
	return course, nil
}

// Update modifies a catalog course.
func (s *CourseService) Update(ctx context.Context, id string, req UpdateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	course, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	exists, err := s.repo.ExistsByCode(ctx, course.ProgramID, req.Code, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check course code")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("course code %s already exists in program", req.Code))
	}
	course.Code = req.Code
	course.Name = req.Name
	course.Credits = req.Credits
	course.Semester = req.Semester
	course.Position = req.Position
	if err := s.repo.Update(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
	}
	return course, nil
}

// Delete removes a course that no enrollment history references.
func (s *CourseService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	refs, err := s.repo.CountEnrollmentReferences(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check course references")
	}
	if refs > 0 {
		return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("course has %d enrollment records and cannot be deleted", refs))
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete course")
	}
	return nil
}

// AddPrerequisite links a prerequisite course to a dependent course.
func (s *CourseService) AddPrerequisite(ctx context.Context, courseID, prerequisiteID string) error {
	if courseID == prerequisiteID {
		return appErrors.Clone(appErrors.ErrValidation, "a course cannot be its own prerequisite")
	}
	course, err := s.Get(ctx, courseID)
	if err != nil {
		return err
	}
	prereq, err := s.Get(ctx, prerequisiteID)
	if err != nil {
		return err
	}
	if course.ProgramID != prereq.ProgramID {
		return appErrors.Clone(appErrors.ErrValidation, "prerequisite must belong to the same program")
	}
	for _, ref := range prereq.Prerequisites {
		if ref.ID == courseID {
			return appErrors.Clone(appErrors.ErrConflict, "prerequisite would create a cycle")
		}
	}
	if err := s.repo.AddPrerequisite(ctx, courseID, prerequisiteID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add prerequisite")
	}
	return nil
}

// RemovePrerequisite unlinks a prerequisite edge.
func (s *CourseService) RemovePrerequisite(ctx context.Context, courseID, prerequisiteID string) error {
	if _, err := s.Get(ctx, courseID); err != nil {
		return err
	}
	if err := s.repo.RemovePrerequisite(ctx, courseID, prerequisiteID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove prerequisite")
	}
	return nil
}
