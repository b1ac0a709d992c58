package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/sismepa/academic-api/internal/models"
	"github.com/sismepa/academic-api/pkg/config"
	appErrors "github.com/sismepa/academic-api/pkg/errors"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	FindByUserID(ctx context.Context, userID string) (*models.Student, error)
	Create(ctx context.Context, student *models.Student) error
	CountApprovedDetails(ctx context.Context, studentID string, passingGrade float64) (int, error)
}

type programCourseCounter interface {
	CountByProgram(ctx context.Context, programID string) (int, error)
}

type progressCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

type progressNotifier interface {
	LowProgress(ctx context.Context, student *models.Student, percentage float64)
}

func progressCacheKey(studentID string) string {
	return fmt.Sprintf("progress:student:%s", studentID)
}

// CreateStudentRequest describes a new student record.
type CreateStudentRequest struct {
	UserID     string `json:"user_id" validate:"required"`
	ProgramID  string `json:"program_id" validate:"required"`
	NationalID string `json:"national_id" validate:"required"`
	FullName   string `json:"full_name" validate:"required"`
	Phone      string `json:"phone"`
}

// StudentService manages student records and computes academic progress.
type StudentService struct {
	repo        studentRepository
	courses     programCourseCounter
	cache       progressCache
	notifier    progressNotifier
	rules       config.AcademicConfig
	progressTTL time.Duration
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewStudentService constructs StudentService.
func NewStudentService(repo studentRepository, courses programCourseCounter, cache progressCache, notifier progressNotifier, rules config.AcademicConfig, progressTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, courses: courses, cache: cache, notifier: notifier, rules: rules, progressTTL: progressTTL, validator: validate, logger: logger}
}

// List returns students with pagination metadata.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return students, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get loads a single student.
func (s *StudentService) Get(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// GetByUserID resolves the student record behind a user account.
func (s *StudentService) GetByUserID(ctx context.Context, userID string) (*models.Student, error) {
	student, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found for user")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// Create registers a new student record.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	student := &models.Student{
		UserID:     req.UserID,
		ProgramID:  req.ProgramID,
		NationalID: req.NationalID,
		FullName:   req.FullName,
		Phone:      req.Phone,
		EnrolledAt: time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	return student, nil
}

// Progress computes the share of the student's program already passed,
// served from cache when fresh. A result under the configured threshold
// triggers a best-effort low-progress alert.
func (s *StudentService) Progress(ctx context.Context, studentID string) (*models.StudentProgress, error) {
	key := progressCacheKey(studentID)
	if s.cache != nil {
		var cached models.StudentProgress
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return &cached, nil
		}
	}

	student, err := s.Get(ctx, studentID)
	if err != nil {
		return nil, err
	}

	total, err := s.courses.CountByProgram(ctx, student.ProgramID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count program courses")
	}
	passed, err := s.repo.CountApprovedDetails(ctx, studentID, s.rules.PassingGrade)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count passed courses")
	}

	progress := &models.StudentProgress{
		StudentID:     studentID,
		ProgramID:     student.ProgramID,
		PassedCourses: passed,
		TotalCourses:  total,
	}
	if total > 0 {
		progress.Percentage = models.Round2(float64(passed) / float64(total) * 100)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, progress, s.progressTTL); err != nil {
			s.logger.Warn("failed to cache progress", zap.String("student_id", studentID), zap.Error(err))
		}
	}

	if progress.Percentage < s.rules.LowProgressPercent && s.notifier != nil {
		s.notifier.LowProgress(ctx, student, progress.Percentage)
	}
	return progress, nil
}
