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

type sectionRepository interface {
	FindByID(ctx context.Context, id string) (*models.Section, error)
	ListByCourse(ctx context.Context, courseID string) ([]models.Section, error)
	ExistsByCode(ctx context.Context, courseID, code string) (bool, error)
	Create(ctx context.Context, section *models.Section) error
	AssignInstructor(ctx context.Context, sectionID, instructorID string) error
}

type sectionCourseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type sectionUserReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type assignmentNotifier interface {
	InstructorAssigned(ctx context.Context, instructor *models.User, course *models.Course, section *models.Section)
}

// TimeBlockRequest is one weekly meeting slot in a section payload.
type TimeBlockRequest struct {
	Day         int    `json:"day" validate:"required,min=1,max=7"`
	StartMinute int    `json:"start_minute" validate:"min=0,max=1439"`
	EndMinute   int    `json:"end_minute" validate:"required,min=1,max=1440"`
	Room        string `json:"room"`
}

// CreateSectionRequest describes a new section of a course.
type CreateSectionRequest struct {
	CourseID     string             `json:"course_id" validate:"required"`
	Code         string             `json:"code" validate:"required"`
	InstructorID *string            `json:"instructor_id,omitempty"`
	Blocks       []TimeBlockRequest `json:"blocks" validate:"required,min=1,dive"`
}

// SectionService manages course sections and their weekly schedules.
type SectionService struct {
	repo      sectionRepository
	courses   sectionCourseReader
	users     sectionUserReader
	notifier  assignmentNotifier
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSectionService constructs SectionService.
func NewSectionService(repo sectionRepository, courses sectionCourseReader, users sectionUserReader, notifier assignmentNotifier, validate *validator.Validate, logger *zap.Logger) *SectionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SectionService{repo: repo, courses: courses, users: users, notifier: notifier, validator: validate, logger: logger}
}

// Get loads a section with its time blocks.
func (s *SectionService) Get(ctx context.Context, id string) (*models.Section, error) {
	section, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
	}
	return section, nil
}

// ListByCourse returns the sections offered for a course.
func (s *SectionService) ListByCourse(ctx context.Context, courseID string) ([]models.Section, error) {
	sections, err := s.repo.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sections")
	}
	return sections, nil
}

// Create offers a new section of a course, validating its weekly blocks.
func (s *SectionService) Create(ctx context.Context, req CreateSectionRequest) (*models.Section, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid section payload")
	}

	course, err := s.courses.FindByID(ctx, req.CourseID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	blocks := make([]models.TimeBlock, 0, len(req.Blocks))
	for i, b := range req.Blocks {
		if b.EndMinute <= b.StartMinute {
			return nil, appErrors.Clone(appErrors.ErrValidation,
				fmt.Sprintf("block %d must end after it starts", i+1))
		}
		for _, other := range blocks {
			if models.Overlaps(b.Day, b.StartMinute, b.EndMinute, other.Day, other.StartMinute, other.EndMinute) {
				return nil, appErrors.Clone(appErrors.ErrValidation,
					fmt.Sprintf("block %d overlaps another block of the same section", i+1))
			}
		}
		blocks = append(blocks, models.TimeBlock{
			Day:         b.Day,
			StartMinute: b.StartMinute,
			EndMinute:   b.EndMinute,
			Room:        b.Room,
		})
	}

	exists, err := s.repo.ExistsByCode(ctx, course.ID, req.Code)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check section code")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("section %s already exists for course %s", req.Code, course.Code))
	}

	if req.InstructorID != nil {
		if err := s.checkInstructor(ctx, *req.InstructorID); err != nil {
			return nil, err
		}
	}

	section := &models.Section{
		CourseID:     course.ID,
		Code:         req.Code,
		InstructorID: req.InstructorID,
		Blocks:       blocks,
	}
	if err := s.repo.Create(ctx, section); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create section")
	}
	return section, nil
}

// AssignInstructor sets the instructor of a section and sends the
// assignment notice.
func (s *SectionService) AssignInstructor(ctx context.Context, sectionID, instructorID string) (*models.Section, error) {
	section, err := s.Get(ctx, sectionID)
	if err != nil {
		return nil, err
	}
	if err := s.checkInstructor(ctx, instructorID); err != nil {
		return nil, err
	}

	if err := s.repo.AssignInstructor(ctx, sectionID, instructorID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign instructor")
	}
	section.InstructorID = &instructorID

	if s.notifier != nil {
		instructor, err := s.users.FindByID(ctx, instructorID)
		if err == nil {
			course, err := s.courses.FindByID(ctx, section.CourseID)
			if err == nil {
				s.notifier.InstructorAssigned(ctx, instructor, course, section)
			}
		}
	}
	s.logger.Info("instructor assigned",
		zap.String("section_id", sectionID),
		zap.String("instructor_id", instructorID))
	return section, nil
}

func (s *SectionService) checkInstructor(ctx context.Context, instructorID string) error {
	user, err := s.users.FindByID(ctx, instructorID)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "instructor not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load instructor")
	}
	if user.Role != models.RoleInstructor {
		return appErrors.Clone(appErrors.ErrValidation, "user is not an instructor")
	}
	return nil
}
