package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/sismepa/academic-api/internal/models"
	"github.com/sismepa/academic-api/internal/repository"
	"github.com/sismepa/academic-api/pkg/config"
	appErrors "github.com/sismepa/academic-api/pkg/errors"
)

type registrationRepository interface {
	Serialized(ctx context.Context, studentID string, fn func(tx repository.RegistrationTx) error) error
	FindActiveDetailBySection(ctx context.Context, studentID, sectionID string) (*models.EnrollmentDetail, error)
	UpdateDetailStatus(ctx context.Context, id string, status models.DetailStatus) error
}

type registrationSectionReader interface {
	FindByID(ctx context.Context, id string) (*models.Section, error)
}

type registrationCourseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
	TotalProgramCredits(ctx context.Context, programID string) (int, error)
}

type registrationStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

// RegisterRequest describes a registration attempt for one section.
type RegisterRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	SectionID string `json:"section_id" validate:"required"`
}

// RegistrationService runs the ordered precondition chain and creates the
// enrollment detail when every check passes. The whole chain plus the
// creation executes inside one per-student serialized transaction.
type RegistrationService struct {
	repo      registrationRepository
	sections  registrationSectionReader
	courses   registrationCourseReader
	students  registrationStudentReader
	rules     config.AcademicConfig
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRegistrationService constructs RegistrationService.
func NewRegistrationService(repo registrationRepository, sections registrationSectionReader, courses registrationCourseReader, students registrationStudentReader, rules config.AcademicConfig, validate *validator.Validate, logger *zap.Logger) *RegistrationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RegistrationService{repo: repo, sections: sections, courses: courses, students: students, rules: rules, validator: validate, logger: logger}
}

// Register attempts to enroll a student into a section on behalf of the
// given actor. Checks run in a fixed order and the first failure wins;
// no partial writes survive a rejection.
func (s *RegistrationService) Register(ctx context.Context, req RegisterRequest, actor models.Actor) (*models.EnrollmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}

	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	section, err := s.sections.FindByID(ctx, req.SectionID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
	}

	course, err := s.courses.FindByID(ctx, section.CourseID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	var detail *models.EnrollmentDetail
	err = s.repo.Serialized(ctx, student.ID, func(tx repository.RegistrationTx) error {
		if err := s.checkCommunityServiceGate(ctx, tx, student, course); err != nil {
			return err
		}

		period, err := s.openPeriod(ctx, tx)
		if err != nil {
			return err
		}

		duplicate, err := tx.HasDetailForCourse(ctx, student.ID, period.ID, course.ID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check current enrollments")
		}
		if duplicate {
			return appErrors.Clone(appErrors.ErrAlreadyEnrolled, fmt.Sprintf("already enrolled in %s this period", course.Code))
		}

		passed, err := tx.HasPassedCourse(ctx, student.ID, course.ID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check course history")
		}
		if passed {
			return appErrors.Clone(appErrors.ErrAlreadyPassed, fmt.Sprintf("course %s already passed", course.Code))
		}

		for _, prereq := range course.Prerequisites {
			ok, err := tx.HasApprovedCourse(ctx, student.ID, prereq.ID, s.rules.PassingGrade)
			if err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check prerequisites")
			}
			if !ok {
				return appErrors.Clone(appErrors.ErrPrerequisiteUnmet, fmt.Sprintf("prerequisite %s (%s) not passed", prereq.Code, prereq.Name))
			}
		}

		current, err := tx.EnrolledCredits(ctx, student.ID, period.ID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sum enrolled credits")
		}
		if current+course.Credits > s.rules.CreditCap {
			return appErrors.Clone(appErrors.ErrCreditCapExceeded,
				fmt.Sprintf("credit cap exceeded: %d enrolled + %d requested over cap of %d", current, course.Credits, s.rules.CreditCap))
		}

		if !s.conflictExempt(actor, section) {
			if err := s.checkScheduleConflict(ctx, tx, student.ID, period.ID, course, section); err != nil {
				return err
			}
		}

		enrollment, err := tx.FindEnrollment(ctx, student.ID, period.ID)
		if err != nil {
			if err != sql.ErrNoRows {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
			}
			enrollment = &models.Enrollment{StudentID: student.ID, PeriodID: period.ID}
			if err := tx.CreateEnrollment(ctx, enrollment); err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
			}
		}

		detail = &models.EnrollmentDetail{
			EnrollmentID: enrollment.ID,
			CourseID:     course.ID,
			SectionID:    &section.ID,
			Status:       models.DetailStatusInProgress,
		}
		if err := tx.CreateDetail(ctx, detail); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment detail")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("student registered",
		zap.String("student_id", student.ID),
		zap.String("course_code", course.Code),
		zap.String("section_id", section.ID),
		zap.String("actor_role", string(actor.Role)))
	return detail, nil
}

// Withdraw marks the student's in-progress enrollment in a section as
// WITHDRAWN, keeping the row as audit trail.
func (s *RegistrationService) Withdraw(ctx context.Context, studentID, sectionID string) error {
	detail, err := s.repo.FindActiveDetailBySection(ctx, studentID, sectionID)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "no in-progress enrollment for this section")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment detail")
	}
	if err := s.repo.UpdateDetailStatus(ctx, detail.ID, models.DetailStatusWithdrawn); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to withdraw enrollment")
	}
	s.logger.Info("student withdrew from section",
		zap.String("student_id", studentID),
		zap.String("section_id", sectionID),
		zap.String("detail_id", detail.ID))
	return nil
}

// checkCommunityServiceGate applies only to courses whose name carries the
// community service marker: the student must already hold at least the
// configured share of their program's credits.
func (s *RegistrationService) checkCommunityServiceGate(ctx context.Context, tx repository.RegistrationTx, student *models.Student, course *models.Course) error {
	if s.rules.CommunityServiceKeyword == "" {
		return nil
	}
	if !strings.Contains(strings.ToLower(course.Name), strings.ToLower(s.rules.CommunityServiceKeyword)) {
		return nil
	}

	approved, err := tx.SumApprovedCredits(ctx, student.ID, s.rules.PassingGrade)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sum approved credits")
	}
	total, err := s.courses.TotalProgramCredits(ctx, student.ProgramID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load program credits")
	}

	var percent float64
	if total > 0 {
		percent = models.Round2(float64(approved) / float64(total) * 100)
	}
	if percent < s.rules.CommunityServicePercent {
		return appErrors.Clone(appErrors.ErrCommunityServiceGate,
			fmt.Sprintf("community service requires %.0f%% of program credits passed, current %.2f%%", s.rules.CommunityServicePercent, percent))
	}
	return nil
}

// openPeriod resolves the active period on the transaction snapshot and
// distinguishes "no active period" from "active but registration closed".
func (s *RegistrationService) openPeriod(ctx context.Context, tx repository.RegistrationTx) (*models.AcademicPeriod, error) {
	period, err := tx.ActivePeriod(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.ErrNoActivePeriod
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load active period")
	}
	if !period.RegistrationOpen {
		return nil, appErrors.Clone(appErrors.ErrRegistrationClosed, fmt.Sprintf("registration is closed for period %s", period.Name))
	}
	return period, nil
}

// conflictExempt reports whether the schedule conflict check is skipped:
// administrators always, and instructors registering into their own section.
func (s *RegistrationService) conflictExempt(actor models.Actor, section *models.Section) bool {
	if actor.Role == models.RoleAdmin {
		return true
	}
	if actor.Role == models.RoleInstructor && section.InstructorID != nil && *section.InstructorID == actor.UserID {
		return true
	}
	return false
}

func (s *RegistrationService) checkScheduleConflict(ctx context.Context, tx repository.RegistrationTx, studentID, periodID string, course *models.Course, section *models.Section) error {
	scheduled, err := tx.ListScheduledBlocks(ctx, studentID, periodID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load current schedule")
	}
	for _, candidate := range section.Blocks {
		for _, existing := range scheduled {
			if models.Overlaps(candidate.Day, candidate.StartMinute, candidate.EndMinute, existing.Day, existing.StartMinute, existing.EndMinute) {
				return appErrors.Clone(appErrors.ErrScheduleConflict,
					fmt.Sprintf("%s (%s %s) overlaps %s (%s %s)",
						course.Name, models.DayName(candidate.Day), candidate.Range(),
						existing.CourseName, models.DayName(existing.Day), existing.Range()))
			}
		}
	}
	return nil
}
