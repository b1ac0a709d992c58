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

type gradeRepository interface {
	FindDetailContext(ctx context.Context, id string) (*models.EnrollmentDetailContext, error)
	UpdateDetailGrades(ctx context.Context, detail *models.EnrollmentDetail) error
}

// gradeNotifier delivers grade-driven alerts. Implementations must be
// non-blocking; delivery failure never reaches the grade write.
type gradeNotifier interface {
	StudentAtRisk(ctx context.Context, detail *models.EnrollmentDetailContext, requiredScore float64)
	StudentFailed(ctx context.Context, detail *models.EnrollmentDetailContext, finalGrade float64)
}

type cacheInvalidator interface {
	Delete(ctx context.Context, key string) error
}

// RecordPartialRequest writes one of the four partial grade slots.
type RecordPartialRequest struct {
	Slot  int     `json:"slot" validate:"required,min=1,max=4"`
	Value float64 `json:"value" validate:"required"`
}

// RecordMakeupRequest writes the make-up grade.
type RecordMakeupRequest struct {
	Value float64 `json:"value" validate:"required"`
}

// GradeService applies the grade finalization state machine: four partial
// slots average into a final grade, and a make-up grade may replace a
// failing final outright.
type GradeService struct {
	repo      gradeRepository
	notifier  gradeNotifier
	cache     cacheInvalidator
	rules     config.AcademicConfig
	validator *validator.Validate
	logger    *zap.Logger
}

// NewGradeService constructs GradeService.
func NewGradeService(repo gradeRepository, notifier gradeNotifier, cache cacheInvalidator, rules config.AcademicConfig, validate *validator.Validate, logger *zap.Logger) *GradeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradeService{repo: repo, notifier: notifier, cache: cache, rules: rules, validator: validate, logger: logger}
}

// RecordPartial writes one partial grade slot and re-evaluates the detail:
// once all four partials exist the final grade and status are derived.
func (s *GradeService) RecordPartial(ctx context.Context, detailID string, req RecordPartialRequest) (*models.EnrollmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}
	if !models.ValidGrade(req.Value, s.rules.GradeMin, s.rules.GradeMax) {
		return nil, appErrors.Clone(appErrors.ErrInvalidGradeValue,
			fmt.Sprintf("grade must be between %.0f and %.0f", s.rules.GradeMin, s.rules.GradeMax))
	}

	detail, err := s.writableDetail(ctx, detailID)
	if err != nil {
		return nil, err
	}

	detail.SetPartial(req.Slot, models.Round2(req.Value))

	partials := detail.Partials()
	if mean, ok := models.MeanOfPartials(partials); ok {
		final := models.Round2(mean)
		detail.FinalGrade = &final
		detail.Status = models.StatusForGrade(final, s.rules.PassingGrade)
	}

	if err := s.repo.UpdateDetailGrades(ctx, &detail.EnrollmentDetail); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save grades")
	}

	s.afterGradeWrite(ctx, detail)
	return &detail.EnrollmentDetail, nil
}

// RecordMakeup replaces a failing final grade with the make-up score. It
// is only accepted when all four partials exist and their mean is below
// the passing grade.
func (s *GradeService) RecordMakeup(ctx context.Context, detailID string, req RecordMakeupRequest) (*models.EnrollmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}
	if !models.ValidGrade(req.Value, s.rules.GradeMin, s.rules.GradeMax) {
		return nil, appErrors.Clone(appErrors.ErrInvalidGradeValue,
			fmt.Sprintf("grade must be between %.0f and %.0f", s.rules.GradeMin, s.rules.GradeMax))
	}

	detail, err := s.writableDetail(ctx, detailID)
	if err != nil {
		return nil, err
	}

	mean, ok := models.MeanOfPartials(detail.Partials())
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrGradeWriteRejected, "make-up grade requires all four partial grades")
	}
	if mean >= s.rules.PassingGrade {
		return nil, appErrors.Clone(appErrors.ErrGradeWriteRejected, "make-up grade only applies to a failing final grade")
	}

	final := models.Round2(req.Value)
	detail.MakeupGrade = &final
	detail.FinalGrade = &final
	detail.Status = models.StatusForGrade(final, s.rules.PassingGrade)

	if err := s.repo.UpdateDetailGrades(ctx, &detail.EnrollmentDetail); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save make-up grade")
	}

	s.invalidateProgress(ctx, detail.StudentID)
	s.logger.Info("make-up grade recorded",
		zap.String("detail_id", detail.ID),
		zap.Float64("final_grade", final),
		zap.String("status", string(detail.Status)))
	return &detail.EnrollmentDetail, nil
}

// writableDetail loads the detail context and rejects writes to withdrawn
// details or details whose period has already ended.
func (s *GradeService) writableDetail(ctx context.Context, detailID string) (*models.EnrollmentDetailContext, error) {
	detail, err := s.repo.FindDetailContext(ctx, detailID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment detail not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment detail")
	}
	if detail.Status == models.DetailStatusWithdrawn {
		return nil, appErrors.Clone(appErrors.ErrGradeWriteRejected, "enrollment was withdrawn")
	}
	today := time.Now().UTC().Truncate(24 * time.Hour)
	if detail.PeriodEndDate.UTC().Truncate(24 * time.Hour).Before(today) {
		return nil, appErrors.Clone(appErrors.ErrGradeWriteRejected, "academic period has ended")
	}
	return detail, nil
}

// afterGradeWrite fires the grade-driven alerts and, on finalization,
// drops the cached progress value. All of it is best-effort.
func (s *GradeService) afterGradeWrite(ctx context.Context, detail *models.EnrollmentDetailContext) {
	partials := detail.Partials()

	if mean, ok := models.MeanOfPartials(partials); ok {
		s.invalidateProgress(ctx, detail.StudentID)
		if mean < s.rules.PassingGrade && s.notifier != nil {
			s.notifier.StudentFailed(ctx, detail, *detail.FinalGrade)
		}
		return
	}

	if required, ok := models.RequiredFinalPartial(partials, s.rules.PassingGrade); ok {
		if required >= s.rules.RiskRequiredScore && s.notifier != nil {
			s.notifier.StudentAtRisk(ctx, detail, required)
		}
	}
}

func (s *GradeService) invalidateProgress(ctx context.Context, studentID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, progressCacheKey(studentID)); err != nil {
		s.logger.Warn("failed to invalidate progress cache", zap.String("student_id", studentID), zap.Error(err))
	}
}
