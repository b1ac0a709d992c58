package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/sismepa/academic-api/internal/models"
	appErrors "github.com/sismepa/academic-api/pkg/errors"
)

type periodRepository interface {
	List(ctx context.Context, filter models.PeriodFilter) ([]models.AcademicPeriod, int, error)
	FindByID(ctx context.Context, id string) (*models.AcademicPeriod, error)
	FindActive(ctx context.Context) (*models.AcademicPeriod, error)
	Create(ctx context.Context, period *models.AcademicPeriod) error
	Update(ctx context.Context, period *models.AcademicPeriod) error
	SetActive(ctx context.Context, id string) error
	SetRegistrationOpen(ctx context.Context, id string, open bool) error
}

type periodNotifier interface {
	PeriodStarted(ctx context.Context, period *models.AcademicPeriod)
}

// CreatePeriodRequest describes a new academic period.
type CreatePeriodRequest struct {
	Name      string    `json:"name" validate:"required"`
	StartDate time.Time `json:"start_date" validate:"required"`
	EndDate   time.Time `json:"end_date" validate:"required"`
}

// UpdatePeriodRequest modifies the dates or name of a period.
type UpdatePeriodRequest struct {
	Name      string    `json:"name" validate:"required"`
	StartDate time.Time `json:"start_date" validate:"required"`
	EndDate   time.Time `json:"end_date" validate:"required"`
}

// PeriodService manages the academic period registry.
type PeriodService struct {
	repo      periodRepository
	notifier  periodNotifier
	now       func() time.Time
	validator *validator.Validate
	logger    *zap.Logger
}

// NewPeriodService constructs PeriodService.
func NewPeriodService(repo periodRepository, notifier periodNotifier, validate *validator.Validate, logger *zap.Logger) *PeriodService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PeriodService{repo: repo, notifier: notifier, now: time.Now, validator: validate, logger: logger}
}

// List returns periods with pagination metadata.
func (s *PeriodService) List(ctx context.Context, filter models.PeriodFilter) ([]models.AcademicPeriod, *models.Pagination, error) {
	periods, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list periods")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return periods, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get loads a period by identifier.
func (s *PeriodService) Get(ctx context.Context, id string) (*models.AcademicPeriod, error) {
	period, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "period not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load period")
	}
	return period, nil
}

// Active returns the currently active period, if any.
func (s *PeriodService) Active(ctx context.Context) (*models.AcademicPeriod, error) {
	period, err := s.repo.FindActive(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.ErrNoActivePeriod
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load active period")
	}
	return period, nil
}

// Create registers a new period. New periods start inactive and closed.
func (s *PeriodService) Create(ctx context.Context, req CreatePeriodRequest) (*models.AcademicPeriod, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid period payload")
	}
	if !req.EndDate.After(req.StartDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end date must be after start date")
	}
	period := &models.AcademicPeriod{
		Name:      req.Name,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
	}
	if err := s.repo.Create(ctx, period); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create period")
	}
	return period, nil
}

// Update modifies a period's name and dates.
func (s *PeriodService) Update(ctx context.Context, id string, req UpdatePeriodRequest) (*models.AcademicPeriod, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid period payload")
	}
	if !req.EndDate.After(req.StartDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end date must be after start date")
	}
	period, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	period.Name = req.Name
	period.StartDate = req.StartDate
	period.EndDate = req.EndDate
	if err := s.repo.Update(ctx, period); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update period")
	}
	return period, nil
}

// Activate makes the period the single active one. The deactivation of
// every other period and the activation commit together. Rejected when
// the period has already ended or has not started yet.
func (s *PeriodService) Activate(ctx context.Context, id string) (*models.AcademicPeriod, error) {
	period, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	today := s.now()
	if period.Ended(today) {
		return nil, appErrors.Clone(appErrors.ErrPeriodActivationRejected,
			fmt.Sprintf("period %s ended on %s", period.Name, period.EndDate.Format("2006-01-02")))
	}
	if !period.Started(today) {
		return nil, appErrors.Clone(appErrors.ErrPeriodActivationRejected,
			fmt.Sprintf("period %s starts on %s", period.Name, period.StartDate.Format("2006-01-02")))
	}

	if err := s.repo.SetActive(ctx, id); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to activate period")
	}
	period.Active = true

	if s.notifier != nil {
		s.notifier.PeriodStarted(ctx, period)
	}
	s.logger.Info("period activated", zap.String("period_id", period.ID), zap.String("name", period.Name))
	return period, nil
}

// ToggleRegistration flips the registration flag of a period. Rejected
// once the period has ended.
func (s *PeriodService) ToggleRegistration(ctx context.Context, id string) (*models.AcademicPeriod, error) {
	period, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if period.Ended(s.now()) {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed,
			fmt.Sprintf("period %s has already ended", period.Name))
	}
	open := !period.RegistrationOpen
	if err := s.repo.SetRegistrationOpen(ctx, id, open); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to toggle registration")
	}
	period.RegistrationOpen = open
	s.logger.Info("registration toggled",
		zap.String("period_id", period.ID),
		zap.Bool("registration_open", open))
	return period, nil
}
