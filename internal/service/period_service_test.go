package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sismepa/academic-api/internal/models"
	appErrors "github.com/sismepa/academic-api/pkg/errors"
)

type mockPeriodRepo struct {
	periods       map[string]*models.AcademicPeriod
	active        *models.AcademicPeriod
	activated     []string
	registrations map[string]bool
}

func (m *mockPeriodRepo) List(ctx context.Context, filter models.PeriodFilter) ([]models.AcademicPeriod, int, error) {
	var out []models.AcademicPeriod
	for _, p := range m.periods {
		out = append(out, *p)
	}
	return out, len(out), nil
}

func (m *mockPeriodRepo) FindByID(ctx context.Context, id string) (*models.AcademicPeriod, error) {
	if p, ok := m.periods[id]; ok {
		copied := *p
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockPeriodRepo) FindActive(ctx context.Context) (*models.AcademicPeriod, error) {
	if m.active == nil {
		return nil, sql.ErrNoRows
	}
	return m.active, nil
}

func (m *mockPeriodRepo) Create(ctx context.Context, period *models.AcademicPeriod) error {
	if period.ID == "" {
		period.ID = "period-new"
	}
	m.periods[period.ID] = period
	return nil
}

func (m *mockPeriodRepo) Update(ctx context.Context, period *models.AcademicPeriod) error {
	m.periods[period.ID] = period
	return nil
}

func (m *mockPeriodRepo) SetActive(ctx context.Context, id string) error {
	m.activated = append(m.activated, id)
	for pid, p := range m.periods {
		p.Active = pid == id
	}
	return nil
}

func (m *mockPeriodRepo) SetRegistrationOpen(ctx context.Context, id string, open bool) error {
	if m.registrations == nil {
		m.registrations = make(map[string]bool)
	}
	m.registrations[id] = open
	return nil
}

type recordingPeriodNotifier struct {
	started []string
}

func (n *recordingPeriodNotifier) PeriodStarted(ctx context.Context, period *models.AcademicPeriod) {
	n.started = append(n.started, period.ID)
}

func newPeriodFixture(periods ...*models.AcademicPeriod) (*mockPeriodRepo, *recordingPeriodNotifier, *PeriodService) {
	repo := &mockPeriodRepo{periods: map[string]*models.AcademicPeriod{}}
	for _, p := range periods {
		repo.periods[p.ID] = p
	}
	notifier := &recordingPeriodNotifier{}
	svc := NewPeriodService(repo, notifier, nil, nil)
	return repo, notifier, svc
}

func TestActivateCurrentPeriod(t *testing.T) {
	repo, notifier, svc := newPeriodFixture(&models.AcademicPeriod{
		ID:        "period-1",
		Name:      "2026-I",
		StartDate: time.Now().AddDate(0, -1, 0),
		EndDate:   time.Now().AddDate(0, 3, 0),
	})

	period, err := svc.Activate(context.Background(), "period-1")
	require.NoError(t, err)
	assert.True(t, period.Active)
	assert.Equal(t, []string{"period-1"}, repo.activated)
	assert.Equal(t, []string{"period-1"}, notifier.started)
}

func TestActivateRejectsEndedPeriod(t *testing.T) {
	repo, _, svc := newPeriodFixture(&models.AcademicPeriod{
		ID:        "period-1",
		Name:      "2025-II",
		StartDate: time.Now().AddDate(0, -8, 0),
		EndDate:   time.Now().AddDate(0, -2, 0),
	})

	_, err := svc.Activate(context.Background(), "period-1")
	require.True(t, appErrors.Is(err, appErrors.ErrPeriodActivationRejected))
	assert.Empty(t, repo.activated)
}

func TestActivateRejectsFuturePeriod(t *testing.T) {
	repo, _, svc := newPeriodFixture(&models.AcademicPeriod{
		ID:        "period-1",
		Name:      "2027-I",
		StartDate: time.Now().AddDate(0, 2, 0),
		EndDate:   time.Now().AddDate(0, 6, 0),
	})

	_, err := svc.Activate(context.Background(), "period-1")
	require.True(t, appErrors.Is(err, appErrors.ErrPeriodActivationRejected))
	assert.Empty(t, repo.activated)
}

func TestToggleRegistrationFlipsFlag(t *testing.T) {
	repo, _, svc := newPeriodFixture(&models.AcademicPeriod{
		ID:               "period-1",
		Name:             "2026-I",
		StartDate:        time.Now().AddDate(0, -1, 0),
		EndDate:          time.Now().AddDate(0, 3, 0),
		RegistrationOpen: false,
	})

	period, err := svc.ToggleRegistration(context.Background(), "period-1")
	require.NoError(t, err)
	assert.True(t, period.RegistrationOpen)
	assert.True(t, repo.registrations["period-1"])
}

func TestToggleRegistrationRejectsEndedPeriod(t *testing.T) {
	_, _, svc := newPeriodFixture(&models.AcademicPeriod{
		ID:        "period-1",
		Name:      "2025-II",
		StartDate: time.Now().AddDate(0, -8, 0),
		EndDate:   time.Now().AddDate(0, -2, 0),
	})

	_, err := svc.ToggleRegistration(context.Background(), "period-1")
	require.True(t, appErrors.Is(err, appErrors.ErrPreconditionFailed))
}

func TestCreatePeriodValidatesDates(t *testing.T) {
	_, _, svc := newPeriodFixture()

	_, err := svc.Create(context.Background(), CreatePeriodRequest{
		Name:      "2026-II",
		StartDate: time.Now().AddDate(0, 4, 0),
		EndDate:   time.Now().AddDate(0, 1, 0),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
