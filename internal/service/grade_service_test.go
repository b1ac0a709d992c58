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

type mockGradeRepo struct {
	details map[string]*models.EnrollmentDetailContext
	updated *models.EnrollmentDetail
}

func (m *mockGradeRepo) FindDetailContext(ctx context.Context, id string) (*models.EnrollmentDetailContext, error) {
	if d, ok := m.details[id]; ok {
		copied := *d
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockGradeRepo) UpdateDetailGrades(ctx context.Context, detail *models.EnrollmentDetail) error {
	m.updated = detail
	if d, ok := m.details[detail.ID]; ok {
		d.EnrollmentDetail = *detail
	}
	return nil
}

type recordingNotifier struct {
	riskCalls    []float64
	failureCalls []float64
}

func (n *recordingNotifier) StudentAtRisk(ctx context.Context, detail *models.EnrollmentDetailContext, requiredScore float64) {
	n.riskCalls = append(n.riskCalls, requiredScore)
}

func (n *recordingNotifier) StudentFailed(ctx context.Context, detail *models.EnrollmentDetailContext, finalGrade float64) {
	n.failureCalls = append(n.failureCalls, finalGrade)
}

type recordingCache struct {
	deleted []string
}

func (c *recordingCache) Delete(ctx context.Context, key string) error {
	c.deleted = append(c.deleted, key)
	return nil
}

type gradeFixture struct {
	repo     *mockGradeRepo
	notifier *recordingNotifier
	cache    *recordingCache
	service  *GradeService
}

func newGradeFixture() *gradeFixture {
	detail := &models.EnrollmentDetailContext{
		EnrollmentDetail: models.EnrollmentDetail{
			ID:     "det-1",
			Status: models.DetailStatusInProgress,
		},
		StudentID:     "stu-1",
		StudentName:   "Ana Silva",
		StudentEmail:  "ana@example.edu",
		CourseCode:    "MAT-101",
		CourseName:    "Calculus I",
		PeriodEndDate: time.Now().AddDate(0, 2, 0),
	}
	f := &gradeFixture{
		repo:     &mockGradeRepo{details: map[string]*models.EnrollmentDetailContext{"det-1": detail}},
		notifier: &recordingNotifier{},
		cache:    &recordingCache{},
	}
	f.service = NewGradeService(f.repo, f.notifier, f.cache, testRules(), nil, nil)
	return f
}

func (f *gradeFixture) setPartials(values ...float64) {
	detail := f.repo.details["det-1"]
	for i, v := range values {
		value := v
		detail.SetPartial(i+1, value)
	}
}

func TestRecordPartialStoresRoundedValue(t *testing.T) {
	f := newGradeFixture()

	detail, err := f.service.RecordPartial(context.Background(), "det-1", RecordPartialRequest{Slot: 1, Value: 14.567})
	require.NoError(t, err)
	require.NotNil(t, detail.Partial1)
	assert.Equal(t, 14.57, *detail.Partial1)
	assert.Nil(t, detail.FinalGrade)
	assert.Equal(t, models.DetailStatusInProgress, detail.Status)
}

func TestRecordPartialRejectsOutOfRange(t *testing.T) {
	f := newGradeFixture()

	_, err := f.service.RecordPartial(context.Background(), "det-1", RecordPartialRequest{Slot: 1, Value: 0.5})
	require.True(t, appErrors.Is(err, appErrors.ErrInvalidGradeValue))

	_, err = f.service.RecordPartial(context.Background(), "det-1", RecordPartialRequest{Slot: 1, Value: 20.5})
	require.True(t, appErrors.Is(err, appErrors.ErrInvalidGradeValue))

	// boundaries are inclusive
	_, err = f.service.RecordPartial(context.Background(), "det-1", RecordPartialRequest{Slot: 1, Value: 1})
	require.NoError(t, err)
	_, err = f.service.RecordPartial(context.Background(), "det-1", RecordPartialRequest{Slot: 2, Value: 20})
	require.NoError(t, err)
}

func TestFourthPartialFinalizesPassing(t *testing.T) {
	f := newGradeFixture()
	f.setPartials(12, 14, 10)

	detail, err := f.service.RecordPartial(context.Background(), "det-1", RecordPartialRequest{Slot: 4, Value: 16})
	require.NoError(t, err)
	require.NotNil(t, detail.FinalGrade)
	assert.Equal(t, 13.0, *detail.FinalGrade)
	assert.Equal(t, models.DetailStatusPassed, detail.Status)
	assert.Empty(t, f.notifier.failureCalls)
	assert.Contains(t, f.cache.deleted, progressCacheKey("stu-1"))
}

func TestFourthPartialFinalizesFailingAndNotifies(t *testing.T) {
	f := newGradeFixture()
	f.setPartials(8, 9, 7)

	detail, err := f.service.RecordPartial(context.Background(), "det-1", RecordPartialRequest{Slot: 4, Value: 8})
	require.NoError(t, err)
	require.NotNil(t, detail.FinalGrade)
	assert.Equal(t, 8.0, *detail.FinalGrade)
	assert.Equal(t, models.DetailStatusFailed, detail.Status)
	require.Len(t, f.notifier.failureCalls, 1)
	assert.Equal(t, 8.0, f.notifier.failureCalls[0])
}

func TestGradeFinalizationIsIdempotent(t *testing.T) {
	f := newGradeFixture()
	f.setPartials(12, 14, 10)

	first, err := f.service.RecordPartial(context.Background(), "det-1", RecordPartialRequest{Slot: 4, Value: 16})
	require.NoError(t, err)
	second, err := f.service.RecordPartial(context.Background(), "det-1", RecordPartialRequest{Slot: 4, Value: 16})
	require.NoError(t, err)
	assert.Equal(t, *first.FinalGrade, *second.FinalGrade)
	assert.Equal(t, first.Status, second.Status)
}

func TestThirdPartialEmitsRiskAlert(t *testing.T) {
	f := newGradeFixture()
	f.setPartials(8, 9)

	// 8 + 9 + 7 = 24; passing needs 40, so the last partial must be 16
	_, err := f.service.RecordPartial(context.Background(), "det-1", RecordPartialRequest{Slot: 3, Value: 7})
	require.NoError(t, err)
	require.Len(t, f.notifier.riskCalls, 1)
	assert.Equal(t, 16.0, f.notifier.riskCalls[0])
}

func TestThirdPartialBelowRiskThresholdStaysQuiet(t *testing.T) {
	f := newGradeFixture()
	f.setPartials(10, 10)

	// 10 + 10 + 8 = 28; the last partial must be 12, under the threshold
	_, err := f.service.RecordPartial(context.Background(), "det-1", RecordPartialRequest{Slot: 3, Value: 8})
	require.NoError(t, err)
	assert.Empty(t, f.notifier.riskCalls)
}

func TestMakeupRequiresAllPartials(t *testing.T) {
	f := newGradeFixture()
	f.setPartials(8, 9, 7)

	_, err := f.service.RecordMakeup(context.Background(), "det-1", RecordMakeupRequest{Value: 12})
	require.True(t, appErrors.Is(err, appErrors.ErrGradeWriteRejected))
}

func TestMakeupRejectedWhenAlreadyPassing(t *testing.T) {
	f := newGradeFixture()
	f.setPartials(12, 14, 10, 16)

	_, err := f.service.RecordMakeup(context.Background(), "det-1", RecordMakeupRequest{Value: 12})
	require.True(t, appErrors.Is(err, appErrors.ErrGradeWriteRejected))
}

func TestMakeupReplacesFailingFinal(t *testing.T) {
	f := newGradeFixture()
	f.setPartials(8, 9, 7, 8)
	final := 8.0
	f.repo.details["det-1"].FinalGrade = &final
	f.repo.details["det-1"].Status = models.DetailStatusFailed

	detail, err := f.service.RecordMakeup(context.Background(), "det-1", RecordMakeupRequest{Value: 13})
	require.NoError(t, err)
	require.NotNil(t, detail.MakeupGrade)
	assert.Equal(t, 13.0, *detail.MakeupGrade)
	assert.Equal(t, 13.0, *detail.FinalGrade)
	assert.Equal(t, models.DetailStatusPassed, detail.Status)
	assert.Contains(t, f.cache.deleted, progressCacheKey("stu-1"))
}

func TestMakeupCanStillFail(t *testing.T) {
	f := newGradeFixture()
	f.setPartials(8, 9, 7, 8)

	detail, err := f.service.RecordMakeup(context.Background(), "det-1", RecordMakeupRequest{Value: 9})
	require.NoError(t, err)
	assert.Equal(t, models.DetailStatusFailed, detail.Status)
}

func TestGradeWriteRejectedAfterPeriodEnds(t *testing.T) {
	f := newGradeFixture()
	f.repo.details["det-1"].PeriodEndDate = time.Now().AddDate(0, 0, -10)

	_, err := f.service.RecordPartial(context.Background(), "det-1", RecordPartialRequest{Slot: 1, Value: 12})
	require.True(t, appErrors.Is(err, appErrors.ErrGradeWriteRejected))
}

func TestGradeWriteRejectedForWithdrawnDetail(t *testing.T) {
	f := newGradeFixture()
	f.repo.details["det-1"].Status = models.DetailStatusWithdrawn

	_, err := f.service.RecordPartial(context.Background(), "det-1", RecordPartialRequest{Slot: 1, Value: 12})
	require.True(t, appErrors.Is(err, appErrors.ErrGradeWriteRejected))
}

func TestGradeWriteUnknownDetail(t *testing.T) {
	f := newGradeFixture()

	_, err := f.service.RecordPartial(context.Background(), "missing", RecordPartialRequest{Slot: 1, Value: 12})
	require.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}
