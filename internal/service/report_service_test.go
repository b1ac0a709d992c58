package service

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sismepa/academic-api/internal/models"
	appErrors "github.com/sismepa/academic-api/pkg/errors"
)

type mockRosterReader struct {
	rows []models.EnrollmentDetailRow
}

func (m *mockRosterReader) ListDetailsByPeriod(ctx context.Context, periodID string) ([]models.EnrollmentDetailRow, error) {
	return m.rows, nil
}

type mockReportPeriodReader struct {
	period *models.AcademicPeriod
}

func (m *mockReportPeriodReader) FindByID(ctx context.Context, id string) (*models.AcademicPeriod, error) {
	if m.period == nil {
		return nil, sql.ErrNoRows
	}
	return m.period, nil
}

func newReportFixture() *ReportService {
	grade := 16.5
	sectionCode := "A"
	return NewReportService(
		&mockRosterReader{rows: []models.EnrollmentDetailRow{
			{
				DetailID:    "det-1",
				StudentName: "Ana Silva",
				NationalID:  "V-12345678",
				CourseCode:  "MAT-101",
				CourseName:  "Calculus I",
				Credits:     4,
				SectionCode: &sectionCode,
				FinalGrade:  &grade,
				Status:      models.DetailStatusPassed,
			},
			{
				DetailID:    "det-2",
				StudentName: "Luis Perez",
				NationalID:  "V-87654321",
				CourseCode:  "FIS-201",
				CourseName:  "Physics I",
				Credits:     5,
				Status:      models.DetailStatusInProgress,
			},
		}},
		&mockReportPeriodReader{period: &models.AcademicPeriod{ID: "period-1", Name: "2026-I"}},
		nil,
	)
}

func TestPeriodRosterCSV(t *testing.T) {
	svc := newReportFixture()

	report, err := svc.PeriodRoster(context.Background(), "period-1", ReportFormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "roster-2026-I.csv", report.FileName)
	assert.Equal(t, "text/csv", report.ContentType)

	records, err := csv.NewReader(bytes.NewReader(report.Content)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"Student", "National ID", "Course Code", "Course", "Credits", "Section", "Final Grade", "Status"}, records[0])
	assert.Equal(t, []string{"Ana Silva", "V-12345678", "MAT-101", "Calculus I", "4", "A", "16.50", "PASSED"}, records[1])
	// missing section and grade render as empty cells
	assert.Equal(t, []string{"Luis Perez", "V-87654321", "FIS-201", "Physics I", "5", "", "", "IN_PROGRESS"}, records[2])
}

func TestPeriodRosterPDF(t *testing.T) {
	svc := newReportFixture()

	report, err := svc.PeriodRoster(context.Background(), "period-1", ReportFormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "roster-2026-I.pdf", report.FileName)
	assert.Equal(t, "application/pdf", report.ContentType)
	require.NotEmpty(t, report.Content)
	assert.True(t, bytes.HasPrefix(report.Content, []byte("%PDF-")))
}

func TestPeriodRosterUnsupportedFormat(t *testing.T) {
	svc := newReportFixture()

	_, err := svc.PeriodRoster(context.Background(), "period-1", ReportFormat("xlsx"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestPeriodRosterPeriodNotFound(t *testing.T) {
	svc := NewReportService(&mockRosterReader{}, &mockReportPeriodReader{}, nil)

	_, err := svc.PeriodRoster(context.Background(), "missing", ReportFormatCSV)
	require.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}
