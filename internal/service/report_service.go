package service

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/sismepa/academic-api/internal/models"
	appErrors "github.com/sismepa/academic-api/pkg/errors"
	"github.com/sismepa/academic-api/pkg/export"
)

type reportEnrollmentReader interface {
	ListDetailsByPeriod(ctx context.Context, periodID string) ([]models.EnrollmentDetailRow, error)
}

type reportPeriodReader interface {
	FindByID(ctx context.Context, id string) (*models.AcademicPeriod, error)
}

// ReportFormat selects the roster export encoding.
type ReportFormat string

const (
	ReportFormatCSV ReportFormat = "csv"
	ReportFormatPDF ReportFormat = "pdf"
)

// Report is a rendered export ready to stream to the client.
type Report struct {
	FileName    string
	ContentType string
	Content     []byte
}

// ReportService renders period rosters as CSV or PDF downloads.
type ReportService struct {
	enrollments reportEnrollmentReader
	periods     reportPeriodReader
	csv         *export.CSVExporter
	pdf         *export.PDFExporter
	logger      *zap.Logger
}

// NewReportService constructs ReportService.
func NewReportService(enrollments reportEnrollmentReader, periods reportPeriodReader, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		enrollments: enrollments,
		periods:     periods,
		csv:         export.NewCSVExporter(),
		pdf:         export.NewPDFExporter(),
		logger:      logger,
	}
}

// PeriodRoster exports every enrollment detail of a period.
func (s *ReportService) PeriodRoster(ctx context.Context, periodID string, format ReportFormat) (*Report, error) {
	period, err := s.periods.FindByID(ctx, periodID)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "period not found")
	}

	rows, err := s.enrollments.ListDetailsByPeriod(ctx, periodID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}

	dataset := export.Dataset{
		Columns: []string{"Student", "National ID", "Course Code", "Course", "Credits", "Section", "Final Grade", "Status"},
		Rows:    make([][]string, 0, len(rows)),
	}
	for _, row := range rows {
		grade := ""
		if row.FinalGrade != nil {
			grade = strconv.FormatFloat(*row.FinalGrade, 'f', 2, 64)
		}
		section := ""
		if row.SectionCode != nil {
			section = *row.SectionCode
		}
		dataset.Rows = append(dataset.Rows, []string{
			row.StudentName,
			row.NationalID,
			row.CourseCode,
			row.CourseName,
			strconv.Itoa(row.Credits),
			section,
			grade,
			string(row.Status),
		})
	}

	switch format {
	case ReportFormatCSV:
		content, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv roster")
		}
		return &Report{
			FileName:    fmt.Sprintf("roster-%s.csv", period.Name),
			ContentType: "text/csv",
			Content:     content,
		}, nil
	case ReportFormatPDF:
		content, err := s.pdf.Render(dataset, fmt.Sprintf("Enrollment Roster - %s", period.Name))
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf roster")
		}
		return &Report{
			FileName:    fmt.Sprintf("roster-%s.pdf", period.Name),
			ContentType: "application/pdf",
			Content:     content,
		}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported report format %q", format))
	}
}
