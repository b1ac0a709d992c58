package handler

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/sismepa/academic-api/internal/service"
	"github.com/sismepa/academic-api/pkg/response"
)

// ReportHandler exposes roster export endpoints.
type ReportHandler struct {
	reports *service.ReportService
}

// NewReportHandler constructs ReportHandler.
func NewReportHandler(reports *service.ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// PeriodRoster godoc
// @Summary Export the enrollment roster of a period
// @Tags Reports
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Period ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Security BearerAuth
// @Router /reports/periods/{id}/roster [get]
func (h *ReportHandler) PeriodRoster(c *gin.Context) {
	format := service.ReportFormat(c.DefaultQuery("format", "csv"))

	report, err := h.reports.PeriodRoster(c.Request.Context(), c.Param("id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.FileName))
	c.Data(200, report.ContentType, report.Content)
}
