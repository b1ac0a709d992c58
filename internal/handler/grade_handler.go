package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sismepa/academic-api/internal/service"
	appErrors "github.com/sismepa/academic-api/pkg/errors"
	"github.com/sismepa/academic-api/pkg/response"
)

// GradeHandler exposes grade recording endpoints.
type GradeHandler struct {
	grades  *service.GradeService
	metrics *service.MetricsService
}

// NewGradeHandler constructs GradeHandler.
func NewGradeHandler(grades *service.GradeService, metrics *service.MetricsService) *GradeHandler {
	return &GradeHandler{grades: grades, metrics: metrics}
}

// RecordPartial godoc
// @Summary Record a partial grade on an enrollment detail
// @Tags Grades
// @Accept json
// @Produce json
// @Param id path string true "Enrollment detail ID"
// @Param payload body service.RecordPartialRequest true "Partial grade"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Security BearerAuth
// @Router /details/{id}/partials [put]
func (h *GradeHandler) RecordPartial(c *gin.Context) {
	var req service.RecordPartialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	detail, err := h.grades.RecordPartial(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if h.metrics != nil {
		h.metrics.CountGradeWrite("partial")
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// RecordMakeup godoc
// @Summary Record a make-up grade on an enrollment detail
// @Tags Grades
// @Accept json
// @Produce json
// @Param id path string true "Enrollment detail ID"
// @Param payload body service.RecordMakeupRequest true "Make-up grade"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Security BearerAuth
// @Router /details/{id}/makeup [put]
func (h *GradeHandler) RecordMakeup(c *gin.Context) {
	var req service.RecordMakeupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	detail, err := h.grades.RecordMakeup(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if h.metrics != nil {
		h.metrics.CountGradeWrite("makeup")
	}
	response.JSON(c, http.StatusOK, detail, nil)
}
