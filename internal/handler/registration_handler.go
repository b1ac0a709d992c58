package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sismepa/academic-api/internal/models"
	"github.com/sismepa/academic-api/internal/service"
	appErrors "github.com/sismepa/academic-api/pkg/errors"
	"github.com/sismepa/academic-api/pkg/response"
)

// RegistrationHandler exposes the enrollment engine endpoints.
type RegistrationHandler struct {
	registrations *service.RegistrationService
	students      *service.StudentService
	metrics       *service.MetricsService
}

// NewRegistrationHandler constructs RegistrationHandler.
func NewRegistrationHandler(registrations *service.RegistrationService, students *service.StudentService, metrics *service.MetricsService) *RegistrationHandler {
	return &RegistrationHandler{registrations: registrations, students: students, metrics: metrics}
}

// Register godoc
// @Summary Register a student into a section
// @Tags Registrations
// @Accept json
// @Produce json
// @Param payload body service.RegisterRequest true "Registration payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Security BearerAuth
// @Router /registrations [post]
func (h *RegistrationHandler) Register(c *gin.Context) {
	var req service.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	actor := actorFromContext(c)
	if err := h.authorizeStudentScope(c, actor, &req.StudentID); err != nil {
		response.Error(c, err)
		return
	}

	detail, err := h.registrations.Register(c.Request.Context(), req, actor)
	if err != nil {
		h.countOutcome(err)
		response.Error(c, err)
		return
	}
	h.countOutcome(nil)
	response.Created(c, detail)
}

// Withdraw godoc
// @Summary Withdraw a student from a section
// @Tags Registrations
// @Accept json
// @Produce json
// @Param payload body service.RegisterRequest true "Withdrawal payload"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /registrations/withdraw [post]
func (h *RegistrationHandler) Withdraw(c *gin.Context) {
	var req service.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	actor := actorFromContext(c)
	if err := h.authorizeStudentScope(c, actor, &req.StudentID); err != nil {
		response.Error(c, err)
		return
	}

	if err := h.registrations.Withdraw(c.Request.Context(), req.StudentID, req.SectionID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// authorizeStudentScope pins student actors to their own record: a
// missing student_id is resolved from the token, a mismatched one is
// rejected. Staff may act on any student.
func (h *RegistrationHandler) authorizeStudentScope(c *gin.Context, actor models.Actor, studentID *string) error {
	if actor.Role != models.RoleStudent {
		return nil
	}
	own, err := h.students.GetByUserID(c.Request.Context(), actor.UserID)
	if err != nil {
		return err
	}
	if *studentID == "" {
		*studentID = own.ID
		return nil
	}
	if *studentID != own.ID {
		return appErrors.Clone(appErrors.ErrForbidden, "students may only manage their own registrations")
	}
	return nil
}

func (h *RegistrationHandler) countOutcome(err error) {
	if h.metrics == nil {
		return
	}
	if err == nil {
		h.metrics.CountRegistration("accepted")
		return
	}
	h.metrics.CountRegistration(appErrors.FromError(err).Code)
}
