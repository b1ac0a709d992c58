package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sismepa/academic-api/internal/middleware"
	"github.com/sismepa/academic-api/internal/models"
	"github.com/sismepa/academic-api/internal/service"
)

// Handlers aggregates every HTTP handler of the API.
type Handlers struct {
	Auth          *AuthHandler
	Registrations *RegistrationHandler
	Grades        *GradeHandler
	Periods       *PeriodHandler
	Courses       *CourseHandler
	Sections      *SectionHandler
	Students      *StudentHandler
	Programs      *ProgramHandler
	Reports       *ReportHandler
}

// RegisterRoutes wires the full route table onto the engine.
func RegisterRoutes(engine *gin.Engine, prefix string, h Handlers, auth *service.AuthService, metrics *service.MetricsService) {
	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if metrics != nil {
		engine.GET("/metrics", gin.WrapH(metrics.Handler()))
	}

	api := engine.Group(prefix)
	api.POST("/auth/login", h.Auth.Login)

	protected := api.Group("")
	protected.Use(middleware.JWT(auth))

	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleInstructor)
	admin := middleware.RequireRoles(models.RoleAdmin)

	// Enrollment engine
	protected.POST("/registrations", h.Registrations.Register)
	protected.POST("/registrations/withdraw", h.Registrations.Withdraw)

	// Grades
	protected.PUT("/details/:id/partials", staff, h.Grades.RecordPartial)
	protected.PUT("/details/:id/makeup", staff, h.Grades.RecordMakeup)

	// Periods
	protected.GET("/periods", h.Periods.List)
	protected.GET("/periods/active", h.Periods.Active)
	protected.GET("/periods/:id", h.Periods.Get)
	protected.POST("/periods", admin, h.Periods.Create)
	protected.PUT("/periods/:id", admin, h.Periods.Update)
	protected.POST("/periods/:id/activate", admin, h.Periods.Activate)
	protected.POST("/periods/:id/registration", admin, h.Periods.ToggleRegistration)

	// Catalog
	protected.GET("/programs", h.Programs.List)
	protected.GET("/programs/:id", h.Programs.Get)
	protected.POST("/programs", admin, h.Programs.Create)
	protected.PUT("/programs/:id", admin, h.Programs.Update)

	protected.GET("/courses", h.Courses.List)
	protected.GET("/courses/:id", h.Courses.Get)
	protected.GET("/courses/:id/sections", h.Courses.ListSections)
	protected.POST("/courses", admin, h.Courses.Create)
	protected.PUT("/courses/:id", admin, h.Courses.Update)
	protected.DELETE("/courses/:id", admin, h.Courses.Delete)
	protected.POST("/courses/:id/prerequisites/:prereqId", admin, h.Courses.AddPrerequisite)
	protected.DELETE("/courses/:id/prerequisites/:prereqId", admin, h.Courses.RemovePrerequisite)

	protected.GET("/sections/:id", h.Sections.Get)
	protected.POST("/sections", admin, h.Sections.Create)
	protected.PUT("/sections/:id/instructor", admin, h.Sections.AssignInstructor)

	// Students
	protected.GET("/students", staff, h.Students.List)
	protected.GET("/students/me", h.Students.Me)
	protected.GET("/students/:id", h.Students.Get)
	protected.POST("/students", admin, h.Students.Create)
	protected.GET("/students/:id/progress", h.Students.Progress)

	// Reports
	protected.GET("/reports/periods/:id/roster", staff, h.Reports.PeriodRoster)
}
