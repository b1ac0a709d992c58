package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/sismepa/academic-api/internal/models"
)

func rbacContext(t *testing.T) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/students", nil)
	c.Request = req
	return c, w
}

func TestRequireRolesAllowsMatchingRole(t *testing.T) {
	c, w := rbacContext(t)
	c.Set(ContextActorKey, &models.Actor{UserID: "u-1", Role: models.RoleAdmin})

	RequireRoles(models.RoleAdmin, models.RoleInstructor)(c)
	assert.False(t, c.IsAborted())
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireRolesRejectsOtherRole(t *testing.T) {
	c, w := rbacContext(t)
	c.Set(ContextActorKey, &models.Actor{UserID: "u-1", Role: models.RoleStudent})

	RequireRoles(models.RoleAdmin)(c)
	assert.True(t, c.IsAborted())
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequireRolesRejectsMissingActor(t *testing.T) {
	c, w := rbacContext(t)

	RequireRoles(models.RoleAdmin)(c)
	assert.True(t, c.IsAborted())
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireRolesRejectsUnexpectedContextValue(t *testing.T) {
	c, w := rbacContext(t)
	c.Set(ContextActorKey, "not an actor")

	RequireRoles(models.RoleAdmin)(c)
	assert.True(t, c.IsAborted())
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
