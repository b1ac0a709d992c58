package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sismepa/academic-api/internal/models"
	"github.com/sismepa/academic-api/internal/service"
	"github.com/sismepa/academic-api/pkg/config"
)

type gradeRepoStub struct {
	detail  *models.EnrollmentDetailContext
	updated *models.EnrollmentDetail
}

func (m *gradeRepoStub) FindDetailContext(ctx context.Context, id string) (*models.EnrollmentDetailContext, error) {
	return m.detail, nil
}

func (m *gradeRepoStub) UpdateDetailGrades(ctx context.Context, detail *models.EnrollmentDetail) error {
	m.updated = detail
	return nil
}

func gradeHandlerFixture() (*GradeHandler, *gradeRepoStub) {
	repo := &gradeRepoStub{
		detail: &models.EnrollmentDetailContext{
			EnrollmentDetail: models.EnrollmentDetail{ID: "detail-1", Status: models.DetailStatusInProgress},
			StudentID:        "student-1",
			PeriodEndDate:    time.Now().Add(30 * 24 * time.Hour),
		},
	}
	rules := config.AcademicConfig{
		PassingGrade:      10,
		GradeMin:          1,
		GradeMax:          20,
		RiskRequiredScore: 15,
	}
	grades := service.NewGradeService(repo, nil, nil, rules, nil, nil)
	return NewGradeHandler(grades, nil), repo
}

func gradePut(t *testing.T, h func(*gin.Context), path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPut, path, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "detail-1"}}
	h(c)
	return w
}

func TestGradeHandlerRecordPartialInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _ := gradeHandlerFixture()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPut, "/details/detail-1/partials", bytes.NewReader([]byte(`not json`)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "detail-1"}}

	handler.RecordPartial(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGradeHandlerRecordPartialOutOfRange(t *testing.T) {
	handler, repo := gradeHandlerFixture()
	w := gradePut(t, handler.RecordPartial, "/details/detail-1/partials", service.RecordPartialRequest{Slot: 1, Value: 25})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Nil(t, repo.updated)
}

func TestGradeHandlerRecordPartialOK(t *testing.T) {
	handler, repo := gradeHandlerFixture()
	w := gradePut(t, handler.RecordPartial, "/details/detail-1/partials", service.RecordPartialRequest{Slot: 2, Value: 14.5})
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, repo.updated)
	require.NotNil(t, repo.updated.Partial2)
	assert.Equal(t, 14.5, *repo.updated.Partial2)
}

func TestGradeHandlerRecordMakeupIncompletePartials(t *testing.T) {
	handler, _ := gradeHandlerFixture()
	w := gradePut(t, handler.RecordMakeup, "/details/detail-1/makeup", service.RecordMakeupRequest{Value: 12})
	assert.Equal(t, http.StatusPreconditionFailed, w.Code)
}
