package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sismepa/academic-api/internal/models"
)

type mockStudentRepo struct {
	students map[string]*models.Student
	approved int
}

func (m *mockStudentRepo) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	var out []models.Student
	for _, s := range m.students {
		out = append(out, *s)
	}
	return out, len(out), nil
}

func (m *mockStudentRepo) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if s, ok := m.students[id]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentRepo) FindByUserID(ctx context.Context, userID string) (*models.Student, error) {
	for _, s := range m.students {
		if s.UserID == userID {
			return s, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentRepo) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = "stu-new"
	}
	m.students[student.ID] = student
	return nil
}

func (m *mockStudentRepo) CountApprovedDetails(ctx context.Context, studentID string, passingGrade float64) (int, error) {
	return m.approved, nil
}

type mockCourseCounter struct {
	total int
}

func (m *mockCourseCounter) CountByProgram(ctx context.Context, programID string) (int, error) {
	return m.total, nil
}

type memoryProgressCache struct {
	values map[string]models.StudentProgress
	sets   int
}

func (c *memoryProgressCache) Get(ctx context.Context, key string, dest interface{}) error {
	if v, ok := c.values[key]; ok {
		*dest.(*models.StudentProgress) = v
		return nil
	}
	return sql.ErrNoRows
}

func (c *memoryProgressCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if c.values == nil {
		c.values = make(map[string]models.StudentProgress)
	}
	c.values[key] = *value.(*models.StudentProgress)
	c.sets++
	return nil
}

type recordingProgressNotifier struct {
	alerts []float64
}

func (n *recordingProgressNotifier) LowProgress(ctx context.Context, student *models.Student, percentage float64) {
	n.alerts = append(n.alerts, percentage)
}

func newStudentFixture(passed, totalCourses int) (*mockStudentRepo, *memoryProgressCache, *recordingProgressNotifier, *StudentService) {
	repo := &mockStudentRepo{
		students: map[string]*models.Student{
			"stu-1": {ID: "stu-1", UserID: "user-1", ProgramID: "prog-1", FullName: "Ana Silva", Email: "ana@example.edu"},
		},
		approved: passed,
	}
	cache := &memoryProgressCache{}
	notifier := &recordingProgressNotifier{}
	svc := NewStudentService(repo, &mockCourseCounter{total: totalCourses}, cache, notifier, testRules(), 10*time.Minute, nil, nil)
	return repo, cache, notifier, svc
}

func TestProgressComputesRoundedPercentage(t *testing.T) {
	_, _, _, svc := newStudentFixture(3, 5)

	progress, err := svc.Progress(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.Equal(t, 60.0, progress.Percentage)
	assert.Equal(t, 3, progress.PassedCourses)
	assert.Equal(t, 5, progress.TotalCourses)
}

func TestProgressZeroWhenProgramEmpty(t *testing.T) {
	_, _, _, svc := newStudentFixture(0, 0)

	progress, err := svc.Progress(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.Equal(t, 0.0, progress.Percentage)
}

func TestProgressServedFromCache(t *testing.T) {
	repo, cache, _, svc := newStudentFixture(3, 5)

	_, err := svc.Progress(context.Background(), "stu-1")
	require.NoError(t, err)
	require.Equal(t, 1, cache.sets)

	// a stale repo value must not surface while the cache is fresh
	repo.approved = 4
	progress, err := svc.Progress(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.Equal(t, 3, progress.PassedCourses)
	assert.Equal(t, 1, cache.sets)
}

func TestProgressTriggersLowProgressAlert(t *testing.T) {
	_, _, notifier, svc := newStudentFixture(1, 10)

	progress, err := svc.Progress(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.Equal(t, 10.0, progress.Percentage)
	require.Len(t, notifier.alerts, 1)
	assert.Equal(t, 10.0, notifier.alerts[0])
}

func TestProgressAboveThresholdStaysQuiet(t *testing.T) {
	_, _, notifier, svc := newStudentFixture(3, 5)

	_, err := svc.Progress(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.Empty(t, notifier.alerts)
}
