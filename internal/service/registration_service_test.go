package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sismepa/academic-api/internal/models"
	"github.com/sismepa/academic-api/internal/repository"
	"github.com/sismepa/academic-api/pkg/config"
	appErrors "github.com/sismepa/academic-api/pkg/errors"
)

func testRules() config.AcademicConfig {
	return config.AcademicConfig{
		CreditCap:               35,
		PassingGrade:            10,
		GradeMin:                1,
		GradeMax:                20,
		CommunityServicePercent: 50,
		CommunityServiceKeyword: "community service",
		RiskRequiredScore:       15,
		LowProgressPercent:      25,
	}
}

type fakeRegistrationTx struct {
	period            *models.AcademicPeriod
	enrollment        *models.Enrollment
	duplicate         bool
	passed            bool
	approvedCourses   map[string]bool
	approvedCredits   int
	enrolledCredits   int
	scheduled         []models.ScheduledBlock
	createdEnrollment *models.Enrollment
	createdDetail     *models.EnrollmentDetail
}

func (f *fakeRegistrationTx) ActivePeriod(ctx context.Context) (*models.AcademicPeriod, error) {
	if f.period == nil {
		return nil, sql.ErrNoRows
	}
	return f.period, nil
}

func (f *fakeRegistrationTx) FindEnrollment(ctx context.Context, studentID, periodID string) (*models.Enrollment, error) {
	if f.enrollment == nil {
		return nil, sql.ErrNoRows
	}
	return f.enrollment, nil
}

func (f *fakeRegistrationTx) CreateEnrollment(ctx context.Context, enrollment *models.Enrollment) error {
	enrollment.ID = "enr-new"
	f.createdEnrollment = enrollment
	return nil
}

func (f *fakeRegistrationTx) HasDetailForCourse(ctx context.Context, studentID, periodID, courseID string) (bool, error) {
	return f.duplicate, nil
}

func (f *fakeRegistrationTx) HasPassedCourse(ctx context.Context, studentID, courseID string) (bool, error) {
	return f.passed, nil
}

func (f *fakeRegistrationTx) HasApprovedCourse(ctx context.Context, studentID, courseID string, passingGrade float64) (bool, error) {
	return f.approvedCourses[courseID], nil
}

func (f *fakeRegistrationTx) SumApprovedCredits(ctx context.Context, studentID string, passingGrade float64) (int, error) {
	return f.approvedCredits, nil
}

func (f *fakeRegistrationTx) EnrolledCredits(ctx context.Context, studentID, periodID string) (int, error) {
	return f.enrolledCredits, nil
}

func (f *fakeRegistrationTx) ListScheduledBlocks(ctx context.Context, studentID, periodID string) ([]models.ScheduledBlock, error) {
	return f.scheduled, nil
}

func (f *fakeRegistrationTx) CreateDetail(ctx context.Context, detail *models.EnrollmentDetail) error {
	detail.ID = "det-new"
	f.createdDetail = detail
	return nil
}

type mockRegistrationRepo struct {
	tx           *fakeRegistrationTx
	activeDetail *models.EnrollmentDetail
	statusWrites map[string]models.DetailStatus
}

func (m *mockRegistrationRepo) Serialized(ctx context.Context, studentID string, fn func(tx repository.RegistrationTx) error) error {
	return fn(m.tx)
}

func (m *mockRegistrationRepo) FindActiveDetailBySection(ctx context.Context, studentID, sectionID string) (*models.EnrollmentDetail, error) {
	if m.activeDetail == nil {
		return nil, sql.ErrNoRows
	}
	return m.activeDetail, nil
}

func (m *mockRegistrationRepo) UpdateDetailStatus(ctx context.Context, id string, status models.DetailStatus) error {
	if m.statusWrites == nil {
		m.statusWrites = make(map[string]models.DetailStatus)
	}
	m.statusWrites[id] = status
	return nil
}

type mockSectionReader struct {
	sections map[string]*models.Section
}

func (m *mockSectionReader) FindByID(ctx context.Context, id string) (*models.Section, error) {
	if s, ok := m.sections[id]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

type mockCourseReader struct {
	courses      map[string]*models.Course
	totalCredits int
}

func (m *mockCourseReader) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if c, ok := m.courses[id]; ok {
		return c, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCourseReader) TotalProgramCredits(ctx context.Context, programID string) (int, error) {
	return m.totalCredits, nil
}

type mockStudentReader struct {
	students map[string]*models.Student
}

func (m *mockStudentReader) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if s, ok := m.students[id]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

type registrationFixture struct {
	repo     *mockRegistrationRepo
	sections *mockSectionReader
	courses  *mockCourseReader
	students *mockStudentReader
	service  *RegistrationService
}

func newRegistrationFixture() *registrationFixture {
	course := &models.Course{ID: "course-1", ProgramID: "prog-1", Code: "MAT-101", Name: "Calculus I", Credits: 4}
	section := &models.Section{
		ID:       "sec-1",
		CourseID: "course-1",
		Code:     "A",
		Blocks: []models.TimeBlock{
			{Day: 1, StartMinute: 7 * 60, EndMinute: 8*60 + 30},
		},
	}
	f := &registrationFixture{
		repo: &mockRegistrationRepo{tx: &fakeRegistrationTx{
			period: &models.AcademicPeriod{
				ID: "period-1", Name: "2026-I", Active: true, RegistrationOpen: true,
			},
			approvedCourses: map[string]bool{},
		}},
		sections: &mockSectionReader{sections: map[string]*models.Section{"sec-1": section}},
		courses:  &mockCourseReader{courses: map[string]*models.Course{"course-1": course}, totalCredits: 180},
		students: &mockStudentReader{students: map[string]*models.Student{"stu-1": {ID: "stu-1", ProgramID: "prog-1", FullName: "Ana Silva"}}},
	}
	f.service = NewRegistrationService(f.repo, f.sections, f.courses, f.students, testRules(), nil, nil)
	return f
}

func studentActor() models.Actor {
	return models.Actor{UserID: "user-1", Role: models.RoleStudent}
}

func TestRegisterCreatesDetailAndEnrollment(t *testing.T) {
	f := newRegistrationFixture()

	detail, err := f.service.Register(context.Background(), RegisterRequest{StudentID: "stu-1", SectionID: "sec-1"}, studentActor())
	require.NoError(t, err)
	require.NotNil(t, detail)
	assert.Equal(t, models.DetailStatusInProgress, detail.Status)
	assert.Equal(t, "course-1", detail.CourseID)
	require.NotNil(t, f.repo.tx.createdEnrollment)
	assert.Equal(t, "enr-new", detail.EnrollmentID)
}

func TestRegisterReusesExistingEnrollment(t *testing.T) {
	f := newRegistrationFixture()
	f.repo.tx.enrollment = &models.Enrollment{ID: "enr-1", StudentID: "stu-1", PeriodID: "period-1"}

	detail, err := f.service.Register(context.Background(), RegisterRequest{StudentID: "stu-1", SectionID: "sec-1"}, studentActor())
	require.NoError(t, err)
	assert.Nil(t, f.repo.tx.createdEnrollment)
	assert.Equal(t, "enr-1", detail.EnrollmentID)
}

func TestRegisterNoActivePeriod(t *testing.T) {
	f := newRegistrationFixture()
	f.repo.tx.period = nil

	_, err := f.service.Register(context.Background(), RegisterRequest{StudentID: "stu-1", SectionID: "sec-1"}, studentActor())
	require.True(t, appErrors.Is(err, appErrors.ErrNoActivePeriod))
}

func TestRegisterRegistrationClosed(t *testing.T) {
	f := newRegistrationFixture()
	f.repo.tx.period.RegistrationOpen = false

	_, err := f.service.Register(context.Background(), RegisterRequest{StudentID: "stu-1", SectionID: "sec-1"}, studentActor())
	require.True(t, appErrors.Is(err, appErrors.ErrRegistrationClosed))
}

func TestRegisterDuplicateInPeriod(t *testing.T) {
	f := newRegistrationFixture()
	f.repo.tx.duplicate = true

	_, err := f.service.Register(context.Background(), RegisterRequest{StudentID: "stu-1", SectionID: "sec-1"}, studentActor())
	require.True(t, appErrors.Is(err, appErrors.ErrAlreadyEnrolled))
}

func TestRegisterAlreadyPassed(t *testing.T) {
	f := newRegistrationFixture()
	f.repo.tx.passed = true

	_, err := f.service.Register(context.Background(), RegisterRequest{StudentID: "stu-1", SectionID: "sec-1"}, studentActor())
	require.True(t, appErrors.Is(err, appErrors.ErrAlreadyPassed))
}

func TestRegisterPrerequisiteUnmet(t *testing.T) {
	f := newRegistrationFixture()
	f.courses.courses["course-1"].Prerequisites = []models.CourseRef{
		{ID: "course-0", Code: "MAT-100", Name: "Precalculus"},
	}

	_, err := f.service.Register(context.Background(), RegisterRequest{StudentID: "stu-1", SectionID: "sec-1"}, studentActor())
	require.True(t, appErrors.Is(err, appErrors.ErrPrerequisiteUnmet))
	assert.Contains(t, appErrors.FromError(err).Message, "MAT-100")

	f.repo.tx.approvedCourses["course-0"] = true
	_, err = f.service.Register(context.Background(), RegisterRequest{StudentID: "stu-1", SectionID: "sec-1"}, studentActor())
	require.NoError(t, err)
}

func TestRegisterCreditCapIsInclusive(t *testing.T) {
	f := newRegistrationFixture()

	f.repo.tx.enrolledCredits = 31 // 31 + 4 == 35, at the cap
	_, err := f.service.Register(context.Background(), RegisterRequest{StudentID: "stu-1", SectionID: "sec-1"}, studentActor())
	require.NoError(t, err)

	f.repo.tx.enrolledCredits = 32 // 32 + 4 == 36, over
	_, err = f.service.Register(context.Background(), RegisterRequest{StudentID: "stu-1", SectionID: "sec-1"}, studentActor())
	require.True(t, appErrors.Is(err, appErrors.ErrCreditCapExceeded))
}

func TestRegisterScheduleConflict(t *testing.T) {
	f := newRegistrationFixture()
	f.repo.tx.scheduled = []models.ScheduledBlock{
		{CourseName: "Physics I", SectionCode: "B", Day: 1, StartMinute: 7 * 60, EndMinute: 7*60 + 45},
	}

	_, err := f.service.Register(context.Background(), RegisterRequest{StudentID: "stu-1", SectionID: "sec-1"}, studentActor())
	require.True(t, appErrors.Is(err, appErrors.ErrScheduleConflict))
	msg := appErrors.FromError(err).Message
	assert.Contains(t, msg, "Calculus I")
	assert.Contains(t, msg, "Physics I")
	assert.Contains(t, msg, "Monday")
}

func TestRegisterAbuttingBlocksDoNotConflict(t *testing.T) {
	f := newRegistrationFixture()
	// existing block ends exactly when the new one starts
	f.repo.tx.scheduled = []models.ScheduledBlock{
		{CourseName: "Physics I", Day: 1, StartMinute: 6 * 60, EndMinute: 7 * 60},
	}

	_, err := f.service.Register(context.Background(), RegisterRequest{StudentID: "stu-1", SectionID: "sec-1"}, studentActor())
	require.NoError(t, err)
}

func TestRegisterAdminSkipsConflictCheck(t *testing.T) {
	f := newRegistrationFixture()
	f.repo.tx.scheduled = []models.ScheduledBlock{
		{CourseName: "Physics I", Day: 1, StartMinute: 7 * 60, EndMinute: 8 * 60},
	}

	_, err := f.service.Register(context.Background(), RegisterRequest{StudentID: "stu-1", SectionID: "sec-1"},
		models.Actor{UserID: "admin-1", Role: models.RoleAdmin})
	require.NoError(t, err)
}

func TestRegisterOwnSectionInstructorSkipsConflictCheck(t *testing.T) {
	f := newRegistrationFixture()
	instructorID := "user-7"
	f.sections.sections["sec-1"].InstructorID = &instructorID
	f.repo.tx.scheduled = []models.ScheduledBlock{
		{CourseName: "Physics I", Day: 1, StartMinute: 7 * 60, EndMinute: 8 * 60},
	}

	_, err := f.service.Register(context.Background(), RegisterRequest{StudentID: "stu-1", SectionID: "sec-1"},
		models.Actor{UserID: "user-7", Role: models.RoleInstructor})
	require.NoError(t, err)

	// a different instructor still gets the conflict check
	_, err = f.service.Register(context.Background(), RegisterRequest{StudentID: "stu-1", SectionID: "sec-1"},
		models.Actor{UserID: "user-8", Role: models.RoleInstructor})
	require.True(t, appErrors.Is(err, appErrors.ErrScheduleConflict))
}

func TestRegisterCommunityServiceGate(t *testing.T) {
	f := newRegistrationFixture()
	f.courses.courses["course-1"].Name = "Community Service Project"
	f.courses.totalCredits = 180

	f.repo.tx.approvedCredits = 72 // 40%
	_, err := f.service.Register(context.Background(), RegisterRequest{StudentID: "stu-1", SectionID: "sec-1"}, studentActor())
	require.True(t, appErrors.Is(err, appErrors.ErrCommunityServiceGate))
	assert.Contains(t, appErrors.FromError(err).Message, "40.00%")

	f.repo.tx.approvedCredits = 90 // exactly 50%
	_, err = f.service.Register(context.Background(), RegisterRequest{StudentID: "stu-1", SectionID: "sec-1"}, studentActor())
	require.NoError(t, err)
}

func TestWithdrawMarksDetailWithdrawn(t *testing.T) {
	f := newRegistrationFixture()
	f.repo.activeDetail = &models.EnrollmentDetail{ID: "det-1", Status: models.DetailStatusInProgress}

	require.NoError(t, f.service.Withdraw(context.Background(), "stu-1", "sec-1"))
	assert.Equal(t, models.DetailStatusWithdrawn, f.repo.statusWrites["det-1"])
}

func TestWithdrawWithoutActiveDetail(t *testing.T) {
	f := newRegistrationFixture()

	err := f.service.Withdraw(context.Background(), "stu-1", "sec-1")
	require.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestRegisterSectionNotFound(t *testing.T) {
	f := newRegistrationFixture()

	_, err := f.service.Register(context.Background(), RegisterRequest{StudentID: "stu-1", SectionID: "missing"}, studentActor())
	require.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestRegisterValidatesPayload(t *testing.T) {
	f := newRegistrationFixture()

	_, err := f.service.Register(context.Background(), RegisterRequest{}, studentActor())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
