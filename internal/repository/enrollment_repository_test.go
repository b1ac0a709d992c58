package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/sismepa/academic-api/internal/models"
)

func newEnrollmentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestEnrollmentRepositorySerializedAcquiresLockAndCommits(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()

	repo := NewEnrollmentRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock(hashtext($1))")).
		WithArgs("student-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, student_id, period_id, enrolled_at FROM enrollments")).
		WithArgs("student-1", "period-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "student_id", "period_id", "enrolled_at"}).
			AddRow("enr-1", "student-1", "period-1", time.Now()))
	mock.ExpectCommit()

	err := repo.Serialized(context.Background(), "student-1", func(tx RegistrationTx) error {
		enrollment, err := tx.FindEnrollment(context.Background(), "student-1", "period-1")
		if err != nil {
			return err
		}
		require.Equal(t, "enr-1", enrollment.ID)
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositorySerializedReadsActivePeriodInTx(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()

	repo := NewEnrollmentRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock(hashtext($1))")).
		WithArgs("student-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("FROM academic_periods WHERE active = TRUE LIMIT 1")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "start_date", "end_date", "active", "registration_open", "created_at", "updated_at"}).
			AddRow("period-1", "2026-I", time.Now(), time.Now().Add(90*24*time.Hour), true, true, time.Now(), time.Now()))
	mock.ExpectCommit()

	err := repo.Serialized(context.Background(), "student-1", func(tx RegistrationTx) error {
		period, err := tx.ActivePeriod(context.Background())
		if err != nil {
			return err
		}
		require.Equal(t, "period-1", period.ID)
		require.True(t, period.RegistrationOpen)
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositorySerializedRollsBackOnError(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()

	repo := NewEnrollmentRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock(hashtext($1))")).
		WithArgs("student-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	sentinel := errors.New("registration rejected")
	err := repo.Serialized(context.Background(), "student-1", func(tx RegistrationTx) error {
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryHasDetailForCourseExcludesWithdrawn(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()

	repo := NewEnrollmentRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock(hashtext($1))")).
		WithArgs("student-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM enrollment_details d")).
		WithArgs("student-1", "period-1", "course-1", models.DetailStatusWithdrawn).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))
	mock.ExpectCommit()

	err := repo.Serialized(context.Background(), "student-1", func(tx RegistrationTx) error {
		exists, err := tx.HasDetailForCourse(context.Background(), "student-1", "period-1", "course-1")
		if err != nil {
			return err
		}
		require.False(t, exists)
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositorySumApprovedCredits(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()

	repo := NewEnrollmentRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock(hashtext($1))")).
		WithArgs("student-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(SUM(c.credits), 0) FROM enrollment_details d")).
		WithArgs("student-1", models.DetailStatusPassed, 10.0).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(87))
	mock.ExpectCommit()

	err := repo.Serialized(context.Background(), "student-1", func(tx RegistrationTx) error {
		credits, err := tx.SumApprovedCredits(context.Background(), "student-1", 10.0)
		if err != nil {
			return err
		}
		require.Equal(t, 87, credits)
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryUpdateDetailGrades(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()

	repo := NewEnrollmentRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollment_details SET partial_1")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	grade := 14.5
	detail := &models.EnrollmentDetail{
		ID:       "det-1",
		Partial1: &grade,
		Status:   models.DetailStatusInProgress,
	}
	require.NoError(t, repo.UpdateDetailGrades(context.Background(), detail))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryListDetailsByPeriod(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()

	repo := NewEnrollmentRepository(db)
	final := 16.0
	rows := sqlmock.NewRows([]string{"detail_id", "student_name", "national_id", "course_code", "course_name", "credits", "section_code", "final_grade", "status"}).
		AddRow("det-1", "Ana Silva", "V-12345678", "MAT-101", "Calculus I", 4, "A", final, models.DetailStatusPassed)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT d.id AS detail_id, s.full_name AS student_name")).
		WithArgs("period-1").
		WillReturnRows(rows)

	details, err := repo.ListDetailsByPeriod(context.Background(), "period-1")
	require.NoError(t, err)
	require.Len(t, details, 1)
	require.Equal(t, "MAT-101", details[0].CourseCode)
	require.NoError(t, mock.ExpectationsWereMet())
}
