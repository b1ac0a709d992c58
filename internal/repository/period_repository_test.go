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
)

func newPeriodRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestPeriodRepositoryFindActive(t *testing.T) {
	db, mock, cleanup := newPeriodRepoMock(t)
	defer cleanup()

	repo := NewPeriodRepository(db)
	rows := sqlmock.NewRows([]string{"id", "name", "start_date", "end_date", "active", "registration_open", "created_at", "updated_at"}).
		AddRow("period-1", "2026-I", time.Now(), time.Now().AddDate(0, 4, 0), true, true, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, start_date, end_date, active, registration_open, created_at, updated_at FROM academic_periods WHERE active = TRUE")).
		WillReturnRows(rows)

	period, err := repo.FindActive(context.Background())
	require.NoError(t, err)
	require.Equal(t, "period-1", period.ID)
	require.True(t, period.RegistrationOpen)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPeriodRepositorySetActiveCommitsBothUpdates(t *testing.T) {
	db, mock, cleanup := newPeriodRepoMock(t)
	defer cleanup()

	repo := NewPeriodRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE academic_periods SET active = FALSE")).
		WithArgs(sqlmock.AnyArg(), "period-2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE academic_periods SET active = TRUE")).
		WithArgs("period-2", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.SetActive(context.Background(), "period-2"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPeriodRepositorySetActiveRollsBackOnFailure(t *testing.T) {
	db, mock, cleanup := newPeriodRepoMock(t)
	defer cleanup()

	repo := NewPeriodRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE academic_periods SET active = FALSE")).
		WithArgs(sqlmock.AnyArg(), "period-3").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE academic_periods SET active = TRUE")).
		WithArgs("period-3", sqlmock.AnyArg()).
		WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	err := repo.SetActive(context.Background(), "period-3")
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPeriodRepositorySetRegistrationOpen(t *testing.T) {
	db, mock, cleanup := newPeriodRepoMock(t)
	defer cleanup()

	repo := NewPeriodRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE academic_periods SET registration_open = $2")).
		WithArgs("period-1", false, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SetRegistrationOpen(context.Background(), "period-1", false))
	require.NoError(t, mock.ExpectationsWereMet())
}
