package db

import (
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunDataMigrations(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations_log").
		WillReturnResult(sqlmock.NewResult(0, 0))

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM schema_migrations_log").
		WithArgs("data_001").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	for i := 0; i < 8; i++ {
		mock.ExpectExec("UPDATE bridge_").WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectExec("INSERT INTO schema_migrations_log").
		WithArgs("data_001", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM schema_migrations_log").
		WithArgs("data_002").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	require.NoError(t, RunDataMigrations(sqlDB))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunDataMigrationsStopsOnFailure(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations_log").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM schema_migrations_log").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec("UPDATE bridge_transfers").WillReturnError(errors.New("relation does not exist"))

	err = RunDataMigrations(sqlDB)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "data_001")
	assert.NoError(t, mock.ExpectationsWereMet())
}
