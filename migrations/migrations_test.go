package migrations

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAutoMigrateCreatesTablesInOrder(t *testing.T) {
	retryDelay = 0
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	for _, table := range []string{"users", "readings", "medications", "meals", "reading_meals"} {
		mock.ExpectExec(`CREATE TABLE IF NOT EXISTS ` + table + ` \(`).WillReturnResult(sqlmock.NewResult(0, 0))
	}

	require.NoError(t, AutoMigrate(context.Background(), db, 3))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAutoMigrateRetries(t *testing.T) {
	retryDelay = 0
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS users`).WillReturnError(errors.New("connection refused"))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS users`).WillReturnResult(sqlmock.NewResult(0, 0))
	for _, table := range []string{"readings", "medications", "meals", "reading_meals"} {
		mock.ExpectExec(`CREATE TABLE IF NOT EXISTS ` + table + ` \(`).WillReturnResult(sqlmock.NewResult(0, 0))
	}

	require.NoError(t, AutoMigrate(context.Background(), db, 2))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAutoMigrateGivesUp(t *testing.T) {
	retryDelay = 0
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	boom := errors.New("access denied")
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS users`).WillReturnError(boom)
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS users`).WillReturnError(boom)

	err = AutoMigrate(context.Background(), db, 1)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "migrate users table")
	require.NoError(t, mock.ExpectationsWereMet())
}
