// Egen Lista | 2026
// repository_test.go

package user

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/egenlista/api/internal/core"
)

func newMockRepo(t *testing.T) (Repository, *sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New(
		sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp),
	)
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	db := sqlx.NewDb(mockDB, "sqlmock")
	return NewRepository(db), db, mock
}

func TestGetByEmailNotFound(t *testing.T) {
	repo, _, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT .+ FROM users`).
		WithArgs("ingen@example.se").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetByEmail(context.Background(), "ingen@example.se")

	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByEmailExcludesSoftDeleted(t *testing.T) {
	repo, _, mock := newMockRepo(t)

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "email", "password_hash", "name", "role",
		"email_verified_at", "created_at", "updated_at", "deleted_at",
	}).AddRow(
		"u1", "anna@example.se", "hash", "Anna", "USER",
		now, now, now, nil,
	)

	mock.ExpectQuery(`WHERE email = \$1 AND deleted_at IS NULL`).
		WithArgs("anna@example.se").
		WillReturnRows(rows)

	user, err := repo.GetByEmail(context.Background(), "anna@example.se")
	require.NoError(t, err)

	assert.Equal(t, "u1", user.ID)
	assert.NotNil(t, user.EmailVerifiedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteUnverifiedByEmailGuardsVerified(t *testing.T) {
	repo, db, mock := newMockRepo(t)

	// The verified account matches the email but not the guard, so
	// zero rows are affected and the sweep moves on.
	mock.ExpectExec(`DELETE FROM users\s+WHERE email = \$1 AND email_verified_at IS NULL`).
		WithArgs("klar@example.se").
		WillReturnResult(sqlmock.NewResult(0, 0))

	rows, err := repo.DeleteUnverifiedByEmail(
		context.Background(),
		db,
		"klar@example.se",
	)
	require.NoError(t, err)

	assert.Zero(t, rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteUnverifiedByEmailRemovesStaleAccount(t *testing.T) {
	repo, db, mock := newMockRepo(t)

	mock.ExpectExec(`DELETE FROM users\s+WHERE email = \$1 AND email_verified_at IS NULL`).
		WithArgs("stale@example.se").
		WillReturnResult(sqlmock.NewResult(0, 1))

	rows, err := repo.DeleteUnverifiedByEmail(
		context.Background(),
		db,
		"stale@example.se",
	)
	require.NoError(t, err)

	assert.Equal(t, int64(1), rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkEmailVerifiedIdempotentGuard(t *testing.T) {
	repo, db, mock := newMockRepo(t)

	mock.ExpectExec(`UPDATE users`).
		WithArgs("redan@example.se").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.MarkEmailVerified(context.Background(), db, "redan@example.se")

	assert.ErrorIs(t, err, core.ErrNotFound,
		"already-verified accounts are not re-marked")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdatePasswordNotFound(t *testing.T) {
	repo, db, mock := newMockRepo(t)

	mock.ExpectExec(`UPDATE users`).
		WithArgs("missing", "new-hash").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdatePassword(context.Background(), db, "missing", "new-hash")

	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
