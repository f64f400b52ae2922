// Egen Lista | 2026
// repository_test.go

package contact

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
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

func uniqueViolation() *pgconn.PgError {
	return &pgconn.PgError{
		Code:           "23505",
		ConstraintName: "contacts_user_id_lower_email_key",
	}
}

func TestCreateDuplicateEmailForUser(t *testing.T) {
	repo, db, mock := newMockRepo(t)

	mock.ExpectQuery(`INSERT INTO contacts`).
		WillReturnError(uniqueViolation())

	c := &Contact{
		ID:        "c1",
		UserID:    "u1",
		FirstName: "Anna",
		Email:     "anna@example.se",
		Type:      TypeCustomer,
	}
	err := repo.Create(context.Background(), db, c)

	assert.ErrorIs(t, err, core.ErrDuplicateKey)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateDuplicateEmailForUser(t *testing.T) {
	repo, _, mock := newMockRepo(t)

	mock.ExpectQuery(`UPDATE contacts\s+SET first_name`).
		WillReturnError(uniqueViolation())

	c := &Contact{
		ID:        "c1",
		UserID:    "u1",
		FirstName: "Anna",
		Email:     "taget@example.se",
		Type:      TypeCustomer,
	}
	err := repo.Update(context.Background(), c)

	assert.ErrorIs(t, err, core.ErrDuplicateKey)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateUnrelatedErrorIsNotDuplicate(t *testing.T) {
	repo, _, mock := newMockRepo(t)

	mock.ExpectQuery(`UPDATE contacts\s+SET first_name`).
		WillReturnError(&pgconn.PgError{Code: "23503"})

	c := &Contact{ID: "c1", UserID: "u1", Email: "anna@example.se"}
	err := repo.Update(context.Background(), c)

	require.Error(t, err)
	assert.NotErrorIs(t, err, core.ErrDuplicateKey)
	assert.NoError(t, mock.ExpectationsWereMet())
}
