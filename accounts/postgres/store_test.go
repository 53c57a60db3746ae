package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	goSignup "github.com/MrEthical07/goSignup"
)

const (
	insertQuery = `(?s)^INSERT\s+INTO\s+accounts\s*\(tenant_id,.*registration_session\)\s*VALUES\s*\(\$1,.*\$9\)\s*RETURNING\s+id\s*$`
	selectQuery = `(?s)^SELECT\s+id\s+FROM\s+accounts\s+WHERE\s+tenant_id\s*=\s*\$1\s+AND\s+registration_session\s*=\s*\$2\s*$`
)

func newStoreWithMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return New(db), mock
}

func testFields() goSignup.AccountFields {
	return goSignup.AccountFields{
		TenantID:       "0",
		SessionID:      "sid-1",
		Email:          "a@b.com",
		Username:       "alice",
		Phone:          "+15551234567",
		FullName:       "Alice Example",
		Role:           "developer",
		CredentialHash: "$argon2id$...",
		EmailVerified:  true,
	}
}

func TestCreateAccountSuccess(t *testing.T) {
	store, mock := newStoreWithMock(t)
	f := testFields()

	mock.ExpectQuery(insertQuery).
		WithArgs(f.TenantID, f.Email, f.Username, f.Phone, f.FullName, f.Role, f.CredentialHash, true, f.SessionID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("acc-1"))

	id, err := store.CreateAccount(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, "acc-1", id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAccountDuplicateEmailIsConflict(t *testing.T) {
	store, mock := newStoreWithMock(t)

	mock.ExpectQuery(insertQuery).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "accounts_tenant_email_key"})

	_, err := store.CreateAccount(context.Background(), testFields())
	assert.ErrorIs(t, err, goSignup.ErrAccountConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAccountSameSessionReturnsExisting(t *testing.T) {
	store, mock := newStoreWithMock(t)

	mock.ExpectQuery(insertQuery).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: sessionConstraint})
	mock.ExpectQuery(selectQuery).
		WithArgs("0", "sid-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("acc-1"))

	id, err := store.CreateAccount(context.Background(), testFields())
	require.NoError(t, err)
	assert.Equal(t, "acc-1", id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAccountDBError(t *testing.T) {
	store, mock := newStoreWithMock(t)

	mock.ExpectQuery(insertQuery).WillReturnError(errors.New("db down"))

	_, err := store.CreateAccount(context.Background(), testFields())
	require.Error(t, err)
	assert.NotErrorIs(t, err, goSignup.ErrAccountConflict)
	assert.Contains(t, err.Error(), "db down")
}

func TestFindAccount(t *testing.T) {
	store, mock := newStoreWithMock(t)

	mock.ExpectQuery(selectQuery).
		WithArgs("0", "sid-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("acc-9"))
	mock.ExpectQuery(selectQuery).
		WithArgs("0", "sid-1").
		WillReturnError(sql.ErrNoRows)

	id, found, err := store.FindAccount(context.Background(), testFields())
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "acc-9", id)

	_, found, err = store.FindAccount(context.Background(), testFields())
	require.NoError(t, err)
	assert.False(t, found)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := migrations.ReadDir("migrations")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	body, err := migrations.ReadFile("migrations/" + entries[0].Name())
	require.NoError(t, err)
	assert.Contains(t, string(body), "-- +goose Up")
	assert.Contains(t, string(body), sessionConstraint)
}
