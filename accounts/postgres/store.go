// Package postgres stores registered accounts in PostgreSQL through the pgx
// database/sql driver. The schema is applied with goose from embedded
// migrations.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	goSignup "github.com/MrEthical07/goSignup"
)

const (
	uniqueViolation = "23505"

	sessionConstraint = "accounts_tenant_session_key"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	db DBTX
}

func New(db DBTX) *Store {
	return &Store{db: db}
}

// Open connects with the pgx driver and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}
	return db, nil
}

// Migrate applies the embedded schema migrations.
func Migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("migration error: %w", err)
	}
	return nil
}

// CreateAccount inserts the account. A unique violation on email or
// username is reported as goSignup.ErrAccountConflict; a violation on the
// registration session means this session already created its account,
// whose ID is returned.
func (s *Store) CreateAccount(ctx context.Context, f goSignup.AccountFields) (string, error) {
	query :=
		`INSERT INTO accounts (tenant_id, email, username, phone, full_name, role, credential_hash, is_email_verified, registration_session)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id
		 `

	var id string
	err := s.db.QueryRowContext(ctx, query,
		f.TenantID, f.Email, f.Username, f.Phone, f.FullName, f.Role, f.CredentialHash, f.EmailVerified, f.SessionID,
	).Scan(&id)
	if err == nil {
		return id, nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		if pgErr.ConstraintName == sessionConstraint {
			existing, found, findErr := s.FindAccount(ctx, f)
			if findErr == nil && found {
				return existing, nil
			}
		}
		return "", fmt.Errorf("%w: %s", goSignup.ErrAccountConflict, pgErr.ConstraintName)
	}
	return "", fmt.Errorf("db error: %w", err)
}

// FindAccount looks the account up by the registration session that
// created it.
func (s *Store) FindAccount(ctx context.Context, f goSignup.AccountFields) (string, bool, error) {
	query :=
		`SELECT id FROM accounts
		 WHERE tenant_id = $1 AND registration_session = $2
		 `

	var id string
	err := s.db.QueryRowContext(ctx, query, f.TenantID, f.SessionID).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("db error: %w", err)
	}
	return id, true, nil
}
