package local

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	id "credara/pkg/domain"
	"credara/pkg/platform/sentinel"
)

// PostgresAccounts persists credentials in the identity_accounts table.
// Sessions intentionally do not live here; they go to Redis (or memory) so a
// hot Authenticate path never touches the database.
type PostgresAccounts struct {
	db *sql.DB
}

func NewPostgresAccounts(db *sql.DB) *PostgresAccounts {
	return &PostgresAccounts{db: db}
}

func (s *PostgresAccounts) Insert(ctx context.Context, a *Account) error {
	query := `
		INSERT INTO identity_accounts (id, phone, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	var email any
	if a.Email != nil {
		email = *a.Email
	}
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(a.ID), a.Phone, email, a.PasswordHash, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (s *PostgresAccounts) FindByID(ctx context.Context, userID id.ProfileID) (*Account, error) {
	query := `
		SELECT id, phone, email, password_hash, created_at, updated_at
		FROM identity_accounts WHERE id = $1
	`
	return s.scanOne(s.db.QueryRowContext(ctx, query, uuid.UUID(userID)))
}

func (s *PostgresAccounts) FindByLogin(ctx context.Context, login string) (*Account, error) {
	query := `
		SELECT id, phone, email, password_hash, created_at, updated_at
		FROM identity_accounts WHERE phone = $1 OR LOWER(email) = LOWER($1)
	`
	return s.scanOne(s.db.QueryRowContext(ctx, query, login))
}

func (s *PostgresAccounts) UpdatePasswordHash(ctx context.Context, userID id.ProfileID, hash []byte, now time.Time) error {
	query := `UPDATE identity_accounts SET password_hash = $2, updated_at = $3 WHERE id = $1`
	res, err := s.db.ExecContext(ctx, query, uuid.UUID(userID), hash, now)
	if err != nil {
		return fmt.Errorf("update password hash: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update password hash: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresAccounts) scanOne(row *sql.Row) (*Account, error) {
	var (
		a         Account
		accountID uuid.UUID
		email     sql.NullString
	)
	err := row.Scan(&accountID, &a.Phone, &email, &a.PasswordHash, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find account: %w", err)
	}
	a.ID = id.ProfileID(accountID)
	if email.Valid {
		v := email.String
		a.Email = &v
	}
	return &a, nil
}
