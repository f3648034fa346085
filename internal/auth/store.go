package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-kopi/internal/db"
)

const userColumns = `id, name, email, COALESCE(phone, ''), password_hash, roles, created_at, updated_at`

// Store persists accounts in Postgres.
type Store struct {
	DB db.DBTX
}

// NewStore constructs a user store.
func NewStore(conn db.DBTX) *Store {
	return &Store{DB: conn}
}

func scanUser(row pgx.Row) (UserRecord, error) {
	var u UserRecord
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &u.PasswordHash, &u.Roles, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// CreateUser inserts an account.
func (s *Store) CreateUser(ctx context.Context, u UserRecord) (UserRecord, error) {
	created, err := scanUser(s.DB.QueryRow(ctx, `
INSERT INTO users (id, name, email, phone, password_hash, roles)
VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6)
RETURNING `+userColumns,
		u.ID, u.Name, u.Email, u.Phone, u.PasswordHash, u.Roles))
	if err != nil {
		if db.IsUniqueViolation(err) {
			return UserRecord{}, ErrEmailTaken
		}
		return UserRecord{}, fmt.Errorf("create user: %w", err)
	}
	return created, nil
}

// GetUserByEmail loads an account by email, ignoring case.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (UserRecord, error) {
	return s.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email)
}

// GetUserByID loads an account by id.
func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (UserRecord, error) {
	return s.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// SetUserRoles replaces the roles of an account.
func (s *Store) SetUserRoles(ctx context.Context, id uuid.UUID, roles []string) (UserRecord, error) {
	return s.getOne(ctx, `UPDATE users SET roles = $2, updated_at = now() WHERE id = $1 RETURNING `+userColumns, id, roles)
}

func (s *Store) getOne(ctx context.Context, query string, args ...any) (UserRecord, error) {
	u, err := scanUser(s.DB.QueryRow(ctx, query, args...))
	if err != nil {
		if db.IsNoRows(err) {
			return UserRecord{}, ErrUserNotFound
		}
		return UserRecord{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}
