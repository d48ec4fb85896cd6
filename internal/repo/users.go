package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

type PostgresUsers struct {
	db DBTX
}

func (r *PostgresUsers) Create(ctx context.Context, u *User) error {
	query := `
		INSERT INTO users (id, role, full_name, email, phone, specialty, share_code)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		u.ID, string(u.Role), u.FullName, u.Email, u.Phone, u.Specialty, u.ShareCode,
	).Scan(&u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

const userColumns = `id, role, full_name, email, phone, specialty, share_code, created_at`

func (r *PostgresUsers) Get(ctx context.Context, id uuid.UUID) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresUsers) GetByShareCode(ctx context.Context, code string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE share_code = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, code))
}

func (r *PostgresUsers) UpdateShareCode(ctx context.Context, id uuid.UUID, code string) error {
	query := `UPDATE users SET share_code = $2 WHERE id = $1 AND role = 'patient'`
	res, err := r.db.ExecContext(ctx, query, id, code)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("db error: %w", err)
	}
	return affectedOne(res, ErrNotFound)
}

func scanUser(row *sql.Row) (*User, error) {
	var (
		u    User
		role string
	)
	err := row.Scan(&u.ID, &role, &u.FullName, &u.Email, &u.Phone, &u.Specialty, &u.ShareCode, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	u.Role = Role(role)
	return &u, nil
}
