package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wearagain/thriftmarket/internal/apperr"
)

type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) Create(ctx context.Context, u *User) error {
	err := r.DB.QueryRow(ctx, `
		INSERT INTO users(id, email, password_hash, name, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`,
		u.ID, u.Email, u.PasswordHash, u.Name, u.Role,
	).Scan(&u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		// 23505 = unique_violation on the email index
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: email already registered", apperr.ErrConflict)
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id string) (*User, error) {
	return r.scanOne(r.DB.QueryRow(ctx, `
		SELECT id, email, password_hash, name, role, created_at
		FROM users WHERE id=$1`, id))
}

func (r *Repo) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.scanOne(r.DB.QueryRow(ctx, `
		SELECT id, email, password_hash, name, role, created_at
		FROM users WHERE email=$1`, email))
}

func (r *Repo) scanOne(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Role, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: user", apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// List returns all users, newest first. Admin-only at the HTTP layer.
func (r *Repo) List(ctx context.Context) ([]User, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, email, password_hash, name, role, created_at
		FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Role, &u.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *Repo) UpdateRole(ctx context.Context, id, role string) (*User, error) {
	if !ValidRole(role) {
		return nil, fmt.Errorf("%w: invalid role %q", apperr.ErrValidation, role)
	}
	return r.scanOne(r.DB.QueryRow(ctx, `
		UPDATE users SET role=$2 WHERE id=$1
		RETURNING id, email, password_hash, name, role, created_at`, id, role))
}
