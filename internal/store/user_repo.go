package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

type UserRepo struct {
	db *sql.DB
}

func NewUserRepo(db *DB) *UserRepo {
	return &UserRepo{db: db.SQL()}
}

func (r *UserRepo) Create(ctx context.Context, user *User) error {
	if user.ID == "" {
		user.ID = NewID()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = nowUTC()
	}
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))

	_, err := r.db.ExecContext(ctx, `
INSERT INTO users (id, email, password_hash, created_at)
VALUES (?, ?, ?, ?)
`, user.ID, user.Email, user.PasswordHash, formatTimestamp(user.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// FindByEmail returns the user with the given email, or nil when no
// such user exists.
func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var u User
	var createdAtRaw string

	err := r.db.QueryRowContext(ctx, `
SELECT id, email, password_hash, created_at
FROM users
WHERE email = ?
`, email).Scan(&u.ID, &u.Email, &u.PasswordHash, &createdAtRaw)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}

	u.CreatedAt, err = parseTimestamp(createdAtRaw)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) FindByID(ctx context.Context, id string) (*User, error) {
	var u User
	var createdAtRaw string

	err := r.db.QueryRowContext(ctx, `
SELECT id, email, password_hash, created_at
FROM users
WHERE id = ?
`, id).Scan(&u.ID, &u.Email, &u.PasswordHash, &createdAtRaw)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find user %q: %w", id, err)
	}

	u.CreatedAt, err = parseTimestamp(createdAtRaw)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
