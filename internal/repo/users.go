package repo

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"sapaboard/internal/domain"
)

// ErrEmailTaken is returned when a user with the same email exists.
var ErrEmailTaken = errors.New("email already registered")

// NormalizeEmail trims and lower-cases an email for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// InsertUser stores a user. PasswordHash must already contain the hashed value.
func (r Repo) InsertUser(ctx context.Context, u domain.User) error {
	if u.ID == "" {
		return errors.New("id required")
	}
	if u.Email == "" {
		return errors.New("email required")
	}
	if u.PasswordHash == "" {
		return errors.New("password_hash required")
	}
	if u.CreatedAt == "" {
		u.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	if _, err := r.GetUserByEmail(ctx, u.Email); err == nil {
		return ErrEmailTaken
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	_, err := r.DB.ExecContext(ctx, `INSERT INTO users(id, email, password_hash, created_at) VALUES (?,?,?,?)`,
		u.ID, NormalizeEmail(u.Email), u.PasswordHash, u.CreatedAt)
	return storeErr("insert user", err)
}

// GetUserByEmail looks a user up by normalized email.
func (r Repo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT id, email, password_hash, created_at FROM users WHERE email=? LIMIT 1`, NormalizeEmail(email))
	var u domain.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, ErrNotFound
	}
	if err != nil {
		return domain.User{}, storeErr("get user", err)
	}
	return u, nil
}

func (r Repo) GetUser(ctx context.Context, id string) (domain.User, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT id, email, password_hash, created_at FROM users WHERE id=?`, id)
	var u domain.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, ErrNotFound
	}
	if err != nil {
		return domain.User{}, storeErr("get user", err)
	}
	return u, nil
}

// ListUsers returns users ordered by email.
func (r Repo) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id, email, password_hash, created_at FROM users ORDER BY email`)
	if err != nil {
		return nil, storeErr("list users", err)
	}
	defer rows.Close()
	var users []domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
			return nil, storeErr("list users", err)
		}
		users = append(users, u)
	}
	return users, storeErr("list users", rows.Err())
}

// CountUsers is used to decide whether the bootstrap admin must be seeded.
func (r Repo) CountUsers(ctx context.Context) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, storeErr("count users", err)
}
