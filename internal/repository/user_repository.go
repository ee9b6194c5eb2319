package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shivanand-hulikatti/event-booking/internal/model"
)

const userColumns = `id, name, email, phone, password_hash, role, is_active, last_login_at, deleted_at, created_at`

// UserRepository handles persistence for accounts.
type UserRepository struct {
	q querier
}

// NewUserRepository constructs a UserRepository.
func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{q: querier{db: db}}
}

func scanUser(row pgx.Row) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &u.PasswordHash, &u.Role,
		&u.IsActive, &u.LastLoginAt, &u.DeletedAt, &u.CreatedAt)
	return u, err
}

// CreateUser inserts an account. Emails are unique case-insensitively.
func (r *UserRepository) CreateUser(ctx context.Context, u model.User) error {
	_, err := r.q.exec(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		u.ID, u.Name, u.Email, u.Phone, u.PasswordHash, u.Role,
		u.IsActive, u.LastLoginAt, u.DeletedAt, u.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("insert user: %w", classify(err))
	}
	return nil
}

// GetUser returns an account, soft-deleted ones included.
func (r *UserRepository) GetUser(ctx context.Context, id string) (model.User, error) {
	if !validID(id) {
		return model.User{}, ErrNotFound
	}
	u, err := scanUser(r.q.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, ErrNotFound
		}
		return model.User{}, fmt.Errorf("get user: %w", classify(err))
	}
	return u, nil
}

// ListUsers returns every account, soft-deleted ones included, newest first.
func (r *UserRepository) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := r.q.query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", classify(err))
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", classify(err))
	}
	return users, nil
}

// ToggleUserActive flips the active flag and returns the updated account.
func (r *UserRepository) ToggleUserActive(ctx context.Context, id string) (model.User, error) {
	if !validID(id) {
		return model.User{}, ErrNotFound
	}
	u, err := scanUser(r.q.queryRow(ctx,
		`UPDATE users SET is_active = NOT is_active WHERE id = $1 RETURNING `+userColumns, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, ErrNotFound
		}
		return model.User{}, fmt.Errorf("toggle user: %w", classify(err))
	}
	return u, nil
}

// SoftDeleteUser marks an account deleted. Deleting twice keeps the first
// timestamp.
func (r *UserRepository) SoftDeleteUser(ctx context.Context, id string, at time.Time) error {
	if !validID(id) {
		return ErrNotFound
	}
	tag, err := r.q.exec(ctx,
		`UPDATE users SET deleted_at = COALESCE(deleted_at, $2) WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("delete user: %w", classify(err))
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchLastLogin records the time of the latest authenticated session.
func (r *UserRepository) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	if !validID(id) {
		return ErrNotFound
	}
	if _, err := r.q.exec(ctx, `UPDATE users SET last_login_at = $2 WHERE id = $1`, id, at); err != nil {
		return fmt.Errorf("touch last login: %w", classify(err))
	}
	return nil
}
