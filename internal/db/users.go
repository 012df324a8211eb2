package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// UserRepository handles user database operations.
type UserRepository struct {
	db *DB
}

// Get retrieves a user by ID.
func (r *UserRepository) Get(ctx context.Context, id string) (*User, error) {
	query := `
		SELECT id, display_name, created_at, updated_at
		FROM users
		WHERE id = ?
	`
	var (
		user             User
		created, updated int64
	)
	err := r.db.queryRow(ctx, query, id).Scan(
		&user.ID,
		&user.DisplayName,
		&created,
		&updated,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}
	user.CreatedAt = fromUnix(created)
	user.UpdatedAt = fromUnix(updated)
	return &user, nil
}

// Upsert creates or updates a user. The display name is refreshed on every
// login; created_at is kept from the first insert.
func (r *UserRepository) Upsert(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (id, display_name, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			display_name = excluded.display_name,
			updated_at = excluded.updated_at
	`
	now := time.Now().UTC().Truncate(time.Second)
	if _, err := r.db.exec(ctx, query, user.ID, user.DisplayName, toUnix(now), toUnix(now)); err != nil {
		return fmt.Errorf("upserting user: %w", err)
	}

	stored, err := r.Get(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("reading upserted user: %w", err)
	}
	user.CreatedAt = stored.CreatedAt
	user.UpdatedAt = stored.UpdatedAt
	return nil
}
