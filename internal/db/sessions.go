package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SessionRepository handles session database operations.
type SessionRepository struct {
	db *DB
}

// Create inserts a new session.
func (r *SessionRepository) Create(ctx context.Context, session *Session) error {
	query := `
		INSERT INTO sessions (id, user_id, access_token, refresh_token, token_type, token_expiry, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.exec(ctx, query,
		session.ID,
		session.UserID,
		session.AccessToken,
		session.RefreshToken,
		session.TokenType,
		toUnix(session.TokenExpiry),
		toUnix(session.CreatedAt),
		toUnix(session.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}
	return nil
}

// Get retrieves an unexpired session by ID.
func (r *SessionRepository) Get(ctx context.Context, id string) (*Session, error) {
	query := `
		SELECT id, user_id, access_token, refresh_token, token_type, token_expiry, created_at, expires_at
		FROM sessions
		WHERE id = ? AND expires_at > ?
	`
	var (
		session                       Session
		tokenExpiry, created, expires int64
	)
	err := r.db.queryRow(ctx, query, id, time.Now().Unix()).Scan(
		&session.ID,
		&session.UserID,
		&session.AccessToken,
		&session.RefreshToken,
		&session.TokenType,
		&tokenExpiry,
		&created,
		&expires,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}
	session.TokenExpiry = fromUnix(tokenExpiry)
	session.CreatedAt = fromUnix(created)
	session.ExpiresAt = fromUnix(expires)
	return &session, nil
}

// Delete removes a session by ID.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM sessions WHERE id = ?`
	if _, err := r.db.exec(ctx, query, id); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// UpdateToken updates the OAuth tokens for a session.
func (r *SessionRepository) UpdateToken(ctx context.Context, id, accessToken, refreshToken string, expiry time.Time) error {
	query := `
		UPDATE sessions
		SET access_token = ?, refresh_token = ?, token_expiry = ?
		WHERE id = ?
	`
	result, err := r.db.exec(ctx, query, accessToken, refreshToken, toUnix(expiry), id)
	if err != nil {
		return fmt.Errorf("updating session token: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating session token: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteExpired removes all expired sessions.
func (r *SessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	query := `DELETE FROM sessions WHERE expires_at <= ?`
	result, err := r.db.exec(ctx, query, time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("deleting expired sessions: %w", err)
	}
	return result.RowsAffected()
}

// DeleteForUser removes every session belonging to userID and reports how
// many were removed.
func (r *SessionRepository) DeleteForUser(ctx context.Context, userID string) (int64, error) {
	result, err := r.db.exec(ctx, `DELETE FROM sessions WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("deleting user sessions: %w", err)
	}
	return result.RowsAffected()
}
