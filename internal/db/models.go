package db

import "time"

// User represents a Spotify user profile.
type User struct {
	ID          string
	DisplayName string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Session represents an authenticated web session. Token fields hold
// whatever the caller passes in; the session package seals them first
// when an encryption key is configured.
type Session struct {
	ID           string
	UserID       string
	AccessToken  string
	RefreshToken string
	TokenType    string
	TokenExpiry  time.Time
	CreatedAt    time.Time
	ExpiresAt    time.Time
}

// Timestamps are stored as unix seconds so both dialects compare them the
// same way.
func toUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func fromUnix(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
