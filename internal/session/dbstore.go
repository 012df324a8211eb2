package session

import (
	"context"
	"errors"
	"time"

	"golang.org/x/oauth2"

	"github.com/justestif/go-music-personality/internal/db"
	"github.com/justestif/go-music-personality/internal/encryption"
)

// DBStore persists sessions in SQL. When a TokenSealer is supplied, access
// and refresh tokens are sealed before they are written.
type DBStore struct {
	database *db.DB
	sealer   *encryption.TokenSealer
	ttl      time.Duration
}

// NewDBStore creates a database-backed store. sealer may be nil.
func NewDBStore(database *db.DB, sealer *encryption.TokenSealer, ttl time.Duration) *DBStore {
	return &DBStore{database: database, sealer: sealer, ttl: ttl}
}

// Create upserts the user and stores a new session.
func (s *DBStore) Create(ctx context.Context, token *oauth2.Token, userID, displayName string) (*Session, error) {
	id, err := generateID()
	if err != nil {
		return nil, err
	}

	if err := s.database.Users().Upsert(ctx, &db.User{ID: userID, DisplayName: displayName}); err != nil {
		return nil, err
	}

	access, refresh, err := s.seal(id, token)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC().Truncate(time.Second)
	row := &db.Session{
		ID:           id,
		UserID:       userID,
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    tokenType(token),
		TokenExpiry:  token.Expiry,
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.ttl),
	}

	if err := s.database.Sessions().Create(ctx, row); err != nil {
		return nil, err
	}

	return &Session{
		ID:          id,
		Token:       token,
		UserID:      userID,
		DisplayName: displayName,
		CreatedAt:   row.CreatedAt,
		ExpiresAt:   row.ExpiresAt,
	}, nil
}

// Get retrieves a session and its user's display name.
func (s *DBStore) Get(ctx context.Context, id string) (*Session, error) {
	row, err := s.database.Sessions().Get(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	user, err := s.database.Users().Get(ctx, row.UserID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	access, refresh, err := s.open(row.ID, row.AccessToken, row.RefreshToken)
	if err != nil {
		return nil, err
	}

	return &Session{
		ID: row.ID,
		Token: &oauth2.Token{
			AccessToken:  access,
			RefreshToken: refresh,
			TokenType:    row.TokenType,
			Expiry:       row.TokenExpiry,
		},
		UserID:      row.UserID,
		DisplayName: user.DisplayName,
		CreatedAt:   row.CreatedAt,
		ExpiresAt:   row.ExpiresAt,
	}, nil
}

// Delete removes a session from the database.
func (s *DBStore) Delete(ctx context.Context, id string) error {
	return s.database.Sessions().Delete(ctx, id)
}

// UpdateToken stores a refreshed OAuth token. A session deleted in the
// meantime is not an error.
func (s *DBStore) UpdateToken(ctx context.Context, id string, token *oauth2.Token) error {
	access, refresh, err := s.seal(id, token)
	if err != nil {
		return err
	}

	err = s.database.Sessions().UpdateToken(ctx, id, access, refresh, token.Expiry)
	if errors.Is(err, db.ErrNotFound) {
		return nil
	}
	return err
}

// DeleteExpired removes all expired sessions.
func (s *DBStore) DeleteExpired(ctx context.Context) (int64, error) {
	return s.database.Sessions().DeleteExpired(ctx)
}

// DeleteForUser removes every session belonging to userID.
func (s *DBStore) DeleteForUser(ctx context.Context, userID string) (int64, error) {
	return s.database.Sessions().DeleteForUser(ctx, userID)
}

func (s *DBStore) seal(id string, token *oauth2.Token) (access, refresh string, err error) {
	if s.sealer == nil {
		return token.AccessToken, token.RefreshToken, nil
	}
	return s.sealer.SealToken(id, token)
}

func (s *DBStore) open(id, sealedAccess, sealedRefresh string) (access, refresh string, err error) {
	if s.sealer == nil {
		return sealedAccess, sealedRefresh, nil
	}
	return s.sealer.OpenToken(id, sealedAccess, sealedRefresh)
}

func tokenType(token *oauth2.Token) string {
	if token.TokenType == "" {
		return "Bearer"
	}
	return token.TokenType
}

// Ensure both stores implement Store.
var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*DBStore)(nil)
)
