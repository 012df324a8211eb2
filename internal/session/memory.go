package session

import (
	"context"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// MemoryStore keeps sessions in process memory. Sessions are lost on restart.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Create generates a new session with the given token and user info.
func (s *MemoryStore) Create(_ context.Context, token *oauth2.Token, userID, displayName string) (*Session, error) {
	id, err := generateID()
	if err != nil {
		return nil, err
	}

	now := s.now()
	session := &Session{
		ID:          id,
		Token:       token,
		UserID:      userID,
		DisplayName: displayName,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.ttl),
	}

	s.mu.Lock()
	s.sessions[id] = session
	s.mu.Unlock()

	return copySession(session), nil
}

// Get retrieves a session by ID.
func (s *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok || session.Expired(s.now()) {
		return nil, nil
	}

	return copySession(session), nil
}

// Delete removes a session by ID.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	return nil
}

// UpdateToken replaces the OAuth token for a session. Unknown IDs are ignored.
func (s *MemoryStore) UpdateToken(_ context.Context, id string, token *oauth2.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if session, ok := s.sessions[id]; ok {
		session.Token = token
	}
	return nil
}

// DeleteExpired removes all expired sessions.
func (s *MemoryStore) DeleteExpired(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var n int64
	for id, session := range s.sessions {
		if session.Expired(now) {
			delete(s.sessions, id)
			n++
		}
	}
	return n, nil
}

// DeleteForUser removes every session belonging to userID.
func (s *MemoryStore) DeleteForUser(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, session := range s.sessions {
		if session.UserID == userID {
			delete(s.sessions, id)
			n++
		}
	}
	return n, nil
}

// copySession returns a copy so callers cannot mutate stored state.
func copySession(s *Session) *Session {
	c := *s
	if s.Token != nil {
		tok := *s.Token
		c.Token = &tok
	}
	return &c
}
