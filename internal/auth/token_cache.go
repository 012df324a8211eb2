// Package auth provides Spotify OAuth2 authentication for the web flow and a
// terminal flow with a cached token.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
)

const (
	configDirName = "music-personality"
	tokenFileName = "token.json"
)

// cacheScope is recorded with every cached token. Tokens granted for other
// scopes cannot read top items and are ignored.
const cacheScope = spotifyauth.ScopeUserTopRead

// cachedToken is the on-disk format.
type cachedToken struct {
	Token   *oauth2.Token `json:"token"`
	Scope   string        `json:"scope"`
	SavedAt time.Time     `json:"saved_at"`
}

// TokenCache stores the terminal flow's token in a 0600 JSON file.
type TokenCache struct {
	path string
	now  func() time.Time
}

// DefaultTokenCache returns a TokenCache at
// ~/.config/music-personality/token.json (or the platform equivalent).
func DefaultTokenCache() (*TokenCache, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("getting user config dir: %w", err)
	}
	return NewTokenCache(filepath.Join(configDir, configDirName, tokenFileName)), nil
}

// NewTokenCache creates a TokenCache with a custom path.
func NewTokenCache(path string) *TokenCache {
	return &TokenCache{path: path, now: time.Now}
}

// Path returns the file path where tokens are stored.
func (c *TokenCache) Path() string {
	return c.path
}

// Load reads the cached token. It returns (nil, nil) when there is no file
// or the token was granted for a different scope.
func (c *TokenCache) Load() (*oauth2.Token, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading token file: %w", err)
	}

	var cached cachedToken
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, fmt.Errorf("parsing token file: %w", err)
	}
	if cached.Token == nil || cached.Scope != string(cacheScope) {
		return nil, nil
	}
	return cached.Token, nil
}

// Save writes the token, creating the parent directory if needed. The file
// is replaced atomically so a crash never leaves a truncated token behind.
func (c *TokenCache) Save(token *oauth2.Token) error {
	if token == nil {
		return errors.New("cannot save nil token")
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := json.MarshalIndent(cachedToken{
		Token:   token,
		Scope:   string(cacheScope),
		SavedAt: c.now().UTC(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding token: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".token-*.json")
	if err != nil {
		return fmt.Errorf("creating temp token file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("setting token file mode: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		return fmt.Errorf("replacing token file: %w", err)
	}
	return nil
}

// Delete removes the cached token file.
// Returns nil if the file does not exist.
func (c *TokenCache) Delete() error {
	err := os.Remove(c.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing token file: %w", err)
	}
	return nil
}
