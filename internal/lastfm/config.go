// Package lastfm provides Last.fm API integration for fetching artist tags.
package lastfm

import (
	"errors"
	"os"
	"strings"
)

// ErrMissingAPIKey is returned when no Last.fm API key is configured.
var ErrMissingAPIKey = errors.New("missing LASTFM_API_KEY")

// Config holds Last.fm API configuration.
type Config struct {
	APIKey string
}

// NewConfig validates apiKey and returns a Config.
func NewConfig(apiKey string) (*Config, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	return &Config{APIKey: apiKey}, nil
}

// LoadConfig reads Last.fm configuration from the LASTFM_API_KEY
// environment variable.
func LoadConfig() (*Config, error) {
	return NewConfig(os.Getenv("LASTFM_API_KEY"))
}
