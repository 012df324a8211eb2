package spotify

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2"
)

// Sentinel errors.
var (
	// ErrMissingToken is returned when no usable access token is available.
	ErrMissingToken = errors.New("missing Spotify access token")

	// ErrRateLimited is returned when Spotify answers 429.
	ErrRateLimited = errors.New("spotify rate limit exceeded")

	// ErrUnauthorized is returned when the token is rejected or cannot be refreshed.
	ErrUnauthorized = errors.New("spotify authorization failed")

	// ErrUpstream wraps every other Spotify failure.
	ErrUpstream = errors.New("spotify request failed")
)

// User-facing messages.
const (
	MessageRateLimited  = "Please wait a minute before trying again"
	MessageMissingToken = "Missing Spotify access token. Please log in again"
	MessageFetchFailed  = "Failed to fetch your Spotify Data"
)

// classify maps a client error onto the package's sentinel errors, keeping
// the original in the chain.
func classify(err error) error {
	if err == nil {
		return nil
	}

	switch apiStatus(err) {
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %w", ErrRateLimited, err)
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}

	// Responses with an empty body are reported as plain strings.
	msg := err.Error()
	switch {
	case strings.Contains(msg, "HTTP 429"):
		return fmt.Errorf("%w: %w", ErrRateLimited, err)
	case strings.Contains(msg, "HTTP 401"):
		return fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}

	return fmt.Errorf("%w: %w", ErrUpstream, err)
}

// apiStatus extracts the HTTP status from a Spotify API error, or 0.
func apiStatus(err error) int {
	var apiErr spotify.Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	var apiErrPtr *spotify.Error
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Status
	}
	return 0
}

// UserMessage returns the message shown to the user for err.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrRateLimited):
		return MessageRateLimited
	case errors.Is(err, ErrMissingToken), errors.Is(err, ErrUnauthorized):
		return MessageMissingToken
	default:
		return MessageFetchFailed
	}
}
