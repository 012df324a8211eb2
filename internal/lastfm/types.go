package lastfm

import (
	"fmt"
	"strings"
)

// Tag is a user-applied Last.fm label with its relative weight (0-100).
type Tag struct {
	Name  string `json:"name"`
	Count int    `json:"count,omitempty"`
	URL   string `json:"url,omitempty"`
}

// genre returns the tag normalized for clustering, or "" when the tag says
// something about listeners rather than the music.
func (t Tag) genre() string {
	name := strings.ToLower(strings.TrimSpace(t.Name))
	if nonGenreTags[name] {
		return ""
	}
	return name
}

var nonGenreTags = map[string]bool{
	"seen live":            true,
	"favorites":            true,
	"favourites":           true,
	"favorite":             true,
	"love":                 true,
	"awesome":              true,
	"spotify":              true,
	"under 2000 listeners": true,
}

// topTagsPayload is the body of artist.getTopTags.
type topTagsPayload struct {
	TopTags struct {
		Tag []Tag `json:"tag"`
	} `json:"toptags"`
}

// APIError is an error reported in a Last.fm response body. Rate limiting
// and bad keys unwrap to ErrRateLimited and ErrInvalidAPIKey.
type APIError struct {
	Code    int    `json:"error"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("last.fm error %d: %s", e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	switch e.Code {
	case errCodeRateLimited:
		return ErrRateLimited
	case errCodeInvalidAPIKey:
		return ErrInvalidAPIKey
	default:
		return nil
	}
}
