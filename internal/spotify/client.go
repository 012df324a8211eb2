// Package spotify fetches a user's profile and top items from the Spotify
// Web API.
package spotify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2"

	"github.com/justestif/go-music-personality/internal/listening"
)

// DefaultLimit is the number of top artists and tracks requested.
const DefaultLimit = 10

// fallbackDisplayName is shown when a profile has no display name.
const fallbackDisplayName = "Spotify user"

// HTTPClientSource builds an authorized HTTP client for a token. The client
// is expected to refresh the token when it expires.
type HTTPClientSource interface {
	HTTPClient(ctx context.Context, token *oauth2.Token) *http.Client
}

// Profile is the signed-in user's identity.
type Profile struct {
	ID          string
	DisplayName string
}

// Options configures a Library.
type Options struct {
	Limit     int    // Top items per list (default 10)
	TimeRange string // short_term, medium_term or long_term (default medium_term)
	BaseURL   string // Web API base URL with trailing slash; empty for Spotify's
}

// Library reads a user's listening data.
type Library struct {
	clients   HTTPClientSource
	limit     int
	timeRange spotify.Range
	baseURL   string
	now       func() time.Time
}

// NewLibrary creates a Library.
func NewLibrary(clients HTTPClientSource, opts Options) *Library {
	l := &Library{
		clients:   clients,
		limit:     opts.Limit,
		timeRange: spotify.Range(opts.TimeRange),
		baseURL:   opts.BaseURL,
		now:       time.Now,
	}
	if l.limit <= 0 {
		l.limit = DefaultLimit
	}
	if l.timeRange == "" {
		l.timeRange = spotify.MediumTermRange
	}
	return l
}

// client builds an API client for token. Retries are disabled so that rate
// limiting is reported to the user immediately.
func (l *Library) client(ctx context.Context, token *oauth2.Token) *spotify.Client {
	opts := []spotify.ClientOption{spotify.WithRetry(false)}
	if l.baseURL != "" {
		opts = append(opts, spotify.WithBaseURL(l.baseURL))
	}
	return spotify.New(l.clients.HTTPClient(ctx, token), opts...)
}

// Profile returns the current user's ID and display name.
func (l *Library) Profile(ctx context.Context, token *oauth2.Token) (*Profile, error) {
	if !hasAccessToken(token) {
		return nil, ErrMissingToken
	}

	user, err := l.client(ctx, token).CurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting current user: %w", classify(err))
	}

	name := user.DisplayName
	if name == "" {
		name = fallbackDisplayName
	}
	return &Profile{ID: user.ID, DisplayName: name}, nil
}

// Snapshot fetches the user's top artists and then top tracks. The second
// return value is the refreshed token when the HTTP client had to renew it,
// or nil when the original token is still current.
func (l *Library) Snapshot(ctx context.Context, token *oauth2.Token) (*listening.Snapshot, *oauth2.Token, error) {
	if !hasAccessToken(token) {
		return nil, nil, ErrMissingToken
	}

	client := l.client(ctx, token)
	opts := []spotify.RequestOption{
		spotify.Limit(l.limit),
		spotify.Timerange(l.timeRange),
	}

	artistPage, err := client.CurrentUsersTopArtists(ctx, opts...)
	if err != nil {
		return nil, refreshedToken(client, token), fmt.Errorf("fetching top artists: %w", classify(err))
	}

	trackPage, err := client.CurrentUsersTopTracks(ctx, opts...)
	if err != nil {
		return nil, refreshedToken(client, token), fmt.Errorf("fetching top tracks: %w", classify(err))
	}

	snap := &listening.Snapshot{
		Artists:   convertArtists(artistPage.Artists),
		Tracks:    convertTracks(trackPage.Tracks),
		TimeRange: string(l.timeRange),
		FetchedAt: l.now(),
	}
	return snap, refreshedToken(client, token), nil
}

func hasAccessToken(token *oauth2.Token) bool {
	return token != nil && (token.AccessToken != "" || token.RefreshToken != "")
}

// refreshedToken returns the client's current token if it differs from the
// original, nil otherwise.
func refreshedToken(client *spotify.Client, original *oauth2.Token) *oauth2.Token {
	current, err := client.Token()
	if err != nil || current == nil || current.AccessToken == original.AccessToken {
		return nil
	}
	return current
}
