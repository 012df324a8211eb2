package spotify

import (
	"errors"
	"fmt"
	"testing"

	"github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2"
)

func TestSafeImageURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://i.scdn.co/image/ab67616d0000b273", "https://i.scdn.co/image/ab67616d0000b273"},
		{"https://mosaic.scdn.co/640/abc", "https://mosaic.scdn.co/640/abc"},
		{"https://image-cdn-ak.spotifycdn.com/image/abc", "https://image-cdn-ak.spotifycdn.com/image/abc"},
		{"http://i.scdn.co/image/abc", ""},
		{"https://evil.example.com/i.scdn.co.png", ""},
		{"https://scdn.co.evil.com/image", ""},
		{"https://user@i.scdn.co/image", ""},
		{"javascript:alert(1)", ""},
		{"", ""},
		{"::not a url", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := SafeImageURL(tt.in); got != tt.want {
				t.Errorf("SafeImageURL(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestConvertTracks(t *testing.T) {
	tests := []struct {
		name       string
		track      spotify.FullTrack
		wantArtist string
		wantImage  string
	}{
		{
			name: "single artist with cover",
			track: spotify.FullTrack{
				SimpleTrack: spotify.SimpleTrack{
					ID:      "track123",
					Name:    "Test Song",
					Artists: []spotify.SimpleArtist{{Name: "Artist One"}},
				},
				Album: spotify.SimpleAlbum{Images: []spotify.Image{{URL: "https://i.scdn.co/image/1"}}},
			},
			wantArtist: "Artist One",
			wantImage:  "https://i.scdn.co/image/1",
		},
		{
			name: "multiple artists uses the first",
			track: spotify.FullTrack{
				SimpleTrack: spotify.SimpleTrack{
					ID:   "track456",
					Name: "Collab Track",
					Artists: []spotify.SimpleArtist{
						{Name: "Artist A"},
						{Name: "Artist B"},
					},
				},
			},
			wantArtist: "Artist A",
			wantImage:  "",
		},
		{
			name: "no artists",
			track: spotify.FullTrack{
				SimpleTrack: spotify.SimpleTrack{ID: "track000", Name: "Unknown Track"},
			},
			wantArtist: "",
		},
		{
			name: "off-cdn cover dropped",
			track: spotify.FullTrack{
				SimpleTrack: spotify.SimpleTrack{ID: "t", Name: "n", Artists: []spotify.SimpleArtist{{Name: "a"}}},
				Album:       spotify.SimpleAlbum{Images: []spotify.Image{{URL: "https://example.com/cover.jpg"}}},
			},
			wantArtist: "a",
			wantImage:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := convertTracks([]spotify.FullTrack{tt.track})
			if len(got) != 1 {
				t.Fatalf("got %d tracks, want 1", len(got))
			}
			if got[0].ID != tt.track.ID.String() || got[0].Name != tt.track.Name {
				t.Errorf("ID/Name = %q/%q", got[0].ID, got[0].Name)
			}
			if got[0].Artist != tt.wantArtist {
				t.Errorf("Artist = %q, want %q", got[0].Artist, tt.wantArtist)
			}
			if got[0].AlbumImage != tt.wantImage {
				t.Errorf("AlbumImage = %q, want %q", got[0].AlbumImage, tt.wantImage)
			}
		})
	}
}

func TestConvert_EmptyIsNonNil(t *testing.T) {
	if got := convertArtists(nil); got == nil || len(got) != 0 {
		t.Errorf("convertArtists(nil) = %v, want empty slice", got)
	}
	if got := convertTracks(nil); got == nil || len(got) != 0 {
		t.Errorf("convertTracks(nil) = %v, want empty slice", got)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"api 429", spotify.Error{Status: 429, Message: "slow down"}, ErrRateLimited},
		{"api 401", spotify.Error{Status: 401, Message: "expired"}, ErrUnauthorized},
		{"api 500", spotify.Error{Status: 500, Message: "oops"}, ErrUpstream},
		{"wrapped api 429", fmt.Errorf("get: %w", spotify.Error{Status: 429}), ErrRateLimited},
		{"empty body 429", errors.New("spotify: HTTP 429: Too Many Requests (body empty)"), ErrRateLimited},
		{"refresh failed", &oauth2.RetrieveError{ErrorCode: "invalid_grant"}, ErrUnauthorized},
		{"network", errors.New("dial tcp: connection refused"), ErrUpstream},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.err)
			if !errors.Is(got, tt.want) {
				t.Errorf("classify() = %v, want %v", got, tt.want)
			}
			if !errors.Is(got, tt.err) {
				t.Error("classify() dropped the original error")
			}
		})
	}

	if classify(nil) != nil {
		t.Error("classify(nil) != nil")
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{ErrRateLimited, "Please wait a minute before trying again"},
		{ErrMissingToken, "Missing Spotify access token. Please log in again"},
		{ErrUnauthorized, "Missing Spotify access token. Please log in again"},
		{ErrUpstream, "Failed to fetch your Spotify Data"},
		{errors.New("anything"), "Failed to fetch your Spotify Data"},
	}

	for _, tt := range tests {
		if got := UserMessage(tt.err); got != tt.want {
			t.Errorf("UserMessage(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
