package spotify

import (
	"net/url"
	"strings"

	"github.com/zmb3/spotify/v2"

	"github.com/justestif/go-music-personality/internal/listening"
)

// imageHostSuffixes are the CDN hosts album and artist art is served from.
var imageHostSuffixes = []string{".scdn.co", ".spotifycdn.com"}

// SafeImageURL returns raw if it is an https URL on a Spotify CDN host, and
// an empty string otherwise.
func SafeImageURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "https" || u.User != nil {
		return ""
	}

	host := strings.ToLower(u.Hostname())
	for _, suffix := range imageHostSuffixes {
		if strings.HasSuffix(host, suffix) {
			return raw
		}
	}
	return ""
}

// firstImage returns the first safe image URL, or "".
func firstImage(images []spotify.Image) string {
	if len(images) == 0 {
		return ""
	}
	return SafeImageURL(images[0].URL)
}

// convertArtists converts Spotify artists, preserving order. The result is
// never nil.
func convertArtists(artists []spotify.FullArtist) []listening.Artist {
	out := make([]listening.Artist, 0, len(artists))
	for _, a := range artists {
		out = append(out, listening.Artist{
			ID:       a.ID.String(),
			Name:     a.Name,
			Genres:   a.Genres,
			ImageURL: firstImage(a.Images),
		})
	}
	return out
}

// convertTracks converts Spotify tracks, preserving order. The artist is the
// first credited artist. The result is never nil.
func convertTracks(tracks []spotify.FullTrack) []listening.Track {
	out := make([]listening.Track, 0, len(tracks))
	for _, t := range tracks {
		var artist string
		if len(t.Artists) > 0 {
			artist = t.Artists[0].Name
		}

		out = append(out, listening.Track{
			ID:         t.ID.String(),
			Name:       t.Name,
			Artist:     artist,
			AlbumImage: firstImage(t.Album.Images),
		})
	}
	return out
}
