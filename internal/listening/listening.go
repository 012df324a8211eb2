// Package listening holds a user's top artists and tracks and derives taste
// facets from them.
package listening

import "time"

// Artist is one of the user's top artists.
type Artist struct {
	ID       string
	Name     string
	Genres   []string
	ImageURL string
}

// Track is one of the user's top tracks. Artist is the primary (first
// credited) artist. AlbumImage is empty when the album has no cover.
type Track struct {
	ID         string
	Name       string
	Artist     string
	AlbumImage string
}

// Facet is a group of top artists sharing genres.
type Facet struct {
	Name    string   // "Indie Rock & Dream Pop"
	Genres  []string // Top 3 dominant genres
	Artists []Artist
}

// Snapshot is one fetch of a user's top items, in the order Spotify
// returned them.
type Snapshot struct {
	Artists   []Artist
	Tracks    []Track
	Facets    []Facet
	TimeRange string
	FetchedAt time.Time
}

// Empty reports whether there is nothing to analyze.
func (s *Snapshot) Empty() bool {
	return s == nil || (len(s.Artists) == 0 && len(s.Tracks) == 0)
}

// ArtistNames returns the names of artists in order.
func ArtistNames(artists []Artist) []string {
	names := make([]string, len(artists))
	for i, a := range artists {
		names[i] = a.Name
	}
	return names
}

// CoverImage returns the first non-empty album image among the tracks.
func (s *Snapshot) CoverImage() string {
	for _, t := range s.Tracks {
		if t.AlbumImage != "" {
			return t.AlbumImage
		}
	}
	return ""
}
