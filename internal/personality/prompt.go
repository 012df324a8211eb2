package personality

import (
	"strings"

	"github.com/justestif/go-music-personality/internal/listening"
)

const instructions = "You are a playful Gen Z/Alpha personality explainer. " +
	"Use at least 5 full sentences. No formatting. " +
	"Don't recommend new artists, only interpret what's given."

// BuildPrompt renders the generation prompt for snap. Artists are comma
// separated, tracks are listed as "name - artist", and taste facets follow
// when there are any.
func BuildPrompt(snap *listening.Snapshot) string {
	var b strings.Builder
	b.WriteString(instructions)

	b.WriteString(" Top artists: ")
	b.WriteString(strings.Join(listening.ArtistNames(snap.Artists), ", "))

	tracks := make([]string, len(snap.Tracks))
	for i, t := range snap.Tracks {
		tracks[i] = t.Name + " - " + t.Artist
	}
	b.WriteString(" Top tracks: ")
	b.WriteString(strings.Join(tracks, ", "))

	if len(snap.Facets) > 0 {
		facets := make([]string, len(snap.Facets))
		for i, f := range snap.Facets {
			facets[i] = f.Name + " (" + strings.Join(listening.ArtistNames(f.Artists), ", ") + ")"
		}
		b.WriteString(" Taste facets: ")
		b.WriteString(strings.Join(facets, "; "))
	}

	return b.String()
}
