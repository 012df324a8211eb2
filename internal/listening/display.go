package listening

import (
	"fmt"
	"strings"
)

// FormatSnapshot returns a plain-text summary of a snapshot for terminals.
func FormatSnapshot(snap *Snapshot) string {
	var sb strings.Builder

	if snap.Empty() {
		sb.WriteString("No listening history found\n")
		return sb.String()
	}

	sb.WriteString("Current Top Artists\n")
	for i, a := range snap.Artists {
		sb.WriteString(fmt.Sprintf("  %2d. %s\n", i+1, a.Name))
	}

	sb.WriteString("\nCurrent Top Tracks\n")
	for i, t := range snap.Tracks {
		sb.WriteString(fmt.Sprintf("  %2d. %s — %s\n", i+1, t.Name, t.Artist))
	}

	if len(snap.Facets) > 0 {
		sb.WriteString("\nTaste Facets\n")
		for _, f := range snap.Facets {
			sb.WriteString(fmt.Sprintf("  • %s (%s)\n", f.Name, strings.Join(ArtistNames(f.Artists), ", ")))
		}
	}

	return sb.String()
}
