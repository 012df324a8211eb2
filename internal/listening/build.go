package listening

import (
	"context"
	"errors"
)

// Build enriches the snapshot's artists when an Enricher is given and then
// detects facets. Enrichment is best effort: if it is cut short the facets
// are computed from whatever was gathered.
func Build(ctx context.Context, snap *Snapshot, enricher *Enricher, cfg FacetConfig) (*Snapshot, error) {
	if snap == nil {
		return nil, errors.New("nil snapshot")
	}

	out := *snap
	if enricher != nil && len(out.Artists) > 0 {
		artists, err := enricher.Enrich(ctx, out.Artists)
		if err != nil && ctx.Err() == nil {
			return nil, err
		}
		out.Artists = artists
	}

	facets, _ := DetectFacets(out.Artists, cfg)
	if facets == nil {
		facets = []Facet{}
	}
	out.Facets = facets

	return &out, nil
}
