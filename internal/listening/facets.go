package listening

import (
	"slices"
	"sort"
	"strings"

	"github.com/muesli/clusters"
	"github.com/muesli/kmeans"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// FacetConfig holds genre clustering parameters.
type FacetConfig struct {
	NumClusters    int // Number of clusters to create (default: 3)
	MinClusterSize int // Minimum artists per facet (smaller clusters become outliers)
	MaxGenres      int // Maximum genres to use in vectors (default: 50)
}

// DefaultFacetConfig returns the recommended default configuration.
func DefaultFacetConfig() FacetConfig {
	return FacetConfig{
		NumClusters:    3,
		MinClusterSize: 2,
		MaxGenres:      50,
	}
}

// artistObservation wraps an Artist to implement clusters.Observation.
type artistObservation struct {
	artist *Artist
	coords clusters.Coordinates
}

func (o artistObservation) Coordinates() clusters.Coordinates {
	return o.coords
}

func (o artistObservation) Distance(point clusters.Coordinates) float64 {
	return o.coords.Distance(point)
}

// DetectFacets groups artists by genre similarity using k-means clustering.
// Returns facets (largest first) and the artists that fit none of them.
// Artists without genres are always outliers.
func DetectFacets(artists []Artist, cfg FacetConfig) ([]Facet, []Artist) {
	if len(artists) == 0 {
		return nil, nil
	}

	defaults := DefaultFacetConfig()
	if cfg.NumClusters <= 0 {
		cfg.NumClusters = defaults.NumClusters
	}
	if cfg.MaxGenres <= 0 {
		cfg.MaxGenres = defaults.MaxGenres
	}

	var valid []*Artist
	var noGenres []Artist
	for i := range artists {
		a := &artists[i]
		if len(a.Genres) > 0 {
			valid = append(valid, a)
		} else {
			noGenres = append(noGenres, *a)
		}
	}

	allOutliers := func() []Artist {
		out := make([]Artist, 0, len(artists))
		for _, a := range valid {
			out = append(out, *a)
		}
		return append(out, noGenres...)
	}

	if len(valid) < cfg.NumClusters {
		return nil, allOutliers()
	}

	vocabulary := buildGenreVocabulary(valid, cfg.MaxGenres)

	var obs clusters.Observations
	for _, a := range valid {
		obs = append(obs, artistObservation{artist: a, coords: buildGenreVector(a, vocabulary)})
	}

	result, err := kmeans.New().Partition(obs, cfg.NumClusters)
	if err != nil {
		return nil, allOutliers()
	}

	var facets []Facet
	var outliers []Artist

	for _, cluster := range result {
		var members []Artist
		var coords []clusters.Coordinates
		for _, o := range cluster.Observations {
			if ao, ok := o.(artistObservation); ok {
				members = append(members, *ao.artist)
				coords = append(coords, ao.coords)
			}
		}
		if len(members) == 0 {
			continue
		}

		if len(members) < cfg.MinClusterSize {
			outliers = append(outliers, members...)
			continue
		}

		// kmeans skips recentering when the first assignment is already
		// stable, so cluster.Center can still be the random seed.
		genres := extractTopGenres(meanCoordinates(coords, len(vocabulary)), vocabulary, 3)
		facets = append(facets, Facet{
			Name:    facetName(genres),
			Genres:  genres,
			Artists: members,
		})
	}

	outliers = append(outliers, noGenres...)

	slices.SortStableFunc(facets, func(a, b Facet) int {
		if len(a.Artists) != len(b.Artists) {
			return len(b.Artists) - len(a.Artists)
		}
		return strings.Compare(a.Name, b.Name)
	})

	return facets, outliers
}

// buildGenreVocabulary returns the maxGenres most common genres, ties broken
// alphabetically so vectors are stable across runs.
func buildGenreVocabulary(artists []*Artist, maxGenres int) []string {
	counts := make(map[string]int)
	for _, a := range artists {
		for _, g := range a.Genres {
			counts[strings.ToLower(g)]++
		}
	}

	vocabulary := make([]string, 0, len(counts))
	for g := range counts {
		vocabulary = append(vocabulary, g)
	}
	sort.Slice(vocabulary, func(i, j int) bool {
		if counts[vocabulary[i]] != counts[vocabulary[j]] {
			return counts[vocabulary[i]] > counts[vocabulary[j]]
		}
		return vocabulary[i] < vocabulary[j]
	})

	return vocabulary[:min(maxGenres, len(vocabulary))]
}

// buildGenreVector creates a one-hot vector of an artist's genres.
func buildGenreVector(artist *Artist, vocabulary []string) clusters.Coordinates {
	index := make(map[string]int, len(vocabulary))
	for i, g := range vocabulary {
		index[g] = i
	}

	vector := make(clusters.Coordinates, len(vocabulary))
	for _, g := range artist.Genres {
		if idx, ok := index[strings.ToLower(g)]; ok {
			vector[idx] = 1
		}
	}
	return vector
}

// meanCoordinates returns the component-wise mean of points.
func meanCoordinates(points []clusters.Coordinates, dims int) clusters.Coordinates {
	mean := make(clusters.Coordinates, dims)
	if len(points) == 0 {
		return mean
	}
	for _, p := range points {
		for i := 0; i < dims && i < len(p); i++ {
			mean[i] += p[i]
		}
	}
	for i := range mean {
		mean[i] /= float64(len(points))
	}
	return mean
}

// extractTopGenres returns the n heaviest genres of a centroid.
func extractTopGenres(centroid clusters.Coordinates, vocabulary []string, n int) []string {
	type genreWeight struct {
		name   string
		weight float64
	}

	weights := make([]genreWeight, 0, len(vocabulary))
	for i, name := range vocabulary {
		if i < len(centroid) && centroid[i] > 0 {
			weights = append(weights, genreWeight{name: name, weight: centroid[i]})
		}
	}

	sort.SliceStable(weights, func(i, j int) bool {
		return weights[i].weight > weights[j].weight
	})

	result := make([]string, 0, n)
	for i := 0; i < len(weights) && len(result) < n; i++ {
		result = append(result, weights[i].name)
	}
	return result
}

// facetName joins up to two genres into a display name.
func facetName(genres []string) string {
	if len(genres) == 0 {
		return "Eclectic"
	}
	// Casers hold state and are not safe to share between goroutines.
	return cases.Title(language.English).String(strings.Join(genres[:min(2, len(genres))], " & "))
}
