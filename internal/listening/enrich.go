package listening

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// DefaultConcurrency is the default number of concurrent tag lookups.
const DefaultConcurrency = 5

// maxEnrichedGenres caps how many tags are adopted as genres per artist.
const maxEnrichedGenres = 5

// GenreSource looks up genre-like tags for an artist by name.
type GenreSource interface {
	ArtistGenres(ctx context.Context, artist string) ([]string, error)
}

// Enricher fills in missing artist genres from a GenreSource. Spotify
// returns no genres for many smaller artists, which would leave them out
// of every facet.
type Enricher struct {
	source      GenreSource
	concurrency int
	logger      *zap.Logger
}

// EnricherOption configures an Enricher.
type EnricherOption func(*Enricher)

// WithConcurrency sets the number of concurrent lookups.
func WithConcurrency(n int) EnricherOption {
	return func(e *Enricher) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithLogger sets the logger used for per-artist failures.
func WithLogger(logger *zap.Logger) EnricherOption {
	return func(e *Enricher) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEnricher creates an Enricher backed by source.
func NewEnricher(source GenreSource, opts ...EnricherOption) *Enricher {
	e := &Enricher{
		source:      source,
		concurrency: DefaultConcurrency,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enrich returns a copy of artists where each artist without genres has
// them filled from the source. Lookup errors are logged and the artist is
// left unchanged. Order is preserved. The returned error is non-nil only
// when ctx is cancelled.
func (e *Enricher) Enrich(ctx context.Context, artists []Artist) ([]Artist, error) {
	out := make([]Artist, len(artists))
	copy(out, artists)

	workCh := make(chan int, len(out))
	for i, a := range out {
		if len(a.Genres) == 0 {
			workCh <- i
		}
	}
	close(workCh)

	var wg sync.WaitGroup
	for w := 0; w < e.concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range workCh {
				if ctx.Err() != nil {
					continue
				}

				genres, err := e.source.ArtistGenres(ctx, out[i].Name)
				if err != nil {
					e.logger.Warn("genre lookup failed",
						zap.String("artist", out[i].Name),
						zap.Error(err))
					continue
				}
				if len(genres) > maxEnrichedGenres {
					genres = genres[:maxEnrichedGenres]
				}
				out[i].Genres = genres
			}
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return out, err
	}
	return out, nil
}
