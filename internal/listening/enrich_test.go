package listening

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// mockSource implements GenreSource for testing.
type mockSource struct {
	genres    map[string][]string
	errors    map[string]error
	delay     time.Duration
	callCount atomic.Int32

	mu     sync.Mutex
	called []string
}

func newMockSource() *mockSource {
	return &mockSource{
		genres: make(map[string][]string),
		errors: make(map[string]error),
	}
}

func (m *mockSource) ArtistGenres(ctx context.Context, artist string) ([]string, error) {
	m.callCount.Add(1)
	m.mu.Lock()
	m.called = append(m.called, artist)
	m.mu.Unlock()

	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err, ok := m.errors[artist]; ok {
		return nil, err
	}
	return m.genres[artist], nil
}

func TestEnrich_FillsOnlyMissingGenres(t *testing.T) {
	source := newMockSource()
	source.genres["Unknown Band"] = []string{"post-rock", "ambient"}
	source.genres["Known Band"] = []string{"should not be used"}

	artists := []Artist{
		{ID: "1", Name: "Known Band", Genres: []string{"rock"}},
		{ID: "2", Name: "Unknown Band"},
	}

	got, err := NewEnricher(source).Enrich(context.Background(), artists)
	if err != nil {
		t.Fatalf("Enrich() error = %v", err)
	}

	if got[0].Genres[0] != "rock" {
		t.Errorf("existing genres overwritten: %v", got[0].Genres)
	}
	if len(got[1].Genres) != 2 || got[1].Genres[0] != "post-rock" {
		t.Errorf("enriched genres = %v, want [post-rock ambient]", got[1].Genres)
	}
	if source.callCount.Load() != 1 {
		t.Errorf("source called %d times, want 1", source.callCount.Load())
	}

	// Input must not be mutated.
	if artists[1].Genres != nil {
		t.Error("Enrich() mutated its input")
	}
}

func TestEnrich_ErrorsAreSkipped(t *testing.T) {
	source := newMockSource()
	source.errors["Broken"] = errors.New("boom")
	source.genres["Fine"] = []string{"jazz"}

	got, err := NewEnricher(source).Enrich(context.Background(), []Artist{
		{ID: "1", Name: "Broken"},
		{ID: "2", Name: "Fine"},
	})
	if err != nil {
		t.Fatalf("Enrich() error = %v", err)
	}

	if len(got[0].Genres) != 0 {
		t.Errorf("failed artist got genres %v", got[0].Genres)
	}
	if len(got[1].Genres) != 1 {
		t.Errorf("Fine genres = %v, want [jazz]", got[1].Genres)
	}
}

func TestEnrich_CapsGenres(t *testing.T) {
	source := newMockSource()
	source.genres["Many"] = []string{"a", "b", "c", "d", "e", "f", "g"}

	got, _ := NewEnricher(source).Enrich(context.Background(), []Artist{{Name: "Many"}})
	if len(got[0].Genres) != maxEnrichedGenres {
		t.Errorf("got %d genres, want %d", len(got[0].Genres), maxEnrichedGenres)
	}
}

func TestEnrich_PreservesOrder(t *testing.T) {
	source := newMockSource()
	var artists []Artist
	for _, name := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		source.genres[name] = []string{"genre-" + name}
		artists = append(artists, Artist{Name: name})
	}

	got, err := NewEnricher(source, WithConcurrency(3)).Enrich(context.Background(), artists)
	if err != nil {
		t.Fatal(err)
	}

	for i, a := range got {
		if a.Name != artists[i].Name || a.Genres[0] != "genre-"+a.Name {
			t.Errorf("result[%d] = %+v", i, a)
		}
	}
}

func TestEnrich_ContextCancelled(t *testing.T) {
	source := newMockSource()
	source.delay = time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	artists := []Artist{{Name: "a"}, {Name: "b"}, {Name: "c"}}
	got, err := NewEnricher(source, WithConcurrency(1)).Enrich(ctx, artists)

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Enrich() error = %v, want DeadlineExceeded", err)
	}
	if len(got) != 3 {
		t.Errorf("got %d artists, want 3", len(got))
	}
	if n := source.callCount.Load(); n != 1 {
		t.Errorf("source called %d times after cancel, want 1", n)
	}
}

func TestWithConcurrency_IgnoresNonPositive(t *testing.T) {
	e := NewEnricher(newMockSource(), WithConcurrency(0), WithConcurrency(-2))
	if e.concurrency != DefaultConcurrency {
		t.Errorf("concurrency = %d, want %d", e.concurrency, DefaultConcurrency)
	}
}
