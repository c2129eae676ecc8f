package resolver

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/animarr/animarr/internal/catalog"
	"github.com/animarr/animarr/internal/store"
)

type fakeCatalog struct {
	searchResults   map[string][]catalog.Media
	byID            map[int]*catalog.Media
	airingSchedules map[int][]catalog.AiringNode
}

func (f *fakeCatalog) Search(ctx context.Context, term string, perPage int) ([]catalog.Media, error) {
	return f.searchResults[term], nil
}

func (f *fakeCatalog) GetByID(ctx context.Context, id int) (*catalog.Media, error) {
	if m, ok := f.byID[id]; ok {
		return m, nil
	}
	return nil, catalog.ErrNotFound
}

func (f *fakeCatalog) AiringSchedule(ctx context.Context, mediaID int, maxPages int) ([]catalog.AiringNode, error) {
	return f.airingSchedules[mediaID], nil
}

type fakeStore struct {
	shows       []*store.Show
	aliases     map[int64][]string
	metaUpdates []struct {
		showID    int64
		catalogID *int64
		status    string
		totalEps  *int
	}
	episodeStates map[string]string
	deletedAbove  map[int64]int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		aliases:       make(map[int64][]string),
		episodeStates: make(map[string]string),
		deletedAbove:  make(map[int64]int),
	}
}

func (f *fakeStore) ListShows(ctx context.Context) ([]*store.Show, error) { return f.shows, nil }

func (f *fakeStore) ListAliases(ctx context.Context, showID int64) ([]string, error) {
	return f.aliases[showID], nil
}

func (f *fakeStore) UpdateShowMeta(ctx context.Context, showID int64, catalogID *int64, status string, totalEps *int) error {
	f.metaUpdates = append(f.metaUpdates, struct {
		showID    int64
		catalogID *int64
		status    string
		totalEps  *int
	}{showID, catalogID, status, totalEps})
	return nil
}

func (f *fakeStore) UpsertEpisodeState(ctx context.Context, showID int64, epNo int, state string, airDatetime *time.Time) error {
	key := keyFor(showID, epNo)
	if f.episodeStates[key] == store.EpisodeDownloaded {
		return nil
	}
	f.episodeStates[key] = state
	return nil
}

func (f *fakeStore) DeleteEpisodesAbove(ctx context.Context, showID int64, maxEp int) (int64, error) {
	f.deletedAbove[showID] = maxEp
	return 0, nil
}

func keyFor(showID int64, epNo int) string {
	return fmt.Sprintf("%d_%d", showID, epNo)
}

func TestBuildSearchTerms_CapsAndDedupes(t *testing.T) {
	aliases := []string{"Show Title", "Show Title 2nd Season", "Show Title"}
	terms := buildSearchTerms(aliases)
	if len(terms) == 0 {
		t.Fatal("expected at least one term")
	}
	seen := make(map[string]bool)
	for _, term := range terms {
		if seen[term] {
			t.Fatalf("duplicate term %q", term)
		}
		seen[term] = true
	}
}

func TestStripSeasonTokens(t *testing.T) {
	cases := map[string]string{
		"Show Title 2nd Season": "Show Title",
		"Show Title S2":         "Show Title",
		"Show Title Season 3":   "Show Title",
		"Show Title 第2季":        "Show Title",
		"Show Title":            "Show Title",
	}
	for in, want := range cases {
		if got := stripSeasonTokens(in); got != want {
			t.Errorf("stripSeasonTokens(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestScoreCandidate_SeasonMatchBonus(t *testing.T) {
	media := catalog.Media{
		Title:  catalog.MediaTitle{Romaji: "Show Title"},
		Format: "TV",
		Status: "RELEASING",
	}
	matchScore := scoreCandidate(media, []string{"Show Title"}, 1, true)
	mismatchScore := scoreCandidate(media, []string{"Show Title"}, 3, true)
	if matchScore <= mismatchScore {
		t.Fatalf("expected season match to score higher: match=%d mismatch=%d", matchScore, mismatchScore)
	}
}

func TestResolveShow_StickyCatalogIDSurvivesTransientFailure(t *testing.T) {
	id := int64(42)
	show := &store.Show{ID: 1, TitleCanonical: "Show Title", CatalogID: &id}
	st := newFakeStore()
	st.shows = []*store.Show{show}

	cat := &fakeCatalog{byID: map[int]*catalog.Media{}} // GetByID will miss -> ErrNotFound

	r := New(cat, st, zerolog.Nop())
	results := r.ResolveAll(context.Background())
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if !results[0].TransientFetchFailure {
		t.Fatal("expected TransientFetchFailure to be true when sticky fetch fails")
	}
}

func TestResolveShow_MatchesAndSyncsEpisodes(t *testing.T) {
	show := &store.Show{ID: 1, TitleCanonical: "Show Title"}
	st := newFakeStore()
	st.shows = []*store.Show{show}
	st.aliases[1] = []string{"Show Title"}

	episodes := 3
	media := catalog.Media{ID: 7, Title: catalog.MediaTitle{Romaji: "Show Title"}, Format: "TV", Status: "FINISHED", Episodes: &episodes}
	cat := &fakeCatalog{
		searchResults: map[string][]catalog.Media{"Show Title": {media}},
		byID:          map[int]*catalog.Media{7: &media},
	}

	r := New(cat, st, zerolog.Nop())
	results := r.ResolveAll(context.Background())
	if len(results) != 1 || results[0].Err != nil {
		t.Fatalf("unexpected result: %+v", results)
	}
	if len(st.metaUpdates) == 0 {
		t.Fatal("expected at least one meta update")
	}
}
