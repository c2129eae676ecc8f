package poster

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/animarr/animarr/internal/catalog"
)

type fakeCatalog struct {
	media *catalog.Media
	err   error
}

func (f *fakeCatalog) GetByID(ctx context.Context, id int) (*catalog.Media, error) {
	return f.media, f.err
}

type fakeOrganizer struct {
	root string
}

func (f *fakeOrganizer) SeriesDir(showTitle string) string {
	return filepath.Join(f.root, showTitle)
}

func TestRun_FetchesAndCachesCover(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("fake-jpeg-bytes"))
	}))
	defer server.Close()

	catalogID := int64(42)
	cat := &fakeCatalog{media: &catalog.Media{CoverImage: &catalog.CoverImage{ExtraLarge: server.URL + "/cover.jpg"}}}
	org := &fakeOrganizer{root: t.TempDir()}
	hook := New(cat, org, zerolog.Nop())

	result := hook.Run(context.Background(), []Show{{TitleCanonical: "My Show", CatalogID: &catalogID}})
	if result.Fetched != 1 {
		t.Fatalf("Fetched = %d, want 1", result.Fetched)
	}

	dest := filepath.Join(org.SeriesDir("My Show"), "poster.jpg")
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read poster: %v", err)
	}
	if string(data) != "fake-jpeg-bytes" {
		t.Fatalf("unexpected poster contents: %q", data)
	}

	result2 := hook.Run(context.Background(), []Show{{TitleCanonical: "My Show", CatalogID: &catalogID}})
	if result2.Skipped != 1 {
		t.Fatalf("second run Skipped = %d, want 1 (already cached)", result2.Skipped)
	}
}

func TestRun_SkipsShowsWithoutCatalogID(t *testing.T) {
	org := &fakeOrganizer{root: t.TempDir()}
	hook := New(&fakeCatalog{}, org, zerolog.Nop())

	result := hook.Run(context.Background(), []Show{{TitleCanonical: "Untracked Show"}})
	if result.Skipped != 1 || result.Fetched != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
}
