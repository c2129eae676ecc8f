package jellyfin

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/rs/zerolog"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	u, err := url.Parse(server.URL)
	if err != nil {
		t.Fatal(err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		t.Fatal(err)
	}
	c := NewClient(Config{Host: u.Hostname(), Port: port, APIKey: "test-key"}, zerolog.Nop())
	return c, server
}

func TestFindSeriesByTitle_ExactMatch(t *testing.T) {
	c, server := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Items":[{"Id":"abc","Name":"Other Show"},{"Id":"xyz","Name":"My Show"}]}`))
	})
	defer server.Close()

	item, err := c.FindSeriesByTitle(context.Background(), "My Show")
	if err != nil {
		t.Fatalf("FindSeriesByTitle() error = %v", err)
	}
	if item == nil || item.ID != "xyz" {
		t.Fatalf("FindSeriesByTitle() = %+v, want id xyz", item)
	}
}

func TestFindSeriesByTitle_NormalizedFallback(t *testing.T) {
	c, server := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Items":[{"Id":"abc","Name":"My Show Season 2"}]}`))
	})
	defer server.Close()

	item, err := c.FindSeriesByTitle(context.Background(), "My Show S2")
	if err != nil {
		t.Fatalf("FindSeriesByTitle() error = %v", err)
	}
	if item == nil || item.ID != "abc" {
		t.Fatalf("FindSeriesByTitle() = %+v, want normalized match", item)
	}
}

func TestFindSeriesByTitle_NoMatch(t *testing.T) {
	c, server := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Items":[{"Id":"abc","Name":"Totally Different"}]}`))
	})
	defer server.Close()

	item, err := c.FindSeriesByTitle(context.Background(), "My Show")
	if err != nil {
		t.Fatalf("FindSeriesByTitle() error = %v", err)
	}
	if item != nil {
		t.Fatalf("FindSeriesByTitle() = %+v, want nil", item)
	}
}

func TestGetSeasonNullIndexNumbers(t *testing.T) {
	c, server := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/Items":
			w.Write([]byte(`{"Items":[{"Id":"series-1","Name":"My Show"}]}`))
		case r.URL.Path == "/Shows/series-1/Episodes":
			w.Write([]byte(`{"Items":[
				{"Id":"ep1","SeasonNumber":2,"IndexNumber":1},
				{"Id":"ep2","SeasonNumber":2,"IndexNumber":null},
				{"Id":"ep3","SeasonNumber":1,"IndexNumber":null}
			]}`))
		default:
			http.NotFound(w, r)
		}
	})
	defer server.Close()

	result, err := c.GetSeasonNullIndexNumbers(context.Background(), "My Show", 2)
	if err != nil {
		t.Fatalf("GetSeasonNullIndexNumbers() error = %v", err)
	}
	if !result.SeriesFound || result.NullIndexCount != 1 || result.NullIndexItemIDs[0] != "ep2" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestGetSeasonNullIndexNumbers_SeriesNotFound(t *testing.T) {
	c, server := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Items":[]}`))
	})
	defer server.Close()

	result, err := c.GetSeasonNullIndexNumbers(context.Background(), "Unknown Show", 1)
	if err != nil {
		t.Fatalf("GetSeasonNullIndexNumbers() error = %v", err)
	}
	if result.SeriesFound {
		t.Fatal("expected series not found")
	}
}

func TestNormalizeSeriesTitle(t *testing.T) {
	cases := map[string]string{
		"My Show Season 2":   "my show",
		"My Show S2":         "my show",
		"My Show 3rd Season": "my show",
		"My Show 第2季":        "my show",
		"My Show":            "my show",
	}
	for in, want := range cases {
		if got := normalizeSeriesTitle(in); got != want {
			t.Errorf("normalizeSeriesTitle(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestInferSeasonNumber(t *testing.T) {
	cases := map[string]int{
		"My Show Season 3": 3,
		"My Show S2":       2,
		"My Show 第4季":      4,
		"My Show":          1,
	}
	for in, want := range cases {
		if got := InferSeasonNumber(in); got != want {
			t.Errorf("InferSeasonNumber(%q) = %d, want %d", in, got, want)
		}
	}
}
