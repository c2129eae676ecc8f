package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/animarr/animarr/internal/config"
)

const sampleRSS = `<?xml version="1.0"?>
<rss><channel>
<item><title>[Group] Show - 05 [1080p]</title><link>magnet:?xt=urn:btih:abc</link></item>
<item><title>[Group] Show - 06 [1080p]</title><enclosure url="http://example.test/06.torrent" type="application/x-bittorrent"/></item>
</channel></rss>`

func TestFetcher_FetchFeeds(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleRSS))
	}))
	defer server.Close()

	cfg := config.SourcesConfig{
		RSSURLs:              server.URL,
		RSSTimeoutSec:        5,
		RSSMaxEntriesPerFeed: 60,
	}
	f := NewFetcher(cfg, zerolog.Nop())
	deadline := config.NewDeadline(10 * time.Second)
	candidates := f.FetchFeeds(context.Background(), deadline, nil, 24)
	if len(candidates) != 2 {
		t.Fatalf("got %d candidates, want 2", len(candidates))
	}
	if candidates[0].Link != "magnet:?xt=urn:btih:abc" {
		t.Errorf("expected magnet link preference, got %q", candidates[0].Link)
	}
}

func TestFetcher_FetchFeeds_ExpiredDeadline(t *testing.T) {
	cfg := config.SourcesConfig{RSSURLs: "http://example.test/feed.xml", RSSTimeoutSec: 5}
	f := NewFetcher(cfg, zerolog.Nop())
	deadline := config.NewDeadline(-1 * time.Second)
	candidates := f.FetchFeeds(context.Background(), deadline, nil, 24)
	if len(candidates) != 0 {
		t.Fatalf("expected no candidates once deadline is expired, got %d", len(candidates))
	}
}

func TestFeedURLsForShow_PerTermAndCap(t *testing.T) {
	static := []string{"http://static.test/feed.xml"}
	terms := []string{"My Show E01", "My Show E02"}

	urls := feedURLsForShow(static, terms, "https://bangumi.moe", "https://nyaa.si", 24)
	if len(urls) != 9 { // 1 static + 2 terms * (1 search + 3 category)
		t.Fatalf("got %d urls, want 9: %v", len(urls), urls)
	}
	if urls[0] != static[0] {
		t.Errorf("expected static feed first, got %q", urls[0])
	}
	if urls[1] != "https://bangumi.moe/rss/search/My+Show+E01" {
		t.Errorf("unexpected search url: %q", urls[1])
	}
	if urls[2] != "https://nyaa.si/?page=rss&q=My+Show+E01&c=1_2&f=0" {
		t.Errorf("unexpected category url: %q", urls[2])
	}

	capped := feedURLsForShow(static, terms, "https://bangumi.moe", "https://nyaa.si", 3)
	if len(capped) != 3 {
		t.Fatalf("expected cap of 3, got %d: %v", len(capped), capped)
	}
}

func TestOverlapsOrSuperset(t *testing.T) {
	term := tokenize("Some Anime Title")
	if !overlapsOrSuperset(tokenize("Some Anime Title Episode 5"), term) {
		t.Error("expected overlap of >=2 tokens to match")
	}
	if overlapsOrSuperset(tokenize("Totally Unrelated"), term) {
		t.Error("expected no match for unrelated title")
	}
}
