// Package sources adapts RSS-like feeds and the paginated fallback JSON API
// into a common Candidate shape for the release pipeline.
package sources

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"github.com/animarr/animarr/internal/config"
)

// Candidate is one release found by a source adapter.
type Candidate struct {
	Title  string
	Link   string
	Source string
}

// rss structures, mirroring the standard RSS/Atom item shape.
type rssFeed struct {
	XMLName xml.Name   `xml:"rss"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Items []rssItem `xml:"item"`
}

type rssItem struct {
	Title     string       `xml:"title"`
	Link      string       `xml:"link"`
	GUID      string       `xml:"guid"`
	Enclosure rssEnclosure `xml:"enclosure"`
}

type rssEnclosure struct {
	URL  string `xml:"url,attr"`
	Type string `xml:"type,attr"`
}

func parseRSS(data []byte) ([]rssItem, error) {
	var feed rssFeed
	if err := xml.Unmarshal(data, &feed); err != nil {
		return nil, err
	}
	return feed.Channel.Items, nil
}

// magnetPrefix marks a magnet URI. linkFor checks an item's link, guid and
// enclosure URL for it; title and description text are not searched.
const magnetPrefix = "magnet:?"

// linkFor extracts a candidate link in preference order: magnet,
// then torrent enclosure, then the entry page URL (percent-encoded).
func linkFor(item rssItem) string {
	if strings.HasPrefix(item.Link, magnetPrefix) {
		return item.Link
	}
	if strings.HasPrefix(item.GUID, magnetPrefix) {
		return item.GUID
	}
	if item.Enclosure.URL != "" {
		if strings.HasPrefix(item.Enclosure.URL, magnetPrefix) {
			return item.Enclosure.URL
		}
		return item.Enclosure.URL
	}
	if item.Link != "" {
		if u, err := url.Parse(item.Link); err == nil {
			return u.String()
		}
		return item.Link
	}
	return item.GUID
}

// Fetcher fetches candidates from a fixed list of RSS feed URLs and a
// fallback paginated JSON API, honoring a shared deadline.
type Fetcher struct {
	httpClient *http.Client
	cfg        config.SourcesConfig
	logger     zerolog.Logger
}

// NewFetcher builds a Fetcher.
func NewFetcher(cfg config.SourcesConfig, logger zerolog.Logger) *Fetcher {
	return &Fetcher{
		httpClient: &http.Client{},
		cfg:        cfg,
		logger:     logger.With().Str("component", "sources").Logger(),
	}
}

// feedURLsForShow builds one show's feed URL set: the statically configured
// feeds, plus per-term search and category feeds, capped at maxFeedURLs.
// For each search term it appends one search-host query and three
// aggregator-host category queries covering the English-translated,
// non-English-translated and raw anime categories (1_2, 1_3, 1_4).
func feedURLsForShow(staticURLs, searchTerms []string, searchBase, aggregatorBase string, maxFeedURLs int) []string {
	urls := append([]string(nil), staticURLs...)

	for _, term := range searchTerms {
		if maxFeedURLs > 0 && len(urls) >= maxFeedURLs {
			break
		}
		q := url.QueryEscape(term)
		if searchBase != "" {
			urls = append(urls, fmt.Sprintf("%s/rss/search/%s", searchBase, q))
		}
		if aggregatorBase != "" {
			for _, category := range []string{"1_2", "1_3", "1_4"} {
				urls = append(urls, fmt.Sprintf("%s/?page=rss&q=%s&c=%s&f=0", aggregatorBase, q, category))
			}
		}
	}

	if maxFeedURLs > 0 && len(urls) > maxFeedURLs {
		urls = urls[:maxFeedURLs]
	}
	return urls
}

// FetchFeeds pulls candidates from the static configured RSS URLs plus the
// per-search-term dynamic feeds built from searchTerms, honoring a global
// deadline: per-request timeout is min(default, remaining), and the loop
// exits early once the deadline is exhausted. Any single-feed failure is
// swallowed so the loop proceeds to the next URL.
func (f *Fetcher) FetchFeeds(ctx context.Context, deadline config.Deadline, searchTerms []string, maxFeedURLs int) []Candidate {
	var out []Candidate
	defaultTimeout := time.Duration(f.cfg.RSSTimeoutSec) * time.Second

	feedURLs := feedURLsForShow(f.cfg.RSSURLList(), searchTerms, f.cfg.SearchFeedBaseURL, f.cfg.AggregatorFeedBaseURL, maxFeedURLs)

	for _, feedURL := range feedURLs {
		if deadline.Expired() {
			f.logger.Debug().Msg("feed fetch deadline exhausted, stopping")
			break
		}
		timeout := deadline.Budget(defaultTimeout)
		items, err := f.fetchOneFeed(ctx, feedURL, timeout)
		if err != nil {
			f.logger.Warn().Str("feed", feedURL).Err(err).Msg("feed fetch failed, skipping")
			continue
		}
		maxEntries := f.cfg.RSSMaxEntriesPerFeed
		for i, item := range items {
			if maxEntries > 0 && i >= maxEntries {
				break
			}
			link := linkFor(item)
			if link == "" {
				continue
			}
			if !strings.HasPrefix(link, magnetPrefix) && f.cfg.DetailPageHost != "" && strings.Contains(link, f.cfg.DetailPageHost) {
				if magnet, err := f.resolveDetailPage(ctx, link, timeout); err == nil && magnet != "" {
					link = magnet
				}
			}
			out = append(out, Candidate{Title: item.Title, Link: link, Source: feedURL})
		}
	}
	return out
}

func (f *Fetcher) fetchOneFeed(ctx context.Context, feedURL string, timeout time.Duration) ([]rssItem, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed %s: status %d", feedURL, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return parseRSS(body)
}

// resolveDetailPage resolves a known detail-page host's entry URL to a
// magnet link by calling its per-torrent JSON endpoint, falling back to
// scraping the page's magnet anchor via goquery if the JSON endpoint fails.
func (f *Fetcher) resolveDetailPage(ctx context.Context, pageURL string, timeout time.Duration) (string, error) {
	jsonURL := resolveDownloadLinkEndpoint(pageURL)
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if jsonURL != "" {
		req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, jsonURL, nil)
		if err == nil {
			resp, err := f.httpClient.Do(req)
			if err == nil {
				defer resp.Body.Close()
				var out struct {
					Magnet string `json:"magnet"`
				}
				if json.NewDecoder(resp.Body).Decode(&out) == nil && out.Magnet != "" {
					return out.Magnet, nil
				}
			}
		}
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", err
	}
	magnet := ""
	doc.Find("a[href^='magnet:?']").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if href, ok := sel.Attr("href"); ok {
			magnet = href
			return false
		}
		return true
	})
	if magnet == "" {
		return "", fmt.Errorf("no magnet link found on detail page")
	}
	return magnet, nil
}

// resolveDownloadLinkEndpoint maps a known detail-page host's entry URL to
// its per-torrent JSON "resolve_download_link" endpoint.
func resolveDownloadLinkEndpoint(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%s://%s/api/resolve_download_link%s", u.Scheme, u.Host, u.Path)
}
