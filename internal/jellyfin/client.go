// Package jellyfin talks to a Jellyfin media server to diagnose and heal
// the season-index ambiguity that motivated the organizer's .nfo sidecars:
// series lookup by title, episode stats, and season-null-index-number
// detection with refresh-triggered healing.
package jellyfin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Item is a trimmed Jellyfin library item (series or episode).
type Item struct {
	ID                string `json:"Id"`
	Name              string `json:"Name"`
	SeasonNumber      *int   `json:"SeasonNumber"`
	ParentIndexNumber *int   `json:"ParentIndexNumber"`
	IndexNumber       *int   `json:"IndexNumber"`
}

func (i Item) season() (int, bool) {
	if i.SeasonNumber != nil {
		return *i.SeasonNumber, true
	}
	if i.ParentIndexNumber != nil {
		return *i.ParentIndexNumber, true
	}
	return 0, false
}

type itemsResponse struct {
	Items []Item `json:"Items"`
}

// Client talks to a Jellyfin server's REST API, falling back from query-
// param auth to the X-Emby-Token header the way the server accepts both.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logger     zerolog.Logger
}

// Config holds the Jellyfin client's connection settings.
type Config struct {
	Host   string
	Port   int
	APIKey string
}

// NewClient builds a Jellyfin client.
func NewClient(cfg Config, logger zerolog.Logger) *Client {
	host := cfg.Host
	if host == "" {
		host = "127.0.0.1"
	}
	port := cfg.Port
	if port == 0 {
		port = 8096
	}
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    fmt.Sprintf("http://%s:%d", host, port),
		apiKey:     strings.TrimSpace(cfg.APIKey),
		logger:     logger.With().Str("component", "jellyfin").Logger(),
	}
}

// IsConfigured reports whether an API key is set.
func (c *Client) IsConfigured() bool {
	return c.apiKey != ""
}

// getJSON tries query-param auth first, then the X-Emby-Token header, the
// way Jellyfin accepts either scheme.
func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	if c.apiKey == "" {
		return fmt.Errorf("jellyfin: api key not configured")
	}
	if params == nil {
		params = url.Values{}
	}

	var lastErr error

	withKeyParam := url.Values{}
	for k, v := range params {
		withKeyParam[k] = v
	}
	withKeyParam.Set("api_key", c.apiKey)
	if err := c.doGet(ctx, path, withKeyParam, nil, out); err == nil {
		return nil
	} else {
		lastErr = err
	}

	headers := map[string]string{"X-Emby-Token": c.apiKey}
	if err := c.doGet(ctx, path, params, headers, out); err == nil {
		return nil
	} else {
		lastErr = err
	}

	return fmt.Errorf("jellyfin request failed: %w", lastErr)
}

func (c *Client) doGet(ctx context.Context, path string, params url.Values, headers map[string]string, out any) error {
	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// post triggers a refresh endpoint, authenticating with the api_key query
// parameter first and then the X-Emby-Token header. No unauthenticated
// attempt is made.
func (c *Client) post(ctx context.Context, path string) error {
	if c.apiKey == "" {
		return fmt.Errorf("jellyfin: api key not configured")
	}

	params := url.Values{"api_key": {c.apiKey}}
	reqURL := c.baseURL + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err == nil {
		resp.Body.Close()
		if resp.StatusCode < 300 {
			return nil
		}
	}

	headerReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	headerReq.Header.Set("X-Emby-Token", c.apiKey)
	resp2, err := c.httpClient.Do(headerReq)
	if err != nil {
		return err
	}
	defer resp2.Body.Close()
	if resp2.StatusCode >= 300 {
		return fmt.Errorf("status %d", resp2.StatusCode)
	}
	return nil
}

// normalizeTitlePattern collapses punctuation to spaces, keeping word
// characters and CJK ideographs.
var normalizeTitlePattern = regexp.MustCompile(`[^\w\s\p{Han}]+`)
var seasonOrdinalSuffix = regexp.MustCompile(`(?i)\s+\d{1,2}(?:st|nd|rd|th)\s+season$`)
var seasonWordSuffix = regexp.MustCompile(`(?i)\s+(?:season|s)\s*0*([1-9]\d?)$`)
var seasonCJKSuffix = regexp.MustCompile(`\s+第\s*0*([1-9]\d?)\s*[季期]$`)

// normalizeSeriesTitle mirrors the fallback matching used when a series
// lookup's exact-name match misses: lowercase, strip punctuation, then
// strip a trailing season suffix.
func normalizeSeriesTitle(title string) string {
	x := strings.ToLower(strings.TrimSpace(title))
	x = normalizeTitlePattern.ReplaceAllString(x, " ")
	x = strings.Join(strings.Fields(x), " ")
	x = seasonOrdinalSuffix.ReplaceAllString(x, "")
	x = seasonWordSuffix.ReplaceAllString(x, "")
	x = seasonCJKSuffix.ReplaceAllString(x, "")
	return strings.TrimSpace(x)
}

var seasonNumberWord = regexp.MustCompile(`(?i)(?:season|s)\s*([1-9]\d?)`)
var seasonNumberCJK = regexp.MustCompile(`第\s*([1-9]\d?)\s*[季期]`)

// InferSeasonNumber extracts a season number from a title, defaulting to 1.
func InferSeasonNumber(title string) int {
	if m := seasonNumberWord.FindStringSubmatch(title); m != nil {
		var n int
		fmt.Sscanf(m[1], "%d", &n)
		return n
	}
	if m := seasonNumberCJK.FindStringSubmatch(title); m != nil {
		var n int
		fmt.Sscanf(m[1], "%d", &n)
		return n
	}
	return 1
}

// FindSeriesByTitle looks up a series by exact name match, falling back to
// a normalized-title comparison when nothing matches exactly.
func (c *Client) FindSeriesByTitle(ctx context.Context, title string) (*Item, error) {
	params := url.Values{
		"IncludeItemTypes": {"Series"},
		"Recursive":        {"true"},
		"SearchTerm":       {title},
		"Limit":            {"10"},
		"Fields":           {"SortName"},
	}
	var resp itemsResponse
	if err := c.getJSON(ctx, "/Items", params, &resp); err != nil {
		return nil, err
	}

	wantExact := strings.ToLower(strings.TrimSpace(title))
	for _, item := range resp.Items {
		if strings.ToLower(strings.TrimSpace(item.Name)) == wantExact {
			found := item
			return &found, nil
		}
	}

	wantNormalized := normalizeSeriesTitle(title)
	for _, item := range resp.Items {
		if normalizeSeriesTitle(item.Name) == wantNormalized {
			found := item
			return &found, nil
		}
	}

	return nil, nil
}

// GetSeriesEpisodes returns every episode item under a series id.
func (c *Client) GetSeriesEpisodes(ctx context.Context, seriesID string) ([]Item, error) {
	var resp itemsResponse
	if err := c.getJSON(ctx, fmt.Sprintf("/Shows/%s/Episodes", seriesID), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// GetSeriesEpisodeStats returns the total episode count and the count of
// episodes with no resolvable season number.
func (c *Client) GetSeriesEpisodeStats(ctx context.Context, seriesID string) (total, unknownSeason int, err error) {
	items, err := c.GetSeriesEpisodes(ctx, seriesID)
	if err != nil {
		return 0, 0, err
	}
	for _, item := range items {
		total++
		if _, ok := item.season(); !ok {
			unknownSeason++
		}
	}
	return total, unknownSeason, nil
}

// SeasonNullIndexResult reports episodes in a season missing an index number.
type SeasonNullIndexResult struct {
	SeriesFound      bool
	SeriesID         string
	NullIndexCount   int
	NullIndexItemIDs []string
}

// GetSeasonNullIndexNumbers finds episodes of a series' given season whose
// IndexNumber is unset, the symptom that drives Jellyfin's season-order
// ambiguity.
func (c *Client) GetSeasonNullIndexNumbers(ctx context.Context, seriesTitle string, season int) (SeasonNullIndexResult, error) {
	series, err := c.FindSeriesByTitle(ctx, seriesTitle)
	if err != nil {
		return SeasonNullIndexResult{}, err
	}
	if series == nil {
		return SeasonNullIndexResult{SeriesFound: false}, nil
	}
	if series.ID == "" {
		return SeasonNullIndexResult{}, fmt.Errorf("jellyfin series missing Id")
	}

	episodes, err := c.GetSeriesEpisodes(ctx, series.ID)
	if err != nil {
		return SeasonNullIndexResult{}, err
	}

	var nullIDs []string
	for _, item := range episodes {
		seasonValue, ok := item.season()
		if !ok || seasonValue != season {
			continue
		}
		if item.IndexNumber == nil && item.ID != "" {
			nullIDs = append(nullIDs, item.ID)
		}
	}

	return SeasonNullIndexResult{
		SeriesFound:      true,
		SeriesID:         series.ID,
		NullIndexCount:   len(nullIDs),
		NullIndexItemIDs: nullIDs,
	}, nil
}

// TriggerSeriesRefresh asks Jellyfin to rescan a single series.
func (c *Client) TriggerSeriesRefresh(ctx context.Context, seriesID string) error {
	return c.post(ctx, fmt.Sprintf("/Items/%s/Refresh", seriesID))
}

// TriggerLibraryRefresh asks Jellyfin to rescan the whole library.
func (c *Client) TriggerLibraryRefresh(ctx context.Context) error {
	return c.post(ctx, "/Library/Refresh")
}
