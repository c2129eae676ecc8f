package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/animarr/animarr/internal/config"
)

type fallbackAPIResponse struct {
	Results []fallbackAPIItem `json:"results"`
}

type fallbackAPIItem struct {
	Title string `json:"title"`
	Link  string `json:"link"`
}

var tokenSplit = regexp.MustCompile(`[^\p{Han}\p{Hiragana}\p{Katakana}\w]+`)

func tokenize(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, t := range tokenSplit.Split(strings.ToLower(s), -1) {
		if t == "" {
			continue
		}
		out[t] = struct{}{}
	}
	return out
}

func overlapsOrSuperset(title, searchTerm map[string]struct{}) bool {
	overlap := 0
	for t := range title {
		if _, ok := searchTerm[t]; ok {
			overlap++
		}
	}
	if overlap >= 2 {
		return true
	}
	if len(searchTerm) > 0 && overlap == len(searchTerm) {
		return true
	}
	return false
}

// FetchFallback scans the first K pages of the fallback paginated JSON API
// for each search term, keeping candidates whose tokenized title either
// shares >= 2 tokens with the term's token set or is a superset of it.
func (f *Fetcher) FetchFallback(ctx context.Context, deadline config.Deadline, searchTerms []string) []Candidate {
	if f.cfg.FallbackAPIBaseURL == "" {
		return nil
	}
	var out []Candidate
	defaultTimeout := time.Duration(f.cfg.RSSTimeoutSec) * time.Second

	for _, term := range searchTerms {
		termTokens := tokenize(term)
		for page := 1; page <= f.cfg.FallbackAPIPages; page++ {
			if deadline.Expired() {
				return out
			}
			items, err := f.fetchFallbackPage(ctx, term, page, deadline.Budget(defaultTimeout))
			if err != nil {
				f.logger.Warn().Str("term", term).Int("page", page).Err(err).Msg("fallback api page failed, skipping")
				continue
			}
			for i, item := range items {
				if i >= f.cfg.FallbackAPIResultsPerShow {
					break
				}
				if item.Link == "" {
					continue
				}
				if !overlapsOrSuperset(tokenize(item.Title), termTokens) {
					continue
				}
				out = append(out, Candidate{Title: item.Title, Link: item.Link, Source: f.cfg.FallbackAPIBaseURL})
			}
		}
	}
	return out
}

func (f *Fetcher) fetchFallbackPage(ctx context.Context, term string, page int, timeout time.Duration) ([]fallbackAPIItem, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	q := url.Values{}
	q.Set("q", term)
	q.Set("page", fmt.Sprintf("%d", page))
	reqURL := fmt.Sprintf("%s?%s", f.cfg.FallbackAPIBaseURL, q.Encode())

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var out fallbackAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out.Results, nil
}
