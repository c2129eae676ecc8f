// Package catalog is a small HTTP client for an AniList-shaped GraphQL
// anime catalog: search, by-id lookup, and airing-schedule paging.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

var (
	ErrNotFound    = errors.New("catalog: not found")
	ErrAPIError    = errors.New("catalog: api error")
	ErrRateLimited = errors.New("catalog: rate limited")
)

// Config holds the catalog client's settings.
type Config struct {
	BaseURL        string
	TimeoutSeconds int
}

// Client talks to the AniList-shaped GraphQL endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     zerolog.Logger
}

// NewClient builds a catalog client with a fixed request timeout.
func NewClient(cfg Config, logger zerolog.Logger) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.BaseURL,
		logger:     logger.With().Str("component", "catalog").Logger(),
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return "anilist"
}

const searchQuery = `
query ($search: String, $perPage: Int) {
  Page(page: 1, perPage: $perPage) {
    media(search: $search, type: ANIME) {
      id
      title { romaji english native }
      synonyms
      format
      status
      episodes
      nextAiringEpisode { episode airingAt }
      relations {
        edges {
          relationType
          node { id }
        }
      }
      coverImage { extraLarge large }
    }
  }
}`

// Search queries the catalog for a term, capped at perPage results.
func (c *Client) Search(ctx context.Context, term string, perPage int) ([]Media, error) {
	if perPage <= 0 || perPage > 50 {
		perPage = 8
	}
	var resp pageMediaResponse
	vars := map[string]any{"search": term, "perPage": perPage}
	if err := c.doGraphQL(ctx, searchQuery, vars, &resp); err != nil {
		return nil, err
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrAPIError, resp.Errors[0].Message)
	}
	return resp.Data.Page.Media, nil
}

const byIDQuery = `
query ($id: Int) {
  Media(id: $id, type: ANIME) {
    id
    title { romaji english native }
    synonyms
    format
    status
    episodes
    nextAiringEpisode { episode airingAt }
    relations {
      edges {
        relationType
        node { id }
      }
    }
    coverImage { extraLarge large }
  }
}`

// GetByID fetches a single media node by catalog id.
func (c *Client) GetByID(ctx context.Context, id int) (*Media, error) {
	var resp mediaByIDResponse
	vars := map[string]any{"id": id}
	if err := c.doGraphQL(ctx, byIDQuery, vars, &resp); err != nil {
		return nil, err
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrAPIError, resp.Errors[0].Message)
	}
	if resp.Data.Media == nil {
		return nil, ErrNotFound
	}
	return resp.Data.Media, nil
}

const airingScheduleQuery = `
query ($mediaId: Int, $page: Int) {
  Page(page: $page, perPage: 50) {
    pageInfo { hasNextPage }
    airingSchedules(mediaId: $mediaId) {
      episode
      airingAt
    }
  }
}`

// AiringSchedule pages through a media's airing schedule, returning every
// node it can collect before maxPages is reached or the pages run out.
func (c *Client) AiringSchedule(ctx context.Context, mediaID int, maxPages int) ([]AiringNode, error) {
	if maxPages <= 0 {
		maxPages = 5
	}
	var out []AiringNode
	for page := 1; page <= maxPages; page++ {
		var resp airingScheduleResponse
		vars := map[string]any{"mediaId": mediaID, "page": page}
		if err := c.doGraphQL(ctx, airingScheduleQuery, vars, &resp); err != nil {
			return out, err
		}
		if len(resp.Errors) > 0 {
			return out, fmt.Errorf("%w: %s", ErrAPIError, resp.Errors[0].Message)
		}
		out = append(out, resp.Data.Page.AiringSchedules...)
		if !resp.Data.Page.PageInfo.HasNextPage {
			break
		}
	}
	return out, nil
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

func (c *Client) doGraphQL(ctx context.Context, query string, vars map[string]any, out any) error {
	body, err := json.Marshal(graphQLRequest{Query: query, Variables: vars})
	if err != nil {
		return fmt.Errorf("marshal graphql request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrAPIError, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
