// Package poster fetches and caches cover art for tracked shows, invoked
// by the poster-generation scheduler task.
package poster

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/animarr/animarr/internal/catalog"
)

// CatalogClient is the subset of *catalog.Client the hook needs.
type CatalogClient interface {
	GetByID(ctx context.Context, id int) (*catalog.Media, error)
}

// Organizer is the subset of *organizer.Service the hook writes artwork into.
type Organizer interface {
	SeriesDir(showTitle string) string
}

// Show is the subset of a tracked show the hook needs.
type Show struct {
	TitleCanonical string
	CatalogID      *int64
}

// Hook downloads and caches each show's catalog cover image.
type Hook struct {
	catalogClient CatalogClient
	organizer     Organizer
	httpClient    *http.Client
	logger        zerolog.Logger
}

// New builds a poster Hook.
func New(catalogClient CatalogClient, org Organizer, logger zerolog.Logger) *Hook {
	return &Hook{
		catalogClient: catalogClient,
		organizer:     org,
		httpClient:    &http.Client{Timeout: 20 * time.Second},
		logger:        logger.With().Str("component", "poster").Logger(),
	}
}

// Result summarizes one generation pass.
type Result struct {
	Fetched int
	Skipped int
}

// Run fetches cover art for every show with a catalog id, skipping shows
// whose poster.jpg already exists.
func (h *Hook) Run(ctx context.Context, shows []Show) Result {
	var result Result
	for _, show := range shows {
		if show.CatalogID == nil {
			result.Skipped++
			continue
		}
		dest := filepath.Join(h.organizer.SeriesDir(show.TitleCanonical), "poster.jpg")
		if _, err := os.Stat(dest); err == nil {
			result.Skipped++
			continue
		}
		if err := h.fetchOne(ctx, int(*show.CatalogID), dest); err != nil {
			h.logger.Warn().Err(err).Str("show", show.TitleCanonical).Msg("poster fetch failed")
			result.Skipped++
			continue
		}
		result.Fetched++
	}
	return result
}

func (h *Hook) fetchOne(ctx context.Context, catalogID int, dest string) error {
	media, err := h.catalogClient.GetByID(ctx, catalogID)
	if err != nil {
		return fmt.Errorf("catalog lookup: %w", err)
	}
	if media.CoverImage == nil {
		return fmt.Errorf("no cover image")
	}
	url := media.CoverImage.ExtraLarge
	if url == "" {
		url = media.CoverImage.Large
	}
	if url == "" {
		return fmt.Errorf("no cover image url")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := h.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("cover image returned status %d", resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return err
	}
	tmp := dest + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, dest)
}
