// Package resolver matches tracked shows against the catalog, scores
// candidates, projects airing progress, and synchronizes episode rows.
package resolver

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/animarr/animarr/internal/catalog"
	"github.com/animarr/animarr/internal/parser"
	"github.com/animarr/animarr/internal/store"
)

const maxSearchTermsPerShow = 12

// CatalogClient is the subset of catalog.Client the resolver needs, so tests
// can substitute a fake.
type CatalogClient interface {
	Search(ctx context.Context, term string, perPage int) ([]catalog.Media, error)
	GetByID(ctx context.Context, id int) (*catalog.Media, error)
	AiringSchedule(ctx context.Context, mediaID int, maxPages int) ([]catalog.AiringNode, error)
}

// Store is the subset of store.Store the resolver reads and writes.
type Store interface {
	ListShows(ctx context.Context) ([]*store.Show, error)
	ListAliases(ctx context.Context, showID int64) ([]string, error)
	UpdateShowMeta(ctx context.Context, showID int64, catalogID *int64, status string, totalEps *int) error
	UpsertEpisodeState(ctx context.Context, showID int64, epNo int, state string, airDatetime *time.Time) error
	DeleteEpisodesAbove(ctx context.Context, showID int64, maxEp int) (int64, error)
}

// Resolver is the metadata resolver component.
type Resolver struct {
	catalog CatalogClient
	store   Store
	logger  zerolog.Logger
}

// New builds a Resolver.
func New(catalogClient CatalogClient, st Store, logger zerolog.Logger) *Resolver {
	return &Resolver{catalog: catalogClient, store: st, logger: logger.With().Str("component", "resolver").Logger()}
}

// ShowResult is the per-show outcome of a resolve pass.
type ShowResult struct {
	ShowID                int64
	Err                   error
	TransientFetchFailure bool
}

// ResolveAll runs the resolver over every tracked show, isolating failures
// per show.
func (r *Resolver) ResolveAll(ctx context.Context) []ShowResult {
	shows, err := r.store.ListShows(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("list shows failed")
		return nil
	}
	results := make([]ShowResult, 0, len(shows))
	for _, show := range shows {
		results = append(results, r.resolveShow(ctx, show))
	}
	return results
}

// ResolveShows runs the resolver over a filtered subset of show ids.
func (r *Resolver) ResolveShows(ctx context.Context, showIDs []int64) []ShowResult {
	wanted := make(map[int64]struct{}, len(showIDs))
	for _, id := range showIDs {
		wanted[id] = struct{}{}
	}
	shows, err := r.store.ListShows(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("list shows failed")
		return nil
	}
	var results []ShowResult
	for _, show := range shows {
		if _, ok := wanted[show.ID]; !ok {
			continue
		}
		results = append(results, r.resolveShow(ctx, show))
	}
	return results
}

func (r *Resolver) resolveShow(ctx context.Context, show *store.Show) ShowResult {
	result := ShowResult{ShowID: show.ID}

	var media *catalog.Media
	if show.CatalogID != nil {
		m, err := r.catalog.GetByID(ctx, int(*show.CatalogID))
		if err != nil {
			r.logger.Warn().Int64("show_id", show.ID).Err(err).Msg("sticky catalog fetch failed, keeping mapping")
			result.TransientFetchFailure = true
			if err := r.overflowCleanup(ctx, show); err != nil {
				result.Err = err
			}
			return result
		}
		media = m
	} else {
		aliases, err := r.store.ListAliases(ctx, show.ID)
		if err != nil {
			result.Err = fmt.Errorf("list aliases: %w", err)
			return result
		}
		if len(aliases) == 0 {
			aliases = []string{show.TitleCanonical}
		}
		m, err := r.match(ctx, show, aliases)
		if err != nil {
			result.Err = err
			return result
		}
		if m == nil {
			return result // no candidate found, not an error
		}
		media = m
		id := int64(media.ID)
		if err := r.store.UpdateShowMeta(ctx, show.ID, &id, statusFromCatalog(media.Status), media.Episodes); err != nil {
			result.Err = fmt.Errorf("persist sticky catalog id: %w", err)
			return result
		}
	}

	airedUpto, err := r.airingProjection(ctx, media)
	if err != nil {
		r.logger.Warn().Int64("show_id", show.ID).Err(err).Msg("airing projection degraded")
	}

	if err := r.store.UpdateShowMeta(ctx, show.ID, nil, statusFromCatalog(media.Status), media.Episodes); err != nil {
		result.Err = fmt.Errorf("update show meta: %w", err)
		return result
	}

	if err := r.syncEpisodes(ctx, show.ID, media.Episodes, airedUpto); err != nil {
		result.Err = fmt.Errorf("sync episodes: %w", err)
		return result
	}

	return result
}

func (r *Resolver) overflowCleanup(ctx context.Context, show *store.Show) error {
	if show.TotalEps == nil {
		return nil
	}
	_, err := r.store.DeleteEpisodesAbove(ctx, show.ID, *show.TotalEps)
	return err
}

func statusFromCatalog(status string) string {
	switch strings.ToUpper(status) {
	case "FINISHED":
		return store.ShowFinished
	case "RELEASING":
		return store.ShowAiring
	default:
		return store.ShowPlanned
	}
}

// seasonStripPatterns strip season tokens ("2nd Season", "S2", "第2季") from
// an alias to produce a bare-title search term.
var seasonStripPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\s*\d{1,2}(?:st|nd|rd|th)\s+Season\b`),
	regexp.MustCompile(`(?i)\s*\bSeason\s+\d{1,2}\b`),
	regexp.MustCompile(`(?i)\s*\bS0?\d{1,2}\b`),
	regexp.MustCompile(`\s*第\s*\d{1,2}\s*[季期]`),
}

// stripSeasonTokens removes season markers from a title, yielding the bare
// series title used as an additional search term.
func stripSeasonTokens(title string) string {
	out := title
	for _, re := range seasonStripPatterns {
		out = re.ReplaceAllString(out, "")
	}
	return strings.TrimSpace(strings.Join(strings.Fields(out), " "))
}

func buildSearchTerms(aliases []string) []string {
	seen := make(map[string]struct{})
	var terms []string
	add := func(term string) {
		term = strings.TrimSpace(term)
		if term == "" {
			return
		}
		if _, ok := seen[term]; ok {
			return
		}
		seen[term] = struct{}{}
		terms = append(terms, term)
	}
	for _, alias := range aliases {
		add(alias)
		add(stripSeasonTokens(alias))
		if len(terms) >= maxSearchTermsPerShow {
			break
		}
	}
	if len(terms) > maxSearchTermsPerShow {
		terms = terms[:maxSearchTermsPerShow]
	}
	return terms
}

// match runs the search-and-score matching algorithm.
func (r *Resolver) match(ctx context.Context, show *store.Show, aliases []string) (*catalog.Media, error) {
	terms := buildSearchTerms(aliases)
	expectedSeason, hasExpectedSeason := inferExpectedSeason(aliases)

	candidates := make(map[int]catalog.Media)
	var lastErr error
	for _, term := range terms {
		results, err := r.catalog.Search(ctx, term, 8)
		if err != nil {
			lastErr = err
			continue
		}
		for _, m := range results {
			candidates[m.ID] = m
		}
	}
	if len(candidates) == 0 {
		if lastErr != nil {
			return nil, fmt.Errorf("catalog search: %w", lastErr)
		}
		return nil, nil
	}

	var best *catalog.Media
	bestScore := -1 << 31
	for _, m := range candidates {
		media := m
		score := scoreCandidate(media, aliases, expectedSeason, hasExpectedSeason)
		if score > bestScore {
			bestScore = score
			best = &media
		}
	}
	return best, nil
}

// airingProjection derives aired_upto via a three-tier fallback.
func (r *Resolver) airingProjection(ctx context.Context, media *catalog.Media) (int, error) {
	nodes, err := r.catalog.AiringSchedule(ctx, media.ID, 5)
	if err == nil && len(nodes) > 0 {
		now := time.Now().Unix()
		maxEp := 0
		for _, n := range nodes {
			if n.AiringAt <= now && n.Episode > maxEp {
				maxEp = n.Episode
			}
		}
		return maxEp, nil
	}

	if media.NextAiringEpisode != nil && media.NextAiringEpisode.Episode > 0 {
		return media.NextAiringEpisode.Episode - 1, nil
	}

	if strings.EqualFold(media.Status, "FINISHED") && media.Episodes != nil {
		return *media.Episodes, nil
	}

	return 0, err
}

// syncEpisodes creates/updates episode rows 1..max_ep.
func (r *Resolver) syncEpisodes(ctx context.Context, showID int64, totalEps *int, airedUpto int) error {
	maxEp := airedUpto
	if totalEps != nil && *totalEps > maxEp {
		maxEp = *totalEps
	}
	for n := 1; n <= maxEp; n++ {
		state := store.EpisodePlanned
		if n <= airedUpto {
			state = store.EpisodeAired
		}
		if err := r.store.UpsertEpisodeState(ctx, showID, n, state, nil); err != nil {
			return err
		}
	}
	if totalEps != nil {
		if _, err := r.store.DeleteEpisodesAbove(ctx, showID, *totalEps); err != nil {
			return err
		}
	}
	return nil
}

// inferExpectedSeason scans aliases for season tokens and returns the most
// frequent value.
func inferExpectedSeason(aliases []string) (int, bool) {
	counts := make(map[int]int)
	for _, a := range aliases {
		if n, ok := parser.ExtractSeason(a); ok {
			counts[n]++
		}
	}
	best, bestCount := 0, 0
	for season, count := range counts {
		if count > bestCount {
			best, bestCount = season, count
		}
	}
	return best, bestCount > 0
}

// scoreCandidate implements the candidate scoring formula.
func scoreCandidate(media catalog.Media, aliases []string, expectedSeason int, hasExpectedSeason bool) int {
	score := 0

	inferredSeason := inferSeasonFromRelations(media) + 1
	if hasExpectedSeason {
		diff := inferredSeason - expectedSeason
		if diff < 0 {
			diff = -diff
		}
		if diff == 0 {
			score += 80
		} else {
			score -= 25 * diff
		}
	}

	switch strings.ToUpper(media.Format) {
	case "TV", "TV_SHORT", "ONA":
		score += 20
	case "MOVIE", "SPECIAL", "OVA":
		score -= 20
	}

	blob := strings.ToLower(media.NameBlob())
	for _, alias := range aliases {
		na := strings.ToLower(strings.TrimSpace(alias))
		if na != "" && strings.Contains(blob, na) {
			score += 10
			break
		}
	}

	if strings.EqualFold(media.Status, "RELEASING") {
		score += 6
	}

	if media.Relations != nil {
		for _, edge := range media.Relations.Edges {
			switch strings.ToUpper(edge.RelationType) {
			case "SEQUEL", "PREQUEL":
				score += 2
			}
		}
	}

	return score
}

// inferSeasonFromRelations counts prequel edges, so season = #prequels + 1.
func inferSeasonFromRelations(media catalog.Media) int {
	if media.Relations == nil {
		return 0
	}
	count := 0
	for _, edge := range media.Relations.Edges {
		if strings.EqualFold(edge.RelationType, "PREQUEL") {
			count++
		}
	}
	return count
}
