// Package pipeline runs the per-show release-acquisition cycle: build
// search terms, fetch candidate releases from configured sources, score and
// filter them against the wanted episode set, then enqueue the winners with
// the torrent client.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/animarr/animarr/internal/config"
	"github.com/animarr/animarr/internal/parser"
	"github.com/animarr/animarr/internal/sources"
	"github.com/animarr/animarr/internal/store"
)

// episodeNumberVariants are the filename conventions search terms are built
// from, in the fixed order the round-robin cross-product consumes them.
var episodeNumberVariants = []string{"E%02d", "EP%02d", "- %02d", "[%02d]", "Episode %d", "第%d话", "第%d集"}

// Store is the subset of store.Store the pipeline reads and writes.
type Store interface {
	ListShows(ctx context.Context) ([]*store.Show, error)
	ListAliases(ctx context.Context, showID int64) ([]string, error)
	GetProfile(ctx context.Context, showID int64) (*store.ShowProfile, error)
	ListEpisodes(ctx context.Context, showID int64) ([]*store.Episode, error)
	HasPendingRelease(ctx context.Context, showID int64, epNo int) (bool, error)
	CreateRelease(ctx context.Context, r *store.Release) (*store.Release, error)
	UpsertEpisodeState(ctx context.Context, showID int64, epNo int, state string, airDatetime *time.Time) error
}

// SourceFetcher is the subset of *sources.Fetcher the pipeline drives.
type SourceFetcher interface {
	FetchFeeds(ctx context.Context, deadline config.Deadline, searchTerms []string, maxFeedURLs int) []sources.Candidate
	FetchFallback(ctx context.Context, deadline config.Deadline, searchTerms []string) []sources.Candidate
}

// TorrentAdder is the subset of *torrent.Client the pipeline enqueues through.
type TorrentAdder interface {
	AddMagnet(ctx context.Context, magnetURI, savePath string) error
	AddTorrentFile(ctx context.Context, content []byte, savePath string) error
}

// Pipeline runs the release-acquisition cycle.
type Pipeline struct {
	store            Store
	fetcher          SourceFetcher
	torrent          TorrentAdder
	httpClient       *http.Client
	cfg              config.PipelineConfig
	saveRoot         string
	defaultSubgroups []string
	logger           zerolog.Logger
}

// New builds a Pipeline.
func New(st Store, fetcher SourceFetcher, adder TorrentAdder, cfg config.PipelineConfig, saveRoot string, defaultSubgroups []string, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		store:            st,
		fetcher:          fetcher,
		torrent:          adder,
		httpClient:       &http.Client{Timeout: 20 * time.Second},
		cfg:              cfg,
		saveRoot:         saveRoot,
		defaultSubgroups: defaultSubgroups,
		logger:           logger.With().Str("component", "pipeline").Logger(),
	}
}

// RunResult summarizes one show's pipeline run.
type RunResult struct {
	ShowID   int64
	Enqueued int
	Err      error
}

// RunAll runs the pipeline for every tracked show, or only onlyShowIDs when non-empty.
func (p *Pipeline) RunAll(ctx context.Context, onlyShowIDs []int64) []RunResult {
	shows, err := p.store.ListShows(ctx)
	if err != nil {
		p.logger.Error().Err(err).Msg("list shows failed")
		return nil
	}

	wanted := map[int64]bool{}
	for _, id := range onlyShowIDs {
		wanted[id] = true
	}

	var results []RunResult
	for _, show := range shows {
		if len(wanted) > 0 && !wanted[show.ID] {
			continue
		}
		enqueued, err := p.runShow(ctx, show)
		results = append(results, RunResult{ShowID: show.ID, Enqueued: enqueued, Err: err})
	}
	return results
}

func (p *Pipeline) runShow(ctx context.Context, show *store.Show) (int, error) {
	episodes, err := p.store.ListEpisodes(ctx, show.ID)
	if err != nil {
		return 0, fmt.Errorf("list episodes: %w", err)
	}

	downloadedCount := 0
	wantedSet := map[int]bool{}
	for _, ep := range episodes {
		switch ep.State {
		case store.EpisodeDownloaded:
			downloadedCount++
		case store.EpisodeAired, store.EpisodeMissing:
			wantedSet[ep.EpNo] = true
		}
	}

	bootstrap := downloadedCount == 0
	if len(wantedSet) == 0 && bootstrap && show.TotalEps != nil {
		for n := 1; n <= *show.TotalEps; n++ {
			wantedSet[n] = true
		}
	}

	if show.Complete(downloadedCount) && len(wantedSet) == 0 {
		return 0, nil
	}
	if len(wantedSet) == 0 {
		return 0, nil
	}

	aliases, err := p.store.ListAliases(ctx, show.ID)
	if err != nil {
		return 0, fmt.Errorf("list aliases: %w", err)
	}
	profile, err := p.store.GetProfile(ctx, show.ID)
	if err != nil {
		return 0, fmt.Errorf("get profile: %w", err)
	}

	expectedSeason, hasExpectedSeason := inferExpectedSeason(aliases)

	subgroups := profile.PreferredSubgroups
	if len(subgroups) == 0 {
		subgroups = p.defaultSubgroups
	}

	minScore := profile.MinScore
	if bootstrap {
		minScore = maxInt(minScore-10, 55)
	}
	if len(wantedSet) >= 5 {
		minScore = maxInt(minScore-10, 45)
	}

	searchTerms := buildSearchTerms(aliases, wantedSet, p.cfg.MaxEpisodeQueriesPerShow, p.cfg.MaxSearchTermsPerShow)

	deadline := config.NewDeadline(time.Duration(p.cfg.PerShowTimeBudgetSec) * time.Second)
	candidates := p.fetcher.FetchFeeds(ctx, deadline, searchTerms, p.cfg.MaxFeedURLsPerShow)
	if !deadline.Expired() {
		candidates = append(candidates, p.fetcher.FetchFallback(ctx, deadline, searchTerms)...)
	}

	candidates = dedupeByLink(candidates, p.cfg.MaxCandidatesPerShow)

	type scored struct {
		candidate sources.Candidate
		epNo      int
		score     int
	}

	var scoredList []scored
	for _, cand := range candidates {
		if parser.IsBadRelease(cand.Title) {
			continue
		}
		if season, ok := parser.ExtractSeason(cand.Title); ok && hasExpectedSeason && season != expectedSeason {
			continue
		}

		epNo, ok := resolveEpisodeNumber(cand.Title, wantedSet, show.EpOffset, show.TotalEps)
		if !ok {
			continue
		}
		if !wantedSet[epNo] {
			continue
		}

		score := parser.ReleaseScore(cand.Title, aliases, epNo, epNo, extractSubgroup(cand.Title), subgroups)
		for _, ep := range episodes {
			if ep.EpNo == epNo && ep.State == store.EpisodeDownloaded {
				score -= 30
			}
		}

		scoredList = append(scoredList, scored{candidate: cand, epNo: epNo, score: score})
	}

	sort.SliceStable(scoredList, func(i, j int) bool { return scoredList[i].score > scoredList[j].score })

	byEpisode := map[int][]scored{}
	for _, s := range scoredList {
		byEpisode[s.epNo] = append(byEpisode[s.epNo], s)
	}
	for epNo := range byEpisode {
		list := byEpisode[epNo]
		sort.SliceStable(list, func(i, j int) bool { return list[i].score > list[j].score })
		byEpisode[epNo] = list
	}

	enqueued := 0
	attempts := 0
	maxAttempts := maxInt(6, p.cfg.MaxAddPerShowPerCycle*4)
	enqueuedEpisodes := map[int]bool{}

	var ascending []int
	for epNo := range wantedSet {
		ascending = append(ascending, epNo)
	}
	sort.Ints(ascending)

	for _, epNo := range ascending {
		if enqueued >= p.cfg.MaxAddPerShowPerCycle || attempts >= maxAttempts || deadline.Expired() {
			break
		}
		top := byEpisode[epNo]
		if len(top) > 2 {
			top = top[:2]
		}
		for _, cand := range top {
			if cand.score < minScore {
				continue
			}
			attempts++
			ok, err := p.enqueue(ctx, show, cand.epNo, cand.candidate, cand.score)
			if err != nil {
				p.logger.Warn().Err(err).Str("title", cand.candidate.Title).Msg("enqueue attempt failed")
				continue
			}
			if ok {
				enqueued++
				enqueuedEpisodes[epNo] = true
				break
			}
		}
	}

	for _, s := range scoredList {
		if enqueued >= p.cfg.MaxAddPerShowPerCycle || attempts >= maxAttempts || deadline.Expired() {
			break
		}
		if enqueuedEpisodes[s.epNo] || s.score < minScore {
			continue
		}
		attempts++
		ok, err := p.enqueue(ctx, show, s.epNo, s.candidate, s.score)
		if err != nil {
			p.logger.Warn().Err(err).Str("title", s.candidate.Title).Msg("enqueue attempt failed")
			continue
		}
		if ok {
			enqueued++
			enqueuedEpisodes[s.epNo] = true
		}
	}

	return enqueued, nil
}

// enqueue adds a release to the torrent client and persists the Release and
// Episode rows, skipping if the episode is already covered.
func (p *Pipeline) enqueue(ctx context.Context, show *store.Show, epNo int, cand sources.Candidate, score int) (bool, error) {
	pending, err := p.store.HasPendingRelease(ctx, show.ID, epNo)
	if err != nil {
		return false, fmt.Errorf("check pending release: %w", err)
	}
	if pending {
		return false, nil
	}

	savePath := p.saveRoot + "/" + show.TitleCanonical

	link := cand.Link
	if strings.HasPrefix(link, "magnet:?") {
		if err := p.torrent.AddMagnet(ctx, link, savePath); err != nil {
			return false, fmt.Errorf("add magnet: %w", err)
		}
	} else {
		content, err := p.downloadTorrentFile(ctx, link)
		if err != nil {
			return false, fmt.Errorf("download torrent file: %w", err)
		}
		if err := p.torrent.AddTorrentFile(ctx, content, savePath); err != nil {
			return false, fmt.Errorf("add torrent file: %w", err)
		}
	}

	_, err = p.store.CreateRelease(ctx, &store.Release{
		ShowID:          show.ID,
		EpNo:            epNo,
		Source:          cand.Source,
		Title:           cand.Title,
		MagnetOrTorrent: link,
		Subgroup:        extractSubgroup(cand.Title),
		Score:           score,
		State:           store.ReleaseQueued,
	})
	if err != nil && !errors.Is(err, store.ErrDuplicateRelease) {
		return false, fmt.Errorf("create release: %w", err)
	}

	if err := p.store.UpsertEpisodeState(ctx, show.ID, epNo, store.EpisodeAired, nil); err != nil {
		return false, fmt.Errorf("upsert episode state: %w", err)
	}

	return true, nil
}

func (p *Pipeline) downloadTorrentFile(ctx context.Context, link string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// buildSearchTerms sorts aliases Latin-first then CJK, shorter first, caps
// at 6, slices the wanted-episode list down to maxEpisodeQueries, then
// round-robins across episode-number variants for each of those episodes,
// capped at maxTerms.
func buildSearchTerms(aliases []string, wantedSet map[int]bool, maxEpisodeQueries, maxTerms int) []string {
	sortedAliases := append([]string(nil), aliases...)
	sort.SliceStable(sortedAliases, func(i, j int) bool {
		iCJK, jCJK := hasCJK(sortedAliases[i]), hasCJK(sortedAliases[j])
		if iCJK != jCJK {
			return !iCJK
		}
		return len(sortedAliases[i]) < len(sortedAliases[j])
	})
	if len(sortedAliases) > 6 {
		sortedAliases = sortedAliases[:6]
	}

	var episodeNums []int
	for ep := range wantedSet {
		episodeNums = append(episodeNums, ep)
	}
	sort.Ints(episodeNums)
	if maxEpisodeQueries > 0 && len(episodeNums) > maxEpisodeQueries {
		episodeNums = episodeNums[:maxEpisodeQueries]
	}

	var terms []string
	seen := map[string]bool{}
	for _, variant := range episodeNumberVariants {
		for _, alias := range sortedAliases {
			for _, ep := range episodeNums {
				if len(terms) >= maxTerms {
					return terms
				}
				term := alias + " " + fmt.Sprintf(variant, ep)
				if seen[term] {
					continue
				}
				seen[term] = true
				terms = append(terms, term)
			}
		}
	}
	return terms
}

func hasCJK(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Han, r) || unicode.Is(unicode.Hiragana, r) || unicode.Is(unicode.Katakana, r) {
			return true
		}
	}
	return false
}

func dedupeByLink(candidates []sources.Candidate, maxCandidates int) []sources.Candidate {
	seen := map[string]bool{}
	var out []sources.Candidate
	for _, c := range candidates {
		if c.Link == "" || seen[c.Link] {
			continue
		}
		seen[c.Link] = true
		out = append(out, c)
		if maxCandidates > 0 && len(out) >= maxCandidates {
			break
		}
	}
	return out
}

// resolveEpisodeNumber parses a candidate's episode, applying a batch-range
// earliest-wanted-overlap mapping and the show's episode offset.
func resolveEpisodeNumber(title string, wantedSet map[int]bool, epOffset int, totalEps *int) (int, bool) {
	if start, end, ok := parser.ExtractEpisodeRange(title); ok {
		for ep := start; ep <= end; ep++ {
			if wantedSet[ep] {
				return applyOffset(ep, epOffset, totalEps)
			}
		}
		return 0, false
	}

	ep, ok := parser.ExtractEpisode(title)
	if !ok {
		return 0, false
	}
	return applyOffset(ep, epOffset, totalEps)
}

func applyOffset(ep, epOffset int, totalEps *int) (int, bool) {
	if epOffset > 0 && totalEps != nil && ep > *totalEps {
		ep -= epOffset
	}
	if totalEps != nil && (ep < 1 || ep > *totalEps) {
		return 0, false
	}
	return ep, true
}

// extractSubgroup pulls a leading [Bracketed] release-group tag off a title,
// the common fansub naming convention.
func extractSubgroup(title string) string {
	title = strings.TrimSpace(title)
	if !strings.HasPrefix(title, "[") {
		return ""
	}
	end := strings.Index(title, "]")
	if end <= 1 {
		return ""
	}
	return title[1:end]
}

func inferExpectedSeason(aliases []string) (int, bool) {
	counts := map[int]int{}
	for _, alias := range aliases {
		if season, ok := parser.ExtractSeason(alias); ok {
			counts[season]++
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

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
