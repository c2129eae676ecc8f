package jellyfin

import (
	"context"
)

// TrackedShow is the minimal show reference the status/healing workflows
// need from the library store.
type TrackedShow struct {
	ID             int64
	TitleCanonical string
}

// StatusRow reports one show's Jellyfin library state.
type StatusRow struct {
	ShowID                   int64
	TitleCanonical           string
	JellyfinSeriesFound      bool
	JellyfinTotalEpisodes    int
	JellyfinUnknownSeasonEps int
	LastError                string
}

// CollectStatus reports each tracked show's Jellyfin library state,
// isolating a single show's lookup failure from the rest of the batch.
func CollectStatus(ctx context.Context, client *Client, shows []TrackedShow) []StatusRow {
	rows := make([]StatusRow, 0, len(shows))

	if client == nil || !client.IsConfigured() {
		for _, show := range shows {
			rows = append(rows, StatusRow{
				ShowID:         show.ID,
				TitleCanonical: show.TitleCanonical,
				LastError:      "JELLYFIN_API_KEY not configured",
			})
		}
		return rows
	}

	for _, show := range shows {
		row := StatusRow{ShowID: show.ID, TitleCanonical: show.TitleCanonical}

		series, err := client.FindSeriesByTitle(ctx, show.TitleCanonical)
		if err != nil {
			row.LastError = err.Error()
			rows = append(rows, row)
			continue
		}
		if series == nil {
			rows = append(rows, row)
			continue
		}

		row.JellyfinSeriesFound = true
		total, unknown, err := client.GetSeriesEpisodeStats(ctx, series.ID)
		if err != nil {
			row.LastError = err.Error()
			rows = append(rows, row)
			continue
		}
		row.JellyfinTotalEpisodes = total
		row.JellyfinUnknownSeasonEps = unknown
		rows = append(rows, row)
	}

	return rows
}

// HealRow reports the result of one show's season-order healing attempt.
type HealRow struct {
	ShowID          int64
	TitleCanonical  string
	Season          int
	BeforeNullIndex int
	AfterNullIndex  int
	Healed          bool
	Error           string
}

// HealSeasonOrder re-triggers Jellyfin refreshes for shows whose season has
// episodes missing an index number, escalating from a per-series refresh to
// a full library refresh if the per-series refresh doesn't clear it.
func HealSeasonOrder(ctx context.Context, client *Client, shows []TrackedShow, seasonByShowID map[int64]int) []HealRow {
	rows := make([]HealRow, 0, len(shows))

	if client == nil || !client.IsConfigured() {
		for _, show := range shows {
			rows = append(rows, HealRow{
				ShowID:         show.ID,
				TitleCanonical: show.TitleCanonical,
				Error:          "JELLYFIN_API_KEY not configured",
			})
		}
		return rows
	}

	for _, show := range shows {
		season, ok := seasonByShowID[show.ID]
		if !ok {
			season = InferSeasonNumber(show.TitleCanonical)
		}
		row := HealRow{ShowID: show.ID, TitleCanonical: show.TitleCanonical, Season: season}

		before, err := client.GetSeasonNullIndexNumbers(ctx, show.TitleCanonical, season)
		if err != nil {
			row.Error = err.Error()
			rows = append(rows, row)
			continue
		}
		row.BeforeNullIndex = before.NullIndexCount

		if !before.SeriesFound || before.NullIndexCount <= 0 {
			row.AfterNullIndex = before.NullIndexCount
			rows = append(rows, row)
			continue
		}

		if err := client.TriggerSeriesRefresh(ctx, before.SeriesID); err != nil {
			row.Error = err.Error()
			rows = append(rows, row)
			continue
		}

		after, err := client.GetSeasonNullIndexNumbers(ctx, show.TitleCanonical, season)
		if err != nil {
			row.Error = err.Error()
			rows = append(rows, row)
			continue
		}

		if after.NullIndexCount > 0 {
			if err := client.TriggerLibraryRefresh(ctx); err != nil {
				row.Error = err.Error()
				rows = append(rows, row)
				continue
			}
			after, err = client.GetSeasonNullIndexNumbers(ctx, show.TitleCanonical, season)
			if err != nil {
				row.Error = err.Error()
				rows = append(rows, row)
				continue
			}
		}

		row.AfterNullIndex = after.NullIndexCount
		row.Healed = after.NullIndexCount < before.NullIndexCount
		rows = append(rows, row)
	}

	return rows
}
