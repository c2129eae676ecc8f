// Package store is the typed persistent store of shows, aliases, profiles,
// episodes and releases backing the rest of the daemon.
package store

import "time"

// ShowStatus values.
const (
	ShowPlanned  = "planned"
	ShowAiring   = "airing"
	ShowFinished = "finished"
)

// EpisodeState values.
const (
	EpisodePlanned    = "planned"
	EpisodeAired      = "aired"
	EpisodeDownloaded = "downloaded"
	EpisodeMissing    = "missing"
)

// ReleaseState values.
const (
	ReleaseQueued      = "queued"
	ReleaseDownloading = "downloading"
	ReleaseCompleted   = "completed"
)

// Show is a tracked anime series.
type Show struct {
	ID             int64
	TitleInput     string
	TitleCanonical string
	CatalogID      *int64
	Status         string
	TotalEps       *int
	EpOffset       int
	CreatedAt      time.Time
}

// Complete reports the completeness predicate: total_eps is known and the
// downloaded count meets or exceeds it, independent of the latest episode number.
func (s *Show) Complete(downloadedCount int) bool {
	return s.TotalEps != nil && downloadedCount >= *s.TotalEps
}

// ShowProfile carries per-show overrides for release selection.
type ShowProfile struct {
	ShowID             int64
	PreferredSubgroups []string
	MinScore           int
}

// Episode is one tracked episode slot for a show.
type Episode struct {
	ID          int64
	ShowID      int64
	EpNo        int
	State       string
	AirDatetime *time.Time
}

// Release is a torrent chosen for a specific (show, episode).
type Release struct {
	ID              int64
	ShowID          int64
	EpNo            int
	Source          string
	Title           string
	MagnetOrTorrent string
	Quality         string
	Subgroup        string
	Score           int
	State           string
	CreatedAt       time.Time
}

// ShowStatusSummary answers the "/shows/{id}/status" endpoint.
type ShowStatusSummary struct {
	ShowID             int64
	LatestDownloadedEp int
	DownloadedCount    int
	MissingCount       int
	Complete           bool
}
