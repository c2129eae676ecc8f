// Package reconciler walks each show's incoming directory, validates and
// classifies newly-downloaded video files, and routes them either into the
// organized library tree or into a review queue.
package reconciler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/animarr/animarr/internal/manifest"
	"github.com/animarr/animarr/internal/probe"
	"github.com/animarr/animarr/internal/store"
)

var videoExtensions = map[string]bool{".mkv": true, ".mp4": true, ".avi": true, ".m4v": true}

// partialSentinelSuffixes mark a file as an in-progress download, never a
// finished episode worth probing.
var partialSentinelSuffixes = []string{".part", ".!qb", ".tmp", ".downloading"}

// Store is the subset of store.Store the reconciler reads and writes.
type Store interface {
	ListShows(ctx context.Context) ([]*store.Show, error)
	MarkEpisodeDownloaded(ctx context.Context, showID int64, epNo int) error
}

// Prober is the subset of *probe.Service the reconciler uses.
type Prober interface {
	Probe(ctx context.Context, path string) (probe.Info, error)
}

// Organizer is the subset of *organizer.Service the reconciler drives.
type Organizer interface {
	SeriesDir(showTitle string) string
	Organize(src, showTitle string, season, epNo int) (string, error)
}

// Manifest is the subset of *manifest.Store the reconciler consults.
type Manifest interface {
	CheckConsistency(showTitle string, season, epNo int, fileMD5 string) manifest.ConsistencyResult
	RecordEpisodeHash(showTitle string, season, epNo int, filePath, fileMD5 string, size int64) error
}

// TorrentStatus looks up the torrent covering an incoming file, for the
// readiness gate and removal requests.
type TorrentStatus interface {
	FindTorrentForFile(ctx context.Context, filePath string) (progress float64, hash string, found bool)
}

// TorrentRemover is the subset of *torrent.Client the batched cleanup uses.
type TorrentRemover interface {
	Delete(ctx context.Context, hashes []string, deleteFiles bool) error
}

// Notifier emits an operator-facing message on organize success.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// Config holds the reconciler sweep's tuning knobs.
type Config struct {
	IncomingRoot             string
	MinFileSizeMB            int
	ReadinessAgeSec          int
	RuntimeOutlierMinSamples int
}

// Service runs the incoming-directory reconciliation sweep.
type Service struct {
	store     Store
	prober    Prober
	organizer Organizer
	manifest  Manifest
	torrents  TorrentStatus
	remover   TorrentRemover
	queue     *ReviewQueue
	notifier  Notifier
	cfg       Config
	logger    zerolog.Logger
}

// NewService builds a reconciler Service.
func NewService(st Store, prober Prober, org Organizer, mf Manifest, torrents TorrentStatus, remover TorrentRemover, queue *ReviewQueue, notifier Notifier, cfg Config, logger zerolog.Logger) *Service {
	return &Service{
		store: st, prober: prober, organizer: org, manifest: mf,
		torrents: torrents, remover: remover, queue: queue, notifier: notifier,
		cfg: cfg, logger: logger.With().Str("component", "reconciler").Logger(),
	}
}

// Result summarizes one reconciliation sweep.
type Result struct {
	Scanned    int
	Organized  int
	Invalid    int
	Reviewed   int
	ExtraKnown int
}

// Run walks every tracked show's incoming directory, reconciles each ready
// video file, then batches torrent removal for everything it routed.
func (s *Service) Run(ctx context.Context) (Result, error) {
	shows, err := s.store.ListShows(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("list shows: %w", err)
	}

	var result Result
	var removedHashes []string

	for _, show := range shows {
		showDir := filepath.Join(s.cfg.IncomingRoot, show.TitleCanonical)
		files, err := s.scanVideoFiles(showDir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			s.logger.Warn().Err(err).Str("show", show.TitleCanonical).Msg("scan incoming dir failed")
			continue
		}

		for _, file := range files {
			result.Scanned++
			removedHashes = append(removedHashes, s.reconcileFile(ctx, show, showDir, file, &result)...)
		}
	}

	if len(removedHashes) > 0 && s.remover != nil {
		if err := s.remover.Delete(ctx, removedHashes, false); err != nil {
			s.logger.Warn().Err(err).Int("count", len(removedHashes)).Msg("batched torrent cleanup failed")
		}
	}

	return result, nil
}

// reconcileFile runs the readiness, validity, classification and routing
// steps against one file, returning the torrent hash to batch-remove, if any.
func (s *Service) reconcileFile(ctx context.Context, show *store.Show, showDir, path string, result *Result) []string {
	info, err := os.Stat(path)
	if err != nil {
		return nil
	}
	if !s.isReady(ctx, path, info) {
		return nil
	}

	probeInfo, err := s.prober.Probe(ctx, path)
	if err != nil || !probeInfo.Valid {
		result.Invalid++
		os.Remove(path)
		os.Remove(strings.TrimSuffix(path, filepath.Ext(path)) + ".nfo")
		return nil
	}

	relPath, err := filepath.Rel(showDir, path)
	if err != nil {
		relPath = filepath.Base(path)
	}

	median, samples := s.sameShowRuntimeStats(ctx, show.TitleCanonical)
	cls := Classify(relPath, show.TotalEps, median, samples, s.cfg.RuntimeOutlierMinSamples, probeInfo.Duration)

	if cls.Decision != DecisionConfident {
		return s.routeAside(ctx, show, path, cls.Decision, cls.Reasons, result)
	}

	fileMD5, err := manifest.ComputeMD5(path)
	if err != nil {
		s.logger.Warn().Err(err).Str("path", path).Msg("hash computation failed")
		return nil
	}

	check := s.manifest.CheckConsistency(show.TitleCanonical, cls.Season, cls.Episode, fileMD5)
	if !check.OK {
		return s.routeAside(ctx, show, path, DecisionNeedsReview, check.Reasons, result)
	}

	dest, err := s.organizer.Organize(path, show.TitleCanonical, cls.Season, cls.Episode)
	if err != nil {
		s.logger.Warn().Err(err).Str("path", path).Msg("organize failed")
		return nil
	}

	if err := s.manifest.RecordEpisodeHash(show.TitleCanonical, cls.Season, cls.Episode, dest, fileMD5, info.Size()); err != nil {
		s.logger.Warn().Err(err).Msg("manifest record failed")
	}
	if err := s.store.MarkEpisodeDownloaded(ctx, show.ID, cls.Episode); err != nil {
		s.logger.Warn().Err(err).Msg("mark episode downloaded failed")
	}
	result.Organized++

	if s.notifier != nil {
		msg := fmt.Sprintf("organized %s S%02dE%02d", show.TitleCanonical, cls.Season, cls.Episode)
		if err := s.notifier.Notify(ctx, msg); err != nil {
			s.logger.Debug().Err(err).Msg("organize notification failed")
		}
	}

	return s.torrentHashFor(ctx, path)
}

// routeAside moves a file to the Extras/Known or Extras/Needs-Review tree,
// appends a review-queue ledger line, and returns its torrent hash for
// batched removal.
func (s *Service) routeAside(ctx context.Context, show *store.Show, path, decision string, reasons []string, result *Result) []string {
	dest := s.moveToExtras(show, path, decision)

	if err := s.queue.Append(ReviewEntry{
		Timestamp: time.Now().UTC(), ShowID: show.ID, ShowTitle: show.TitleCanonical,
		SrcPath: path, DstPath: dest, Classification: decision, Reasons: reasons,
	}); err != nil {
		s.logger.Warn().Err(err).Msg("review queue append failed")
	}

	if decision == DecisionExtraKnown {
		result.ExtraKnown++
	} else {
		result.Reviewed++
	}

	return s.torrentHashFor(ctx, path)
}

func (s *Service) moveToExtras(show *store.Show, srcPath, decision string) string {
	subdir := "Known"
	if decision == DecisionNeedsReview {
		subdir = "Needs-Review"
	}
	destDir := filepath.Join(s.organizer.SeriesDir(show.TitleCanonical), "Extras", subdir)
	if err := os.MkdirAll(destDir, 0o750); err != nil {
		s.logger.Warn().Err(err).Str("dir", destDir).Msg("create extras dir failed")
		return ""
	}
	dest := filepath.Join(destDir, filepath.Base(srcPath))
	if err := os.Rename(srcPath, dest); err != nil {
		s.logger.Warn().Err(err).Str("src", srcPath).Msg("move to extras failed")
		return ""
	}
	return dest
}

func (s *Service) torrentHashFor(ctx context.Context, path string) []string {
	if s.torrents == nil {
		return nil
	}
	if _, hash, found := s.torrents.FindTorrentForFile(ctx, path); found && hash != "" {
		return []string{hash}
	}
	return nil
}

// isReady applies the readiness gate: if a torrent covers the file, gate
// purely on its progress; otherwise allow a grace period for the mtime to
// settle before treating it as finished.
func (s *Service) isReady(ctx context.Context, path string, info os.FileInfo) bool {
	if s.torrents != nil {
		if progress, _, found := s.torrents.FindTorrentForFile(ctx, path); found {
			return progress >= 0.999
		}
	}
	age := time.Since(info.ModTime())
	return age >= time.Duration(s.cfg.ReadinessAgeSec)*time.Second
}

// scanVideoFiles walks root for ready-looking video files: the right
// extension, over the size floor, and not a partial-download sentinel.
func (s *Service) scanVideoFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || isPartialSentinel(path) {
			return nil
		}
		if !videoExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.Size() <= int64(s.cfg.MinFileSizeMB)*1024*1024 {
			return nil
		}
		files = append(files, path)
		return nil
	})
	return files, err
}

func isPartialSentinel(path string) bool {
	lower := strings.ToLower(path)
	for _, suffix := range partialSentinelSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}

// sameShowRuntimeStats probes a bounded sample of the show's
// already-organized episodes and returns their median duration, for the
// runtime-outlier check.
func (s *Service) sameShowRuntimeStats(ctx context.Context, showTitle string) (time.Duration, int) {
	const maxSamples = 20
	seriesDir := s.organizer.SeriesDir(showTitle)

	var durations []time.Duration
	_ = filepath.WalkDir(seriesDir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if !videoExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		if len(durations) >= maxSamples {
			return filepath.SkipAll
		}
		info, err := s.prober.Probe(ctx, path)
		if err == nil && info.Valid && info.Duration > 0 {
			durations = append(durations, info.Duration)
		}
		return nil
	})

	if len(durations) == 0 {
		return 0, 0
	}
	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })
	return durations[len(durations)/2], len(durations)
}
