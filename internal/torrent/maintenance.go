package torrent

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	qbt "github.com/autobrr/go-qbittorrent"
	"github.com/rs/zerolog"
)

var videoExtensions = map[string]struct{}{
	".mkv": {}, ".mp4": {}, ".avi": {}, ".ts": {}, ".webm": {}, ".mov": {},
}

// MaintenanceResult reports what a maintenance sweep removed.
type MaintenanceResult struct {
	RemovedHashes []string
}

// ListerDeleter is the subset of Client the maintenance sweep needs, so
// tests can substitute a fake torrent set.
type ListerDeleter interface {
	List(ctx context.Context) ([]qbt.Torrent, error)
	Delete(ctx context.Context, hashes []string, deleteFiles bool) error
}

// Maintainer runs the periodic torrent maintenance sweep.
type Maintainer struct {
	c      ListerDeleter
	maxAge time.Duration
	logger zerolog.Logger
}

// NewMaintainer builds a Maintainer.
func NewMaintainer(c ListerDeleter, maxAge time.Duration, logger zerolog.Logger) *Maintainer {
	return &Maintainer{c: c, maxAge: maxAge, logger: logger.With().Str("component", "torrent_maintenance").Logger()}
}

// CompleteShowChecker reports whether save_path already belongs to a show whose
// episodes are all downloaded.
type CompleteShowChecker func(savePath string) bool

// Sweep evaluates every torrent against the removal rules and deletes the
// ones that match, returning the set of removed info hashes.
func (m *Maintainer) Sweep(ctx context.Context, isCompleteShowPath CompleteShowChecker) (MaintenanceResult, error) {
	torrents, err := m.c.List(ctx)
	if err != nil {
		return MaintenanceResult{}, err
	}

	now := time.Now()
	var toRemove []string
	var toRemoveWithFiles []string

	for _, t := range torrents {
		added := time.Unix(t.AddedOn, 0)
		age := now.Sub(added)

		if isCompleteShowPath != nil && isCompleteShowPath(t.SavePath) {
			toRemove = append(toRemove, t.Hash)
			continue
		}

		switch t.State {
		case "missingFiles":
			toRemoveWithFiles = append(toRemoveWithFiles, t.Hash)
			continue
		}

		if t.Progress >= 0.999 {
			switch t.State {
			case "stalledUP", "uploading", "queuedUP":
				if !hasVideoContent(t.ContentPath) && !hasVideoContent(t.SavePath) {
					toRemove = append(toRemove, t.Hash)
				}
				continue
			}
		}

		switch t.State {
		case "error", "stalledDL", "metaDL":
			if age > m.maxAge {
				toRemove = append(toRemove, t.Hash)
			}
		case "queuedDL", "downloading":
			if t.Progress < 0.02 && age > 90*time.Minute {
				toRemove = append(toRemove, t.Hash)
			}
		}
	}

	var removed []string
	if len(toRemove) > 0 {
		if err := m.c.Delete(ctx, toRemove, false); err != nil {
			m.logger.Warn().Err(err).Msg("bulk torrent remove failed")
		} else {
			removed = append(removed, toRemove...)
		}
	}
	if len(toRemoveWithFiles) > 0 {
		if err := m.c.Delete(ctx, toRemoveWithFiles, true); err != nil {
			m.logger.Warn().Err(err).Msg("bulk torrent remove-with-files failed")
		} else {
			removed = append(removed, toRemoveWithFiles...)
		}
	}

	return MaintenanceResult{RemovedHashes: removed}, nil
}

func hasVideoContent(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	if !info.IsDir() {
		_, ok := videoExtensions[strings.ToLower(filepath.Ext(path))]
		return ok
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if _, ok := videoExtensions[strings.ToLower(filepath.Ext(e.Name()))]; ok {
			return true
		}
	}
	return false
}
