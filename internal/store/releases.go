package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrDuplicateRelease is returned by CreateRelease when the
// (show_id, ep_no, magnet_or_torrent) triple already exists.
var ErrDuplicateRelease = errors.New("store: duplicate release")

// CreateRelease inserts a new release row.
func (s *Store) CreateRelease(ctx context.Context, r *Release) (*Release, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO releases (show_id, ep_no, source, title, magnet_or_torrent, quality, subgroup, score, state)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ShowID, r.EpNo, r.Source, r.Title, r.MagnetOrTorrent, r.Quality, r.Subgroup, r.Score, stateOrDefault(r.State))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateRelease
		}
		return nil, fmt.Errorf("insert release: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	out := *r
	out.ID = id
	if out.State == "" {
		out.State = ReleaseQueued
	}
	return &out, nil
}

func stateOrDefault(state string) string {
	if state == "" {
		return ReleaseQueued
	}
	return state
}

func isUniqueViolation(err error) bool {
	// modernc.org/sqlite wraps the driver error; string match is the
	// portable way to detect a UNIQUE constraint failure without importing
	// the driver's internal error types.
	return err != nil && (contains(err.Error(), "UNIQUE constraint failed") || contains(err.Error(), "constraint failed: UNIQUE"))
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && (func() bool {
		for i := 0; i+len(substr) <= len(s); i++ {
			if s[i:i+len(substr)] == substr {
				return true
			}
		}
		return false
	})()
}

// HasPendingRelease reports whether a show's episode already has a
// non-completed release row.
func (s *Store) HasPendingRelease(ctx context.Context, showID int64, epNo int) (bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM releases WHERE show_id = ? AND ep_no = ? AND state != ? LIMIT 1`,
		showID, epNo, ReleaseCompleted)
	var one int
	err := row.Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("has pending release: %w", err)
	}
	return true, nil
}

// ListReleasesForShow returns all release rows for a show.
func (s *Store) ListReleasesForShow(ctx context.Context, showID int64) ([]*Release, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, show_id, ep_no, source, title, magnet_or_torrent, quality, subgroup, score, state, created_at
		FROM releases WHERE show_id = ? ORDER BY ep_no`, showID)
	if err != nil {
		return nil, fmt.Errorf("list releases: %w", err)
	}
	defer rows.Close()
	return scanReleases(rows)
}

// ListAllReleases returns every release row, ordered by id.
func (s *Store) ListAllReleases(ctx context.Context) ([]*Release, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, show_id, ep_no, source, title, magnet_or_torrent, quality, subgroup, score, state, created_at
		FROM releases ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list all releases: %w", err)
	}
	defer rows.Close()
	return scanReleases(rows)
}

func scanReleases(rows *sql.Rows) ([]*Release, error) {
	var out []*Release
	for rows.Next() {
		var r Release
		if err := rows.Scan(&r.ID, &r.ShowID, &r.EpNo, &r.Source, &r.Title, &r.MagnetOrTorrent, &r.Quality, &r.Subgroup, &r.Score, &r.State, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

// DeleteReleases removes release rows by id.
func (s *Store) DeleteReleases(ctx context.Context, ids []int64) error {
	for _, id := range ids {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM releases WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete release %d: %w", id, err)
		}
	}
	return nil
}

// DeleteReleasesForDownloadedEpisodes prunes release rows whose target
// episode has since been marked downloaded.
func (s *Store) DeleteReleasesForDownloadedEpisodes(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM releases WHERE EXISTS (
			SELECT 1 FROM episodes e
			WHERE e.show_id = releases.show_id AND e.ep_no = releases.ep_no AND e.state = ?
		)`, EpisodeDownloaded)
	if err != nil {
		return 0, fmt.Errorf("prune downloaded releases: %w", err)
	}
	return res.RowsAffected()
}
