package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ListEpisodes returns every episode row of a show, ordered by episode number.
func (s *Store) ListEpisodes(ctx context.Context, showID int64) ([]*Episode, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, show_id, ep_no, state, air_datetime FROM episodes
		WHERE show_id = ? ORDER BY ep_no`, showID)
	if err != nil {
		return nil, fmt.Errorf("list episodes: %w", err)
	}
	defer rows.Close()

	var out []*Episode
	for rows.Next() {
		ep, err := scanEpisode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ep)
	}
	return out, rows.Err()
}

// GetEpisode returns a single episode row, or ErrNotFound.
func (s *Store) GetEpisode(ctx context.Context, showID int64, epNo int) (*Episode, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, show_id, ep_no, state, air_datetime FROM episodes
		WHERE show_id = ? AND ep_no = ?`, showID, epNo)
	ep, err := scanEpisode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return ep, err
}

func scanEpisode(row rowScanner) (*Episode, error) {
	var ep Episode
	var air sql.NullTime
	if err := row.Scan(&ep.ID, &ep.ShowID, &ep.EpNo, &ep.State, &air); err != nil {
		return nil, err
	}
	if air.Valid {
		t := air.Time
		ep.AirDatetime = &t
	}
	return &ep, nil
}

// UpsertEpisodeState creates the episode row if absent, or updates its state
// and air_datetime unless its current state is "downloaded" — that state is
// never downgraded by any subsystem except the reconciler's own promotion.
func (s *Store) UpsertEpisodeState(ctx context.Context, showID int64, epNo int, state string, airDatetime *time.Time) error {
	existing, err := s.GetEpisode(ctx, showID, epNo)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("get episode: %w", err)
	}
	if errors.Is(err, ErrNotFound) {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO episodes (show_id, ep_no, state, air_datetime) VALUES (?, ?, ?, ?)`,
			showID, epNo, state, airDatetime)
		if err != nil {
			return fmt.Errorf("insert episode: %w", err)
		}
		return nil
	}

	if existing.State == EpisodeDownloaded {
		return nil // never downgrade
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE episodes SET state = ?, air_datetime = ? WHERE show_id = ? AND ep_no = ?`,
		state, airDatetime, showID, epNo)
	if err != nil {
		return fmt.Errorf("update episode: %w", err)
	}
	return nil
}

// MarkEpisodeDownloaded promotes an episode to downloaded. Only the
// reconciler calls this; it is the sole path that may set this state.
func (s *Store) MarkEpisodeDownloaded(ctx context.Context, showID int64, epNo int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO episodes (show_id, ep_no, state) VALUES (?, ?, ?)
		ON CONFLICT(show_id, ep_no) DO UPDATE SET state = excluded.state`,
		showID, epNo, EpisodeDownloaded)
	if err != nil {
		return fmt.Errorf("mark downloaded: %w", err)
	}
	return nil
}

// DeleteEpisodesAbove removes episode rows with ep_no > maxEp, skipping any
// row whose state is "downloaded".
func (s *Store) DeleteEpisodesAbove(ctx context.Context, showID int64, maxEp int) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM episodes WHERE show_id = ? AND ep_no > ? AND state != ?`,
		showID, maxEp, EpisodeDownloaded)
	if err != nil {
		return 0, fmt.Errorf("overflow cleanup: %w", err)
	}
	return res.RowsAffected()
}

// Status computes the status summary for a show.
func (s *Store) Status(ctx context.Context, showID int64) (*ShowStatusSummary, error) {
	show, err := s.GetShow(ctx, showID)
	if err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(MAX(CASE WHEN state = ? THEN ep_no END), 0),
			COUNT(CASE WHEN state = ? THEN 1 END),
			COUNT(CASE WHEN state != ? THEN 1 END)
		FROM episodes WHERE show_id = ?`,
		EpisodeDownloaded, EpisodeDownloaded, EpisodeDownloaded, showID)

	summary := &ShowStatusSummary{ShowID: showID}
	if err := row.Scan(&summary.LatestDownloadedEp, &summary.DownloadedCount, &summary.MissingCount); err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}
	summary.Complete = show.Complete(summary.DownloadedCount)
	return summary, nil
}
