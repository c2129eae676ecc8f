package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// ErrNotFound is returned when a lookup finds no matching row.
var ErrNotFound = errors.New("store: not found")

// Store wraps a *sql.DB with the daemon's typed queries.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// New wraps an existing database connection.
func New(db *sql.DB, logger zerolog.Logger) *Store {
	return &Store{db: db, logger: logger.With().Str("component", "store").Logger()}
}

// UpsertShow creates a show by canonical title or returns the existing one,
// replacing its alias set and profile when non-nil values are supplied.
func (s *Store) UpsertShow(ctx context.Context, titleInput, titleCanonical string, aliases []string, profile *ShowProfile) (*Show, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var showID int64
	row := tx.QueryRowContext(ctx, `SELECT id FROM shows WHERE title_canonical = ?`, titleCanonical)
	switch err := row.Scan(&showID); {
	case errors.Is(err, sql.ErrNoRows):
		res, err := tx.ExecContext(ctx,
			`INSERT INTO shows (title_input, title_canonical) VALUES (?, ?)`,
			titleInput, titleCanonical)
		if err != nil {
			return nil, fmt.Errorf("insert show: %w", err)
		}
		showID, err = res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("last insert id: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("lookup show: %w", err)
	default:
		if _, err := tx.ExecContext(ctx, `UPDATE shows SET title_input = ? WHERE id = ?`, titleInput, showID); err != nil {
			return nil, fmt.Errorf("update show: %w", err)
		}
	}

	if aliases != nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM show_aliases WHERE show_id = ?`, showID); err != nil {
			return nil, fmt.Errorf("clear aliases: %w", err)
		}
		for _, alias := range dedupeNonEmpty(aliases) {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO show_aliases (show_id, alias) VALUES (?, ?)`, showID, alias); err != nil {
				return nil, fmt.Errorf("insert alias %q: %w", alias, err)
			}
		}
	}

	if profile != nil {
		subgroups := strings.Join(profile.PreferredSubgroups, ",")
		minScore := profile.MinScore
		if minScore == 0 {
			minScore = 70
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO show_profiles (show_id, preferred_subgroups, min_score)
			VALUES (?, ?, ?)
			ON CONFLICT(show_id) DO UPDATE SET preferred_subgroups = excluded.preferred_subgroups, min_score = excluded.min_score
		`, showID, subgroups, minScore); err != nil {
			return nil, fmt.Errorf("upsert profile: %w", err)
		}
	} else {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO show_profiles (show_id, preferred_subgroups, min_score) VALUES (?, '', 70)`,
			showID); err != nil {
			return nil, fmt.Errorf("ensure default profile: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	return s.GetShow(ctx, showID)
}

func dedupeNonEmpty(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// GetShow fetches a show by id.
func (s *Store) GetShow(ctx context.Context, id int64) (*Show, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title_input, title_canonical, catalog_id, status, total_eps, ep_offset, created_at
		FROM shows WHERE id = ?`, id)
	show, err := scanShow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return show, err
}

// GetShowByCanonical fetches a show by its canonical title.
func (s *Store) GetShowByCanonical(ctx context.Context, titleCanonical string) (*Show, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title_input, title_canonical, catalog_id, status, total_eps, ep_offset, created_at
		FROM shows WHERE title_canonical = ?`, titleCanonical)
	show, err := scanShow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return show, err
}

// ListShows returns every tracked show.
func (s *Store) ListShows(ctx context.Context) ([]*Show, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title_input, title_canonical, catalog_id, status, total_eps, ep_offset, created_at
		FROM shows ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list shows: %w", err)
	}
	defer rows.Close()

	var out []*Show
	for rows.Next() {
		show, err := scanShow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, show)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanShow(row rowScanner) (*Show, error) {
	var show Show
	var catalogID sql.NullInt64
	var totalEps sql.NullInt64
	if err := row.Scan(&show.ID, &show.TitleInput, &show.TitleCanonical, &catalogID, &show.Status, &totalEps, &show.EpOffset, &show.CreatedAt); err != nil {
		return nil, err
	}
	if catalogID.Valid {
		v := catalogID.Int64
		show.CatalogID = &v
	}
	if totalEps.Valid {
		v := int(totalEps.Int64)
		show.TotalEps = &v
	}
	return &show, nil
}

// ListAliases returns all aliases of a show.
func (s *Store) ListAliases(ctx context.Context, showID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT alias FROM show_aliases WHERE show_id = ? ORDER BY id`, showID)
	if err != nil {
		return nil, fmt.Errorf("list aliases: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var alias string
		if err := rows.Scan(&alias); err != nil {
			return nil, err
		}
		out = append(out, alias)
	}
	return out, rows.Err()
}

// GetProfile returns a show's profile, defaulting min_score to 70 if unset.
func (s *Store) GetProfile(ctx context.Context, showID int64) (*ShowProfile, error) {
	row := s.db.QueryRowContext(ctx, `SELECT preferred_subgroups, min_score FROM show_profiles WHERE show_id = ?`, showID)
	var subgroupsCSV string
	var minScore int
	if err := row.Scan(&subgroupsCSV, &minScore); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &ShowProfile{ShowID: showID, MinScore: 70}, nil
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	profile := &ShowProfile{ShowID: showID, MinScore: minScore}
	if subgroupsCSV != "" {
		for _, g := range strings.Split(subgroupsCSV, ",") {
			if g = strings.TrimSpace(g); g != "" {
				profile.PreferredSubgroups = append(profile.PreferredSubgroups, g)
			}
		}
	}
	return profile, nil
}

// UpdateShowMeta updates the catalog id, status and total episode count.
// Passing a nil catalogID leaves the existing sticky mapping untouched.
func (s *Store) UpdateShowMeta(ctx context.Context, showID int64, catalogID *int64, status string, totalEps *int) error {
	if catalogID != nil {
		if _, err := s.db.ExecContext(ctx, `UPDATE shows SET catalog_id = ? WHERE id = ?`, *catalogID, showID); err != nil {
			return fmt.Errorf("set catalog id: %w", err)
		}
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE shows SET status = ? WHERE id = ?`, status, showID); err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	if totalEps != nil {
		if _, err := s.db.ExecContext(ctx, `UPDATE shows SET total_eps = ? WHERE id = ?`, *totalEps, showID); err != nil {
			return fmt.Errorf("set total_eps: %w", err)
		}
	}
	return nil
}

// SettingGet/SettingSet back the small schema_settings key/value table.
func (s *Store) SettingGet(ctx context.Context, key string) (string, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT value FROM schema_settings WHERE key = ?`, key)
	var val string
	if err := row.Scan(&val); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return val, true, nil
}

func (s *Store) SettingSet(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO schema_settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}
