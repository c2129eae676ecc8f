// Package organizer moves organized episode files into the library tree
// and writes a disambiguating .nfo sidecar next to each one.
package organizer

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
)

// Service organizes files into library_root/<safe>/Season NN/<safe> - SxxEyy.ext.
type Service struct {
	libraryRoot string
	logger      zerolog.Logger
}

// NewService builds an organizer Service rooted at libraryRoot.
func NewService(libraryRoot string, logger zerolog.Logger) *Service {
	return &Service{libraryRoot: libraryRoot, logger: logger.With().Str("component", "organizer").Logger()}
}

var seasonSuffixPattern = regexp.MustCompile(`(?i)\s+(?:season|s)\s*\d{1,2}$`)
var seasonSuffixCJK = regexp.MustCompile(`第\s*\d{1,2}\s*[季期]\s*$`)

// DisplayTitle strips a trailing "Season N"/"S N"/"第N[季期]" suffix so a
// per-season show title collapses to its series root folder name.
func DisplayTitle(showTitle string) string {
	t := strings.TrimSpace(showTitle)
	t = seasonSuffixPattern.ReplaceAllString(t, "")
	t = seasonSuffixCJK.ReplaceAllString(t, "")
	return strings.TrimSpace(t)
}

var whitespacePattern = regexp.MustCompile(`\s+`)

// SafeName replaces path separators with " - " and squeezes whitespace, so
// a title is safe to use as a filesystem path component.
func SafeName(s string) string {
	s = strings.NewReplacer("/", " - ", "／", " - ", "\\", " - ").Replace(s)
	s = strings.TrimSpace(s)
	return whitespacePattern.ReplaceAllString(s, " ")
}

// SeriesDir returns the series root directory under the library for a show title.
func (s *Service) SeriesDir(showTitle string) string {
	return filepath.Join(s.libraryRoot, SafeName(DisplayTitle(showTitle)))
}

// SeasonDir returns a show's season directory.
func (s *Service) SeasonDir(showTitle string, season int) string {
	return filepath.Join(s.SeriesDir(showTitle), fmt.Sprintf("Season %02d", season))
}

// EpisodeFilename formats an organized episode's base filename (no directory).
func EpisodeFilename(showTitle string, season, epNo int, ext string) string {
	safeTitle := SafeName(DisplayTitle(showTitle))
	return fmt.Sprintf("%s - S%02dE%02d%s", safeTitle, season, epNo, ext)
}

// Organize moves src into its library destination and writes the .nfo
// sidecar, returning the final destination path.
func (s *Service) Organize(src, showTitle string, season, epNo int) (string, error) {
	destDir := s.SeasonDir(showTitle, season)
	if err := os.MkdirAll(destDir, 0o750); err != nil {
		return "", fmt.Errorf("create season dir: %w", err)
	}

	ext := filepath.Ext(src)
	dest := filepath.Join(destDir, EpisodeFilename(showTitle, season, epNo, ext))

	if err := s.moveFile(src, dest); err != nil {
		return "", fmt.Errorf("move file: %w", err)
	}

	if err := s.writeNFO(dest, showTitle, season, epNo); err != nil {
		s.logger.Warn().Err(err).Str("dest", dest).Msg("failed to write nfo sidecar")
	}

	return dest, nil
}

// moveFile renames src to dest, falling back to copy+delete across
// filesystem boundaries where rename fails.
func (s *Service) moveFile(src, dest string) error {
	if err := os.Rename(src, dest); err == nil {
		return nil
	}

	if err := s.copyFile(src, dest); err != nil {
		return err
	}
	if err := os.Remove(src); err != nil {
		s.logger.Warn().Err(err).Str("src", src).Msg("copied file but failed to remove source")
	}
	return nil
}

func (s *Service) copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode())
	if err != nil {
		return fmt.Errorf("create dest: %w", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dest)
		return fmt.Errorf("copy contents: %w", err)
	}
	return out.Close()
}

const nfoTemplate = `<?xml version="1.0" encoding="utf-8" standalone="yes"?>
<episodedetails>
  <plot />
  <lockdata>false</lockdata>
  <title>%s</title>
  <showtitle>%s</showtitle>
  <episode>%d</episode>
  <season>%d</season>
</episodedetails>
`

func (s *Service) writeNFO(destMediaPath, showTitle string, season, epNo int) error {
	base := strings.TrimSuffix(filepath.Base(destMediaPath), filepath.Ext(destMediaPath))
	safeTitle := SafeName(DisplayTitle(showTitle))
	nfoPath := filepath.Join(filepath.Dir(destMediaPath), base+".nfo")
	content := fmt.Sprintf(nfoTemplate, base, safeTitle, epNo, season)
	return os.WriteFile(nfoPath, []byte(content), 0o644)
}

// CleanEmptyFolders removes empty directories under root, deepest first.
func (s *Service) CleanEmptyFolders(root string) error {
	var dirs []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil //nolint:nilerr // best-effort cleanup, skip unreadable entries
		}
		if d.IsDir() && path != root {
			dirs = append(dirs, path)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for i := len(dirs) - 1; i >= 0; i-- {
		entries, err := os.ReadDir(dirs[i])
		if err != nil {
			continue
		}
		if len(entries) == 0 {
			os.Remove(dirs[i]) //nolint:errcheck // best-effort cleanup
		}
	}
	return nil
}
