// Package torrent wraps a qBittorrent Web API client with the add/list/
// delete/health surface the pipeline, reconciler and maintenance jobs need.
package torrent

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
	qbt "github.com/autobrr/go-qbittorrent"
	"github.com/rs/zerolog"
)

// minSetTagsVersion is the qBittorrent Web API version that introduced the
// bulk SetTags endpoint.
var minSetTagsVersion = semver.MustParse("2.11.4")

// filteredWriter drops qBittorrent's known noisy stderr log lines, forwarding
// everything else to the wrapped writer so the rest of the daemon's stdlib
// log output still reaches it.
type filteredWriter struct {
	writer io.Writer
}

func (fw filteredWriter) Write(p []byte) (int, error) {
	s := string(p)
	if strings.Contains(s, "Unsolicited response received on idle HTTP channel") {
		return len(p), nil
	}
	return fw.writer.Write(p)
}

func init() {
	log.SetOutput(filteredWriter{writer: os.Stderr})
}

// Client wraps a qBittorrent connection with health tracking and category/
// tag helpers for the daemon's incoming-download workflow.
type Client struct {
	*qbt.Client

	category        string
	webAPIVersion   string
	supportsSetTags bool

	mu              sync.RWMutex
	lastHealthCheck time.Time
	isHealthy       bool
}

// Config holds the qBittorrent connection's settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	Category string
}

// NewClient logs into qBittorrent and reports its Web API version.
func NewClient(ctx context.Context, cfg Config, logger zerolog.Logger) (*Client, error) {
	host := fmt.Sprintf("http://%s:%d", cfg.Host, cfg.Port)
	qc := qbt.NewClient(qbt.Config{
		Host:     host,
		Username: cfg.Username,
		Password: cfg.Password,
		Timeout:  30,
	})

	loginCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := qc.LoginCtx(loginCtx); err != nil {
		return nil, fmt.Errorf("qbittorrent login: %w", err)
	}

	version, err := qc.GetWebAPIVersionCtx(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("could not determine qbittorrent web api version")
	}

	supportsSetTags := false
	if v, err := semver.NewVersion(version); err == nil {
		supportsSetTags = !v.LessThan(minSetTagsVersion)
	}

	return &Client{
		Client:          qc,
		category:        cfg.Category,
		webAPIVersion:   version,
		supportsSetTags: supportsSetTags,
		lastHealthCheck: time.Now(),
		isHealthy:       true,
	}, nil
}

// IsHealthy reports the last known connection health.
func (c *Client) IsHealthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isHealthy
}

// HealthCheck re-logs in on failure and updates the health state.
func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := c.Client.GetTorrentsCtx(ctx, qbt.TorrentFilterOptions{Limit: 1})
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastHealthCheck = time.Now()
	if err != nil {
		c.isHealthy = false
		if loginErr := c.Client.LoginCtx(ctx); loginErr == nil {
			c.isHealthy = true
			return nil
		}
		return err
	}
	c.isHealthy = true
	return nil
}

// AddMagnet adds a magnet link under the configured category, saving to savePath.
func (c *Client) AddMagnet(ctx context.Context, magnetURI, savePath string) error {
	options := map[string]string{"category": c.category}
	if savePath != "" {
		options["savepath"] = savePath
	}
	return c.Client.AddTorrentFromUrlCtx(ctx, magnetURI, options)
}

// AddTorrentFile adds a .torrent file's raw bytes under the configured
// category, saving to savePath.
func (c *Client) AddTorrentFile(ctx context.Context, content []byte, savePath string) error {
	options := map[string]string{"category": c.category}
	if savePath != "" {
		options["savepath"] = savePath
	}
	return c.Client.AddTorrentFromMemoryCtx(ctx, content, options)
}

// List returns every torrent in the configured category.
func (c *Client) List(ctx context.Context) ([]qbt.Torrent, error) {
	return c.Client.GetTorrentsCtx(ctx, qbt.TorrentFilterOptions{Category: &c.category})
}

// FindTorrentForFile looks up the torrent whose content or save path covers
// filePath, for the reconciler's readiness gate and removal requests.
func (c *Client) FindTorrentForFile(ctx context.Context, filePath string) (progress float64, hash string, found bool) {
	torrents, err := c.List(ctx)
	if err != nil {
		return 0, "", false
	}
	for _, t := range torrents {
		if t.ContentPath != "" && strings.HasPrefix(filePath, t.ContentPath) {
			return t.Progress, t.Hash, true
		}
		if t.SavePath != "" && strings.HasPrefix(filePath, t.SavePath) {
			return t.Progress, t.Hash, true
		}
	}
	return 0, "", false
}

// Delete removes torrents by hash, optionally deleting their files.
func (c *Client) Delete(ctx context.Context, hashes []string, deleteFiles bool) error {
	if len(hashes) == 0 {
		return nil
	}
	return c.Client.DeleteTorrentsCtx(ctx, hashes, deleteFiles)
}

// SupportsSetTags reports whether the connected qBittorrent's Web API
// version supports the bulk SetTags endpoint.
func (c *Client) SupportsSetTags() bool {
	return c.supportsSetTags
}

// WebAPIVersion returns the connected qBittorrent's Web API version string.
func (c *Client) WebAPIVersion() string {
	return c.webAPIVersion
}
