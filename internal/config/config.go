package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Qbit       QbitConfig       `mapstructure:"qbit"`
	Library    LibraryConfig    `mapstructure:"library"`
	Sources    SourcesConfig    `mapstructure:"sources"`
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	Jellyfin   JellyfinConfig   `mapstructure:"jellyfin"`
	Catalog    CatalogConfig    `mapstructure:"catalog"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	Jobs       JobsConfig       `mapstructure:"jobs"`
	Reconciler ReconcilerConfig `mapstructure:"reconciler"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// QbitConfig holds qBittorrent Web API connection settings.
type QbitConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Category string `mapstructure:"category"`
	SaveRoot string `mapstructure:"save_root"`
}

// Address returns the qBittorrent Web UI base URL.
func (q *QbitConfig) Address() string {
	return fmt.Sprintf("http://%s:%d", q.Host, q.Port)
}

// LibraryConfig holds filesystem layout configuration.
type LibraryConfig struct {
	IncomingRoot       string `mapstructure:"incoming_root"`
	LibraryRoot        string `mapstructure:"library_root"`
	HashManifestDir    string `mapstructure:"hash_manifest_dir"`
	ReviewQueuePath    string `mapstructure:"review_queue_path"`
	PreferredSubgroups string `mapstructure:"preferred_subgroups"` // CSV, global fallback
}

// SubgroupList splits the CSV preferred subgroup list, trimming whitespace.
func (l *LibraryConfig) SubgroupList() []string {
	return splitCSV(l.PreferredSubgroups)
}

// SourcesConfig holds release source adapter configuration.
type SourcesConfig struct {
	RSSURLs                   string `mapstructure:"rss_urls"` // CSV
	RSSTimeoutSec             int    `mapstructure:"rss_timeout_sec"`
	RSSMaxEntriesPerFeed      int    `mapstructure:"rss_max_entries_per_feed"`
	FallbackAPIBaseURL        string `mapstructure:"fallback_api_base_url"`
	FallbackAPIPages          int    `mapstructure:"fallback_bangumi_api_pages"`
	FallbackAPIResultsPerShow int    `mapstructure:"fallback_api_results_per_show"`
	DetailPageHost            string `mapstructure:"detail_page_host"`
	SearchFeedBaseURL         string `mapstructure:"search_feed_base_url"`     // per-term search RSS host
	AggregatorFeedBaseURL     string `mapstructure:"aggregator_feed_base_url"` // per-term category RSS host
}

// RSSURLList splits the CSV configured feed list.
func (s *SourcesConfig) RSSURLList() []string {
	return splitCSV(s.RSSURLs)
}

// TelegramConfig holds Telegram bot notification settings.
type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
}

// JellyfinConfig holds Jellyfin media server reconciliation settings.
type JellyfinConfig struct {
	Host   string `mapstructure:"host"`
	Port   int    `mapstructure:"port"`
	APIKey string `mapstructure:"api_key"`
}

// CatalogConfig holds external anime catalog API settings.
type CatalogConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// PipelineConfig holds the release pipeline's bounding knobs.
type PipelineConfig struct {
	MaxEpisodeQueriesPerShow int `mapstructure:"max_episode_queries_per_show"`
	MaxSearchTermsPerShow    int `mapstructure:"max_search_terms_per_show"`
	MaxFeedURLsPerShow       int `mapstructure:"max_feed_urls_per_show"`
	MaxCandidatesPerShow     int `mapstructure:"max_candidates_per_show"`
	PerShowTimeBudgetSec     int `mapstructure:"per_show_time_budget_sec"`
	MaxAddPerShowPerCycle    int `mapstructure:"max_add_per_show_per_cycle"`
}

// JobsConfig holds job runner defaults.
type JobsConfig struct {
	DefaultTimeoutSec int `mapstructure:"default_timeout_sec"`
	WatchdogGraceSec  int `mapstructure:"watchdog_grace_sec"`
	HistorySize       int `mapstructure:"history_size"`
}

// ReconcilerConfig holds the file-reconciliation sweep's tuning knobs.
type ReconcilerConfig struct {
	MinFileSizeMB            int `mapstructure:"min_file_size_mb"`
	ReadinessAgeSec          int `mapstructure:"readiness_age_sec"`
	RuntimeOutlierMinSamples int `mapstructure:"runtime_outlier_min_samples"`
	TorrentMaxAgeHours       int `mapstructure:"torrent_max_age_hours"`
}

func splitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Default returns a Config with default values.
func Default() *Config {
	dataDir := getDataDir()
	logDir := getLogDir()

	return &Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8080,
		},
		Database: DatabaseConfig{
			Path: filepath.Join(dataDir, "animarr.db"),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			Path:   logDir,
		},
		Qbit: QbitConfig{
			Host:     "127.0.0.1",
			Port:     8080,
			Category: "animarr",
			SaveRoot: filepath.Join(dataDir, "incoming"),
		},
		Library: LibraryConfig{
			IncomingRoot:    filepath.Join(dataDir, "incoming"),
			LibraryRoot:     filepath.Join(dataDir, "library"),
			HashManifestDir: filepath.Join(dataDir, "hash-manifests"),
			ReviewQueuePath: filepath.Join(dataDir, "memory", "bangumi-review-queue.jsonl"),
		},
		Sources: SourcesConfig{
			RSSTimeoutSec:             8,
			RSSMaxEntriesPerFeed:      60,
			FallbackAPIPages:          1,
			FallbackAPIResultsPerShow: 50,
			SearchFeedBaseURL:         "https://bangumi.moe",
			AggregatorFeedBaseURL:     "https://nyaa.si",
		},
		Catalog: CatalogConfig{
			BaseURL:        "https://graphql.anilist.co",
			TimeoutSeconds: 15,
		},
		Pipeline: PipelineConfig{
			MaxEpisodeQueriesPerShow: 6,
			MaxSearchTermsPerShow:    12,
			MaxFeedURLsPerShow:       24,
			MaxCandidatesPerShow:     180,
			PerShowTimeBudgetSec:     25,
			MaxAddPerShowPerCycle:    5,
		},
		Jobs: JobsConfig{
			DefaultTimeoutSec: 80,
			WatchdogGraceSec:  5,
			HistorySize:       200,
		},
		Reconciler: ReconcilerConfig{
			MinFileSizeMB:            50,
			ReadinessAgeSec:          180,
			RuntimeOutlierMinSamples: 3,
			TorrentMaxAgeHours:       12,
		},
	}
}

// Load reads configuration from file and environment variables.
// Priority: environment variables > .env file > config file > defaults.
func Load(configPath string) (*Config, error) {
	envFiles := []string{".env", "configs/.env"}
	for _, envFile := range envFiles {
		if _, err := os.Stat(envFile); err == nil {
			_ = godotenv.Load(envFile) // secrets optional
			break
		}
	}

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		switch runtime.GOOS {
		case "windows":
			if appData := os.Getenv("APPDATA"); appData != "" {
				v.AddConfigPath(filepath.Join(appData, "animarr"))
			}
		case "darwin":
			if home, err := os.UserHomeDir(); err == nil {
				v.AddConfigPath(filepath.Join(home, "Library", "Application Support", "animarr"))
			}
		case "linux":
			configHome := os.Getenv("XDG_CONFIG_HOME")
			if configHome == "" {
				if home, err := os.UserHomeDir(); err == nil {
					configHome = filepath.Join(home, ".config")
				}
			}
			if configHome != "" {
				v.AddConfigPath(filepath.Join(configHome, "animarr"))
			}
		}
		v.AddConfigPath("$HOME/.animarr")
	}

	v.SetEnvPrefix("ANIMARR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)

	v.SetDefault("database.path", d.Database.Path)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.path", d.Logging.Path)

	v.SetDefault("qbit.host", d.Qbit.Host)
	v.SetDefault("qbit.port", d.Qbit.Port)
	v.SetDefault("qbit.username", d.Qbit.Username)
	v.SetDefault("qbit.password", d.Qbit.Password)
	v.SetDefault("qbit.category", d.Qbit.Category)
	v.SetDefault("qbit.save_root", d.Qbit.SaveRoot)

	v.SetDefault("library.incoming_root", d.Library.IncomingRoot)
	v.SetDefault("library.library_root", d.Library.LibraryRoot)
	v.SetDefault("library.hash_manifest_dir", d.Library.HashManifestDir)
	v.SetDefault("library.review_queue_path", d.Library.ReviewQueuePath)
	v.SetDefault("library.preferred_subgroups", d.Library.PreferredSubgroups)

	v.SetDefault("sources.rss_urls", d.Sources.RSSURLs)
	v.SetDefault("sources.fallback_api_base_url", d.Sources.FallbackAPIBaseURL)
	v.SetDefault("sources.detail_page_host", d.Sources.DetailPageHost)
	v.SetDefault("sources.rss_timeout_sec", d.Sources.RSSTimeoutSec)
	v.SetDefault("sources.rss_max_entries_per_feed", d.Sources.RSSMaxEntriesPerFeed)
	v.SetDefault("sources.fallback_bangumi_api_pages", d.Sources.FallbackAPIPages)
	v.SetDefault("sources.fallback_api_results_per_show", d.Sources.FallbackAPIResultsPerShow)
	v.SetDefault("sources.search_feed_base_url", d.Sources.SearchFeedBaseURL)
	v.SetDefault("sources.aggregator_feed_base_url", d.Sources.AggregatorFeedBaseURL)

	v.SetDefault("telegram.bot_token", d.Telegram.BotToken)
	v.SetDefault("telegram.chat_id", d.Telegram.ChatID)

	v.SetDefault("jellyfin.host", d.Jellyfin.Host)
	v.SetDefault("jellyfin.port", d.Jellyfin.Port)
	v.SetDefault("jellyfin.api_key", d.Jellyfin.APIKey)

	v.SetDefault("catalog.base_url", d.Catalog.BaseURL)
	v.SetDefault("catalog.timeout_seconds", d.Catalog.TimeoutSeconds)

	v.SetDefault("pipeline.max_episode_queries_per_show", d.Pipeline.MaxEpisodeQueriesPerShow)
	v.SetDefault("pipeline.max_search_terms_per_show", d.Pipeline.MaxSearchTermsPerShow)
	v.SetDefault("pipeline.max_feed_urls_per_show", d.Pipeline.MaxFeedURLsPerShow)
	v.SetDefault("pipeline.max_candidates_per_show", d.Pipeline.MaxCandidatesPerShow)
	v.SetDefault("pipeline.per_show_time_budget_sec", d.Pipeline.PerShowTimeBudgetSec)
	v.SetDefault("pipeline.max_add_per_show_per_cycle", d.Pipeline.MaxAddPerShowPerCycle)

	v.SetDefault("jobs.default_timeout_sec", d.Jobs.DefaultTimeoutSec)
	v.SetDefault("jobs.watchdog_grace_sec", d.Jobs.WatchdogGraceSec)
	v.SetDefault("jobs.history_size", d.Jobs.HistorySize)

	v.SetDefault("reconciler.min_file_size_mb", d.Reconciler.MinFileSizeMB)
	v.SetDefault("reconciler.readiness_age_sec", d.Reconciler.ReadinessAgeSec)
	v.SetDefault("reconciler.runtime_outlier_min_samples", d.Reconciler.RuntimeOutlierMinSamples)
	v.SetDefault("reconciler.torrent_max_age_hours", d.Reconciler.TorrentMaxAgeHours)
}

// Address returns the server address string.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// getDataDir returns the platform-specific data directory.
func getDataDir() string {
	switch runtime.GOOS {
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "animarr")
		}
	case "darwin":
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, "Library", "Application Support", "animarr")
		}
	case "linux":
		configHome := os.Getenv("XDG_CONFIG_HOME")
		if configHome == "" {
			if home, err := os.UserHomeDir(); err == nil {
				configHome = filepath.Join(home, ".config")
			}
		}
		if configHome != "" {
			return filepath.Join(configHome, "animarr")
		}
	}
	return "./data"
}

// getLogDir returns the platform-specific log directory.
func getLogDir() string {
	switch runtime.GOOS {
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "animarr", "logs")
		}
	case "darwin":
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, "Library", "Logs", "animarr")
		}
	case "linux":
		configHome := os.Getenv("XDG_CONFIG_HOME")
		if configHome == "" {
			if home, err := os.UserHomeDir(); err == nil {
				configHome = filepath.Join(home, ".config")
			}
		}
		if configHome != "" {
			return filepath.Join(configHome, "animarr", "logs")
		}
	}
	return "./data/logs"
}

// FindAvailablePort finds an available port starting from preferredPort.
func FindAvailablePort(preferredPort, maxAttempts int) (int, error) {
	for i := 0; i < maxAttempts; i++ {
		port := preferredPort + i
		addr := fmt.Sprintf(":%d", port)
		listener, err := net.Listen("tcp", addr)
		if err == nil {
			listener.Close()
			return port, nil
		}
	}
	return 0, fmt.Errorf("no available port found in range %d-%d", preferredPort, preferredPort+maxAttempts-1)
}

// Deadline is an explicit, monotonic per-call time budget threaded through
// fetchers instead of kept as ambient state (see internal/sources).
type Deadline struct {
	at time.Time
}

// NewDeadline returns a Deadline expiring after d from now.
func NewDeadline(d time.Duration) Deadline {
	return Deadline{at: time.Now().Add(d)}
}

// Remaining returns the time left before the deadline, zero or negative once expired.
func (dl Deadline) Remaining() time.Duration {
	return time.Until(dl.at)
}

// Expired reports whether the deadline has passed.
func (dl Deadline) Expired() bool {
	return dl.Remaining() <= 0
}

// Budget returns the smaller of the default and the remaining time on the deadline.
func (dl Deadline) Budget(def time.Duration) time.Duration {
	rem := dl.Remaining()
	if rem < def {
		if rem < 0 {
			return 0
		}
		return rem
	}
	return def
}
