// Package notify sends operator-facing notifications over a Telegram bot,
// firing on reconciler organize-success and job-failure events.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const telegramAPIBase = "https://api.telegram.org/bot"

// Config holds the Telegram bot's connection settings.
type Config struct {
	BotToken string
	ChatID   string
}

// Notifier posts operator messages to a Telegram chat.
type Notifier struct {
	cfg        Config
	apiBase    string
	httpClient *http.Client
	logger     zerolog.Logger
}

// New builds a Notifier. It is safe to construct with a blank Config:
// IsConfigured reports false and Notify becomes a no-op.
func New(cfg Config, logger zerolog.Logger) *Notifier {
	return &Notifier{
		cfg:        cfg,
		apiBase:    telegramAPIBase,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger.With().Str("component", "notify").Logger(),
	}
}

// IsConfigured reports whether a bot token and chat ID were supplied.
func (n *Notifier) IsConfigured() bool {
	return n.cfg.BotToken != "" && n.cfg.ChatID != ""
}

// Notify sends a plain-text operator message. A no-op, successful Notifier
// lets callers fire-and-forget without checking IsConfigured themselves.
func (n *Notifier) Notify(ctx context.Context, message string) error {
	if !n.IsConfigured() {
		return nil
	}
	return n.sendMessage(ctx, html.EscapeString(message))
}

// NotifyOrganized announces a file that was successfully probed, hashed and
// moved into the library.
func (n *Notifier) NotifyOrganized(ctx context.Context, showTitle string, season, epNo int) error {
	return n.Notify(ctx, fmt.Sprintf("organized %s S%02dE%02d", showTitle, season, epNo))
}

// NotifyJobFailed announces a background job that ended in a failed state.
func (n *Notifier) NotifyJobFailed(ctx context.Context, jobKind string, jobErr error) error {
	return n.Notify(ctx, fmt.Sprintf("job %s failed: %v", jobKind, jobErr))
}

func (n *Notifier) sendMessage(ctx context.Context, text string) error {
	url := fmt.Sprintf("%s%s/sendMessage", n.apiBase, n.cfg.BotToken)

	payload := map[string]any{
		"chat_id":    n.cfg.ChatID,
		"text":       text,
		"parse_mode": "HTML",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		n.logger.Warn().Err(err).Msg("telegram send failed")
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var result struct {
			OK          bool   `json:"ok"`
			Description string `json:"description"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&result); err == nil && result.Description != "" {
			return fmt.Errorf("telegram error: %s", result.Description)
		}
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}

	return nil
}
