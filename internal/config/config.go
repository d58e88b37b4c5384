// Package config holds the application settings. Persistence of the mutable
// subset is handled by the internal/db package; secrets come from the
// environment only and are never written to disk.
package config

import (
	"os"
	"strings"
	"time"
)

// Config holds application settings (in-memory representation).
type Config struct {
	// Universe selection.
	UniverseSize    int      `json:"universe_size"`     // top N by market cap
	QuoteAsset      string   `json:"quote_asset"`       // trading pair quote, e.g. USDT
	ExtraSymbols    []string `json:"extra_symbols"`     // always included, bypass ranking
	ExcludedSymbols []string `json:"excluded_symbols"`  // operator blacklist on top of builtin filters

	// Candle ingestion.
	HistoryDays     int           `json:"history_days"`
	RequestTimeout  time.Duration `json:"request_timeout"`
	MaxConcurrency  int           `json:"max_concurrency"` // parallel per-asset replays and fetches
	BinanceBaseURL  string        `json:"binance_base_url"`
	GeckoBaseURL    string        `json:"gecko_base_url"`

	// Engine.
	ProximityPct float64            `json:"proximity_pct"` // alert when price is within this % of the next target
	HOverrides   map[string]float64 `json:"h_overrides"`   // symbol -> manual reference high seed

	// Realtime monitor.
	MonitorInterval    time.Duration `json:"monitor_interval"`
	RebuildAt          string        `json:"rebuild_at"`           // HH:MM UTC, daily full rebuild
	MetricsAddr        string        `json:"metrics_addr"`
	AlertRetentionDays int           `json:"alert_retention_days"` // history rows older than this are expired on rebuild

	// Output.
	DataDir string `json:"data_dir"`
	DBPath  string `json:"db_path"`

	// Notification transports. Secrets are filled from the environment by
	// LoadSecrets, never persisted.
	TelegramEnabled  bool     `json:"telegram_enabled"`
	TelegramToken    string   `json:"-"`
	TelegramChatIDs  []string `json:"-"`
	SlackEnabled     bool     `json:"slack_enabled"`
	SlackWebhookURL  string   `json:"-"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		UniverseSize:       100,
		QuoteAsset:         "USDT",
		HistoryDays:        1000,
		RequestTimeout:     20 * time.Second,
		MaxConcurrency:     8,
		BinanceBaseURL:     "https://api.binance.com",
		GeckoBaseURL:       "https://api.coingecko.com/api/v3",
		ProximityPct:       5,
		MonitorInterval:    5 * time.Minute,
		RebuildAt:          "00:00",
		MetricsAddr:        ":9190",
		AlertRetentionDays: 90,
		DataDir:            "data",
		DBPath:             "ladderwatch.db",
		HOverrides:         map[string]float64{},
	}
}

// LoadSecrets fills the notification credentials from the environment:
// TELEGRAM_TOKEN, TELEGRAM_CHAT_IDS (comma-separated) and SLACK_WEBHOOK_URL.
// A transport is enabled only when its credentials are present.
func (c *Config) LoadSecrets() {
	if tok := os.Getenv("TELEGRAM_TOKEN"); tok != "" {
		c.TelegramToken = tok
		for _, id := range strings.Split(os.Getenv("TELEGRAM_CHAT_IDS"), ",") {
			if id = strings.TrimSpace(id); id != "" {
				c.TelegramChatIDs = append(c.TelegramChatIDs, id)
			}
		}
		c.TelegramEnabled = len(c.TelegramChatIDs) > 0
	}
	if url := os.Getenv("SLACK_WEBHOOK_URL"); url != "" {
		c.SlackWebhookURL = url
		c.SlackEnabled = true
	}
}
