package db

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"ladderwatch/internal/config"
)

// LoadConfig reads config from SQLite. If empty, returns defaults.
// Secrets are never stored; callers apply LoadSecrets afterwards.
func (d *DB) LoadConfig() *config.Config {
	cfg := config.Default()

	rows, err := d.sql.Query("SELECT key, value FROM config")
	if err != nil {
		return cfg
	}
	defer rows.Close()

	m := make(map[string]string)
	for rows.Next() {
		var k, v string
		rows.Scan(&k, &v)
		m[k] = v
	}

	if len(m) == 0 {
		return cfg
	}

	if v, ok := m["universe_size"]; ok {
		cfg.UniverseSize, _ = strconv.Atoi(v)
	}
	if v, ok := m["quote_asset"]; ok {
		cfg.QuoteAsset = v
	}
	if v, ok := m["extra_symbols"]; ok {
		var syms []string
		if err := json.Unmarshal([]byte(v), &syms); err == nil {
			cfg.ExtraSymbols = syms
		}
	}
	if v, ok := m["excluded_symbols"]; ok {
		var syms []string
		if err := json.Unmarshal([]byte(v), &syms); err == nil {
			cfg.ExcludedSymbols = syms
		}
	}
	if v, ok := m["history_days"]; ok {
		cfg.HistoryDays, _ = strconv.Atoi(v)
	}
	if v, ok := m["request_timeout"]; ok {
		if dur, err := time.ParseDuration(v); err == nil {
			cfg.RequestTimeout = dur
		}
	}
	if v, ok := m["max_concurrency"]; ok {
		cfg.MaxConcurrency, _ = strconv.Atoi(v)
	}
	if v, ok := m["binance_base_url"]; ok {
		cfg.BinanceBaseURL = v
	}
	if v, ok := m["gecko_base_url"]; ok {
		cfg.GeckoBaseURL = v
	}
	if v, ok := m["proximity_pct"]; ok {
		cfg.ProximityPct, _ = strconv.ParseFloat(v, 64)
	}
	if v, ok := m["h_overrides"]; ok {
		var ov map[string]float64
		if err := json.Unmarshal([]byte(v), &ov); err == nil {
			cfg.HOverrides = ov
		}
	}
	if v, ok := m["monitor_interval"]; ok {
		if dur, err := time.ParseDuration(v); err == nil {
			cfg.MonitorInterval = dur
		}
	}
	if v, ok := m["rebuild_at"]; ok {
		cfg.RebuildAt = v
	}
	if v, ok := m["metrics_addr"]; ok {
		cfg.MetricsAddr = v
	}
	if v, ok := m["alert_retention_days"]; ok {
		cfg.AlertRetentionDays, _ = strconv.Atoi(v)
	}
	if v, ok := m["data_dir"]; ok {
		cfg.DataDir = v
	}

	return cfg
}

// SaveConfig writes config to SQLite (upsert all fields).
func (d *DB) SaveConfig(cfg *config.Config) error {
	extraJSON := "[]"
	if b, err := json.Marshal(cfg.ExtraSymbols); err == nil {
		extraJSON = string(b)
	}
	excludedJSON := "[]"
	if b, err := json.Marshal(cfg.ExcludedSymbols); err == nil {
		excludedJSON = string(b)
	}
	overridesJSON := "{}"
	if b, err := json.Marshal(cfg.HOverrides); err == nil {
		overridesJSON = string(b)
	}

	pairs := map[string]string{
		"universe_size":        strconv.Itoa(cfg.UniverseSize),
		"quote_asset":          cfg.QuoteAsset,
		"extra_symbols":        extraJSON,
		"excluded_symbols":     excludedJSON,
		"history_days":         strconv.Itoa(cfg.HistoryDays),
		"request_timeout":      cfg.RequestTimeout.String(),
		"max_concurrency":      strconv.Itoa(cfg.MaxConcurrency),
		"binance_base_url":     cfg.BinanceBaseURL,
		"gecko_base_url":       cfg.GeckoBaseURL,
		"proximity_pct":        fmt.Sprintf("%g", cfg.ProximityPct),
		"h_overrides":          overridesJSON,
		"monitor_interval":     cfg.MonitorInterval.String(),
		"rebuild_at":           cfg.RebuildAt,
		"metrics_addr":         cfg.MetricsAddr,
		"alert_retention_days": strconv.Itoa(cfg.AlertRetentionDays),
		"data_dir":             cfg.DataDir,
	}

	tx, err := d.sql.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare("INSERT OR REPLACE INTO config (key, value) VALUES (?, ?)")
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for k, v := range pairs {
		if _, err := stmt.Exec(k, v); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}
