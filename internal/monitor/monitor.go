// Package monitor is the realtime loop: every few minutes it prices each
// tracked asset against its next buy target and fires proximity and
// execution alerts, deduplicated per day. Once a day it rebuilds the
// universe and replays all histories from scratch.
package monitor

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ladderwatch/internal/builder"
	"ladderwatch/internal/config"
	"ladderwatch/internal/db"
	"ladderwatch/internal/engine"
	"ladderwatch/internal/logger"
	"ladderwatch/internal/metrics"
	"ladderwatch/internal/notify"
)

// PriceSource is the live-price view of the exchange.
type PriceSource interface {
	LatestPrice(ctx context.Context, symbol string) (float64, error)
	RecentLow(ctx context.Context, symbol string) (float64, error)
}

// UniverseSelector picks the tracked asset set.
type UniverseSelector interface {
	Select(ctx context.Context, topN int, extra, excluded []string) ([]db.UniverseAsset, error)
}

// Monitor drives the realtime alert loop.
type Monitor struct {
	cfg      *config.Config
	store    *db.DB
	prices   PriceSource
	selector UniverseSelector
	builder  *builder.Builder
	notifier *notify.Manager

	mu     sync.Mutex
	assets []db.UniverseAsset
	last   map[string]engine.Record
}

// New wires a Monitor. The builder is shared with the batch commands so both
// paths write identical record files.
func New(cfg *config.Config, store *db.DB, prices PriceSource, selector UniverseSelector, b *builder.Builder, notifier *notify.Manager) *Monitor {
	return &Monitor{
		cfg:      cfg,
		store:    store,
		prices:   prices,
		selector: selector,
		builder:  b,
		notifier: notifier,
		last:     map[string]engine.Record{},
	}
}

// Run blocks until ctx is cancelled: an initial rebuild, then the tick loop
// with a daily full rebuild. The metrics endpoint serves for the lifetime of
// the loop.
func (m *Monitor) Run(ctx context.Context) error {
	stopMetrics := m.serveMetrics(ctx)
	defer stopMetrics()

	if err := m.Rebuild(ctx); err != nil {
		return fmt.Errorf("initial rebuild: %w", err)
	}

	ticker := time.NewTicker(m.cfg.MonitorInterval)
	defer ticker.Stop()
	rebuild := time.NewTimer(untilNext(m.cfg.RebuildAt, time.Now().UTC()))
	defer rebuild.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Monitor", "Shutting down")
			return ctx.Err()
		case <-rebuild.C:
			if err := m.Rebuild(ctx); err != nil {
				logger.Error("Monitor", fmt.Sprintf("Rebuild failed: %v", err))
			}
			rebuild.Reset(untilNext(m.cfg.RebuildAt, time.Now().UTC()))
		case <-ticker.C:
			m.Tick(ctx)
		}
	}
}

// Rebuild reselects the universe, replays every asset, swaps the in-memory
// projection state, regenerates the analysis snapshot and expires stale
// alert-history rows.
func (m *Monitor) Rebuild(ctx context.Context) error {
	assets, err := m.selector.Select(ctx, m.cfg.UniverseSize, m.cfg.ExtraSymbols, m.cfg.ExcludedSymbols)
	if err != nil {
		return err
	}
	if err := m.store.ReplaceUniverse(assets); err != nil {
		return err
	}

	results, err := m.builder.BuildAll(ctx, assets)
	if err != nil {
		return err
	}

	last := make(map[string]engine.Record, len(results))
	for _, r := range results {
		if r.Err == nil {
			last[r.Asset.Symbol] = r.Last
		}
	}

	m.mu.Lock()
	m.assets = assets
	m.last = last
	m.mu.Unlock()

	// Analysis snapshot off the fresh replays. A price fetch failure falls
	// back to the last close inside WriteAnalysis.
	prices := make(map[string]float64, len(results))
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		p, err := m.prices.LatestPrice(ctx, r.Asset.Symbol)
		if err != nil {
			metrics.ExchangeErrors.WithLabelValues("price").Inc()
			continue
		}
		prices[r.Asset.Symbol] = p
	}
	if err := m.builder.WriteAnalysis(m.builder.AnalysisPath(), results, prices); err != nil {
		logger.Warn("Monitor", fmt.Sprintf("Analysis snapshot: %v", err))
	}

	if n, err := m.store.CleanupOldAlertHistory(m.cfg.AlertRetentionDays); err != nil {
		logger.Warn("Monitor", fmt.Sprintf("Alert history cleanup: %v", err))
	} else if n > 0 {
		logger.Info("Monitor", fmt.Sprintf("Expired %d old alert-history rows", n))
	}

	metrics.UniverseSize.Set(float64(len(assets)))
	metrics.LastRebuildUnix.Set(float64(time.Now().Unix()))
	logger.Success("Monitor", fmt.Sprintf("Rebuilt universe: %d assets, %d with state", len(assets), len(last)))
	return nil
}

// Tick runs one monitoring pass over every asset with replay state.
func (m *Monitor) Tick(ctx context.Context) {
	m.mu.Lock()
	assets := m.assets
	last := m.last
	m.mu.Unlock()

	today := time.Now().UTC().Format("2006-01-02")
	for _, asset := range assets {
		if ctx.Err() != nil {
			return
		}
		rec, ok := last[asset.Symbol]
		if !ok {
			continue
		}
		if err := m.checkAsset(ctx, asset, rec, today); err != nil {
			logger.Warn("Monitor", fmt.Sprintf("%s: %v", asset.Symbol, err))
		}
	}
	metrics.MonitorTicks.Inc()
}

// checkAsset prices one asset against its projected target and fires the
// proximity and execution alerts when due.
func (m *Monitor) checkAsset(ctx context.Context, asset db.UniverseAsset, rec engine.Record, today string) error {
	price, err := m.prices.LatestPrice(ctx, asset.Symbol)
	if err != nil {
		metrics.ExchangeErrors.WithLabelValues("price").Inc()
		return fmt.Errorf("price: %w", err)
	}

	o := engine.Project(rec, price)
	if o.NextTarget == "" || o.NextPrice <= 0 {
		// Sentinels and fully-laddered states carry no actionable price.
		return nil
	}

	// Proximity: price within the configured band above the target.
	if o.DistancePct >= 0 && o.DistancePct <= m.cfg.ProximityPct {
		m.fire(db.AlertKindProximity, asset, o, price, today, func() ([]string, map[string]string) {
			return m.notifier.SendProximity(asset.Symbol, asset.Rank, price, o.NextTarget, o.NextPrice, o.DistancePct, o.ReferenceH)
		})
	}

	// Execution: the intraday low actually touched the level.
	low, err := m.prices.RecentLow(ctx, asset.Symbol)
	if err != nil {
		metrics.ExchangeErrors.WithLabelValues("low").Inc()
		return fmt.Errorf("recent low: %w", err)
	}
	if low > 0 && low <= o.NextPrice {
		m.fire(db.AlertKindExecution, asset, o, price, today, func() ([]string, map[string]string) {
			return m.notifier.SendExecution(asset.Symbol, asset.Rank, price, o.NextTarget, o.NextPrice, o.ReferenceH)
		})
	}
	return nil
}

// fire sends one alert unless the same (symbol, target, kind) key already
// went out today, then records the delivery outcome.
func (m *Monitor) fire(kind string, asset db.UniverseAsset, o engine.Outlook, price float64, today string, send func() ([]string, map[string]string)) {
	sent, err := m.store.WasAlertedToday(asset.Symbol, o.NextTarget, kind, today)
	if err != nil {
		logger.Warn("Monitor", fmt.Sprintf("%s: alert lookup: %v", asset.Symbol, err))
		return
	}
	if sent {
		metrics.AlertsSuppressed.Inc()
		return
	}

	channels, failed := send()
	for _, ch := range channels {
		metrics.AlertsSent.WithLabelValues(kind, ch).Inc()
	}
	for ch, msg := range failed {
		logger.Warn("Monitor", fmt.Sprintf("%s: %s delivery failed: %s", asset.Symbol, ch, msg))
	}

	entry := db.AlertHistoryEntry{
		Symbol:         asset.Symbol,
		Target:         o.NextTarget,
		Kind:           kind,
		SentDate:       today,
		Price:          price,
		DistancePct:    o.DistancePct,
		Message:        fmt.Sprintf("%s %s @ %.8g", asset.Symbol, o.NextTarget, o.NextPrice),
		ChannelsSent:   channels,
		ChannelsFailed: failed,
	}
	if err := m.store.SaveAlertHistory(entry); err != nil {
		logger.Warn("Monitor", fmt.Sprintf("%s: alert history: %v", asset.Symbol, err))
	}
}

// serveMetrics exposes /metrics until ctx ends. The returned func blocks
// until the server is down.
func (m *Monitor) serveMetrics(ctx context.Context) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: m.cfg.MetricsAddr, Handler: mux}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn("Monitor", fmt.Sprintf("Metrics server: %v", err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
	return func() { <-done }
}

// untilNext returns the duration until the next daily occurrence of the
// HH:MM wall-clock time in UTC. A malformed spec falls back to midnight.
func untilNext(hhmm string, now time.Time) time.Duration {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		t = time.Time{}
	}
	next := time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next.Sub(now)
}
