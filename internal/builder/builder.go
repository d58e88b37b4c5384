// Package builder runs the batch pipeline: fetch each tracked asset's daily
// history, replay it through the engine, and write the per-asset debug
// record stream plus the cross-asset analysis snapshot.
package builder

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"

	"ladderwatch/internal/db"
	"ladderwatch/internal/engine"
	"ladderwatch/internal/logger"
	"ladderwatch/internal/metrics"
)

// CandleSource supplies daily history for a symbol.
type CandleSource interface {
	DailyCandles(ctx context.Context, symbol string, days int) ([]engine.Candle, error)
}

// Options configure a build run.
type Options struct {
	DataDir     string
	HistoryDays int
	Concurrency int
	// HOverrides seeds the reference high for symbols whose real peak
	// predates the available history.
	HOverrides map[string]float64
}

// Builder executes replays in parallel and owns the output directory.
type Builder struct {
	src  CandleSource
	opts Options
}

// Result is the per-asset outcome of a build.
type Result struct {
	Asset db.UniverseAsset
	Rows  int
	Last  engine.Record // final snapshot row, feeds the analysis projector
	Err   error
}

// New creates a Builder. Concurrency <= 0 defaults to 8.
func New(src CandleSource, opts Options) *Builder {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 8
	}
	if opts.DataDir == "" {
		opts.DataDir = "data"
	}
	return &Builder{src: src, opts: opts}
}

// BuildAll replays every asset and writes one <SYMBOL>_debug.csv per asset.
// Per-asset failures are reported in the results, not returned: one bad
// symbol never aborts the batch. The returned error covers setup only.
func (b *Builder) BuildAll(ctx context.Context, assets []db.UniverseAsset) ([]Result, error) {
	if err := os.MkdirAll(b.opts.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	results := make([]Result, len(assets))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(b.opts.Concurrency)
	for i, asset := range assets {
		i, asset := i, asset
		g.Go(func() error {
			res := b.buildOne(ctx, asset)
			mu.Lock()
			results[i] = res
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	ok := 0
	for _, r := range results {
		if r.Err == nil {
			ok++
		}
	}
	logger.Success("Builder", fmt.Sprintf("Replayed %d/%d assets", ok, len(assets)))
	return results, nil
}

func (b *Builder) buildOne(ctx context.Context, asset db.UniverseAsset) Result {
	res := Result{Asset: asset}

	candles, err := b.src.DailyCandles(ctx, asset.Symbol, b.opts.HistoryDays)
	if err != nil {
		metrics.ReplaysTotal.WithLabelValues("error").Inc()
		logger.Warn("Builder", fmt.Sprintf("%s: fetch failed: %v", asset.Symbol, err))
		res.Err = err
		return res
	}

	rows, err := engine.Replay(candles, engine.ReplayOptions{
		SeedH: b.opts.HOverrides[asset.Symbol],
	})
	if err == engine.ErrEmptyStream {
		// No usable history: skip without writing a record file.
		metrics.ReplaysTotal.WithLabelValues("skipped").Inc()
		logger.Warn("Builder", fmt.Sprintf("%s: no usable candles, skipped", asset.Symbol))
		res.Err = err
		return res
	}
	if err != nil {
		metrics.ReplaysTotal.WithLabelValues("error").Inc()
		res.Err = err
		return res
	}

	path := b.RecordPath(asset.Symbol)
	if err := writeRecordCSV(path, rows); err != nil {
		metrics.ReplaysTotal.WithLabelValues("error").Inc()
		res.Err = fmt.Errorf("write %s: %w", path, err)
		return res
	}

	metrics.ReplaysTotal.WithLabelValues("ok").Inc()
	res.Rows = len(rows)
	res.Last = rows[len(rows)-1]
	return res
}

// RecordPath returns the debug record file for a symbol.
func (b *Builder) RecordPath(symbol string) string {
	return filepath.Join(b.opts.DataDir, symbol+"_debug.csv")
}

// AnalysisPath returns the cross-asset snapshot file.
func (b *Builder) AnalysisPath() string {
	return filepath.Join(b.opts.DataDir, "analysis.csv")
}

// writeRecordCSV overwrites the record file atomically: the replay is
// write-once, a half-written file must never be visible.
func writeRecordCSV(path string, rows []engine.Record) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}

	w := csv.NewWriter(f)
	if err := w.Write(engine.Columns); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	for _, r := range rows {
		if err := w.Write(r.CSV()); err != nil {
			f.Close()
			os.Remove(tmp)
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// analysisColumns is the cross-asset snapshot header.
var analysisColumns = []string{
	"symbol", "name", "rank", "market_cap",
	"last_date", "last_close", "current_price",
	"next_target", "next_price", "distance_pct", "reference_H",
}

// WriteAnalysis projects every successful result against a live price and
// writes the one-row-per-asset snapshot, ordered by rank.
func (b *Builder) WriteAnalysis(path string, results []Result, prices map[string]float64) error {
	ordered := make([]Result, 0, len(results))
	for _, r := range results {
		if r.Err == nil {
			ordered = append(ordered, r)
		}
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Asset.Rank < ordered[j].Asset.Rank })

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.Write(analysisColumns); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}

	for _, r := range ordered {
		price := prices[r.Asset.Symbol]
		if price <= 0 {
			price = r.Last.Close
		}
		o := engine.Project(r.Last, price)
		row := []string{
			r.Asset.Symbol,
			r.Asset.Name,
			strconv.Itoa(r.Asset.Rank),
			strconv.FormatFloat(r.Asset.MarketCap, 'f', -1, 64),
			r.Last.Date,
			strconv.FormatFloat(r.Last.Close, 'f', -1, 64),
			strconv.FormatFloat(price, 'f', -1, 64),
			o.NextTarget,
			formatOptional(o.NextPrice),
			formatOptional(o.DistancePct),
			formatOptional(o.ReferenceH),
		}
		if err := w.Write(row); err != nil {
			f.Close()
			os.Remove(tmp)
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func formatOptional(v float64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
