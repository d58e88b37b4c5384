package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"ladderwatch/internal/builder"
	"ladderwatch/internal/config"
	"ladderwatch/internal/db"
	"ladderwatch/internal/exchange"
	"ladderwatch/internal/logger"
	"ladderwatch/internal/monitor"
	"ladderwatch/internal/notify"
	"ladderwatch/internal/universe"
)

var version = "dev"

func main() {
	dbPath := flag.String("db", "", "SQLite database path (default: ./ladderwatch.db)")
	dataDir := flag.String("data", "", "record output directory (default: from config)")
	flag.Usage = usage
	flag.Parse()

	cmd := flag.Arg(0)
	if cmd == "" {
		cmd = "monitor"
	}

	logger.Banner(version)

	database, err := db.Open(*dbPath)
	if err != nil {
		logger.Error("DB", fmt.Sprintf("Failed to open database: %v", err))
		os.Exit(1)
	}
	defer database.Close()

	cfg := database.LoadConfig()
	cfg.LoadSecrets()
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}

	client := exchange.NewClient(cfg.BinanceBaseURL, cfg.RequestTimeout, cfg.MaxConcurrency)
	selector := universe.NewSelector(universe.Options{
		BaseURL: cfg.GeckoBaseURL,
		Timeout: cfg.RequestTimeout,
		Quote:   cfg.QuoteAsset,
	}, client)
	b := builder.New(client, builder.Options{
		DataDir:     cfg.DataDir,
		HistoryDays: cfg.HistoryDays,
		Concurrency: cfg.MaxConcurrency,
		HOverrides:  cfg.HOverrides,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case "universe":
		err = runUniverse(ctx, cfg, database, selector)
	case "build":
		_, err = runBuild(ctx, cfg, database, selector, b)
	case "analyze":
		err = runAnalyze(ctx, cfg, database, selector, b, client)
	case "monitor":
		err = runMonitor(ctx, cfg, database, selector, b, client)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil && err != context.Canceled {
		logger.Error("Main", fmt.Sprintf("%s failed: %v", cmd, err))
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: ladderwatch [flags] <command>

Commands:
  universe   select the tracked asset set and store it
  build      replay daily history and write per-asset debug records
  analyze    build, then write the cross-asset analysis snapshot
  monitor    run the realtime alert loop (default)

Flags:
`)
	flag.PrintDefaults()
}

func runUniverse(ctx context.Context, cfg *config.Config, database *db.DB, selector *universe.Selector) error {
	assets, err := selector.Select(ctx, cfg.UniverseSize, cfg.ExtraSymbols, cfg.ExcludedSymbols)
	if err != nil {
		return err
	}
	if err := database.ReplaceUniverse(assets); err != nil {
		return err
	}
	logger.Section("Universe")
	logger.Stats("Assets", len(assets))
	if len(assets) > 0 {
		logger.Stats("Top", assets[0].Symbol)
	}
	return nil
}

// trackedAssets returns the stored universe, selecting a fresh one when the
// store is empty.
func trackedAssets(ctx context.Context, cfg *config.Config, database *db.DB, selector *universe.Selector) ([]db.UniverseAsset, error) {
	assets, err := database.GetUniverse()
	if err != nil {
		return nil, err
	}
	if len(assets) > 0 {
		return assets, nil
	}
	assets, err = selector.Select(ctx, cfg.UniverseSize, cfg.ExtraSymbols, cfg.ExcludedSymbols)
	if err != nil {
		return nil, err
	}
	return assets, database.ReplaceUniverse(assets)
}

func runBuild(ctx context.Context, cfg *config.Config, database *db.DB, selector *universe.Selector, b *builder.Builder) ([]builder.Result, error) {
	assets, err := trackedAssets(ctx, cfg, database, selector)
	if err != nil {
		return nil, err
	}
	results, err := b.BuildAll(ctx, assets)
	if err != nil {
		return nil, err
	}

	ok, failed := 0, 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		} else {
			ok++
		}
	}
	logger.Section("Build")
	logger.Stats("Replayed", ok)
	logger.Stats("Failed", failed)
	return results, nil
}

func runAnalyze(ctx context.Context, cfg *config.Config, database *db.DB, selector *universe.Selector, b *builder.Builder, client *exchange.Client) error {
	results, err := runBuild(ctx, cfg, database, selector, b)
	if err != nil {
		return err
	}

	prices := make(map[string]float64, len(results))
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		p, err := client.LatestPrice(ctx, r.Asset.Symbol)
		if err != nil {
			logger.Warn("Analyze", fmt.Sprintf("%s: price: %v", r.Asset.Symbol, err))
			continue
		}
		prices[r.Asset.Symbol] = p
	}

	path := b.AnalysisPath()
	if err := b.WriteAnalysis(path, results, prices); err != nil {
		return err
	}
	logger.Success("Analyze", fmt.Sprintf("Wrote %s", path))
	return nil
}

func runMonitor(ctx context.Context, cfg *config.Config, database *db.DB, selector *universe.Selector, b *builder.Builder, client *exchange.Client) error {
	manager := notify.NewManager()
	manager.AddNotifier(notify.NewTelegramNotifier(notify.TelegramConfig{
		Token:   cfg.TelegramToken,
		ChatIDs: cfg.TelegramChatIDs,
		Enabled: cfg.TelegramEnabled,
	}))
	manager.AddNotifier(notify.NewSlackNotifier(notify.SlackConfig{
		WebhookURL: cfg.SlackWebhookURL,
		Enabled:    cfg.SlackEnabled,
	}))
	if !manager.Enabled() {
		logger.Warn("Monitor", "No notification transport configured; alerts will only be logged")
	}

	m := monitor.New(cfg, database, client, selector, b, manager)
	return m.Run(ctx)
}
