package monitor

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"ladderwatch/internal/builder"
	"ladderwatch/internal/config"
	"ladderwatch/internal/db"
	"ladderwatch/internal/engine"
	"ladderwatch/internal/notify"
)

type fakePrices struct {
	price float64
	low   float64
}

func (f *fakePrices) LatestPrice(ctx context.Context, symbol string) (float64, error) {
	return f.price, nil
}

func (f *fakePrices) RecentLow(ctx context.Context, symbol string) (float64, error) {
	return f.low, nil
}

type fakeSelector struct {
	assets []db.UniverseAsset
}

func (f fakeSelector) Select(ctx context.Context, topN int, extra, excluded []string) ([]db.UniverseAsset, error) {
	return f.assets, nil
}

type fakeCandles struct{}

func (fakeCandles) DailyCandles(ctx context.Context, symbol string, days int) ([]engine.Candle, error) {
	// ends flat after an S1 sell at cutoff 60.312: next target is B1 @ 56
	return []engine.Candle{
		{Date: "2024-01-01", Open: 1, High: 1, Low: 1, Close: 1},
		{Date: "2024-01-02", Open: 100, High: 100, Low: 100, Close: 100},
		{Date: "2024-01-03", Open: 100, High: 100, Low: 56, Close: 56},
		{Date: "2024-01-04", Open: 56, High: 100, Low: 56, Close: 100},
	}, nil
}

type recordingNotifier struct {
	kinds []notify.Kind
}

func (r *recordingNotifier) Send(n *notify.Notification) error {
	r.kinds = append(r.kinds, n.Kind)
	return nil
}
func (r *recordingNotifier) Name() string    { return "stub" }
func (r *recordingNotifier) IsEnabled() bool { return true }

func newTestMonitor(t *testing.T, prices *fakePrices) (*Monitor, *recordingNotifier) {
	t.Helper()
	store, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	cfg := config.Default()
	cfg.ProximityPct = 5

	rec := &recordingNotifier{}
	manager := notify.NewManager()
	manager.AddNotifier(rec)

	b := builder.New(fakeCandles{}, builder.Options{DataDir: t.TempDir()})
	sel := fakeSelector{assets: []db.UniverseAsset{{Symbol: "BTCUSDT", Name: "Bitcoin", Rank: 1}}}
	return New(cfg, store, prices, sel, b, manager), rec
}

func TestRebuildAndProximityAlert(t *testing.T) {
	prices := &fakePrices{price: 57, low: 58}
	m, rec := newTestMonitor(t, prices)

	if err := m.Rebuild(context.Background()); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if len(m.last) != 1 {
		t.Fatalf("state = %v, want 1 asset", m.last)
	}

	// 57 is 1.79% above B1=56: inside the 5% band, low never touched
	m.Tick(context.Background())
	if len(rec.kinds) != 1 || rec.kinds[0] != notify.KindProximity {
		t.Fatalf("kinds = %v, want one proximity", rec.kinds)
	}

	// same tick conditions again on the same day: deduplicated
	m.Tick(context.Background())
	if len(rec.kinds) != 1 {
		t.Errorf("duplicate alert sent, kinds = %v", rec.kinds)
	}
}

func TestRebuildWritesAnalysisAndExpiresHistory(t *testing.T) {
	prices := &fakePrices{price: 57, low: 58}
	m, _ := newTestMonitor(t, prices)

	// a stale row well past the retention window and a fresh one
	stale := db.AlertHistoryEntry{
		Symbol: "BTCUSDT", Target: "B2", Kind: db.AlertKindProximity,
		SentDate: "2026-01-01",
		SentAt:   time.Now().UTC().AddDate(0, 0, -120).Format(time.RFC3339),
	}
	fresh := db.AlertHistoryEntry{
		Symbol: "BTCUSDT", Target: "B1", Kind: db.AlertKindProximity,
	}
	if err := m.store.SaveAlertHistory(stale); err != nil {
		t.Fatalf("SaveAlertHistory: %v", err)
	}
	if err := m.store.SaveAlertHistory(fresh); err != nil {
		t.Fatalf("SaveAlertHistory: %v", err)
	}

	if err := m.Rebuild(context.Background()); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	f, err := os.Open(m.builder.AnalysisPath())
	if err != nil {
		t.Fatalf("analysis snapshot not written: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read analysis: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("analysis rows = %d, want header + 1", len(rows))
	}
	// the live price feeds the snapshot, replacing the last close
	if rows[1][0] != "BTCUSDT" || rows[1][6] != "57" {
		t.Errorf("analysis row = %v, want BTCUSDT priced at 57", rows[1])
	}

	history, err := m.store.GetAlertHistory("BTCUSDT", 0)
	if err != nil {
		t.Fatalf("GetAlertHistory: %v", err)
	}
	if len(history) != 1 || history[0].Target != "B1" {
		t.Errorf("history after rebuild = %+v, want only the fresh row", history)
	}
}

func TestExecutionAlertOnLevelTouch(t *testing.T) {
	// price already below the target: no proximity, but the 5m low touched it
	prices := &fakePrices{price: 55, low: 55.9}
	m, rec := newTestMonitor(t, prices)

	if err := m.Rebuild(context.Background()); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	m.Tick(context.Background())
	if len(rec.kinds) != 1 || rec.kinds[0] != notify.KindExecution {
		t.Fatalf("kinds = %v, want one execution", rec.kinds)
	}

	history, err := m.store.GetAlertHistory("BTCUSDT", 0)
	if err != nil {
		t.Fatalf("GetAlertHistory: %v", err)
	}
	if len(history) != 1 || history[0].Kind != db.AlertKindExecution || history[0].Target != "B1" {
		t.Errorf("history = %+v", history)
	}
}

func TestNoAlertOutsideBand(t *testing.T) {
	prices := &fakePrices{price: 80, low: 79}
	m, rec := newTestMonitor(t, prices)

	if err := m.Rebuild(context.Background()); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	m.Tick(context.Background())
	if len(rec.kinds) != 0 {
		t.Errorf("alerts fired at 42%% distance: %v", rec.kinds)
	}
}

func TestUntilNext(t *testing.T) {
	now := time.Date(2026, 8, 24, 23, 30, 0, 0, time.UTC)
	if d := untilNext("00:00", now); d != 30*time.Minute {
		t.Errorf("untilNext(00:00) = %v, want 30m", d)
	}
	if d := untilNext("23:30", now); d != 24*time.Hour {
		t.Errorf("untilNext at the boundary = %v, want 24h", d)
	}
	if d := untilNext("garbage", now); d != 30*time.Minute {
		t.Errorf("untilNext(garbage) = %v, want midnight fallback", d)
	}
}
