package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, 5*time.Second, 4)
}

// kline builds one raw Binance kline row for a UTC date.
func kline(date string, o, h, l, c float64) []interface{} {
	ts, _ := time.Parse("2006-01-02", date)
	open := ts.UnixMilli()
	return []interface{}{
		open,
		fmt.Sprintf("%.8f", o),
		fmt.Sprintf("%.8f", h),
		fmt.Sprintf("%.8f", l),
		fmt.Sprintf("%.8f", c),
		"1000.0",
		open + 86_400_000 - 1,
	}
}

func TestDailyCandles_ParsesAndOrders(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/klines" {
			http.NotFound(w, r)
			return
		}
		if got := r.URL.Query().Get("symbol"); got != "BTCUSDT" {
			t.Errorf("symbol = %q", got)
		}
		if got := r.URL.Query().Get("interval"); got != "1d" {
			t.Errorf("interval = %q", got)
		}
		json.NewEncoder(w).Encode([]interface{}{
			kline("2024-01-01", 100, 110, 95, 105),
			kline("2024-01-02", 105, 120, 104, 118),
		})
	}))

	candles, err := c.DailyCandles(context.Background(), "BTCUSDT", 30)
	if err != nil {
		t.Fatalf("DailyCandles: %v", err)
	}
	if len(candles) != 2 {
		t.Fatalf("got %d candles, want 2", len(candles))
	}
	first := candles[0]
	if first.Date != "2024-01-01" || first.Open != 100 || first.High != 110 || first.Low != 95 || first.Close != 105 {
		t.Errorf("candle[0] = %+v", first)
	}
	if candles[1].Date != "2024-01-02" {
		t.Errorf("candle[1].Date = %s", candles[1].Date)
	}
}

func TestDailyCandles_Paginates(t *testing.T) {
	var calls int32
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			// a full page forces a second request past its last close time
			page := make([]interface{}, 0, klinePageLimit)
			ts := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
			for i := 0; i < klinePageLimit; i++ {
				page = append(page, kline(ts.AddDate(0, 0, i).Format("2006-01-02"), 1, 2, 1, 2))
			}
			json.NewEncoder(w).Encode(page)
			return
		}
		start, _ := strconv.ParseInt(r.URL.Query().Get("startTime"), 10, 64)
		wantAfter := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, klinePageLimit-1).UnixMilli()
		if start <= wantAfter {
			t.Errorf("page 2 startTime = %d, want past last close %d", start, wantAfter)
		}
		json.NewEncoder(w).Encode([]interface{}{
			kline("2023-10-01", 3, 4, 3, 4),
		})
	}))

	candles, err := c.DailyCandles(context.Background(), "ETHUSDT", 1200)
	if err != nil {
		t.Fatalf("DailyCandles: %v", err)
	}
	if len(candles) != klinePageLimit+1 {
		t.Fatalf("got %d candles, want %d", len(candles), klinePageLimit+1)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Errorf("made %d requests, want 2", calls)
	}
}

func TestDailyCandles_SkipsMalformedRows(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rows := []interface{}{
			kline("2024-01-01", 100, 110, 95, 105),
			[]interface{}{"bogus"},
			[]interface{}{int64(1704153600000), "not-a-number", "1", "1", "1", "0", int64(1704239999999)},
			kline("2024-01-03", 105, 120, 104, 118),
		}
		json.NewEncoder(w).Encode(rows)
	}))

	candles, err := c.DailyCandles(context.Background(), "BTCUSDT", 30)
	if err != nil {
		t.Fatalf("DailyCandles: %v", err)
	}
	if len(candles) != 2 {
		t.Fatalf("got %d candles, want 2 (malformed rows dropped)", len(candles))
	}
}

func TestGetJSON_RetriesOn429(t *testing.T) {
	var calls int32
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"symbol": "BTCUSDT", "price": "52000.10"})
	}))

	p, err := c.LatestPrice(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("LatestPrice: %v", err)
	}
	if p != 52000.10 {
		t.Errorf("price = %v, want 52000.10", p)
	}
	if atomic.LoadInt32(&calls) < 2 {
		t.Errorf("no retry happened, calls = %d", calls)
	}
}

func TestGetJSON_PermanentOn4xx(t *testing.T) {
	var calls int32
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, `{"code":-1121,"msg":"Invalid symbol."}`, http.StatusBadRequest)
	}))

	_, err := c.LatestPrice(context.Background(), "NOPE")
	if err == nil {
		t.Fatal("expected error for invalid symbol")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("4xx retried: %d calls", calls)
	}
}

func TestTradingSymbols_FiltersStatusAndQuote(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"symbols": []map[string]string{
				{"symbol": "BTCUSDT", "status": "TRADING", "quoteAsset": "USDT"},
				{"symbol": "OLDUSDT", "status": "BREAK", "quoteAsset": "USDT"},
				{"symbol": "BTCEUR", "status": "TRADING", "quoteAsset": "EUR"},
			},
		})
	}))

	syms, err := c.TradingSymbols(context.Background(), "USDT")
	if err != nil {
		t.Fatalf("TradingSymbols: %v", err)
	}
	if len(syms) != 1 || !syms["BTCUSDT"] {
		t.Errorf("symbols = %v, want only BTCUSDT", syms)
	}
}

func TestRecentLow(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("interval"); got != "5m" {
			t.Errorf("interval = %q, want 5m", got)
		}
		json.NewEncoder(w).Encode([]interface{}{
			kline("2024-01-01", 100, 101, 99, 100),
			kline("2024-01-02", 100, 100.5, 98.5, 99),
		})
	}))

	low, err := c.RecentLow(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("RecentLow: %v", err)
	}
	if low != 98.5 {
		t.Errorf("low = %v, want last candle's 98.5", low)
	}
}
