package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"ladderwatch/internal/engine"
)

// klinePageLimit is Binance's maximum klines per request.
const klinePageLimit = 1000

// DailyCandles fetches up to `days` of 1d klines for a symbol, oldest first.
// Pages of 1000 are stitched by advancing startTime past the last close time;
// dates are UTC calendar days. The listing-day discard is the engine's job,
// not ours.
func (c *Client) DailyCandles(ctx context.Context, symbol string, days int) ([]engine.Candle, error) {
	if days <= 0 {
		days = klinePageLimit
	}
	start := time.Now().UTC().AddDate(0, 0, -days).UnixMilli()

	var candles []engine.Candle
	lastDate := ""
	for {
		page, lastClose, err := c.klines(ctx, symbol, "1d", start, klinePageLimit)
		if err != nil {
			return nil, fmt.Errorf("daily candles %s: %w", symbol, err)
		}
		if len(page) == 0 {
			break
		}
		for _, k := range page {
			// The exchange can return the in-progress day twice across pages.
			if k.Date <= lastDate {
				continue
			}
			lastDate = k.Date
			candles = append(candles, k)
		}
		if len(page) < klinePageLimit {
			break
		}
		start = lastClose + 1
	}
	return candles, nil
}

// RecentLow returns the low of the last closed 5m candle, used to detect an
// intraday touch of a buy level between daily closes.
func (c *Client) RecentLow(ctx context.Context, symbol string) (float64, error) {
	page, _, err := c.klines(ctx, symbol, "5m", 0, 2)
	if err != nil {
		return 0, fmt.Errorf("recent low %s: %w", symbol, err)
	}
	if len(page) == 0 {
		return 0, fmt.Errorf("recent low %s: no candles", symbol)
	}
	return page[len(page)-1].Low, nil
}

// klines fetches one page of candles. startMS <= 0 means "most recent".
// Returns the parsed candles and the close time of the last one.
func (c *Client) klines(ctx context.Context, symbol, interval string, startMS int64, limit int) ([]engine.Candle, int64, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", interval)
	q.Set("limit", strconv.Itoa(limit))
	if startMS > 0 {
		q.Set("startTime", strconv.FormatInt(startMS, 10))
	}

	// Binance klines are heterogenous arrays:
	// [openTime, open, high, low, close, volume, closeTime, ...]
	var raw [][]json.RawMessage
	if err := c.getJSON(ctx, c.base+"/api/v3/klines?"+q.Encode(), &raw); err != nil {
		return nil, 0, err
	}

	candles := make([]engine.Candle, 0, len(raw))
	var lastClose int64
	for _, row := range raw {
		if len(row) < 7 {
			continue
		}
		var openTime int64
		if err := json.Unmarshal(row[0], &openTime); err != nil {
			continue
		}
		o, err1 := klineFloat(row[1])
		h, err2 := klineFloat(row[2])
		l, err3 := klineFloat(row[3])
		cl, err4 := klineFloat(row[4])
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
			continue
		}
		json.Unmarshal(row[6], &lastClose)
		candles = append(candles, engine.Candle{
			Date:  time.UnixMilli(openTime).UTC().Format("2006-01-02"),
			Open:  o,
			High:  h,
			Low:   l,
			Close: cl,
		})
	}
	return candles, lastClose, nil
}

// klineFloat parses a quoted decimal like "43250.12000000".
func klineFloat(raw json.RawMessage) (float64, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, err
	}
	return strconv.ParseFloat(s, 64)
}
