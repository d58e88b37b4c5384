package engine

import (
	"math"
	"time"
)

// Candle is one daily OHLC bar. Dates are YYYY-MM-DD (UTC calendar day).
type Candle struct {
	Date  string  `json:"date"`
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
}

// Valid reports whether the candle is usable by the replay.
// Malformed candles are skipped, never fatal.
func (c Candle) Valid() bool {
	if _, err := time.Parse("2006-01-02", c.Date); err != nil {
		return false
	}
	for _, v := range [4]float64{c.Open, c.High, c.Low, c.Close} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return false
		}
	}
	return c.High >= c.Low
}

// crossed reports whether price p traded inside today's [low, high] range.
func crossed(c Candle, p float64) bool {
	return c.Low <= p && p <= c.High
}
