package engine

import (
	"errors"
	"fmt"
	"math"
)

// ErrEmptyStream is returned when an asset yields no usable candles.
var ErrEmptyStream = errors.New("empty candle stream")

// ReplayOptions configure a single-asset replay.
type ReplayOptions struct {
	// Overrides maps a date (YYYY-MM-DD) to a daily H override; malformed
	// entries and dates absent from the stream are ignored.
	Overrides map[string]float64
	// SeedH seeds the reference high before the first candle. Zero means
	// seed from the first processed candle's high.
	SeedH float64
}

// Replay folds the candle stream through the engine and returns the full
// record stream: the day's ordered events plus one snapshot per candle.
//
// The first candle of every asset is discarded (listing-day data is
// untrustworthy), malformed or date-regressing candles are skipped, and
// two replays of the same input produce identical output.
func Replay(candles []Candle, opts ReplayOptions) ([]Record, error) {
	if len(candles) < 2 {
		return nil, ErrEmptyStream
	}
	if math.IsNaN(opts.SeedH) || math.IsInf(opts.SeedH, 0) || opts.SeedH < 0 {
		return nil, fmt.Errorf("replay: invalid seed H %v", opts.SeedH)
	}

	st := NewState()
	if opts.SeedH > 0 {
		st.setH(opts.SeedH)
	}

	var out []Record
	lastDate := ""
	for _, c := range candles[1:] {
		if !c.Valid() || c.Date <= lastDate {
			continue
		}
		lastDate = c.Date

		var override *float64
		if v, ok := opts.Overrides[c.Date]; ok && v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v) {
			override = &v
		}
		out = append(out, st.Step(c, override)...)
	}
	if len(out) == 0 {
		return nil, ErrEmptyStream
	}
	return out, nil
}
