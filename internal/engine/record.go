package engine

import (
	"math"
	"strconv"
)

// Columns is the fixed debug record header every consumer contracts against.
var Columns = []string{
	"date", "open", "high", "low", "close",
	"mode", "position", "stage",
	"event", "basis", "level_name", "level_price", "trigger_price", "fill_price",
	"H", "L_now", "rebound_from_L_pct", "threshold_pct",
	"forbidden_levels_above_last_sell",
	"B1", "B2", "B3", "B4", "B5", "B6", "B7",
	"cutoff_price",
	"next_buy_level_name", "next_buy_level_price", "next_buy_trigger_price",
}

// Record is one debug row: either an event row or the end-of-day snapshot.
// Pointer fields are emitted as empty strings when nil.
type Record struct {
	Date  string
	Open  float64
	High  float64
	Low   float64
	Close float64

	Mode     Mode
	Position bool
	Stage    *int

	Event        string
	Basis        string
	LevelName    string
	LevelPrice   *float64
	TriggerPrice *float64
	FillPrice    *float64

	H               *float64
	LNow            *float64
	ReboundFromLPct *float64
	ThresholdPct    *float64

	AllowedLevels int
	B             [LevelCount]*float64
	CutoffPrice   *float64

	NextBuyLevelName    string
	NextBuyLevelPrice   *float64
	NextBuyTriggerPrice *float64
}

// render projects the current state (plus an optional event) onto a record
// row. State columns reflect end-of-day state; event columns carry the
// event's own prices.
func (s *State) render(c Candle, ev *Event) Record {
	r := Record{
		Date:          c.Date,
		Open:          c.Open,
		High:          c.High,
		Low:           c.Low,
		Close:         c.Close,
		Mode:          s.Mode,
		Position:      s.Position,
		Stage:         cloneInt(s.Stage),
		H:             cloneFloat(s.H),
		LNow:          cloneFloat(s.L),
		AllowedLevels: s.AllowedCount(),
		CutoffPrice:   cloneFloat(s.Cutoff),
	}
	if s.hasLevels {
		for _, lv := range s.levels.Asc {
			r.B[lv.Index-1] = fptr(lv.Price)
		}
	}

	if ev != nil {
		r.Event = ev.Label
		r.Basis = ev.Basis
		r.LevelName = ev.LevelName
		r.LevelPrice = cloneFloat(ev.LevelPrice)
		r.TriggerPrice = cloneFloat(ev.Trigger)
		r.FillPrice = cloneFloat(ev.Fill)
		r.ReboundFromLPct = cloneFloat(ev.Rebound)
		r.ThresholdPct = cloneFloat(ev.Threshold)
	} else if s.Position && s.Stage != nil {
		// Snapshot rows carry the informational close-based rebound while a
		// position is held.
		if s.L != nil && *s.L > 0 {
			r.ReboundFromLPct = fptr((c.Close / *s.L - 1) * 100)
		}
		if th, ok := SellThresholds[*s.Stage]; ok {
			r.ThresholdPct = fptr(th)
		}
	}

	if name, price := s.nextBuy(c.Close); name != "" {
		r.NextBuyLevelName = name
		r.NextBuyLevelPrice = cloneFloat(price)
		r.NextBuyTriggerPrice = cloneFloat(price)
	}
	return r
}

// nextBuy returns the shallowest unfilled, allowed rung strictly below the
// given price. Empty when none qualifies (including a fully laddered
// position; the stop-loss notion lives in the projector, not here).
func (s *State) nextBuy(below float64) (string, *float64) {
	if !s.hasLevels {
		return "", nil
	}
	deepest := 0
	if s.Position {
		if s.Stage != nil && *s.Stage >= LevelCount {
			return "", nil
		}
		deepest = s.deepestFilled()
	}
	for i := len(s.levels.Asc) - 1; i >= 0; i-- {
		lv := s.levels.Asc[i]
		if lv.Index <= deepest || s.Filled[lv.Name] {
			continue
		}
		if !s.allowed(lv) {
			continue
		}
		if lv.Price >= below {
			continue
		}
		return lv.Name, fptr(lv.Price)
	}
	return "", nil
}

// CSV serializes the record in column order. Price-like fields round to 8
// decimals, level prices to 10, percentages to 6; nil emits as empty.
func (r Record) CSV() []string {
	return []string{
		r.Date,
		price(fptr(r.Open)),
		price(fptr(r.High)),
		price(fptr(r.Low)),
		price(fptr(r.Close)),
		string(r.Mode),
		strconv.FormatBool(r.Position),
		intField(r.Stage),
		r.Event,
		r.Basis,
		r.LevelName,
		levelPrice(r.LevelPrice),
		price(r.TriggerPrice),
		price(r.FillPrice),
		price(r.H),
		price(r.LNow),
		pct(r.ReboundFromLPct),
		pct(r.ThresholdPct),
		strconv.Itoa(r.AllowedLevels),
		levelPrice(r.B[0]),
		levelPrice(r.B[1]),
		levelPrice(r.B[2]),
		levelPrice(r.B[3]),
		levelPrice(r.B[4]),
		levelPrice(r.B[5]),
		levelPrice(r.B[6]),
		price(r.CutoffPrice),
		r.NextBuyLevelName,
		levelPrice(r.NextBuyLevelPrice),
		levelPrice(r.NextBuyTriggerPrice),
	}
}

func roundTo(v float64, decimals int) float64 {
	pow := math.Pow(10, float64(decimals))
	return math.Round(v*pow) / pow
}

func formatRounded(p *float64, decimals int) string {
	if p == nil {
		return ""
	}
	return strconv.FormatFloat(roundTo(*p, decimals), 'f', -1, 64)
}

func price(p *float64) string { return formatRounded(p, 8) }

func levelPrice(p *float64) string { return formatRounded(p, 10) }

func pct(p *float64) string { return formatRounded(p, 6) }

func intField(p *int) string {
	if p == nil {
		return ""
	}
	return strconv.Itoa(*p)
}
