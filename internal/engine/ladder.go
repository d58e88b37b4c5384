package engine

import (
	"fmt"
	"math"
)

// tryBuy opens a position on the shallowest crossed, allowed rung.
// Deeper rungs crossed by the same candle are handled as adds.
func (s *State) tryBuy(c Candle) *Event {
	if s.Mode != ModeWait || s.Position || !s.hasLevels {
		return nil
	}
	var pick *Level
	for i := len(s.levels.Asc) - 1; i >= 0; i-- { // shallowest first
		lv := s.levels.Asc[i]
		if !crossed(c, lv.Price) || !s.allowed(lv) {
			continue
		}
		pick = &lv
		break
	}
	if pick == nil {
		return nil
	}
	s.Position = true
	s.Stage = iptr(pick.Index)
	s.Filled = map[string]bool{pick.Name: true}
	s.LastFill[pick.Name] = c.Date
	// Today's low is the baseline the exit rebound is measured from.
	s.L = fptr(c.Low)
	return &Event{
		Kind:       KindBuy,
		Label:      "BUY " + pick.Name,
		Basis:      "LOW",
		LevelName:  pick.Name,
		LevelIndex: pick.Index,
		LevelPrice: fptr(pick.Price),
		Trigger:    fptr(c.Low),
		Fill:       fptr(pick.Price),
	}
}

// tryAdds fills every crossed, allowed rung deeper than the deepest already
// filled, shallowest to deepest.
func (s *State) tryAdds(c Candle) []Event {
	if s.Mode != ModeWait || !s.Position || !s.hasLevels {
		return nil
	}
	deepest := s.deepestFilled()
	var events []Event
	for i := len(s.levels.Asc) - 1; i >= 0; i-- {
		lv := s.levels.Asc[i]
		if lv.Index <= deepest {
			continue
		}
		if s.Filled[lv.Name] || s.LastFill[lv.Name] == c.Date {
			continue
		}
		if !crossed(c, lv.Price) || !s.allowed(lv) {
			continue
		}
		s.Filled[lv.Name] = true
		s.LastFill[lv.Name] = c.Date
		s.Stage = iptr(lv.Index)
		if s.L == nil || c.Low < *s.L {
			s.L = fptr(c.Low)
		}
		events = append(events, Event{
			Kind:       KindAdd,
			Label:      "ADD " + lv.Name,
			Basis:      "LOW",
			LevelName:  lv.Name,
			LevelIndex: lv.Index,
			LevelPrice: fptr(lv.Price),
			Trigger:    fptr(c.Low),
			Fill:       fptr(lv.Price),
		})
	}
	return events
}

// trySell closes the position once the rebound from the cycle low reaches
// the stage threshold. Only positions held at the start of the candle are
// eligible; a position opened today exits no earlier than tomorrow.
func (s *State) trySell(c Candle) *Event {
	if !s.Position || s.Stage == nil {
		return nil
	}
	if s.L == nil || c.Low < *s.L {
		s.L = fptr(c.Low)
	}
	if *s.L <= 0 {
		return nil // degenerate low, skip percentage math this candle
	}
	threshold, ok := SellThresholds[*s.Stage]
	if !ok {
		return nil
	}
	rebound := (c.High / *s.L - 1) * 100
	if rebound < threshold {
		return nil
	}
	target := *s.L * (1 + threshold/100)
	fill := target
	if c.Low >= target {
		// Gap-open: the day never traded at the target, fill at the open.
		fill = c.Open
	}
	stage := *s.Stage
	cut := math.Max(target, fill)
	s.Cutoff = &cut
	s.refreshForbidden()
	s.Position = false
	s.Stage = nil
	s.Filled = map[string]bool{}
	s.LastFill = map[string]string{}
	// L is preserved so post-sell snapshots still expose the cycle low.
	return &Event{
		Kind:      KindSell,
		Label:     fmt.Sprintf("SELL S%d", stage),
		Basis:     "HIGH",
		Trigger:   fptr(target),
		Fill:      fptr(fill),
		Rebound:   fptr(rebound),
		Threshold: fptr(threshold),
	}
}
