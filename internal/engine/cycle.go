package engine

import "math"

// applyCycle runs the per-candle FSM steps in their fixed order: H override,
// H seed/ratchet, L tracking, the +98.5% restart, then the −44% freeze.
// Returns the restart event when that transition fires.
func (s *State) applyCycle(c Candle, override *float64) *Event {
	// Step 1: daily H override wins over every other H movement today.
	overrideApplied := false
	if override != nil && *override > 0 && !math.IsInf(*override, 0) {
		if s.H == nil || *override != *s.H {
			s.setH(*override)
			overrideApplied = true
		}
	}

	// Steps 2-3: seed H on the first high-mode candle, ratchet on new peaks.
	if !overrideApplied && s.Mode == ModeHigh && c.High > 0 {
		if s.H == nil || c.High > *s.H {
			s.setH(c.High)
		}
	}

	// Step 4: track the cycle low while waiting.
	if s.Mode == ModeWait {
		if s.L == nil || c.Low < *s.L {
			s.L = fptr(c.Low)
		}
	}

	// Step 5: restart. A +98.5% bounce off the cycle low opens a new cycle:
	// H resets to today's high (not a ratchet) and every piece of per-cycle
	// bookkeeping, including the sell cutoff, is cleared.
	var restart *Event
	if s.Mode == ModeWait && s.L != nil && *s.L > 0 && c.High >= restartMultiplier*(*s.L) {
		prevL := *s.L
		s.Mode = ModeHigh
		if !overrideApplied {
			s.setH(c.High)
		}
		s.L = fptr(c.Low)
		s.Position = false
		s.Stage = nil
		s.Filled = map[string]bool{}
		s.LastFill = map[string]string{}
		s.Cutoff = nil
		s.refreshForbidden()
		restart = &Event{
			Kind:    KindRestart,
			Label:   "RESTART_+98.5pct",
			Basis:   "HIGH",
			Trigger: fptr(restartMultiplier * prevL),
		}
	}

	// Step 6: freeze. Touching B1 (0.56H) crystallizes the ladder at the
	// current H and switches to wait with today's low as the cycle low.
	if s.Mode == ModeHigh && s.H != nil && c.Low <= freezeRatio*(*s.H) {
		s.recomputeLevels()
		s.Mode = ModeWait
		s.L = fptr(c.Low)
	}

	return restart
}
