package engine

// Mode of the cycle FSM.
type Mode string

const (
	// ModeHigh ratchets the reference high upward on every new peak.
	ModeHigh Mode = "high"
	// ModeWait holds the ladder frozen while the cycle low is tracked.
	ModeWait Mode = "wait"
)

// SellThresholds maps the deepest filled stage to the L-relative rebound
// percent that closes the position.
var SellThresholds = map[int]float64{
	1: 7.7,
	2: 17.3,
	3: 24.4,
	4: 37.4,
	5: 52.7,
	6: 79.9,
	7: 98.5,
}

const (
	// restartMultiplier: a +98.5% bounce off the cycle low starts a new cycle.
	restartMultiplier = 1.985
	// freezeRatio: a touch of 0.56H (the B1 price) freezes the ladder.
	freezeRatio = 0.56
)

// State is the per-asset engine state, evolved candle by candle.
// Nullable numerics are pointers; nil means "not established yet".
type State struct {
	Mode     Mode
	H        *float64
	L        *float64
	Position bool
	Stage    *int

	// Filled holds the level names bought in the current position; it is
	// cleared only by a completed SELL or a restart.
	Filled map[string]bool
	// LastFill maps level name to the date of its last fill; it exists only
	// to stop the same level filling twice inside a single candle.
	LastFill map[string]string

	// Cutoff is the authoritative "no re-entry above" price from the last
	// SELL. Forbidden is the materialized subset of the current ladder
	// strictly above it, refreshed whenever the ladder changes.
	Cutoff    *float64
	Forbidden map[float64]bool

	levels    LevelSet
	hasLevels bool
}

// NewState returns the cold-start state: high mode, no H, nothing filled.
func NewState() *State {
	return &State{
		Mode:      ModeHigh,
		Filled:    map[string]bool{},
		LastFill:  map[string]string{},
		Forbidden: map[float64]bool{},
	}
}

// Levels returns the current ladder and whether one has been computed yet.
func (s *State) Levels() (LevelSet, bool) {
	return s.levels, s.hasLevels
}

func (s *State) setH(h float64) {
	s.H = &h
	s.recomputeLevels()
}

func (s *State) recomputeLevels() {
	if s.H == nil || *s.H <= 0 {
		return
	}
	s.levels = ladderFromHigh(*s.H)
	s.hasLevels = true
	s.refreshForbidden()
}

// refreshForbidden rebuilds the forbidden set from the current ladder and
// cutoff. Cutoff nil ⇔ forbidden empty.
func (s *State) refreshForbidden() {
	s.Forbidden = map[float64]bool{}
	if s.Cutoff == nil || !s.hasLevels {
		return
	}
	for _, lv := range s.levels.Asc {
		if lv.Price > *s.Cutoff {
			s.Forbidden[lv.Price] = true
		}
	}
}

// allowed reports whether a rung may be bought today (Rule B gate: nothing
// above the last realized sell).
func (s *State) allowed(lv Level) bool {
	if s.Forbidden[lv.Price] {
		return false
	}
	if s.Cutoff != nil && lv.Price > *s.Cutoff {
		return false
	}
	return true
}

// deepestFilled returns the largest filled level index, 0 when flat.
func (s *State) deepestFilled() int {
	deepest := 0
	for name := range s.Filled {
		if lv, ok := s.findLevel(name); ok && lv.Index > deepest {
			deepest = lv.Index
		}
	}
	return deepest
}

func (s *State) findLevel(name string) (Level, bool) {
	for _, lv := range s.levels.Asc {
		if lv.Name == name {
			return lv, true
		}
	}
	return Level{}, false
}

// AllowedCount is the emitted allowed-level count in [0,7]: how many rungs
// of the current ladder remain eligible for entry. 7 when no cutoff is set.
func (s *State) AllowedCount() int {
	if s.Cutoff == nil {
		return LevelCount
	}
	blocked := 0
	for _, lv := range s.levels.Asc {
		if lv.Price > *s.Cutoff || s.Forbidden[lv.Price] {
			blocked++
		}
	}
	n := LevelCount - blocked
	if n < 0 {
		n = 0
	}
	if n > LevelCount {
		n = LevelCount
	}
	return n
}

func fptr(v float64) *float64 { return &v }

func iptr(v int) *int { return &v }

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
