package engine

import "sort"

// EventKind ranks intra-day events into their emission order.
type EventKind int

const (
	KindRestart EventKind = iota
	KindBuy
	KindAdd
	KindSell
)

// Event is one intra-day action produced by the FSM or the ladder.
type Event struct {
	Kind       EventKind
	Label      string // e.g. "BUY B2", "SELL S1", "RESTART_+98.5pct"
	Basis      string // "", "LOW" or "HIGH"
	LevelName  string
	LevelIndex int
	LevelPrice *float64
	Trigger    *float64
	Fill       *float64
	Rebound    *float64 // sell only
	Threshold  *float64 // sell only
}

// Step processes one candle end to end: FSM transitions, ladder decisions,
// then the day's rows in total order RESTART → BUY → ADDs (shallow→deep) →
// SELL → snapshot. The snapshot row always emits.
func (s *State) Step(c Candle, override *float64) []Record {
	var events []Event
	if ev := s.applyCycle(c, override); ev != nil {
		events = append(events, *ev)
	}

	held := s.Position // position state entering the ladder pass
	if ev := s.tryBuy(c); ev != nil {
		events = append(events, *ev)
	}
	events = append(events, s.tryAdds(c)...)
	if held {
		if ev := s.trySell(c); ev != nil {
			events = append(events, *ev)
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Kind != events[j].Kind {
			return events[i].Kind < events[j].Kind
		}
		return events[i].LevelIndex < events[j].LevelIndex
	})

	rows := make([]Record, 0, len(events)+1)
	for i := range events {
		rows = append(rows, s.render(c, &events[i]))
	}
	rows = append(rows, s.render(c, nil))
	return rows
}
