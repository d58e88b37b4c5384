package engine

import (
	"fmt"
	"math"
)

// LevelCount is the number of buy rungs in the ladder.
const LevelCount = 7

// Ladder geometry: each rung is a fixed fraction of the reference high H.
// B1 is the shallowest entry (0.56H), B7 the deepest (0.21H); the stop
// price sits just below B7.
var levelRatios = [LevelCount]float64{0.56, 0.52, 0.46, 0.41, 0.35, 0.28, 0.21}

const stopRatio = 0.19

// Level is one priced rung of the ladder.
type Level struct {
	Name  string
	Index int // 1-based, 1 = shallowest
	Price float64
}

// LevelSet is the ladder derived from a reference high, ordered ascending
// by price (B7 first, B1 last), plus the stop price.
type LevelSet struct {
	Asc  []Level
	Stop float64
}

// ComputeLevels derives the ladder from the reference high H.
// H must be strictly positive; the cycle FSM never passes anything else.
func ComputeLevels(h float64) (LevelSet, error) {
	if !(h > 0) || math.IsInf(h, 0) {
		return LevelSet{}, fmt.Errorf("compute levels: non-positive H %v", h)
	}
	return ladderFromHigh(h), nil
}

func ladderFromHigh(h float64) LevelSet {
	asc := make([]Level, 0, LevelCount)
	for i := LevelCount - 1; i >= 0; i-- {
		asc = append(asc, Level{
			Name:  fmt.Sprintf("B%d", i+1),
			Index: i + 1,
			Price: h * levelRatios[i],
		})
	}
	return LevelSet{Asc: asc, Stop: h * stopRatio}
}

// ByIndex returns the rung with the given 1-based index.
func (ls LevelSet) ByIndex(idx int) (Level, bool) {
	for _, lv := range ls.Asc {
		if lv.Index == idx {
			return lv, true
		}
	}
	return Level{}, false
}

// Price returns the price of the named rung.
func (ls LevelSet) Price(name string) (float64, bool) {
	for _, lv := range ls.Asc {
		if lv.Name == name {
			return lv.Price, true
		}
	}
	return 0, false
}
