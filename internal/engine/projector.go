package engine

// Sentinel targets surfaced by the projector. They never appear in the
// record stream itself.
const (
	TargetStopLoss     = "STOP LOSS"
	TargetAllForbidden = "ALL FORBIDDEN"
)

// Outlook is the projector's read of an asset: the next buy target derived
// from the latest snapshot and a live price.
type Outlook struct {
	NextTarget  string
	NextPrice   float64 // 0 when the target carries no price (sentinels)
	DistancePct float64
	ReferenceH  float64
}

// Project derives the next buy target from the latest snapshot row.
//
// Holding stage 7, or closing at or below the stop price, yields the
// STOP LOSS sentinel. After a sell the recorded allowed-level count maps
// back to a rung: B1 when all seven are allowed, B{8−allowed} when some are
// blocked, ALL FORBIDDEN when none remain. Otherwise the snapshot's own
// next-buy column is used.
func Project(last Record, currentPrice float64) Outlook {
	o := Outlook{}
	if last.H != nil {
		o.ReferenceH = *last.H
	}

	if last.Position && last.Stage != nil && *last.Stage >= LevelCount {
		o.NextTarget = TargetStopLoss
		return o
	}
	if last.H != nil && *last.H > 0 && last.Close <= *last.H*stopRatio {
		o.NextTarget = TargetStopLoss
		return o
	}

	if !last.Position && last.CutoffPrice != nil {
		allowed := last.AllowedLevels
		switch {
		case allowed <= 0:
			o.NextTarget = TargetAllForbidden
			return o
		case allowed >= LevelCount:
			o.NextTarget = "B1"
		default:
			o.NextTarget = levelName(LevelCount + 1 - allowed)
		}
		idx := levelIndex(o.NextTarget)
		if idx >= 1 && idx <= LevelCount && last.B[idx-1] != nil {
			o.NextPrice = *last.B[idx-1]
		}
	} else if last.NextBuyLevelName != "" {
		o.NextTarget = last.NextBuyLevelName
		if last.NextBuyLevelPrice != nil {
			o.NextPrice = *last.NextBuyLevelPrice
		}
	}

	if o.NextPrice > 0 && currentPrice > 0 {
		o.DistancePct = (currentPrice - o.NextPrice) / o.NextPrice * 100
	}
	return o
}

func levelName(idx int) string {
	return "B" + string(rune('0'+idx))
}

func levelIndex(name string) int {
	if len(name) != 2 || name[0] != 'B' {
		return 0
	}
	n := int(name[1] - '0')
	if n < 1 || n > LevelCount {
		return 0
	}
	return n
}
