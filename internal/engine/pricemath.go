package engine

import (
	"math"

	"github.com/shopspring/decimal"

	"tradesim/internal/types"
)

var decimalEps = decimal.NewFromFloat(1e-8)

func decFromFloat(val float64) decimal.Decimal {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(val)
}

func decToFloat(val decimal.Decimal) float64 {
	f, _ := val.Float64()
	return f
}

// favorableMove reports whether price improves on the anchor for the
// position a trailing exit of the given side protects: a sell-side
// stop protects a long, so higher is favorable; a buy-side stop
// protects a short, so lower is favorable.
func favorableMove(side types.Side, price, anchor float64) bool {
	if price <= 0 || anchor <= 0 {
		return false
	}
	if side == types.SideBuy {
		return decFromFloat(price).Cmp(decFromFloat(anchor)) < 0
	}
	return decFromFloat(price).Cmp(decFromFloat(anchor)) > 0
}

// stopFromAnchor computes the stop price trailing the anchor by a
// fixed amount or a percentage (exactly one is set).
func stopFromAnchor(side types.Side, anchor, trailAmount, trailPercent float64) float64 {
	base := decFromFloat(anchor)
	var dist decimal.Decimal
	if trailPercent > 0 {
		dist = base.Mul(decFromFloat(trailPercent))
	} else {
		dist = decFromFloat(trailAmount)
	}
	if side == types.SideBuy {
		return decToFloat(base.Add(dist))
	}
	return decToFloat(base.Sub(dist))
}

// tightensStop reports whether candidate is strictly more favorable
// than current: the stop never moves against the position.
func tightensStop(side types.Side, candidate, current float64) bool {
	if candidate <= 0 {
		return false
	}
	if current <= 0 {
		return true
	}
	cand := decFromFloat(candidate)
	curr := decFromFloat(current)
	if side == types.SideBuy {
		return cand.Cmp(curr.Sub(decimalEps)) < 0
	}
	return cand.Cmp(curr.Add(decimalEps)) > 0
}

// stopBreached reports whether price has crossed the stop in the
// triggering direction.
func stopBreached(side types.Side, price, stop float64) bool {
	if price <= 0 || stop <= 0 {
		return false
	}
	if side == types.SideBuy {
		return decFromFloat(price).Cmp(decFromFloat(stop)) >= 0
	}
	return decFromFloat(price).Cmp(decFromFloat(stop)) <= 0
}
