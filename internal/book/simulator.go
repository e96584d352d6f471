package book

import (
	"fmt"
	"math"
	"time"

	"tradesim/internal/types"
)

// ExecutionResult reports what a simulated execution did. A failed
// FOK or an uncrossed limit order is reported as no fill, not an
// error: the order simply stays open.
type ExecutionResult struct {
	Fills        []types.Fill `json:"fills"`
	FilledAmount float64      `json:"filled_amount"`
	Remaining    float64      `json:"remaining"`
	AveragePrice float64      `json:"average_price"`
}

// ExecuteMarketOrder walks the opposing side's levels in price order,
// consuming liquidity until the order fills or the book side runs out.
// One fill is emitted per level touched. Consumption stops once the
// cumulative notional exceeds the daily-volume cap, so a single
// simulated order never sweeps the whole book.
func (s *Simulator) ExecuteMarketOrder(order *types.Order, b *Book, now time.Time) (ExecutionResult, error) {
	if order == nil || b == nil {
		return ExecutionResult{}, fmt.Errorf("order and book are required")
	}
	if order.Status.Terminal() {
		return ExecutionResult{}, fmt.Errorf("order %s is %s, cannot execute", order.ID, order.Status)
	}
	liq, _ := s.table.Get(b.Symbol)
	notionalCap := liq.DailyVolume * s.cfg.NotionalCapRatio

	levels := &b.Asks
	if order.Side == types.SideSell {
		levels = &b.Bids
	}

	res := ExecutionResult{Remaining: order.Remaining}
	cumNotional := 0.0
	weighted := 0.0
	consumedTotal := 0.0
	for i := range *levels {
		if order.Remaining <= 1e-12 {
			break
		}
		lvl := &(*levels)[i]
		take := math.Min(order.Remaining, lvl.Amount)
		if take <= 1e-12 {
			continue
		}
		fill, err := order.ApplyFill(take, lvl.Price, 0, now)
		if err != nil {
			return res, err
		}
		res.Fills = append(res.Fills, fill)
		res.FilledAmount += take
		weighted += take * lvl.Price
		consumedTotal += take
		cumNotional += take * lvl.Price
		if notionalCap > 0 && cumNotional > notionalCap {
			break
		}
	}
	if consumedTotal > 0 {
		consume(levels, consumedTotal)
		b.refresh()
		res.AveragePrice = weighted / consumedTotal
	}
	res.Remaining = order.Remaining
	return res, nil
}

// FillProbability estimates how likely a resting limit order is to
// fill within the time horizon. Market orders always return 1. This is
// advisory output, not a guarantee.
func (s *Simulator) FillProbability(order *types.Order, b *Book, horizonHours float64) float64 {
	if order == nil || b == nil || b.MidPrice <= 0 {
		return 0
	}
	if order.Type == types.OrderTypeMarket {
		return 1
	}
	if order.Price <= 0 {
		return 0
	}

	bestBid, bestAsk, ok := b.BestPrices()
	if ok {
		// Already marketable: an immediate cross is near-certain.
		if order.Side == types.SideBuy && order.Price >= bestAsk {
			return 0.99
		}
		if order.Side == types.SideSell && order.Price <= bestBid {
			return 0.99
		}
	}

	// Distance from mid in the unfavorable direction, as a fraction.
	dist := (b.MidPrice - order.Price) / b.MidPrice
	if order.Side == types.SideSell {
		dist = (order.Price - b.MidPrice) / b.MidPrice
	}
	if dist < 0 {
		dist = 0
	}
	base := math.Exp(-dist * 100 * s.cfg.FillDecay)

	// Longer horizons help, with the benefit capped at 48h.
	if horizonHours <= 0 {
		horizonHours = 1
	}
	hours := math.Min(horizonHours, 48)
	timeFactor := 0.3 + 0.7*hours/48

	// More liquid assets cross resting orders more often.
	liq, _ := s.table.Get(b.Symbol)
	liqFactor := math.Log10(math.Max(liq.DailyVolume, 10)) / 10
	if liqFactor > 1 {
		liqFactor = 1
	}
	if liqFactor < 0.3 {
		liqFactor = 0.3
	}

	p := base * timeFactor * liqFactor
	if p > 1 {
		p = 1
	}
	if p < 0 {
		p = 0
	}
	return p
}

// SimulateLimitOrder draws one random mid-price move scaled by the
// volatility and decides whether the order crosses. Time-in-force
// semantics: GTC fills whatever the book offers at the limit or
// better, IOC fills only what the top of book immediately offers and
// cancels the rest, FOK fills nothing unless the entire amount is
// available.
func (s *Simulator) SimulateLimitOrder(order *types.Order, b *Book, volatility float64, now time.Time) (ExecutionResult, error) {
	if order == nil || b == nil {
		return ExecutionResult{}, fmt.Errorf("order and book are required")
	}
	if order.Status.Terminal() {
		return ExecutionResult{}, fmt.Errorf("order %s is %s, cannot execute", order.ID, order.Status)
	}
	if order.Price <= 0 {
		return ExecutionResult{}, fmt.Errorf("limit order %s has no limit price", order.ID)
	}
	if volatility < 0 {
		volatility = 0
	}

	move := s.rng.NormFloat64() * volatility
	newMid := b.MidPrice * (1 + move)

	crossed := newMid <= order.Price
	if order.Side == types.SideSell {
		crossed = newMid >= order.Price
	}

	res := ExecutionResult{Remaining: order.Remaining}
	if !crossed {
		// No fill occurred; the order stays open for the next evaluation.
		return res, nil
	}

	levels := &b.Asks
	if order.Side == types.SideSell {
		levels = &b.Bids
	}
	available := availableAtLimit(*levels, order)

	switch order.TimeInForce {
	case types.TimeInForceFOK:
		// Fill-or-kill is all-or-nothing; a shortfall is "no fill
		// occurred", not an error, and the order stays open.
		if available+1e-12 < order.Remaining {
			return res, nil
		}
	case types.TimeInForceIOC:
		if len(*levels) > 0 {
			available = math.Min(available, (*levels)[0].Amount)
		}
	}
	if available <= 1e-12 {
		return res, nil
	}

	take := math.Min(order.Remaining, available)
	fill, err := order.ApplyFill(take, order.Price, 0, now)
	if err != nil {
		return res, err
	}
	consume(levels, take)
	b.refresh()
	if order.TimeInForce == types.TimeInForceIOC && order.Remaining > 1e-12 {
		order.Cancel(now)
	}
	res.Fills = append(res.Fills, fill)
	res.FilledAmount = take
	res.AveragePrice = order.Price
	res.Remaining = order.Remaining
	return res, nil
}

// availableAtLimit sums liquidity priced at the order's limit or
// better on the opposing side.
func availableAtLimit(levels []Level, order *types.Order) float64 {
	total := 0.0
	for _, lvl := range levels {
		if order.Side == types.SideBuy && lvl.Price > order.Price {
			break
		}
		if order.Side == types.SideSell && lvl.Price < order.Price {
			break
		}
		total += lvl.Amount
	}
	return total
}

// ApplyExternalFills deducts fills produced outside the walk-based
// simulators (e.g. a TWAP slice executed at mid) from the book so the
// synthetic market reflects them.
func (s *Simulator) ApplyExternalFills(b *Book, side types.Side, fills []types.Fill) {
	if b == nil || len(fills) == 0 {
		return
	}
	total := 0.0
	for _, f := range fills {
		total += f.Amount
	}
	levels := &b.Asks
	if side == types.SideSell {
		levels = &b.Bids
	}
	consume(levels, total)
	b.refresh()
}
