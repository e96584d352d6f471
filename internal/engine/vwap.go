package engine

import (
	"fmt"
	"math"
	"time"

	"tradesim/internal/types"
)

// vwapWeightFloor keeps mid-session slices from shrinking to nothing.
const vwapWeightFloor = 0.3

// VWAPOrder is a scheduled order whose slice amounts follow a
// synthetic U-shaped volume profile: volume, and hence acceptable
// participation, is higher near session open and close.
type VWAPOrder struct {
	scheduledOrder
	VolumeProfile []float64 `json:"volume_profile"`
}

// VWAPParams describes a new VWAP order.
type VWAPParams struct {
	Symbol          string
	Side            types.Side
	Amount          float64
	ExecutionPeriod time.Duration
	Interval        time.Duration // optional; defaults to ExecutionPeriod/10
	StartTime       time.Time     // optional; defaults to now
}

// CreateVWAP validates and registers a VWAP order. Slice amounts are
// the U-shaped profile weights applied to an even split, normalized so
// they sum to the parent amount.
func (e *Engine) CreateVWAP(p VWAPParams) (*VWAPOrder, error) {
	so, err := e.buildScheduledOrder(p.Symbol, types.OrderTypeVWAP, p.Side, p.Amount, p.ExecutionPeriod, p.Interval, p.StartTime)
	if err != nil {
		return nil, err
	}
	n := len(so.Slices)
	profile := volumeProfile(n)

	liq, _ := e.table.Get(p.Symbol)
	intervalFraction := so.IntervalDuration.Hours() / 24
	per := p.Amount / float64(n)
	for i := range so.Slices {
		so.Slices[i].Amount = per * profile[i]
		so.Slices[i].Weight = profile[i]
		// Expected market volume for the slice window, weighted the
		// same way the slice is.
		so.Slices[i].TargetVolume = liq.DailyVolume * intervalFraction * profile[i]
	}

	vw := &VWAPOrder{scheduledOrder: *so, VolumeProfile: profile}
	e.mu.Lock()
	e.vwap[vw.ID] = vw
	snap := vw.snapshot()
	e.mu.Unlock()

	e.publish(Event{Type: EventCreated, OrderID: snap.ID, OrderKind: "vwap", Symbol: snap.Symbol, At: snap.CreatedAt, Detail: map[string]any{
		"amount":      p.Amount,
		"slice_count": n,
		"interval":    so.IntervalDuration.String(),
	}})
	return snap, nil
}

// CompleteVWAPSlice finalizes an executing VWAP slice with its fill
// price and the market volume observed over the slice window, from
// which participation is derived.
func (e *Engine) CompleteVWAPSlice(orderID string, number int, price, marketVolume float64) error {
	if err := e.CompleteSlice("vwap", orderID, number, price); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	vw, ok := e.vwap[orderID]
	if !ok {
		return nil
	}
	sl, err := vw.sliceAt(number)
	if err != nil {
		return nil
	}
	sl.MarketVolume = marketVolume
	if marketVolume > 0 {
		sl.ParticipationAchieved = sl.Amount * price / marketVolume
	}
	return nil
}

// GetVWAP returns a copy of the order by id.
func (e *Engine) GetVWAP(id string) (*VWAPOrder, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	vw, ok := e.vwap[id]
	if !ok {
		return nil, fmt.Errorf("%w: vwap %s", ErrNotFound, id)
	}
	return vw.snapshot(), nil
}

// volumeProfile builds the U-shaped weight curve: weight
// max(0.3, 0.5+0.5*cos(θπ)) with θ sweeping 0..2 across the slices,
// so the first and last slices carry the most weight, then normalized
// to sum to n.
func volumeProfile(n int) []float64 {
	if n <= 0 {
		return nil
	}
	weights := make([]float64, n)
	if n == 1 {
		weights[0] = 1
		return weights
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		theta := 2 * float64(i) / float64(n-1)
		w := 0.5 + 0.5*math.Cos(theta*math.Pi)
		if w < vwapWeightFloor {
			w = vwapWeightFloor
		}
		weights[i] = w
		sum += w
	}
	for i := range weights {
		weights[i] *= float64(n) / sum
	}
	return weights
}
