package engine

import (
	"fmt"
	"time"

	"tradesim/internal/types"
)

// TrailingStopOrder tracks a stop that follows the favorable extreme
// of price. CurrentStopPrice only ever tightens: it is monotonically
// non-decreasing for a sell-side (long-protecting) stop and
// non-increasing for a buy-side stop.
type TrailingStopOrder struct {
	ID               string       `json:"id"`
	Symbol           string       `json:"symbol"`
	Side             types.Side   `json:"side"`
	Order            *types.Order `json:"order"`
	TrailAmount      float64      `json:"trail_amount,omitempty"`
	TrailPercent     float64      `json:"trail_percent,omitempty"`
	PeakPrice        float64      `json:"peak_price"` // most favorable price seen since creation
	InitialStopPrice float64      `json:"initial_stop_price"`
	CurrentStopPrice float64      `json:"current_stop_price"`
	Triggered        bool         `json:"triggered"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// TrailingStopParams describes a new trailing stop. Exactly one of
// TrailAmount and TrailPercent must be set.
type TrailingStopParams struct {
	Symbol       string
	Side         types.Side // sell protects a long, buy protects a short
	Amount       float64
	TrailAmount  float64
	TrailPercent float64
	CurrentPrice float64
}

// CreateTrailingStop validates the parameters and registers the order
// with its initial stop computed from the current price.
func (e *Engine) CreateTrailingStop(p TrailingStopParams) (*TrailingStopOrder, error) {
	if p.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	if p.CurrentPrice <= 0 {
		return nil, fmt.Errorf("%w: current price is required", ErrValidation)
	}
	hasAmount := p.TrailAmount > 0
	hasPercent := p.TrailPercent > 0
	if hasAmount == hasPercent {
		return nil, fmt.Errorf("%w: exactly one of trail amount and trail percent must be set", ErrValidation)
	}
	if hasPercent && p.TrailPercent >= 1 {
		return nil, fmt.Errorf("%w: trail percent %v must be below 1", ErrValidation, p.TrailPercent)
	}
	if hasAmount && p.TrailAmount >= p.CurrentPrice && p.Side == types.SideSell {
		return nil, fmt.Errorf("%w: trail amount %v would place the stop at or below zero", ErrValidation, p.TrailAmount)
	}

	now := e.now()
	order, err := types.NewOrder(p.Symbol, types.OrderTypeTrailingStop, p.Side, p.Amount, now)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	stop := stopFromAnchor(p.Side, p.CurrentPrice, p.TrailAmount, p.TrailPercent)
	order.StopPrice = stop

	ts := &TrailingStopOrder{
		ID:               e.newID(),
		Symbol:           order.Symbol,
		Side:             p.Side,
		Order:            order,
		TrailAmount:      p.TrailAmount,
		TrailPercent:     p.TrailPercent,
		PeakPrice:        p.CurrentPrice,
		InitialStopPrice: stop,
		CurrentStopPrice: stop,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	e.mu.Lock()
	e.trailing[ts.ID] = ts
	snap := ts.snapshot()
	e.mu.Unlock()

	e.publish(Event{Type: EventCreated, OrderID: snap.ID, OrderKind: "trailing_stop", Symbol: snap.Symbol, At: now, Detail: map[string]any{
		"initial_stop": stop,
		"amount":       p.Amount,
	}})
	return snap, nil
}

// UpdateTrailingStop feeds one price observation to the order: when
// price improves on the peak the stop is recomputed from the new peak
// and adopted only if it tightens. The stop is never relaxed. Drivers
// call this on every tick and then separately check Breached.
func (e *Engine) UpdateTrailingStop(id string, currentPrice float64) (*TrailingStopOrder, error) {
	if currentPrice <= 0 {
		return nil, fmt.Errorf("%w: no usable price for trailing stop %s", ErrMarketData, id)
	}
	e.mu.Lock()
	ts, ok := e.trailing[id]
	if !ok {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: trailing stop %s", ErrNotFound, id)
	}
	if ts.Triggered || ts.Order.Status.Terminal() {
		snap := ts.snapshot()
		e.mu.Unlock()
		return snap, nil
	}
	adjusted := false
	if favorableMove(ts.Side, currentPrice, ts.PeakPrice) {
		ts.PeakPrice = currentPrice
		candidate := stopFromAnchor(ts.Side, ts.PeakPrice, ts.TrailAmount, ts.TrailPercent)
		if tightensStop(ts.Side, candidate, ts.CurrentStopPrice) {
			ts.CurrentStopPrice = candidate
			ts.Order.StopPrice = candidate
			adjusted = true
		}
		ts.UpdatedAt = e.now()
	}
	snap := ts.snapshot()
	e.mu.Unlock()

	if adjusted {
		e.publish(Event{Type: EventAdjusted, OrderID: snap.ID, OrderKind: "trailing_stop", Symbol: snap.Symbol, At: snap.UpdatedAt, Detail: map[string]any{
			"peak_price": snap.PeakPrice,
			"stop_price": snap.CurrentStopPrice,
		}})
	}
	return snap, nil
}

// Breached reports whether the price has crossed the current stop in
// the triggering direction.
func (ts *TrailingStopOrder) Breached(price float64) bool {
	if ts.Triggered || ts.Order.Status.Terminal() {
		return false
	}
	return stopBreached(ts.Side, price, ts.CurrentStopPrice)
}

// TriggerTrailingStop marks the stop as fired. The caller is expected
// to submit the position exit as a market order; the engine records
// the transition. Re-triggering is a no-op error (first writer wins).
func (e *Engine) TriggerTrailingStop(id string, price float64) (*TrailingStopOrder, error) {
	e.mu.Lock()
	ts, ok := e.trailing[id]
	if !ok {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: trailing stop %s", ErrNotFound, id)
	}
	if ts.Triggered || ts.Order.Status.Terminal() {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: trailing stop %s already resolved", ErrExecution, id)
	}
	now := e.now()
	ts.Triggered = true
	ts.UpdatedAt = now
	snap := ts.snapshot()
	e.mu.Unlock()

	e.publish(Event{Type: EventTriggered, OrderID: snap.ID, OrderKind: "trailing_stop", Symbol: snap.Symbol, At: now, Detail: map[string]any{
		"stop_price":    snap.CurrentStopPrice,
		"trigger_price": price,
	}})
	return snap, nil
}

// CancelTrailingStop cancels a live trailing stop.
func (e *Engine) CancelTrailingStop(id string) (*TrailingStopOrder, error) {
	e.mu.Lock()
	ts, ok := e.trailing[id]
	if !ok {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: trailing stop %s", ErrNotFound, id)
	}
	if ts.Triggered || !ts.Order.Cancel(e.now()) {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: trailing stop %s already resolved", ErrExecution, id)
	}
	ts.UpdatedAt = ts.Order.UpdatedAt
	snap := ts.snapshot()
	e.mu.Unlock()

	e.publish(Event{Type: EventCancelled, OrderID: snap.ID, OrderKind: "trailing_stop", Symbol: snap.Symbol, At: snap.UpdatedAt})
	return snap, nil
}

// GetTrailingStop returns a copy of the order by id.
func (e *Engine) GetTrailingStop(id string) (*TrailingStopOrder, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ts, ok := e.trailing[id]
	if !ok {
		return nil, fmt.Errorf("%w: trailing stop %s", ErrNotFound, id)
	}
	return ts.snapshot(), nil
}
