package engine

import (
	"fmt"
	"time"

	"tradesim/internal/types"
)

// OCOStatus is the lifecycle state of a one-cancels-other pair.
type OCOStatus string

const (
	OCOStatusActive    OCOStatus = "active"
	OCOStatusTriggered OCOStatus = "triggered"
	OCOStatusCancelled OCOStatus = "cancelled"
)

// OCOOrder pairs a take-profit limit with a stop-loss stop. At most
// one leg may ever reach a filled state; triggering either cancels the
// other in the same transition.
type OCOOrder struct {
	ID           string       `json:"id"`
	Symbol       string       `json:"symbol"`
	Side         types.Side   `json:"side"` // side of both exit legs
	Status       OCOStatus    `json:"status"`
	Primary      *types.Order `json:"primary"`   // take-profit limit
	Secondary    *types.Order `json:"secondary"` // stop-loss stop
	TriggeredLeg string       `json:"triggered_leg,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// OCOParams describes a new OCO pair protecting an existing position.
type OCOParams struct {
	Symbol          string
	Side            types.Side // exit side: sell closes a long, buy closes a short
	Amount          float64
	TakeProfitPrice float64
	StopLossPrice   float64
}

// CreateOCO builds an active OCO pair. Creation is all-or-nothing: any
// validation failure records no state.
func (e *Engine) CreateOCO(p OCOParams) (*OCOOrder, error) {
	if p.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	if p.TakeProfitPrice <= 0 || p.StopLossPrice <= 0 {
		return nil, fmt.Errorf("%w: take-profit and stop-loss prices are required", ErrValidation)
	}
	if p.Side != types.SideBuy && p.Side != types.SideSell {
		return nil, fmt.Errorf("%w: invalid side %q", ErrValidation, p.Side)
	}
	// A sell-side pair take-profits above the stop, a buy-side pair below.
	if p.Side == types.SideSell && p.TakeProfitPrice <= p.StopLossPrice {
		return nil, fmt.Errorf("%w: sell take-profit %v must exceed stop-loss %v", ErrValidation, p.TakeProfitPrice, p.StopLossPrice)
	}
	if p.Side == types.SideBuy && p.TakeProfitPrice >= p.StopLossPrice {
		return nil, fmt.Errorf("%w: buy take-profit %v must be below stop-loss %v", ErrValidation, p.TakeProfitPrice, p.StopLossPrice)
	}

	now := e.now()
	primary, err := types.NewOrder(p.Symbol, types.OrderTypeLimit, p.Side, p.Amount, now)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	primary.Price = p.TakeProfitPrice
	secondary, err := types.NewOrder(p.Symbol, types.OrderTypeStop, p.Side, p.Amount, now)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	secondary.StopPrice = p.StopLossPrice
	primary.LinkedOrderID = secondary.ID
	secondary.LinkedOrderID = primary.ID

	oco := &OCOOrder{
		ID:        e.newID(),
		Symbol:    primary.Symbol,
		Side:      p.Side,
		Status:    OCOStatusActive,
		Primary:   primary,
		Secondary: secondary,
		CreatedAt: now,
		UpdatedAt: now,
	}

	e.mu.Lock()
	e.oco[oco.ID] = oco
	snap := oco.snapshot()
	e.mu.Unlock()

	e.publish(Event{Type: EventCreated, OrderID: snap.ID, OrderKind: "oco", Symbol: snap.Symbol, At: now, Detail: map[string]any{
		"take_profit": p.TakeProfitPrice,
		"stop_loss":   p.StopLossPrice,
		"amount":      p.Amount,
	}})
	return snap, nil
}

// TriggerOCO fires one leg of the pair. Legal only from active: the
// triggered leg is recorded and the other leg is cancelled in the same
// atomic transition, so no caller ever observes both legs live after a
// trigger.
func (e *Engine) TriggerOCO(ocoID, triggeredOrderID string) (*OCOOrder, error) {
	e.mu.Lock()
	oco, ok := e.oco[ocoID]
	if !ok {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: oco %s", ErrNotFound, ocoID)
	}
	if oco.Status != OCOStatusActive {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: oco %s is %s, cannot trigger", ErrExecution, ocoID, oco.Status)
	}
	var triggered, other *types.Order
	switch triggeredOrderID {
	case oco.Primary.ID:
		triggered, other = oco.Primary, oco.Secondary
	case oco.Secondary.ID:
		triggered, other = oco.Secondary, oco.Primary
	default:
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: order %s is not a leg of oco %s", ErrValidation, triggeredOrderID, ocoID)
	}
	now := e.now()
	oco.Status = OCOStatusTriggered
	oco.TriggeredLeg = triggered.ID
	other.Cancel(now)
	oco.UpdatedAt = now
	snap := oco.snapshot()
	e.mu.Unlock()

	e.publish(Event{Type: EventTriggered, OrderID: snap.ID, OrderKind: "oco", Symbol: snap.Symbol, At: now, Detail: map[string]any{
		"triggered_leg": triggered.ID,
		"cancelled_leg": other.ID,
	}})
	return snap, nil
}

// CancelOCO cancels both legs. A no-op returning ErrExecution when the
// pair already left the active state (first writer wins).
func (e *Engine) CancelOCO(ocoID string) (*OCOOrder, error) {
	e.mu.Lock()
	oco, ok := e.oco[ocoID]
	if !ok {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: oco %s", ErrNotFound, ocoID)
	}
	if oco.Status != OCOStatusActive {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: oco %s is already %s", ErrExecution, ocoID, oco.Status)
	}
	now := e.now()
	oco.Status = OCOStatusCancelled
	oco.Primary.Cancel(now)
	oco.Secondary.Cancel(now)
	oco.UpdatedAt = now
	snap := oco.snapshot()
	e.mu.Unlock()

	e.publish(Event{Type: EventCancelled, OrderID: snap.ID, OrderKind: "oco", Symbol: snap.Symbol, At: now})
	return snap, nil
}

// GetOCO returns a copy of the pair by id.
func (e *Engine) GetOCO(ocoID string) (*OCOOrder, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	oco, ok := e.oco[ocoID]
	if !ok {
		return nil, fmt.Errorf("%w: oco %s", ErrNotFound, ocoID)
	}
	return oco.snapshot(), nil
}

// evaluateOCO checks whether the tick price crosses either leg and, if
// so, which leg fires. Take-profit wins when a single tick crosses
// both (a gap through the whole bracket).
func (o *OCOOrder) evaluate(price float64) (legID string, hit bool) {
	if o.Status != OCOStatusActive || price <= 0 {
		return "", false
	}
	if o.Side == types.SideSell {
		if price >= o.Primary.Price {
			return o.Primary.ID, true
		}
		if price <= o.Secondary.StopPrice {
			return o.Secondary.ID, true
		}
		return "", false
	}
	if price <= o.Primary.Price {
		return o.Primary.ID, true
	}
	if price >= o.Secondary.StopPrice {
		return o.Secondary.ID, true
	}
	return "", false
}
