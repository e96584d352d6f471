package engine

import (
	"fmt"
	"strings"

	"tradesim/internal/logger"
	"tradesim/internal/types"
)

// Trigger tells the driver that an order condition fired and an
// execution should be submitted. The engine records the transition;
// placing and settling the resulting market order is the caller's job.
type Trigger struct {
	Kind    string     `json:"kind"` // oco or trailing_stop
	OrderID string     `json:"order_id"`
	LegID   string     `json:"leg_id,omitempty"`
	Symbol  string     `json:"symbol"`
	Side    types.Side `json:"side"`
	Amount  float64    `json:"amount"`
	Price   float64    `json:"price"`
}

// OnPriceTick feeds one price observation for a symbol through every
// live trailing stop and OCO on that symbol, advancing trailing peaks
// and collecting fired triggers. Re-evaluating an already-acted-upon
// condition is a no-op thanks to status guards, so pollers may call
// this at any cadence.
func (e *Engine) OnPriceTick(symbol string, price float64) ([]Trigger, error) {
	if price <= 0 {
		return nil, fmt.Errorf("%w: no usable price for %s, skipping cycle", ErrMarketData, symbol)
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	e.mu.Lock()
	var trailingIDs []string
	for id, ts := range e.trailing {
		if ts.Symbol == symbol && !ts.Triggered && !ts.Order.Status.Terminal() {
			trailingIDs = append(trailingIDs, id)
		}
	}
	var ocoIDs []string
	for id, oco := range e.oco {
		if oco.Symbol == symbol && oco.Status == OCOStatusActive {
			ocoIDs = append(ocoIDs, id)
		}
	}
	e.mu.Unlock()

	var triggers []Trigger
	for _, id := range trailingIDs {
		ts, err := e.UpdateTrailingStop(id, price)
		if err != nil {
			logger.Warnf("trailing stop %s: tick evaluation failed: %v", id, err)
			continue
		}
		if !ts.Breached(price) {
			continue
		}
		if _, err := e.TriggerTrailingStop(id, price); err != nil {
			// Lost the race to a cancel; the no-op is intended.
			continue
		}
		triggers = append(triggers, Trigger{
			Kind:    "trailing_stop",
			OrderID: ts.ID,
			Symbol:  ts.Symbol,
			Side:    ts.Side,
			Amount:  ts.Order.Amount,
			Price:   price,
		})
	}
	for _, id := range ocoIDs {
		e.mu.Lock()
		oco, ok := e.oco[id]
		var legID string
		var hit bool
		if ok {
			legID, hit = oco.evaluate(price)
		}
		e.mu.Unlock()
		if !ok || !hit {
			continue
		}
		triggered, err := e.TriggerOCO(id, legID)
		if err != nil {
			continue
		}
		leg := triggered.Primary
		if legID == triggered.Secondary.ID {
			leg = triggered.Secondary
		}
		triggers = append(triggers, Trigger{
			Kind:    "oco",
			OrderID: triggered.ID,
			LegID:   legID,
			Symbol:  triggered.Symbol,
			Side:    leg.Side,
			Amount:  leg.Amount,
			Price:   price,
		})
	}
	return triggers, nil
}
