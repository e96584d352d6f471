package engine

import (
	"fmt"
	"math"
	"time"

	"tradesim/internal/types"
)

// IcebergOrder hides a large order behind a small display slice. At
// most DisplaySize is ever exposed as a live child order at once; the
// engine computes what the next slice should be, leaving submission to
// the caller.
type IcebergOrder struct {
	ID           string       `json:"id"`
	Symbol       string       `json:"symbol"`
	Side         types.Side   `json:"side"`
	Order        *types.Order `json:"order"`
	TotalSize    float64      `json:"total_size"`
	DisplaySize  float64      `json:"display_size"`
	ExecutedSize float64      `json:"executed_size"`
	SliceCount   int          `json:"slice_count"`
	CurrentSlice int          `json:"current_slice"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// IcebergParams describes a new iceberg order.
type IcebergParams struct {
	Symbol      string
	Side        types.Side
	TotalSize   float64
	DisplaySize float64
	LimitPrice  float64 // optional; zero means slices go out at market
}

// CreateIceberg validates and registers an iceberg order with
// SliceCount = ceil(TotalSize/DisplaySize).
func (e *Engine) CreateIceberg(p IcebergParams) (*IcebergOrder, error) {
	if p.TotalSize <= 0 {
		return nil, fmt.Errorf("%w: total size must be positive", ErrValidation)
	}
	if p.DisplaySize <= 0 {
		return nil, fmt.Errorf("%w: display size must be positive", ErrValidation)
	}
	if p.DisplaySize > p.TotalSize {
		return nil, fmt.Errorf("%w: display size %v exceeds total size %v", ErrValidation, p.DisplaySize, p.TotalSize)
	}

	now := e.now()
	order, err := types.NewOrder(p.Symbol, types.OrderTypeIceberg, p.Side, p.TotalSize, now)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	order.Price = p.LimitPrice

	ice := &IcebergOrder{
		ID:          e.newID(),
		Symbol:      order.Symbol,
		Side:        p.Side,
		Order:       order,
		TotalSize:   p.TotalSize,
		DisplaySize: p.DisplaySize,
		SliceCount:  int(math.Ceil(p.TotalSize / p.DisplaySize)),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	e.mu.Lock()
	e.iceberg[ice.ID] = ice
	snap := ice.snapshot()
	e.mu.Unlock()

	e.publish(Event{Type: EventCreated, OrderID: snap.ID, OrderKind: "iceberg", Symbol: snap.Symbol, At: now, Detail: map[string]any{
		"total_size":   p.TotalSize,
		"display_size": p.DisplaySize,
		"slice_count":  snap.SliceCount,
	}})
	return snap, nil
}

// NextIcebergSlice returns the size of the next child order to expose:
// min(DisplaySize, TotalSize-ExecutedSize), and zero once the order is
// exhausted or no longer live.
func (e *Engine) NextIcebergSlice(id string) (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ice, ok := e.iceberg[id]
	if !ok {
		return 0, fmt.Errorf("%w: iceberg %s", ErrNotFound, id)
	}
	if ice.Order.Status != types.OrderStatusOpen && ice.Order.Status != types.OrderStatusPartiallyFilled {
		return 0, nil
	}
	remaining := ice.TotalSize - ice.ExecutedSize
	if remaining <= 1e-12 {
		return 0, nil
	}
	return math.Min(ice.DisplaySize, remaining), nil
}

// RecordIcebergFill reports the execution of an exposed slice back to
// the engine, advancing ExecutedSize and the slice counter.
func (e *Engine) RecordIcebergFill(id string, amount, price float64) (*IcebergOrder, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: fill amount must be positive", ErrValidation)
	}
	e.mu.Lock()
	ice, ok := e.iceberg[id]
	if !ok {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: iceberg %s", ErrNotFound, id)
	}
	if amount > ice.DisplaySize+1e-9 {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: fill %v exceeds display size %v", ErrExecution, amount, ice.DisplaySize)
	}
	now := e.now()
	if _, err := ice.Order.ApplyFill(amount, price, 0, now); err != nil {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: %v", ErrExecution, err)
	}
	ice.ExecutedSize += amount
	if ice.ExecutedSize > ice.TotalSize {
		ice.ExecutedSize = ice.TotalSize
	}
	ice.CurrentSlice++
	ice.UpdatedAt = now
	filled := ice.Order.Status == types.OrderStatusFilled
	snap := ice.snapshot()
	e.mu.Unlock()

	evt := EventSliceExecuted
	if filled {
		evt = EventFilled
	}
	e.publish(Event{Type: evt, OrderID: snap.ID, OrderKind: "iceberg", Symbol: snap.Symbol, At: now, Detail: map[string]any{
		"slice":         snap.CurrentSlice,
		"amount":        amount,
		"price":         price,
		"executed_size": snap.ExecutedSize,
	}})
	return snap, nil
}

// CancelIceberg cancels the unexposed remainder of the order.
func (e *Engine) CancelIceberg(id string) (*IcebergOrder, error) {
	e.mu.Lock()
	ice, ok := e.iceberg[id]
	if !ok {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: iceberg %s", ErrNotFound, id)
	}
	if !ice.Order.Cancel(e.now()) {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: iceberg %s already resolved", ErrExecution, id)
	}
	ice.UpdatedAt = ice.Order.UpdatedAt
	snap := ice.snapshot()
	e.mu.Unlock()

	e.publish(Event{Type: EventCancelled, OrderID: snap.ID, OrderKind: "iceberg", Symbol: snap.Symbol, At: snap.UpdatedAt})
	return snap, nil
}

// GetIceberg returns a copy of the order by id.
func (e *Engine) GetIceberg(id string) (*IcebergOrder, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ice, ok := e.iceberg[id]
	if !ok {
		return nil, fmt.Errorf("%w: iceberg %s", ErrNotFound, id)
	}
	return ice.snapshot(), nil
}
