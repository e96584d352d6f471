package engine

import (
	"fmt"
	"time"

	"tradesim/internal/types"
)

// TWAPOrder splits a large order into evenly sized slices executed on
// a fixed time grid.
type TWAPOrder struct {
	scheduledOrder
}

// TWAPParams describes a new TWAP order.
type TWAPParams struct {
	Symbol          string
	Side            types.Side
	Amount          float64
	ExecutionPeriod time.Duration
	Interval        time.Duration // optional; defaults to ExecutionPeriod/10
	StartTime       time.Time     // optional; defaults to now
}

// CreateTWAP validates and registers a TWAP order. Slice amounts sum
// to the parent amount and scheduled times start at StartTime, spaced
// Interval apart.
func (e *Engine) CreateTWAP(p TWAPParams) (*TWAPOrder, error) {
	so, err := e.buildScheduledOrder(p.Symbol, types.OrderTypeTWAP, p.Side, p.Amount, p.ExecutionPeriod, p.Interval, p.StartTime)
	if err != nil {
		return nil, err
	}
	n := len(so.Slices)
	per := p.Amount / float64(n)
	for i := range so.Slices {
		so.Slices[i].Amount = per
	}

	tw := &TWAPOrder{scheduledOrder: *so}
	e.mu.Lock()
	e.twap[tw.ID] = tw
	snap := tw.snapshot()
	e.mu.Unlock()

	e.publish(Event{Type: EventCreated, OrderID: snap.ID, OrderKind: "twap", Symbol: snap.Symbol, At: snap.CreatedAt, Detail: map[string]any{
		"amount":      p.Amount,
		"slice_count": n,
		"interval":    so.IntervalDuration.String(),
	}})
	return snap, nil
}

// buildScheduledOrder constructs the shared slice skeleton used by
// both TWAP and VWAP creation; amounts are filled in by the caller.
func (e *Engine) buildScheduledOrder(symbol string, typ types.OrderType, side types.Side, amount float64, period, interval time.Duration, start time.Time) (*scheduledOrder, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	if period <= 0 {
		return nil, fmt.Errorf("%w: execution period must be positive", ErrValidation)
	}
	if interval <= 0 {
		interval = period / 10
	}
	if interval > period {
		return nil, fmt.Errorf("%w: interval %s exceeds execution period %s", ErrValidation, interval, period)
	}
	sliceCount := int(period / interval)
	if sliceCount < 1 {
		sliceCount = 1
	}

	now := e.now()
	if start.IsZero() {
		start = now
	}
	order, err := types.NewOrder(symbol, typ, side, amount, now)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	slices := make([]Slice, sliceCount)
	for i := range slices {
		slices[i] = Slice{
			Number:        i,
			ScheduledTime: start.Add(time.Duration(i) * interval),
			Status:        SliceStatusPending,
		}
	}
	return &scheduledOrder{
		ID:               e.newID(),
		Symbol:           order.Symbol,
		Side:             side,
		Order:            order,
		ExecutionPeriod:  period,
		IntervalDuration: interval,
		StartTime:        start,
		Slices:           slices,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// DueSlices scans TWAP and VWAP orders for slices whose scheduled time
// has arrived. The scheduler feeds these to the submission sink.
func (e *Engine) DueSlices(now time.Time) []DueSliceRef {
	e.mu.Lock()
	defer e.mu.Unlock()
	var due []DueSliceRef
	for _, tw := range e.twap {
		if sl, ok := tw.dueSlice(now); ok {
			due = append(due, DueSliceRef{OrderID: tw.ID, Kind: "twap", Symbol: tw.Symbol, Side: tw.Side, Number: sl.Number, Amount: sl.Amount})
		}
	}
	for _, vw := range e.vwap {
		if sl, ok := vw.dueSlice(now); ok {
			due = append(due, DueSliceRef{OrderID: vw.ID, Kind: "vwap", Symbol: vw.Symbol, Side: vw.Side, Number: sl.Number, Amount: sl.Amount})
		}
	}
	return due
}

// StartSlice marks a due slice as executing. Idempotence guard: only
// the current pending slice of a live order can start.
func (e *Engine) StartSlice(kind, orderID string, number int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	so, err := e.scheduled(kind, orderID)
	if err != nil {
		return err
	}
	_, err = so.startSlice(number)
	return err
}

// CompleteSlice finalizes an executing slice with its fill price. When
// the last slice completes the parent order reaches filled.
func (e *Engine) CompleteSlice(kind, orderID string, number int, price float64) error {
	if price <= 0 {
		return fmt.Errorf("%w: fill price must be positive", ErrValidation)
	}
	e.mu.Lock()
	so, err := e.scheduled(kind, orderID)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	now := e.now()
	sl, err := so.completeSlice(number, price, now)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	filled := so.Order.Status == types.OrderStatusFilled
	symbol := so.Symbol
	e.mu.Unlock()

	evt := EventSliceExecuted
	if filled {
		evt = EventFilled
	}
	e.publish(Event{Type: evt, OrderID: orderID, OrderKind: kind, Symbol: symbol, At: now, Detail: map[string]any{
		"slice":  sl.Number,
		"amount": sl.Amount,
		"price":  price,
	}})
	return nil
}

// FailSlice records a failed slice execution and moves on; the amount
// stays unfilled on the parent.
func (e *Engine) FailSlice(kind, orderID string, number int, reason string) error {
	e.mu.Lock()
	so, err := e.scheduled(kind, orderID)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	now := e.now()
	sl, err := so.failSlice(number, reason, now)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	symbol := so.Symbol
	e.mu.Unlock()

	e.publish(Event{Type: EventSliceFailed, OrderID: orderID, OrderKind: kind, Symbol: symbol, At: now, Detail: map[string]any{
		"slice":  sl.Number,
		"reason": reason,
	}})
	return nil
}

// CancelScheduled cancels a TWAP or VWAP order. An executing slice may
// still complete afterwards and record its fill, but no further slices
// become due.
func (e *Engine) CancelScheduled(kind, orderID string) error {
	e.mu.Lock()
	so, err := e.scheduled(kind, orderID)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	now := e.now()
	if !so.cancel(now) {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s %s already resolved", ErrExecution, kind, orderID)
	}
	so.UpdatedAt = now
	symbol := so.Symbol
	e.mu.Unlock()

	e.publish(Event{Type: EventCancelled, OrderID: orderID, OrderKind: kind, Symbol: symbol, At: now})
	return nil
}

// GetTWAP returns a copy of the order by id.
func (e *Engine) GetTWAP(id string) (*TWAPOrder, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	tw, ok := e.twap[id]
	if !ok {
		return nil, fmt.Errorf("%w: twap %s", ErrNotFound, id)
	}
	return tw.snapshot(), nil
}

func (e *Engine) scheduled(kind, orderID string) (*scheduledOrder, error) {
	switch kind {
	case "twap":
		if tw, ok := e.twap[orderID]; ok {
			return &tw.scheduledOrder, nil
		}
	case "vwap":
		if vw, ok := e.vwap[orderID]; ok {
			return &vw.scheduledOrder, nil
		}
	default:
		return nil, fmt.Errorf("%w: unknown scheduled order kind %q", ErrValidation, kind)
	}
	return nil, fmt.Errorf("%w: %s %s", ErrNotFound, kind, orderID)
}
