package engine

import (
	"fmt"
	"time"

	"tradesim/internal/types"
)

// SliceStatus is the lifecycle state of one scheduled execution slice.
type SliceStatus string

const (
	SliceStatusPending   SliceStatus = "pending"
	SliceStatusExecuting SliceStatus = "executing"
	SliceStatusCompleted SliceStatus = "completed"
	SliceStatusFailed    SliceStatus = "failed"
)

// Slice is one scheduled portion of a TWAP or VWAP order. Slices
// execute strictly in scheduled order, one at a time.
type Slice struct {
	Number        int         `json:"number"`
	ScheduledTime time.Time   `json:"scheduled_time"`
	Amount        float64     `json:"amount"`
	Status        SliceStatus `json:"status"`
	FillPrice     float64     `json:"fill_price,omitempty"`
	FailReason    string      `json:"fail_reason,omitempty"`

	// VWAP participation tracking; zero for TWAP slices.
	Weight                float64 `json:"weight,omitempty"`
	TargetVolume          float64 `json:"target_volume,omitempty"`
	MarketVolume          float64 `json:"market_volume,omitempty"`
	ParticipationAchieved float64 `json:"participation_achieved,omitempty"`
}

// scheduledOrder is the slice-lifecycle machinery shared by TWAP and
// VWAP orders.
type scheduledOrder struct {
	ID               string        `json:"id"`
	Symbol           string        `json:"symbol"`
	Side             types.Side    `json:"side"`
	Order            *types.Order  `json:"order"`
	ExecutionPeriod  time.Duration `json:"execution_period"`
	IntervalDuration time.Duration `json:"interval_duration"`
	StartTime        time.Time     `json:"start_time"`
	Slices           []Slice       `json:"slices"`
	CurrentSlice     int           `json:"current_slice_index"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// DueSliceRef identifies a slice the scheduler should execute now.
type DueSliceRef struct {
	OrderID string
	Kind    string // twap or vwap
	Symbol  string
	Side    types.Side
	Number  int
	Amount  float64
}

// dueSlice returns the next pending slice whose schedule has arrived,
// provided no earlier slice is still executing and the parent is live.
func (so *scheduledOrder) dueSlice(now time.Time) (*Slice, bool) {
	if so.Order.Status.Terminal() {
		return nil, false
	}
	if so.CurrentSlice >= len(so.Slices) {
		return nil, false
	}
	sl := &so.Slices[so.CurrentSlice]
	if sl.Status != SliceStatusPending || now.Before(sl.ScheduledTime) {
		return nil, false
	}
	return sl, true
}

// startSlice transitions the slice pending -> executing.
func (so *scheduledOrder) startSlice(number int) (*Slice, error) {
	sl, err := so.sliceAt(number)
	if err != nil {
		return nil, err
	}
	if so.Order.Status.Terminal() {
		return nil, fmt.Errorf("%w: order %s is %s, no further slices", ErrExecution, so.ID, so.Order.Status)
	}
	if number != so.CurrentSlice {
		return nil, fmt.Errorf("%w: slice %d is not the current slice (%d)", ErrExecution, number, so.CurrentSlice)
	}
	if sl.Status != SliceStatusPending {
		return nil, fmt.Errorf("%w: slice %d is %s, expected pending", ErrExecution, number, sl.Status)
	}
	sl.Status = SliceStatusExecuting
	return sl, nil
}

// completeSlice transitions executing -> completed and applies the
// fill to the parent. A slice whose parent was cancelled mid-flight
// still records its fill (the trade happened) but the parent stays
// cancelled and nothing further is scheduled.
func (so *scheduledOrder) completeSlice(number int, price float64, now time.Time) (*Slice, error) {
	sl, err := so.sliceAt(number)
	if err != nil {
		return nil, err
	}
	if sl.Status != SliceStatusExecuting {
		return nil, fmt.Errorf("%w: slice %d is %s, expected executing", ErrExecution, number, sl.Status)
	}
	if so.Order.Status == types.OrderStatusCancelled {
		so.Order.ApplyLateFill(sl.Amount, price, 0, now)
	} else if _, err := so.Order.ApplyFill(sl.Amount, price, 0, now); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExecution, err)
	}
	sl.Status = SliceStatusCompleted
	sl.FillPrice = price
	so.CurrentSlice++
	so.UpdatedAt = now
	return sl, nil
}

// failSlice transitions executing -> failed and moves past the slice;
// the unexecuted amount remains unfilled on the parent.
func (so *scheduledOrder) failSlice(number int, reason string, now time.Time) (*Slice, error) {
	sl, err := so.sliceAt(number)
	if err != nil {
		return nil, err
	}
	if sl.Status != SliceStatusExecuting {
		return nil, fmt.Errorf("%w: slice %d is %s, expected executing", ErrExecution, number, sl.Status)
	}
	sl.Status = SliceStatusFailed
	sl.FailReason = reason
	so.CurrentSlice++
	so.UpdatedAt = now
	return sl, nil
}

func (so *scheduledOrder) sliceAt(number int) (*Slice, error) {
	if number < 0 || number >= len(so.Slices) {
		return nil, fmt.Errorf("%w: slice %d of order %s", ErrNotFound, number, so.ID)
	}
	return &so.Slices[number], nil
}

func (so *scheduledOrder) cancel(now time.Time) bool {
	return so.Order.Cancel(now)
}
