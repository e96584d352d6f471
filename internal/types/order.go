package types

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Side represents the direction of an order.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// OrderType classifies how an order executes.
type OrderType string

const (
	OrderTypeMarket       OrderType = "market"
	OrderTypeLimit        OrderType = "limit"
	OrderTypeStop         OrderType = "stop"
	OrderTypeTrailingStop OrderType = "trailing_stop"
	OrderTypeIceberg      OrderType = "iceberg"
	OrderTypeTWAP         OrderType = "twap"
	OrderTypeVWAP         OrderType = "vwap"
)

// TimeInForce governs partial-fill acceptance.
type TimeInForce string

const (
	TimeInForceGTC TimeInForce = "GTC"
	TimeInForceIOC TimeInForce = "IOC"
	TimeInForceFOK TimeInForce = "FOK"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusOpen            OrderStatus = "open"
	OrderStatusFilled          OrderStatus = "filled"
	OrderStatusPartiallyFilled OrderStatus = "partially_filled"
	OrderStatusCancelled       OrderStatus = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusFilled || s == OrderStatusCancelled
}

// Fill is an immutable execution record. Fills are append-only: once
// recorded on an order they are never mutated or removed.
type Fill struct {
	ID        string    `json:"id"`
	OrderID   string    `json:"order_id"`
	Timestamp time.Time `json:"timestamp"`
	Amount    float64   `json:"amount"`
	Price     float64   `json:"price"`
	Fee       float64   `json:"fee"`
	Reference string    `json:"reference,omitempty"`
}

// Order is a single tradable instruction shared by every order type.
// Quantities hold the invariant Filled + Remaining == Amount.
type Order struct {
	ID               string      `json:"id"`
	Symbol           string      `json:"symbol"`
	Type             OrderType   `json:"type"`
	Side             Side        `json:"side"`
	Amount           float64     `json:"amount"`
	Filled           float64     `json:"filled"`
	Remaining        float64     `json:"remaining"`
	Price            float64     `json:"price,omitempty"`
	StopPrice        float64     `json:"stop_price,omitempty"`
	AverageFillPrice float64     `json:"average_fill_price"`
	TimeInForce      TimeInForce `json:"time_in_force"`
	SlippageTol      float64     `json:"slippage_tolerance"`
	Status           OrderStatus `json:"status"`
	EstimatedCost    float64     `json:"estimated_cost,omitempty"`
	RequiredBalance  float64     `json:"required_balance,omitempty"`
	TotalFees        float64     `json:"total_fees"`
	LinkedOrderID    string      `json:"linked_order_id,omitempty"`
	Fills            []Fill      `json:"fills,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// NewOrder builds an open order with a generated id. Amount must be
// positive; the time-in-force defaults to GTC.
func NewOrder(symbol string, typ OrderType, side Side, amount float64, now time.Time) (*Order, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("order amount must be positive, got %v", amount)
	}
	if side != SideBuy && side != SideSell {
		return nil, fmt.Errorf("invalid order side %q", side)
	}
	return &Order{
		ID:          uuid.NewString(),
		Symbol:      symbol,
		Type:        typ,
		Side:        side,
		Amount:      amount,
		Remaining:   amount,
		TimeInForce: TimeInForceGTC,
		Status:      OrderStatusOpen,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// ApplyFill records an execution against the order, updating filled,
// remaining, fees, the weighted average fill price and the status.
// A fill larger than the remaining amount is rejected.
func (o *Order) ApplyFill(amount, price, fee float64, now time.Time) (Fill, error) {
	if o.Status.Terminal() {
		return Fill{}, fmt.Errorf("order %s is %s, cannot fill", o.ID, o.Status)
	}
	if amount <= 0 {
		return Fill{}, fmt.Errorf("fill amount must be positive, got %v", amount)
	}
	remaining := decimal.NewFromFloat(o.Remaining)
	amt := decimal.NewFromFloat(amount)
	if amt.GreaterThan(remaining.Add(decimal.NewFromFloat(1e-9))) {
		return Fill{}, fmt.Errorf("fill amount %v exceeds remaining %v", amount, o.Remaining)
	}
	if amt.GreaterThan(remaining) {
		amt = remaining
	}

	fill := Fill{
		ID:        uuid.NewString(),
		OrderID:   o.ID,
		Timestamp: now,
		Amount:    amt.InexactFloat64(),
		Price:     price,
		Fee:       fee,
	}

	prevFilled := decimal.NewFromFloat(o.Filled)
	newFilled := prevFilled.Add(amt)
	// Amount-weighted mean over all fills.
	prevNotional := prevFilled.Mul(decimal.NewFromFloat(o.AverageFillPrice))
	fillNotional := amt.Mul(decimal.NewFromFloat(price))
	if newFilled.IsPositive() {
		o.AverageFillPrice = prevNotional.Add(fillNotional).Div(newFilled).InexactFloat64()
	}

	o.Filled = newFilled.InexactFloat64()
	o.Remaining = decimal.NewFromFloat(o.Amount).Sub(newFilled).InexactFloat64()
	if o.Remaining < 0 {
		o.Remaining = 0
	}
	o.TotalFees += fee
	o.Fills = append(o.Fills, fill)
	if o.Remaining <= 1e-9 {
		o.Remaining = 0
		o.Status = OrderStatusFilled
	} else {
		o.Status = OrderStatusPartiallyFilled
	}
	o.UpdatedAt = now
	return fill, nil
}

// ApplyLateFill records a fill that completed after the order was
// cancelled. The execution happened, so quantities, fees and the
// average price are updated, but the cancelled status stands.
func (o *Order) ApplyLateFill(amount, price, fee float64, now time.Time) Fill {
	status := o.Status
	o.Status = OrderStatusOpen
	fill, err := o.ApplyFill(amount, price, fee, now)
	if err != nil {
		o.Status = status
		return Fill{}
	}
	o.Status = status
	return fill
}

// Clone returns an independent copy of the order, fills included.
// Readers outside the owning engine only ever see clones.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	dup := *o
	dup.Fills = append([]Fill(nil), o.Fills...)
	return &dup
}

// Cancel marks the order cancelled. Cancelling a terminal order is a
// no-op so that a cancel racing a fill resolves first-writer-wins.
func (o *Order) Cancel(now time.Time) bool {
	if o.Status.Terminal() {
		return false
	}
	o.Status = OrderStatusCancelled
	o.UpdatedAt = now
	return true
}
