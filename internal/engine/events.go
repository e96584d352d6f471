package engine

import "time"

// EventType enumerates engine state transitions surfaced to sinks.
type EventType string

const (
	EventCreated       EventType = "created"
	EventAdjusted      EventType = "adjusted"
	EventTriggered     EventType = "triggered"
	EventSliceExecuted EventType = "slice_executed"
	EventSliceFailed   EventType = "slice_failed"
	EventFilled        EventType = "filled"
	EventCancelled     EventType = "cancelled"
)

// Event describes one state transition of an advanced order. The
// engine has no opinion on presentation; sinks decide what to do with
// it (log, notify, persist).
type Event struct {
	Type      EventType      `json:"type"`
	OrderID   string         `json:"order_id"`
	OrderKind string         `json:"order_kind"` // oco, trailing_stop, iceberg, twap, vwap
	Symbol    string         `json:"symbol"`
	At        time.Time      `json:"at"`
	Detail    map[string]any `json:"detail,omitempty"`
}

// Sink receives engine events. Implementations must not block for
// long; the engine calls them synchronously under its lock release.
type Sink interface {
	Publish(Event)
}

type nopSink struct{}

func (nopSink) Publish(Event) {}
