// Package notifier defines the minimal notification boundary. It is
// intentionally small so components can depend on it without importing
// concrete implementations.
package notifier

import (
	"fmt"

	"tradesim/internal/engine"
	"tradesim/internal/logger"
)

// TextNotifier delivers a short human-readable message.
type TextNotifier interface {
	SendText(text string) error
}

// LogNotifier writes notifications to the application log. It is the
// default sink when no external channel is configured.
type LogNotifier struct{}

func (LogNotifier) SendText(text string) error {
	logger.Infof("%s", text)
	return nil
}

// EventNotifier adapts a TextNotifier to the engine's event sink.
type EventNotifier struct {
	Notifier TextNotifier
}

func (n EventNotifier) Publish(evt engine.Event) {
	if n.Notifier == nil {
		return
	}
	msg := fmt.Sprintf("[%s] %s %s %s", evt.Symbol, evt.OrderKind, evt.OrderID, evt.Type)
	if err := n.Notifier.SendText(msg); err != nil {
		logger.Warnf("notification delivery failed: %v", err)
	}
}
