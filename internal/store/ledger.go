// Package store persists engine activity for later inspection. The
// ledger is write-behind: a failed write is logged, never propagated
// back into order state.
package store

import (
	"context"
	"encoding/json"
	"time"

	"tradesim/internal/engine"
	"tradesim/internal/logger"
	"tradesim/internal/store/model"
	"tradesim/internal/store/sqlite"
	"tradesim/internal/types"
)

// LedgerSink adapts the sqlite store to the engine's event sink.
type LedgerSink struct {
	store *sqlite.Store
}

func NewLedgerSink(s *sqlite.Store) *LedgerSink {
	return &LedgerSink{store: s}
}

func (l *LedgerSink) Publish(evt engine.Event) {
	if l == nil || l.store == nil {
		return
	}
	detail, err := json.Marshal(evt.Detail)
	if err != nil {
		detail = nil
	}
	rec := &model.OrderEventModel{
		OrderID:   evt.OrderID,
		OrderKind: evt.OrderKind,
		Symbol:    evt.Symbol,
		EventType: string(evt.Type),
		Detail:    detail,
		At:        evt.At,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := l.store.SaveEvent(ctx, rec); err != nil {
		logger.Warnf("ledger: persisting event %s/%s failed: %v", evt.OrderKind, evt.OrderID, err)
	}
}

// RecordFills persists simulated fills alongside the event stream.
func (l *LedgerSink) RecordFills(symbol string, side types.Side, fills []types.Fill) {
	if l == nil || l.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, f := range fills {
		rec := &model.FillModel{
			ID:        f.ID,
			OrderID:   f.OrderID,
			Symbol:    symbol,
			Side:      string(side),
			Amount:    f.Amount,
			Price:     f.Price,
			Fee:       f.Fee,
			Reference: f.Reference,
			Timestamp: f.Timestamp,
		}
		if err := l.store.SaveFill(ctx, rec); err != nil {
			logger.Warnf("ledger: persisting fill %s failed: %v", f.ID, err)
		}
	}
}
