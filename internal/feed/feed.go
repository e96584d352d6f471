// Package feed supplies current prices to the engine's driving loops.
// The engine itself never does I/O; prices are always handed to it as
// plain inputs.
package feed

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"tradesim/internal/market"
)

// Source returns the current price of a symbol in USD. Implementations
// must be safe for concurrent use.
type Source interface {
	Price(ctx context.Context, symbol string) (float64, error)
	Close() error
}

// CandleSource supplies OHLCV history alongside prices, feeding the
// realized-volatility estimate. Sources without history simply do not
// implement it.
type CandleSource interface {
	Candles(ctx context.Context, symbol string, limit int) ([]market.Candle, error)
}

// Static is an in-memory price source for offline and test use. Prices
// are set by hand or by a replay driver.
type Static struct {
	mu      sync.RWMutex
	prices  map[string]float64
	candles map[string][]market.Candle
}

func NewStatic(prices map[string]float64) *Static {
	s := &Static{
		prices:  make(map[string]float64),
		candles: make(map[string][]market.Candle),
	}
	for sym, p := range prices {
		s.prices[normalize(sym)] = p
	}
	return s
}

func (s *Static) Price(_ context.Context, symbol string) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.prices[normalize(symbol)]
	if !ok || p <= 0 {
		return 0, fmt.Errorf("no price for %s", symbol)
	}
	return p, nil
}

// SetPrice updates a symbol's price; used by tests and replay drivers.
func (s *Static) SetPrice(symbol string, price float64) {
	s.mu.Lock()
	s.prices[normalize(symbol)] = price
	s.mu.Unlock()
}

// SetCandles loads OHLCV history for a symbol, most recent last.
func (s *Static) SetCandles(symbol string, candles []market.Candle) {
	s.mu.Lock()
	s.candles[normalize(symbol)] = append([]market.Candle(nil), candles...)
	s.mu.Unlock()
}

func (s *Static) Candles(_ context.Context, symbol string, limit int) ([]market.Candle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	history, ok := s.candles[normalize(symbol)]
	if !ok || len(history) == 0 {
		return nil, fmt.Errorf("no candle history for %s", symbol)
	}
	if limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}
	return append([]market.Candle(nil), history...), nil
}

func (s *Static) Close() error { return nil }

func normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
