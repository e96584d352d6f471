package market

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"tradesim/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/tidwall/gjson"
)

// Liquidity describes per-symbol market depth parameters used by the
// math library and the book generator.
type Liquidity struct {
	DailyVolume float64 `json:"daily_volume"` // USD notional traded per day
	Spread      float64 `json:"spread"`       // quoted spread as a fraction of price
	DepthBPS    float64 `json:"depth_bps"`    // impact coefficient in basis points
}

// LiquidityTable holds liquidity parameters keyed by symbol. Lookups
// for unknown symbols return a conservative fallback so that quoting
// never hard-fails on an unrecognized asset.
type LiquidityTable struct {
	mu       sync.RWMutex
	entries  map[string]Liquidity
	fallback Liquidity
}

// NewLiquidityTable builds a table pre-seeded with a handful of major
// assets so the simulator works out of the box.
func NewLiquidityTable() *LiquidityTable {
	t := &LiquidityTable{
		entries: make(map[string]Liquidity),
		fallback: Liquidity{
			DailyVolume: 1_000_000,
			Spread:      0.01,
			DepthBPS:    50,
		},
	}
	for sym, liq := range map[string]Liquidity{
		"ETH":  {DailyVolume: 8_000_000_000, Spread: 0.0005, DepthBPS: 2},
		"BTC":  {DailyVolume: 15_000_000_000, Spread: 0.0004, DepthBPS: 1.5},
		"SOL":  {DailyVolume: 2_000_000_000, Spread: 0.001, DepthBPS: 4},
		"USDC": {DailyVolume: 5_000_000_000, Spread: 0.0001, DepthBPS: 0.5},
		"LINK": {DailyVolume: 400_000_000, Spread: 0.002, DepthBPS: 8},
		"UNI":  {DailyVolume: 150_000_000, Spread: 0.003, DepthBPS: 12},
	} {
		t.entries[sym] = liq
	}
	return t
}

// Get returns the liquidity for symbol, or the fallback and false when
// the symbol is unknown.
func (t *LiquidityTable) Get(symbol string) (Liquidity, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	liq, ok := t.entries[normalizeSymbol(symbol)]
	if !ok {
		return t.fallback, false
	}
	return liq, true
}

// Set inserts or replaces the liquidity entry for symbol.
func (t *LiquidityTable) Set(symbol string, liq Liquidity) {
	t.mu.Lock()
	t.entries[normalizeSymbol(symbol)] = liq
	t.mu.Unlock()
}

// Symbols lists the known symbols.
func (t *LiquidityTable) Symbols() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.entries))
	for sym := range t.entries {
		out = append(out, sym)
	}
	return out
}

// LoadFile replaces table entries from a JSON file of the form
// {"ETH": {"daily_volume": ..., "spread": ..., "depth_bps": ...}, ...}.
// Entries with non-positive daily volume are skipped.
func (t *LiquidityTable) LoadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading liquidity file: %w", err)
	}
	parsed := gjson.ParseBytes(raw)
	if !parsed.IsObject() {
		return fmt.Errorf("liquidity file %s: expected a JSON object", path)
	}
	loaded := 0
	parsed.ForEach(func(key, value gjson.Result) bool {
		liq := Liquidity{
			DailyVolume: value.Get("daily_volume").Float(),
			Spread:      value.Get("spread").Float(),
			DepthBPS:    value.Get("depth_bps").Float(),
		}
		if liq.DailyVolume <= 0 {
			logger.Warnf("liquidity entry %s skipped: daily_volume must be positive", key.String())
			return true
		}
		t.Set(key.String(), liq)
		loaded++
		return true
	})
	logger.Infow("liquidity table loaded", "entries", loaded, "file", path)
	return nil
}

// Watch reloads the table whenever the file changes. It blocks until
// ctx is cancelled and is meant to run in its own goroutine.
func (t *LiquidityTable) Watch(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Add(path); err != nil {
		return fmt.Errorf("watching liquidity file: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := t.LoadFile(path); err != nil {
				logger.Warnf("liquidity reload failed: %v", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warnf("liquidity watcher error: %v", err)
		}
	}
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
