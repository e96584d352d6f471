package engine

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"tradesim/internal/market"
)

const defaultCleanupTTL = 24 * time.Hour

// Params aggregates the dependencies an Engine needs. Table and Sink
// are optional; the clock defaults to time.Now.
type Params struct {
	Table      *market.LiquidityTable
	Sink       Sink
	Clock      func() time.Time
	CleanupTTL time.Duration
}

// Engine owns the lifecycle of every advanced order and its child base
// orders; no other component may mutate order state once created.
// Every public method is an atomic read-modify-write against one keyed
// entry, guarded by a single mutex — the only multi-order transition
// is OCO's paired cancel, which happens under the same lock hold.
type Engine struct {
	mu         sync.Mutex
	table      *market.LiquidityTable
	sink       Sink
	now        func() time.Time
	newID      func() string
	cleanupTTL time.Duration

	oco      map[string]*OCOOrder
	trailing map[string]*TrailingStopOrder
	iceberg  map[string]*IcebergOrder
	twap     map[string]*TWAPOrder
	vwap     map[string]*VWAPOrder
}

// New builds an engine. Callers instantiate one per session (or per
// test); there is no package-level instance.
func New(params Params) *Engine {
	if params.Table == nil {
		params.Table = market.NewLiquidityTable()
	}
	if params.Sink == nil {
		params.Sink = nopSink{}
	}
	if params.Clock == nil {
		params.Clock = time.Now
	}
	if params.CleanupTTL <= 0 {
		params.CleanupTTL = defaultCleanupTTL
	}
	return &Engine{
		table:      params.Table,
		sink:       params.Sink,
		now:        params.Clock,
		newID:      uuid.NewString,
		cleanupTTL: params.CleanupTTL,
		oco:        make(map[string]*OCOOrder),
		trailing:   make(map[string]*TrailingStopOrder),
		iceberg:    make(map[string]*IcebergOrder),
		twap:       make(map[string]*TWAPOrder),
		vwap:       make(map[string]*VWAPOrder),
	}
}

func (e *Engine) publish(evt Event) {
	e.sink.Publish(evt)
}

// Cleanup purges terminal advanced orders whose last update is older
// than the TTL. Returns the number of purged records. This is garbage
// collection, not a correctness-critical operation.
func (e *Engine) Cleanup(now time.Time) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	cutoff := now.Add(-e.cleanupTTL)
	purged := 0
	for id, o := range e.oco {
		if o.Status != OCOStatusActive && o.UpdatedAt.Before(cutoff) {
			delete(e.oco, id)
			purged++
		}
	}
	for id, o := range e.trailing {
		if o.Order.Status.Terminal() && o.UpdatedAt.Before(cutoff) {
			delete(e.trailing, id)
			purged++
		}
	}
	for id, o := range e.iceberg {
		if o.Order.Status.Terminal() && o.UpdatedAt.Before(cutoff) {
			delete(e.iceberg, id)
			purged++
		}
	}
	for id, o := range e.twap {
		if o.Order.Status.Terminal() && o.UpdatedAt.Before(cutoff) {
			delete(e.twap, id)
			purged++
		}
	}
	for id, o := range e.vwap {
		if o.Order.Status.Terminal() && o.UpdatedAt.Before(cutoff) {
			delete(e.vwap, id)
			purged++
		}
	}
	return purged
}

// Symbols lists the symbols that currently have live orders needing
// price ticks, so pollers know what to fetch.
func (e *Engine) Symbols() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	seen := make(map[string]struct{})
	for _, o := range e.oco {
		if o.Status == OCOStatusActive {
			seen[o.Symbol] = struct{}{}
		}
	}
	for _, o := range e.trailing {
		if !o.Order.Status.Terminal() {
			seen[o.Symbol] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for sym := range seen {
		out = append(out, sym)
	}
	return out
}
