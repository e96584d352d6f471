package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tradesim/internal/book"
	"tradesim/internal/types"
)

// Executor is the order submission sink: given a trigger or slice
// amount it places the order and reports the outcome so the engine's
// transition can be finalized.
type Executor interface {
	ExecuteMarket(ctx context.Context, symbol string, side types.Side, amount, refPrice float64) (book.ExecutionResult, error)
}

// bookTTL bounds how long a session book accumulates simulated impact
// before being rebuilt around the current price.
const bookTTL = 5 * time.Minute

// SimExecutor settles orders against the synthetic book. Books are
// kept per symbol for the session so repeated executions deplete depth
// and move the simulated market, then rebuilt once stale.
type SimExecutor struct {
	sim *book.Simulator

	mu    sync.Mutex
	books map[string]*sessionBook
}

type sessionBook struct {
	book     *book.Book
	builtAt  time.Time
	buildMid float64
}

func NewSimExecutor(sim *book.Simulator) *SimExecutor {
	return &SimExecutor{sim: sim, books: make(map[string]*sessionBook)}
}

func (x *SimExecutor) ExecuteMarket(ctx context.Context, symbol string, side types.Side, amount, refPrice float64) (book.ExecutionResult, error) {
	if err := ctx.Err(); err != nil {
		return book.ExecutionResult{}, err
	}
	if amount <= 0 {
		return book.ExecutionResult{}, fmt.Errorf("execution amount must be positive, got %v", amount)
	}
	if refPrice <= 0 {
		return book.ExecutionResult{}, fmt.Errorf("no reference price for %s", symbol)
	}
	now := time.Now()

	x.mu.Lock()
	defer x.mu.Unlock()
	b, err := x.sessionBookLocked(symbol, refPrice, now)
	if err != nil {
		return book.ExecutionResult{}, err
	}

	order, err := types.NewOrder(symbol, types.OrderTypeMarket, side, amount, now)
	if err != nil {
		return book.ExecutionResult{}, err
	}
	return x.sim.ExecuteMarketOrder(order, b, now)
}

// sessionBookLocked returns the live book for the symbol, rebuilding
// it when missing, stale, or drifted more than 2% from the reference
// price.
func (x *SimExecutor) sessionBookLocked(symbol string, refPrice float64, now time.Time) (*book.Book, error) {
	sb, ok := x.books[symbol]
	if ok {
		drift := (refPrice - sb.buildMid) / sb.buildMid
		if drift < 0 {
			drift = -drift
		}
		if now.Sub(sb.builtAt) < bookTTL && drift < 0.02 && len(sb.book.Bids) > 0 && len(sb.book.Asks) > 0 {
			return sb.book, nil
		}
	}
	b, err := x.sim.Generate(symbol, refPrice)
	if err != nil {
		return nil, err
	}
	x.books[symbol] = &sessionBook{book: b, builtAt: now, buildMid: refPrice}
	return b, nil
}
