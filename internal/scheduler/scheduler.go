// Package scheduler drives the engine from the outside: a price-tick
// poller advances trailing stops and OCO brackets, and a slice poller
// executes due TWAP/VWAP slices. The engine stays free of I/O; these
// loops are the only concurrency in the system.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tradesim/internal/engine"
	"tradesim/internal/feed"
	"tradesim/internal/logger"
	"tradesim/internal/types"
)

const (
	defaultTickInterval    = 2 * time.Second
	defaultSliceInterval   = 5 * time.Second
	defaultCleanupInterval = time.Hour
)

// FillRecorder receives simulated fills for persistence. Optional.
type FillRecorder interface {
	RecordFills(symbol string, side types.Side, fills []types.Fill)
}

// Params aggregates the scheduler's dependencies.
type Params struct {
	Engine          *engine.Engine
	Feed            feed.Source
	Executor        Executor
	Recorder        FillRecorder
	TickInterval    time.Duration
	SliceInterval   time.Duration
	CleanupInterval time.Duration
}

// Scheduler owns the polling loops. Both loops are idempotent:
// re-evaluating a condition that was already acted upon is a no-op
// thanks to the engine's status guards.
type Scheduler struct {
	eng             *engine.Engine
	feed            feed.Source
	exec            Executor
	recorder        FillRecorder
	tickInterval    time.Duration
	sliceInterval   time.Duration
	cleanupInterval time.Duration
}

func New(params Params) (*Scheduler, error) {
	if params.Engine == nil || params.Feed == nil || params.Executor == nil {
		return nil, fmt.Errorf("engine, feed and executor are required")
	}
	if params.TickInterval <= 0 {
		params.TickInterval = defaultTickInterval
	}
	if params.SliceInterval <= 0 {
		params.SliceInterval = defaultSliceInterval
	}
	if params.CleanupInterval <= 0 {
		params.CleanupInterval = defaultCleanupInterval
	}
	return &Scheduler{
		eng:             params.Engine,
		feed:            params.Feed,
		exec:            params.Executor,
		recorder:        params.Recorder,
		tickInterval:    params.TickInterval,
		sliceInterval:   params.SliceInterval,
		cleanupInterval: params.CleanupInterval,
	}, nil
}

// Run blocks until ctx is cancelled, driving all three loops.
func (s *Scheduler) Run(ctx context.Context) error {
	tick := time.NewTicker(s.tickInterval)
	slice := time.NewTicker(s.sliceInterval)
	cleanup := time.NewTicker(s.cleanupInterval)
	defer tick.Stop()
	defer slice.Stop()
	defer cleanup.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
			s.PollPrices(ctx)
		case <-slice.C:
			s.PollSlices(ctx)
		case <-cleanup.C:
			purged := s.eng.Cleanup(time.Now())
			if purged > 0 {
				logger.Infof("engine cleanup: purged %d terminal orders", purged)
			}
		}
	}
}

// PollPrices fetches a price per symbol with live conditional orders
// and feeds it through the engine, executing any fired triggers. A
// missing price skips the symbol for this cycle.
func (s *Scheduler) PollPrices(ctx context.Context) {
	for _, symbol := range s.eng.Symbols() {
		price, err := s.feed.Price(ctx, symbol)
		if err != nil {
			logger.Debugf("price poll: %s skipped: %v", symbol, err)
			continue
		}
		triggers, err := s.eng.OnPriceTick(symbol, price)
		if err != nil {
			if !errors.Is(err, engine.ErrMarketData) {
				logger.Warnf("price tick %s: %v", symbol, err)
			}
			continue
		}
		for _, trg := range triggers {
			s.executeTrigger(ctx, trg, price)
		}
	}
}

func (s *Scheduler) executeTrigger(ctx context.Context, trg engine.Trigger, price float64) {
	res, err := s.exec.ExecuteMarket(ctx, trg.Symbol, trg.Side, trg.Amount, price)
	if err != nil {
		logger.Warnf("%s %s: trigger execution failed: %v", trg.Kind, trg.OrderID, err)
		return
	}
	logger.Infow("trigger executed",
		"kind", trg.Kind, "order", trg.OrderID,
		"filled", res.FilledAmount, "avg_price", res.AveragePrice, "remaining", res.Remaining)
	if s.recorder != nil && len(res.Fills) > 0 {
		s.recorder.RecordFills(trg.Symbol, trg.Side, res.Fills)
	}
}

// PollSlices executes every due TWAP/VWAP slice. Slice state moves
// pending -> executing -> completed|failed; a failure leaves the
// amount unfilled and the schedule moves on.
func (s *Scheduler) PollSlices(ctx context.Context) {
	now := time.Now()
	for _, due := range s.eng.DueSlices(now) {
		if err := s.eng.StartSlice(due.Kind, due.OrderID, due.Number); err != nil {
			// Another cycle already claimed it.
			continue
		}
		price, err := s.feed.Price(ctx, due.Symbol)
		if err != nil {
			s.failSlice(due, fmt.Sprintf("no price: %v", err))
			continue
		}
		res, err := s.exec.ExecuteMarket(ctx, due.Symbol, due.Side, due.Amount, price)
		if err != nil || res.FilledAmount <= 0 {
			reason := "no liquidity"
			if err != nil {
				reason = err.Error()
			}
			s.failSlice(due, reason)
			continue
		}
		if err := s.eng.CompleteSlice(due.Kind, due.OrderID, due.Number, res.AveragePrice); err != nil {
			logger.Warnf("%s %s: completing slice %d failed: %v", due.Kind, due.OrderID, due.Number, err)
			continue
		}
		if s.recorder != nil && len(res.Fills) > 0 {
			s.recorder.RecordFills(due.Symbol, due.Side, res.Fills)
		}
	}
}

func (s *Scheduler) failSlice(due engine.DueSliceRef, reason string) {
	if err := s.eng.FailSlice(due.Kind, due.OrderID, due.Number, reason); err != nil {
		logger.Warnf("%s %s: failing slice %d failed: %v", due.Kind, due.OrderID, due.Number, err)
	}
}
