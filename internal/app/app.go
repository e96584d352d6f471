package app

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"golang.org/x/sync/errgroup"

	"tradesim/internal/book"
	"tradesim/internal/config"
	"tradesim/internal/engine"
	"tradesim/internal/feed"
	"tradesim/internal/logger"
	"tradesim/internal/market"
	"tradesim/internal/notifier"
	"tradesim/internal/scheduler"
	"tradesim/internal/store"
	"tradesim/internal/store/sqlite"
	httptransport "tradesim/internal/transport/http"
)

// App wires the simulation core to its operational shell.
type App struct {
	cfg    *config.Config
	table  *market.LiquidityTable
	calc   *market.Calculator
	sim    *book.Simulator
	eng    *engine.Engine
	feed   feed.Source
	sched  *scheduler.Scheduler
	server *httptransport.Server
	ledger *sqlite.Store
}

// multiSink fans engine events out to every configured sink.
type multiSink []engine.Sink

func (m multiSink) Publish(evt engine.Event) {
	for _, s := range m {
		s.Publish(evt)
	}
}

// New builds the full application from config.
func New(cfg *config.Config) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	a := &App{cfg: cfg}

	a.table = market.NewLiquidityTable()
	if cfg.Liquidity.File != "" {
		if err := a.table.LoadFile(cfg.Liquidity.File); err != nil {
			return nil, err
		}
	}
	a.calc = market.NewCalculator(a.table, cfg.Market)
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	a.sim = book.NewSimulator(a.table, cfg.Book, rng)

	sinks := multiSink{notifier.EventNotifier{Notifier: notifier.LogNotifier{}}}
	var ledgerSink *store.LedgerSink
	if cfg.Store.Enabled {
		ledger, err := sqlite.New(cfg.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("opening ledger: %w", err)
		}
		a.ledger = ledger
		ledgerSink = store.NewLedgerSink(ledger)
		sinks = append(sinks, ledgerSink)
	}

	a.eng = engine.New(engine.Params{
		Table:      a.table,
		Sink:       sinks,
		CleanupTTL: cfg.Engine.CleanupTTL,
	})

	switch cfg.Feed.Mode {
	case "binance":
		src, err := feed.NewBinance(cfg.Feed.Binance)
		if err != nil {
			return nil, fmt.Errorf("building binance feed: %w", err)
		}
		a.feed = src
	default:
		a.feed = feed.NewStatic(cfg.Feed.Prices)
	}

	var recorder scheduler.FillRecorder
	if ledgerSink != nil {
		recorder = ledgerSink
	}
	sched, err := scheduler.New(scheduler.Params{
		Engine:          a.eng,
		Feed:            a.feed,
		Executor:        scheduler.NewSimExecutor(a.sim),
		Recorder:        recorder,
		TickInterval:    cfg.Scheduler.TickInterval,
		SliceInterval:   cfg.Scheduler.SliceInterval,
		CleanupInterval: cfg.Scheduler.CleanupInterval,
	})
	if err != nil {
		return nil, err
	}
	a.sched = sched

	if cfg.HTTP.Enabled {
		params := httptransport.Params{
			Listen:     cfg.HTTP.Listen,
			Engine:     a.eng,
			Calculator: a.calc,
			Simulator:  a.sim,
			Feed:       a.feed,
			Store:      a.ledger,
		}
		if cs, ok := a.feed.(feed.CandleSource); ok {
			params.Candles = cs
		}
		server, err := httptransport.NewServer(params)
		if err != nil {
			return nil, err
		}
		a.server = server
	}
	return a, nil
}

// Engine exposes the advanced order engine, mainly for embedding and
// tests.
func (a *App) Engine() *engine.Engine { return a.eng }

// Run starts the polling loops, the optional HTTP API and the optional
// liquidity watcher, and blocks until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.sched.Run(ctx) })
	if a.server != nil {
		g.Go(func() error { return a.server.Run(ctx) })
	}
	if a.cfg.Liquidity.File != "" && a.cfg.Liquidity.Watch {
		g.Go(func() error { return a.table.Watch(ctx, a.cfg.Liquidity.File) })
	}
	logger.Infow("tradesim running",
		"feed", a.cfg.Feed.Mode, "http", a.cfg.HTTP.Enabled, "ledger", a.cfg.Store.Enabled)
	err := g.Wait()
	if a.ledger != nil {
		_ = a.ledger.Close()
	}
	if a.feed != nil {
		_ = a.feed.Close()
	}
	return err
}
