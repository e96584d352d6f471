// Package http exposes the simulation core over a small JSON API. The
// handlers are thin: all order logic lives in the engine and the
// market/book packages.
package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"tradesim/internal/book"
	"tradesim/internal/engine"
	"tradesim/internal/feed"
	"tradesim/internal/logger"
	"tradesim/internal/market"
	"tradesim/internal/store/sqlite"
)

// Params aggregates the server's dependencies. Store and Candles are
// optional; without candle history the limit simulation falls back to
// a caller-supplied volatility.
type Params struct {
	Listen     string
	Engine     *engine.Engine
	Calculator *market.Calculator
	Simulator  *book.Simulator
	Feed       feed.Source
	Candles    feed.CandleSource
	Store      *sqlite.Store
}

type Server struct {
	listen  string
	eng     *engine.Engine
	calc    *market.Calculator
	sim     *book.Simulator
	feed    feed.Source
	candles feed.CandleSource
	store   *sqlite.Store
	srv     *http.Server
}

func NewServer(p Params) (*Server, error) {
	if p.Engine == nil || p.Calculator == nil || p.Simulator == nil || p.Feed == nil {
		return nil, errors.New("engine, calculator, simulator and feed are required")
	}
	if p.Listen == "" {
		p.Listen = ":8086"
	}
	return &Server{
		listen:  p.Listen,
		eng:     p.Engine,
		calc:    p.Calculator,
		sim:     p.Simulator,
		feed:    p.Feed,
		candles: p.Candles,
		store:   p.Store,
	}, nil
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	s.registerRoutes(router)

	s.srv = &http.Server{Addr: s.listen, Handler: router}
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("http api listening on %s", s.listen)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}
