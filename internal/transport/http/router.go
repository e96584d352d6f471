package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"tradesim/internal/engine"
	"tradesim/internal/market"
	"tradesim/internal/report"
	"tradesim/internal/types"
)

func (s *Server) registerRoutes(r *gin.Engine) {
	api := r.Group("/api")
	api.GET("/quote", s.handleQuote)
	api.GET("/orderbook/:symbol", s.handleOrderBook)
	api.GET("/report/depth/:symbol", s.handleDepthReport)
	api.GET("/report/schedule/:kind/:id", s.handleScheduleReport)
	api.POST("/simulate/limit", s.handleSimulateLimit)
	api.GET("/orders", s.handleListOrders)
	api.POST("/orders/oco", s.handleCreateOCO)
	api.POST("/orders/trailing-stop", s.handleCreateTrailingStop)
	api.POST("/orders/iceberg", s.handleCreateIceberg)
	api.POST("/orders/twap", s.handleCreateTWAP)
	api.POST("/orders/vwap", s.handleCreateVWAP)
	api.POST("/orders/:kind/:id/cancel", s.handleCancel)
	api.GET("/events", s.handleEvents)
}

// errStatus maps the engine's failure classes onto HTTP statuses so
// clients can tell validation problems from execution conflicts.
func errStatus(err error) int {
	switch {
	case errors.Is(err, engine.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrMarketData):
		return http.StatusServiceUnavailable
	case errors.Is(err, engine.ErrExecution):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *gin.Context, err error) {
	c.JSON(errStatus(err), gin.H{"error": err.Error()})
}

func (s *Server) handleQuote(c *gin.Context) {
	symbol := c.Query("symbol")
	amount, _ := strconv.ParseFloat(c.Query("amount"), 64)
	price, _ := strconv.ParseFloat(c.Query("price"), 64)
	if price <= 0 {
		if p, err := s.feed.Price(c.Request.Context(), symbol); err == nil {
			price = p
		}
	}
	gas, _ := strconv.ParseFloat(c.DefaultQuery("gas_price_gwei", "20"), 64)
	ethPrice, _ := strconv.ParseFloat(c.DefaultQuery("eth_price_usd", "0"), 64)
	if ethPrice <= 0 {
		if p, err := s.feed.Price(c.Request.Context(), "ETH"); err == nil {
			ethPrice = p
		}
	}
	req := market.QuoteRequest{
		Symbol:       symbol,
		Side:         types.Side(c.DefaultQuery("side", "buy")),
		Amount:       amount,
		Price:        price,
		FeeTier:      market.FeeTier(c.DefaultQuery("tier", "basic")),
		AssetClass:   market.AssetClass(c.DefaultQuery("asset_class", "erc20")),
		GasPriceGwei: gas,
		Priority:     market.Priority(c.DefaultQuery("priority", "standard")),
		ETHPriceUSD:  ethPrice,
	}
	quote, err := s.calc.Quote(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	maxSize := s.calc.MaxOrderSize(symbol, price, 0.01)
	c.JSON(http.StatusOK, gin.H{"quote": quote, "max_size_at_1pct": maxSize})
}

func (s *Server) handleOrderBook(c *gin.Context) {
	symbol := c.Param("symbol")
	price, _ := strconv.ParseFloat(c.Query("price"), 64)
	if price <= 0 {
		p, err := s.feed.Price(c.Request.Context(), symbol)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no price available for " + symbol})
			return
		}
		price = p
	}
	b, err := s.sim.Generate(symbol, price)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, b)
}

func (s *Server) handleDepthReport(c *gin.Context) {
	symbol := c.Param("symbol")
	price, _ := strconv.ParseFloat(c.Query("price"), 64)
	if price <= 0 {
		p, err := s.feed.Price(c.Request.Context(), symbol)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no price available for " + symbol})
			return
		}
		price = p
	}
	b, err := s.sim.Generate(symbol, price)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := report.WriteDepthChart(c.Writer, b); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func (s *Server) handleScheduleReport(c *gin.Context) {
	kind := c.Param("kind")
	id := c.Param("id")
	var (
		title  string
		slices []engine.Slice
	)
	switch kind {
	case "twap":
		tw, err := s.eng.GetTWAP(id)
		if err != nil {
			fail(c, err)
			return
		}
		title = fmt.Sprintf("TWAP %s %s slice schedule", tw.Symbol, tw.ID)
		slices = tw.Slices
	case "vwap":
		vw, err := s.eng.GetVWAP(id)
		if err != nil {
			fail(c, err)
			return
		}
		title = fmt.Sprintf("VWAP %s %s slice schedule", vw.Symbol, vw.ID)
		slices = vw.Slices
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown order kind " + kind})
		return
	}
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := report.WriteScheduleChart(c.Writer, title, slices); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// volatilityWindow is the realized-volatility lookback in hourly
// candles; tickSeconds matches the price poller cadence.
const (
	volatilityWindow = 24
	tickSeconds      = 2.0
)

type simulateLimitRequest struct {
	Symbol        string  `json:"symbol" binding:"required"`
	Side          string  `json:"side" binding:"required"`
	Amount        float64 `json:"amount" binding:"required"`
	LimitPrice    float64 `json:"limit_price" binding:"required"`
	TimeInForce   string  `json:"time_in_force"`
	Price         float64 `json:"price"`
	AnnualizedVol float64 `json:"annualized_vol"`
	HorizonHours  float64 `json:"horizon_hours"`
}

// handleSimulateLimit runs one limit-order execution round against a
// fresh synthetic book. The mid-price move is scaled by realized
// volatility from candle history when the feed can serve it, otherwise
// by the volatility supplied in the request.
func (s *Server) handleSimulateLimit(c *gin.Context) {
	var req simulateLimitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	price := req.Price
	if price <= 0 {
		p, err := s.feed.Price(c.Request.Context(), req.Symbol)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no price available for " + req.Symbol})
			return
		}
		price = p
	}
	vol := req.AnnualizedVol
	if vol <= 0 && s.candles != nil {
		candles, err := s.candles.Candles(c.Request.Context(), req.Symbol, volatilityWindow+1)
		if err == nil {
			if rv, rvErr := market.RealizedVolatility(candles, volatilityWindow); rvErr == nil {
				vol = rv
			}
		}
	}

	b, err := s.sim.Generate(req.Symbol, price)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	order, err := types.NewOrder(req.Symbol, types.OrderTypeLimit, types.Side(req.Side), req.Amount, time.Now())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	order.Price = req.LimitPrice
	switch tif := types.TimeInForce(req.TimeInForce); tif {
	case types.TimeInForceIOC, types.TimeInForceFOK:
		order.TimeInForce = tif
	}

	res, err := s.sim.SimulateLimitOrder(order, b, market.TickVolatility(vol, tickSeconds), time.Now())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"order":            order,
		"result":           res,
		"fill_probability": s.sim.FillProbability(order, b, req.HorizonHours),
		"annualized_vol":   vol,
	})
}

func (s *Server) handleListOrders(c *gin.Context) {
	c.JSON(http.StatusOK, s.eng.List())
}

type ocoRequest struct {
	Symbol          string  `json:"symbol" binding:"required"`
	Side            string  `json:"side" binding:"required"`
	Amount          float64 `json:"amount" binding:"required"`
	TakeProfitPrice float64 `json:"take_profit_price" binding:"required"`
	StopLossPrice   float64 `json:"stop_loss_price" binding:"required"`
}

func (s *Server) handleCreateOCO(c *gin.Context) {
	var req ocoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	oco, err := s.eng.CreateOCO(engine.OCOParams{
		Symbol:          req.Symbol,
		Side:            types.Side(req.Side),
		Amount:          req.Amount,
		TakeProfitPrice: req.TakeProfitPrice,
		StopLossPrice:   req.StopLossPrice,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, oco)
}

type trailingStopRequest struct {
	Symbol       string  `json:"symbol" binding:"required"`
	Side         string  `json:"side" binding:"required"`
	Amount       float64 `json:"amount" binding:"required"`
	TrailAmount  float64 `json:"trail_amount"`
	TrailPercent float64 `json:"trail_percent"`
	CurrentPrice float64 `json:"current_price"`
}

func (s *Server) handleCreateTrailingStop(c *gin.Context) {
	var req trailingStopRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.CurrentPrice <= 0 {
		if p, err := s.feed.Price(c.Request.Context(), req.Symbol); err == nil {
			req.CurrentPrice = p
		}
	}
	ts, err := s.eng.CreateTrailingStop(engine.TrailingStopParams{
		Symbol:       req.Symbol,
		Side:         types.Side(req.Side),
		Amount:       req.Amount,
		TrailAmount:  req.TrailAmount,
		TrailPercent: req.TrailPercent,
		CurrentPrice: req.CurrentPrice,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, ts)
}

type icebergRequest struct {
	Symbol      string  `json:"symbol" binding:"required"`
	Side        string  `json:"side" binding:"required"`
	TotalSize   float64 `json:"total_size" binding:"required"`
	DisplaySize float64 `json:"display_size" binding:"required"`
	LimitPrice  float64 `json:"limit_price"`
}

func (s *Server) handleCreateIceberg(c *gin.Context) {
	var req icebergRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ice, err := s.eng.CreateIceberg(engine.IcebergParams{
		Symbol:      req.Symbol,
		Side:        types.Side(req.Side),
		TotalSize:   req.TotalSize,
		DisplaySize: req.DisplaySize,
		LimitPrice:  req.LimitPrice,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, ice)
}

type scheduledRequest struct {
	Symbol        string  `json:"symbol" binding:"required"`
	Side          string  `json:"side" binding:"required"`
	Amount        float64 `json:"amount" binding:"required"`
	PeriodMinutes int     `json:"period_minutes" binding:"required"`
	IntervalMin   int     `json:"interval_minutes"`
}

func (s *Server) handleCreateTWAP(c *gin.Context) {
	var req scheduledRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	tw, err := s.eng.CreateTWAP(engine.TWAPParams{
		Symbol:          req.Symbol,
		Side:            types.Side(req.Side),
		Amount:          req.Amount,
		ExecutionPeriod: time.Duration(req.PeriodMinutes) * time.Minute,
		Interval:        time.Duration(req.IntervalMin) * time.Minute,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, tw)
}

func (s *Server) handleCreateVWAP(c *gin.Context) {
	var req scheduledRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	vw, err := s.eng.CreateVWAP(engine.VWAPParams{
		Symbol:          req.Symbol,
		Side:            types.Side(req.Side),
		Amount:          req.Amount,
		ExecutionPeriod: time.Duration(req.PeriodMinutes) * time.Minute,
		Interval:        time.Duration(req.IntervalMin) * time.Minute,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, vw)
}

func (s *Server) handleCancel(c *gin.Context) {
	kind := c.Param("kind")
	id := c.Param("id")
	var err error
	switch kind {
	case "oco":
		_, err = s.eng.CancelOCO(id)
	case "trailing-stop":
		_, err = s.eng.CancelTrailingStop(id)
	case "iceberg":
		_, err = s.eng.CancelIceberg(id)
	case "twap", "vwap":
		err = s.eng.CancelScheduled(kind, id)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown order kind " + kind})
		return
	}
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}

func (s *Server) handleEvents(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "ledger is not enabled"})
		return
	}
	if orderID := c.Query("order_id"); orderID != "" {
		events, err := s.store.EventsForOrder(c.Request.Context(), orderID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, events)
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	events, err := s.store.RecentEvents(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, events)
}
