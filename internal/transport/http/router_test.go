package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradesim/internal/book"
	"tradesim/internal/engine"
	"tradesim/internal/feed"
	"tradesim/internal/market"
)

func newTestRouter(t *testing.T) (*gin.Engine, *engine.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	table := market.NewLiquidityTable()
	eng := engine.New(engine.Params{Table: table})
	src := feed.NewStatic(map[string]float64{"ETH": 3200})
	// Flat hourly history: realized volatility comes out zero, making
	// the limit simulation deterministic.
	flat := make([]market.Candle, 25)
	for i := range flat {
		flat[i] = market.Candle{Open: 3200, High: 3210, Low: 3190, Close: 3200, Volume: 1000}
	}
	src.SetCandles("ETH", flat)
	srv, err := NewServer(Params{
		Engine:     eng,
		Calculator: market.NewCalculator(table, market.DefaultParams()),
		Simulator:  book.NewSimulator(table, book.Config{}, rand.New(rand.NewSource(1))),
		Feed:       src,
		Candles:    src,
	})
	require.NoError(t, err)
	r := gin.New()
	srv.registerRoutes(r)
	return r, eng
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestQuoteEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)

	t.Run("price falls back to the feed", func(t *testing.T) {
		w := doJSON(t, r, http.MethodGet, "/api/quote?symbol=ETH&amount=5&side=buy", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			Quote   market.Quote `json:"quote"`
			MaxSize float64      `json:"max_size_at_1pct"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Greater(t, resp.Quote.ExecutionPrice, 3200.0)
		assert.Greater(t, resp.MaxSize, 0.0)
	})

	t.Run("missing amount is a bad request", func(t *testing.T) {
		w := doJSON(t, r, http.MethodGet, "/api/quote?symbol=ETH", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestOrderBookEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)

	t.Run("generates a book at the feed price", func(t *testing.T) {
		w := doJSON(t, r, http.MethodGet, "/api/orderbook/ETH", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var b book.Book
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &b))
		assert.Len(t, b.Bids, 10)
		assert.Len(t, b.Asks, 10)
		assert.InDelta(t, 3200, b.MidPrice, 1)
	})

	t.Run("no price anywhere is service unavailable", func(t *testing.T) {
		w := doJSON(t, r, http.MethodGet, "/api/orderbook/DOGE", nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestOrderEndpoints(t *testing.T) {
	r, eng := newTestRouter(t)

	t.Run("oco create and cancel", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPost, "/api/orders/oco", map[string]any{
			"symbol": "ETH", "side": "sell", "amount": 2,
			"take_profit_price": 3600, "stop_loss_price": 3000,
		})
		require.Equal(t, http.StatusCreated, w.Code)
		var oco engine.OCOOrder
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &oco))

		w = doJSON(t, r, http.MethodPost, "/api/orders/oco/"+oco.ID+"/cancel", nil)
		assert.Equal(t, http.StatusOK, w.Code)

		// First writer won; the repeat is a conflict.
		w = doJSON(t, r, http.MethodPost, "/api/orders/oco/"+oco.ID+"/cancel", nil)
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("validation failures map to bad request", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPost, "/api/orders/oco", map[string]any{
			"symbol": "ETH", "side": "sell", "amount": 2,
			"take_profit_price": 3000, "stop_loss_price": 3600,
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("trailing stop price falls back to the feed", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPost, "/api/orders/trailing-stop", map[string]any{
			"symbol": "ETH", "side": "sell", "amount": 1, "trail_percent": 0.05,
		})
		require.Equal(t, http.StatusCreated, w.Code)
		var ts engine.TrailingStopOrder
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ts))
		assert.InDelta(t, 3040, ts.CurrentStopPrice, 1e-6)
	})

	t.Run("twap create appears in listings", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPost, "/api/orders/twap", map[string]any{
			"symbol": "ETH", "side": "buy", "amount": 100, "period_minutes": 60,
		})
		require.Equal(t, http.StatusCreated, w.Code)
		assert.Len(t, eng.List().TWAP, 1)

		w = doJSON(t, r, http.MethodGet, "/api/orders", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var ov engine.Overview
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ov))
		assert.Len(t, ov.TWAP, 1)
	})

	t.Run("missing order is not found", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPost, "/api/orders/twap/nope/cancel", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("unknown kind is a bad request", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPost, "/api/orders/pov/x/cancel", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestScheduleReportEndpoint(t *testing.T) {
	r, eng := newTestRouter(t)
	tw, err := eng.CreateTWAP(engine.TWAPParams{
		Symbol: "ETH", Side: "buy", Amount: 100, ExecutionPeriod: time.Hour,
	})
	require.NoError(t, err)
	vw, err := eng.CreateVWAP(engine.VWAPParams{
		Symbol: "ETH", Side: "buy", Amount: 100, ExecutionPeriod: time.Hour,
	})
	require.NoError(t, err)

	t.Run("twap schedule renders as html", func(t *testing.T) {
		w := doJSON(t, r, http.MethodGet, "/api/report/schedule/twap/"+tw.ID, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
		assert.Contains(t, w.Body.String(), "TWAP ETH "+tw.ID+" slice schedule")
		assert.Contains(t, w.Body.String(), "pending")
	})

	t.Run("vwap schedule renders as html", func(t *testing.T) {
		w := doJSON(t, r, http.MethodGet, "/api/report/schedule/vwap/"+vw.ID, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "VWAP ETH "+vw.ID+" slice schedule")
	})

	t.Run("missing order is not found", func(t *testing.T) {
		w := doJSON(t, r, http.MethodGet, "/api/report/schedule/twap/nope", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("unknown kind is a bad request", func(t *testing.T) {
		w := doJSON(t, r, http.MethodGet, "/api/report/schedule/pov/"+tw.ID, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestSimulateLimitEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)

	t.Run("marketable buy fills at the limit", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPost, "/api/simulate/limit", map[string]any{
			"symbol": "ETH", "side": "buy", "amount": 10, "limit_price": 3300,
		})
		require.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			Result        book.ExecutionResult `json:"result"`
			FillProb      float64              `json:"fill_probability"`
			AnnualizedVol float64              `json:"annualized_vol"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		// Flat history: zero volatility, the mid stays put and the
		// limit crosses the whole ask side.
		assert.Zero(t, resp.AnnualizedVol)
		assert.InDelta(t, 10, resp.Result.FilledAmount, 1e-9)
		assert.InDelta(t, 3300, resp.Result.AveragePrice, 1e-9)
		assert.InDelta(t, 0.99, resp.FillProb, 1e-9)
	})

	t.Run("uncrossed limit stays open", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPost, "/api/simulate/limit", map[string]any{
			"symbol": "ETH", "side": "buy", "amount": 10, "limit_price": 3000, "horizon_hours": 4,
		})
		require.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			Result   book.ExecutionResult `json:"result"`
			FillProb float64              `json:"fill_probability"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Zero(t, resp.Result.FilledAmount)
		assert.InDelta(t, 10, resp.Result.Remaining, 1e-9)
		assert.Greater(t, resp.FillProb, 0.0)
		assert.Less(t, resp.FillProb, 1.0)
	})

	t.Run("caller supplied volatility wins over history", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPost, "/api/simulate/limit", map[string]any{
			"symbol": "ETH", "side": "buy", "amount": 10, "limit_price": 3300, "annualized_vol": 0.8,
		})
		require.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			AnnualizedVol float64 `json:"annualized_vol"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.InDelta(t, 0.8, resp.AnnualizedVol, 1e-9)
	})

	t.Run("no price anywhere is service unavailable", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPost, "/api/simulate/limit", map[string]any{
			"symbol": "DOGE", "side": "buy", "amount": 10, "limit_price": 1,
		})
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("missing limit price is a bad request", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPost, "/api/simulate/limit", map[string]any{
			"symbol": "ETH", "side": "buy", "amount": 10,
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestEventsWithoutLedger(t *testing.T) {
	r, _ := newTestRouter(t)
	w := doJSON(t, r, http.MethodGet, "/api/events", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestErrStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, errStatus(engine.ErrValidation))
	assert.Equal(t, http.StatusNotFound, errStatus(engine.ErrNotFound))
	assert.Equal(t, http.StatusServiceUnavailable, errStatus(engine.ErrMarketData))
	assert.Equal(t, http.StatusConflict, errStatus(engine.ErrExecution))
	assert.Equal(t, http.StatusInternalServerError, errStatus(errors.New("boom")))
}
