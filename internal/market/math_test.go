package market

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradesim/internal/types"
)

func newTestCalculator() *Calculator {
	table := NewLiquidityTable()
	table.Set("MID", Liquidity{DailyVolume: 50_000_000, Spread: 0.002, DepthBPS: 5})
	return NewCalculator(table, DefaultParams())
}

func TestSlippage(t *testing.T) {
	calc := newTestCalculator()

	t.Run("fifty thousand against fifty million stays under one percent", func(t *testing.T) {
		// $50k order, 500 units at $100.
		s := calc.Slippage("MID", 500, 100)
		assert.Less(t, s, 0.01)
		assert.Greater(t, s, 0.0)
	})

	t.Run("monotonically non-decreasing in order size", func(t *testing.T) {
		prev := 0.0
		for _, size := range []float64{10, 100, 1_000, 10_000, 100_000, 1_000_000} {
			s := calc.Slippage("MID", size, 100)
			assert.GreaterOrEqual(t, s, prev, "size %v", size)
			prev = s
		}
	})

	t.Run("clamped to max slippage", func(t *testing.T) {
		// Several times daily volume.
		s := calc.Slippage("MID", 5_000_000, 100)
		assert.Equal(t, DefaultParams().MaxSlippage, s)
	})

	t.Run("unknown symbol uses conservative default", func(t *testing.T) {
		s := calc.Slippage("NOPE", 500, 100)
		assert.Equal(t, DefaultParams().DefaultSlippage, s)
	})

	t.Run("non-positive inputs cost nothing", func(t *testing.T) {
		assert.Zero(t, calc.Slippage("MID", 0, 100))
		assert.Zero(t, calc.Slippage("MID", 500, 0))
	})
}

func TestMarketImpact(t *testing.T) {
	calc := newTestCalculator()

	t.Run("buys push up, sells push down", func(t *testing.T) {
		buy := calc.MarketImpact("MID", 1_000, 100, types.SideBuy)
		sell := calc.MarketImpact("MID", 1_000, 100, types.SideSell)
		assert.Greater(t, buy, 0.0)
		assert.InDelta(t, -buy, sell, 1e-12)
	})

	t.Run("impact follows a square root law", func(t *testing.T) {
		base := calc.MarketImpact("MID", 1_000, 100, types.SideBuy)
		quad := calc.MarketImpact("MID", 4_000, 100, types.SideBuy)
		assert.InDelta(t, 2*base, quad, 1e-9)
	})

	t.Run("unknown symbol has zero impact", func(t *testing.T) {
		assert.Zero(t, calc.MarketImpact("NOPE", 1_000, 100, types.SideBuy))
	})
}

func TestPlatformFee(t *testing.T) {
	calc := newTestCalculator()
	assert.InDelta(t, 30.0, calc.PlatformFee(10_000, FeeTierBasic), 1e-9)
	assert.InDelta(t, 20.0, calc.PlatformFee(10_000, FeeTierPremium), 1e-9)
	assert.InDelta(t, 10.0, calc.PlatformFee(10_000, FeeTierPro), 1e-9)
	// Unknown tiers fall back to basic.
	assert.InDelta(t, 30.0, calc.PlatformFee(10_000, FeeTier("vip")), 1e-9)
	assert.Zero(t, calc.PlatformFee(0, FeeTierBasic))
}

func TestNetworkFee(t *testing.T) {
	calc := newTestCalculator()

	t.Run("native standard", func(t *testing.T) {
		// 21000 gas * 30 gwei * $3000/ETH
		fee := calc.NetworkFee(AssetClassNative, 30, PriorityStandard, 3000)
		assert.InDelta(t, 1.89, fee, 1e-9)
	})

	t.Run("priority scales the fee", func(t *testing.T) {
		std := calc.NetworkFee(AssetClassERC20, 30, PriorityStandard, 3000)
		slow := calc.NetworkFee(AssetClassERC20, 30, PrioritySlow, 3000)
		fast := calc.NetworkFee(AssetClassERC20, 30, PriorityFast, 3000)
		assert.InDelta(t, 0.9*std, slow, 1e-9)
		assert.InDelta(t, 1.5*std, fast, 1e-9)
	})

	t.Run("exotic settlement costs the most", func(t *testing.T) {
		erc20 := calc.NetworkFee(AssetClassERC20, 30, PriorityStandard, 3000)
		exotic := calc.NetworkFee(AssetClassExotic, 30, PriorityStandard, 3000)
		assert.Greater(t, exotic, erc20)
	})

	t.Run("zero inputs cost nothing", func(t *testing.T) {
		assert.Zero(t, calc.NetworkFee(AssetClassNative, 0, PriorityStandard, 3000))
		assert.Zero(t, calc.NetworkFee(AssetClassNative, 30, PriorityStandard, 0))
	})
}

func TestQuote(t *testing.T) {
	calc := newTestCalculator()

	base := QuoteRequest{
		Symbol:       "MID",
		Amount:       500,
		Price:        100,
		FeeTier:      FeeTierBasic,
		AssetClass:   AssetClassERC20,
		GasPriceGwei: 30,
		Priority:     PriorityStandard,
		ETHPriceUSD:  3000,
	}

	t.Run("buy composes cost from notional and fees", func(t *testing.T) {
		req := base
		req.Side = types.SideBuy
		q, err := calc.Quote(req)
		require.NoError(t, err)
		assert.Greater(t, q.ExecutionPrice, req.Price)
		assert.InDelta(t, q.Amount*q.ExecutionPrice, q.Notional, 1e-9)
		assert.InDelta(t, q.Notional+q.PlatformFee+q.NetworkFee, q.TotalCost, 1e-9)
		assert.Less(t, q.ReceivedAmount, req.Amount)
		assert.Greater(t, q.PriceImpactPct, 0.0)
	})

	t.Run("sell receives notional net of fees", func(t *testing.T) {
		req := base
		req.Side = types.SideSell
		q, err := calc.Quote(req)
		require.NoError(t, err)
		assert.Less(t, q.ExecutionPrice, req.Price)
		assert.InDelta(t, q.Notional-q.PlatformFee-q.NetworkFee, q.ReceivedAmount, 1e-9)
		assert.Less(t, q.PriceImpactPct, 0.0)
	})

	t.Run("invalid requests rejected", func(t *testing.T) {
		req := base
		req.Amount = 0
		_, err := calc.Quote(req)
		assert.Error(t, err)

		req = base
		req.Price = -1
		_, err = calc.Quote(req)
		assert.Error(t, err)
	})
}

func TestMaxOrderSize(t *testing.T) {
	calc := newTestCalculator()

	t.Run("round trip stays within tolerance", func(t *testing.T) {
		const tolerance = 0.01
		size := calc.MaxOrderSize("MID", 100, tolerance)
		require.Greater(t, size, 0.0)
		assert.LessOrEqual(t, calc.Slippage("MID", size, 100), tolerance)
		// A meaningfully larger order breaks the tolerance.
		assert.Greater(t, calc.Slippage("MID", size*1.05, 100), tolerance)
	})

	t.Run("unreachable tolerance returns zero", func(t *testing.T) {
		table := NewLiquidityTable()
		table.Set("WIDE", Liquidity{DailyVolume: 1_000_000, Spread: 0.05, DepthBPS: 100})
		wide := NewCalculator(table, DefaultParams())
		// Half-spread alone already exceeds the tolerance.
		assert.Zero(t, wide.MaxOrderSize("WIDE", 100, 0.001))
	})

	t.Run("bad inputs return zero", func(t *testing.T) {
		assert.Zero(t, calc.MaxOrderSize("MID", 0, 0.01))
		assert.Zero(t, calc.MaxOrderSize("MID", 100, 0))
	})
}

func TestExchangeRate(t *testing.T) {
	calc := newTestCalculator()
	prices := map[string]float64{"ETH": 3200, "BTC": 64000}

	t.Run("buy side pays below the raw ratio", func(t *testing.T) {
		rate, err := calc.ExchangeRate("ETH", "BTC", 10, types.SideBuy, prices)
		require.NoError(t, err)
		assert.Less(t, rate, 3200.0/64000.0)
		assert.Greater(t, rate, 0.0)
	})

	t.Run("sell side quotes above the raw ratio", func(t *testing.T) {
		rate, err := calc.ExchangeRate("ETH", "BTC", 10, types.SideSell, prices)
		require.NoError(t, err)
		assert.Greater(t, rate, 3200.0/64000.0)
	})

	t.Run("missing price errors", func(t *testing.T) {
		_, err := calc.ExchangeRate("ETH", "DOGE", 10, types.SideBuy, prices)
		assert.Error(t, err)
	})
}
