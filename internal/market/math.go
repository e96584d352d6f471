package market

import (
	"fmt"
	"math"
	"strings"

	"tradesim/internal/types"
)

// FeeTier selects the platform fee rate applied to notional value.
type FeeTier string

const (
	FeeTierBasic   FeeTier = "basic"
	FeeTierPremium FeeTier = "premium"
	FeeTierPro     FeeTier = "pro"
)

// Priority selects the network fee multiplier.
type Priority string

const (
	PrioritySlow     Priority = "slow"
	PriorityStandard Priority = "standard"
	PriorityFast     Priority = "fast"
)

// AssetClass buckets assets by the gas cost of settling them.
type AssetClass string

const (
	AssetClassNative AssetClass = "native" // plain transfer
	AssetClassERC20  AssetClass = "erc20"  // token transfer
	AssetClassExotic AssetClass = "exotic" // routed/multi-hop settlement
)

// Params holds the heuristic coefficients of the cost model. The
// reference values are tuned constants, not derived from a cited
// microstructure model, so they are all configurable.
type Params struct {
	SlippageExponent float64 `toml:"slippage_exponent"` // super-linear growth of slippage in order size
	SlippageScale    float64 `toml:"slippage_scale"`
	MaxSlippage      float64 `toml:"max_slippage"`
	ImpactScale      float64 `toml:"impact_scale"` // multiplier inside the sqrt impact law
	DefaultSlippage  float64 `toml:"default_slippage"`
}

// DefaultParams returns the reference coefficients.
func DefaultParams() Params {
	return Params{
		SlippageExponent: 1.5,
		SlippageScale:    0.001,
		MaxSlippage:      0.05,
		ImpactScale:      1000,
		DefaultSlippage:  0.005,
	}
}

// Calculator computes execution economics from liquidity parameters.
// It is stateless apart from its injected table and safe for
// concurrent use.
type Calculator struct {
	params Params
	table  *LiquidityTable
}

func NewCalculator(table *LiquidityTable, params Params) *Calculator {
	if table == nil {
		table = NewLiquidityTable()
	}
	return &Calculator{params: params, table: table}
}

// Slippage estimates the execution slippage fraction for an order of
// orderSize units at the given unit price. Small orders pay roughly
// the half-spread; cost grows super-linearly as the order approaches
// daily volume. Unknown symbols fall back to a conservative default.
// The result is clamped to [0, MaxSlippage].
func (c *Calculator) Slippage(symbol string, orderSize, price float64) float64 {
	liq, known := c.table.Get(symbol)
	if !known {
		return c.params.DefaultSlippage
	}
	if orderSize <= 0 || price <= 0 || liq.DailyVolume <= 0 {
		return 0
	}
	volumeRatio := orderSize * price / liq.DailyVolume
	slippage := liq.Spread/2 + math.Pow(volumeRatio*100, c.params.SlippageExponent)*c.params.SlippageScale
	if slippage > c.params.MaxSlippage {
		return c.params.MaxSlippage
	}
	if slippage < 0 {
		return 0
	}
	return slippage
}

// MarketImpact estimates the price move caused by the order itself, in
// basis points. Positive for buys (price pushed up), negative for
// sells. Unknown symbols report zero impact.
func (c *Calculator) MarketImpact(symbol string, orderSize, price float64, side types.Side) float64 {
	liq, known := c.table.Get(symbol)
	if !known || orderSize <= 0 || price <= 0 || liq.DailyVolume <= 0 {
		return 0
	}
	volumeRatio := orderSize * price / liq.DailyVolume
	impactBPS := liq.DepthBPS * math.Sqrt(volumeRatio*c.params.ImpactScale)
	if side == types.SideSell {
		return -impactBPS
	}
	return impactBPS
}

// PlatformFee applies the tiered flat rate to the order's notional
// value. Unrecognized tiers pay the basic rate.
func (c *Calculator) PlatformFee(orderValue float64, tier FeeTier) float64 {
	if orderValue <= 0 {
		return 0
	}
	rate := 0.003
	switch FeeTier(strings.ToLower(string(tier))) {
	case FeeTierPremium:
		rate = 0.002
	case FeeTierPro:
		rate = 0.001
	}
	return orderValue * rate
}

// NetworkFee estimates the settlement gas cost in USD for an asset
// class at the given gas price.
func (c *Calculator) NetworkFee(class AssetClass, gasPriceGwei float64, priority Priority, ethPriceUSD float64) float64 {
	if gasPriceGwei <= 0 || ethPriceUSD <= 0 {
		return 0
	}
	gasLimit := 65_000.0
	switch class {
	case AssetClassNative:
		gasLimit = 21_000
	case AssetClassExotic:
		gasLimit = 180_000
	}
	mult := 1.0
	switch priority {
	case PrioritySlow:
		mult = 0.9
	case PriorityFast:
		mult = 1.5
	}
	return gasLimit * gasPriceGwei * 1e-9 * mult * ethPriceUSD
}

// ExchangeRate converts between two assets at their unit price ratio,
// adjusted for both symbols' half-spreads and the directional market
// impact of an order of orderSize units of the source asset.
func (c *Calculator) ExchangeRate(fromSymbol, toSymbol string, orderSize float64, side types.Side, prices map[string]float64) (float64, error) {
	fromPrice := prices[normalizeSymbol(fromSymbol)]
	toPrice := prices[normalizeSymbol(toSymbol)]
	if fromPrice <= 0 || toPrice <= 0 {
		return 0, fmt.Errorf("missing price for %s/%s conversion", fromSymbol, toSymbol)
	}
	rate := fromPrice / toPrice

	fromLiq, _ := c.table.Get(fromSymbol)
	toLiq, _ := c.table.Get(toSymbol)
	halfSpreads := fromLiq.Spread/2 + toLiq.Spread/2

	// Converting from -> to sells the source asset and buys the target;
	// both legs move the rate against the trader.
	sellImpact := math.Abs(c.MarketImpact(fromSymbol, orderSize, fromPrice, types.SideSell))
	buySize := orderSize * rate
	buyImpact := math.Abs(c.MarketImpact(toSymbol, buySize, toPrice, types.SideBuy))
	impactFraction := (sellImpact + buyImpact) / 10_000

	adjusted := rate * (1 - halfSpreads - impactFraction)
	if side == types.SideSell {
		adjusted = rate * (1 + halfSpreads + impactFraction)
	}
	if adjusted <= 0 {
		return 0, fmt.Errorf("exchange rate for %s/%s collapsed to zero", fromSymbol, toSymbol)
	}
	return adjusted, nil
}

// QuoteRequest describes one prospective execution.
type QuoteRequest struct {
	Symbol       string
	Side         types.Side
	Amount       float64 // units of the asset
	Price        float64 // current unit price in USD
	FeeTier      FeeTier
	AssetClass   AssetClass
	GasPriceGwei float64
	Priority     Priority
	ETHPriceUSD  float64
}

// Quote is the composed execution estimate external callers consume.
type Quote struct {
	Symbol         string     `json:"symbol"`
	Side           types.Side `json:"side"`
	Amount         float64    `json:"amount"`
	ExecutionPrice float64    `json:"execution_price"`
	Notional       float64    `json:"notional"`
	PlatformFee    float64    `json:"platform_fee"`
	NetworkFee     float64    `json:"network_fee"`
	TotalCost      float64    `json:"total_cost"`
	SlippagePct    float64    `json:"slippage_pct"`
	PriceImpactPct float64    `json:"price_impact_pct"`
	ReceivedAmount float64    `json:"received_amount"`
}

// Quote composes slippage, impact and fees into a single execution
// estimate. It is the entry point external callers should use. For
// buys ReceivedAmount is in asset units after slippage deduction; for
// sells it is the USD proceeds net of fees.
func (c *Calculator) Quote(req QuoteRequest) (Quote, error) {
	if req.Amount <= 0 {
		return Quote{}, fmt.Errorf("quote amount must be positive, got %v", req.Amount)
	}
	if req.Price <= 0 {
		return Quote{}, fmt.Errorf("quote price must be positive, got %v", req.Price)
	}
	slippage := c.Slippage(req.Symbol, req.Amount, req.Price)
	impactBPS := c.MarketImpact(req.Symbol, req.Amount, req.Price, req.Side)

	execPrice := req.Price * (1 + slippage)
	if req.Side == types.SideSell {
		execPrice = req.Price * (1 - slippage)
	}
	notional := req.Amount * execPrice
	platformFee := c.PlatformFee(notional, req.FeeTier)
	networkFee := c.NetworkFee(req.AssetClass, req.GasPriceGwei, req.Priority, req.ETHPriceUSD)

	q := Quote{
		Symbol:         normalizeSymbol(req.Symbol),
		Side:           req.Side,
		Amount:         req.Amount,
		ExecutionPrice: execPrice,
		Notional:       notional,
		PlatformFee:    platformFee,
		NetworkFee:     networkFee,
		SlippagePct:    slippage * 100,
		PriceImpactPct: impactBPS / 100,
	}
	if req.Side == types.SideBuy {
		q.TotalCost = notional + platformFee + networkFee
		q.ReceivedAmount = req.Amount * (1 - slippage)
	} else {
		q.TotalCost = platformFee + networkFee
		q.ReceivedAmount = notional - platformFee - networkFee
	}
	return q, nil
}

// MaxOrderSize finds the largest order size (in units) whose estimated
// slippage stays at or below the tolerance, by binary search. This is
// the canonical "how big can I trade" query.
func (c *Calculator) MaxOrderSize(symbol string, price, maxSlippage float64) float64 {
	if price <= 0 || maxSlippage <= 0 {
		return 0
	}
	liq, _ := c.table.Get(symbol)
	if c.Slippage(symbol, 1e-9, price) > maxSlippage {
		return 0
	}
	lo := 0.0
	hi := liq.DailyVolume / price // an entire day's volume is a safe upper bound
	for i := 0; i < 20; i++ {
		mid := (lo + hi) / 2
		if c.Slippage(symbol, mid, price) <= maxSlippage {
			lo = mid
		} else {
			hi = mid
		}
	}
	return lo
}
