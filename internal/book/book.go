package book

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"tradesim/internal/market"
)

// Level is one price level of the synthetic book.
type Level struct {
	Price  float64 `json:"price"`
	Amount float64 `json:"amount"`
	Total  float64 `json:"total"` // Amount * Price
	Orders int     `json:"orders"`
}

// Book is a depth snapshot for one symbol. Bids are sorted by
// descending price, asks ascending; bids stay strictly below asks at
// every stable snapshot. Levels are mutated as simulated fills consume
// them, which is how repeated trades in a session move the synthetic
// market.
type Book struct {
	Symbol      string    `json:"symbol"`
	Bids        []Level   `json:"bids"`
	Asks        []Level   `json:"asks"`
	MidPrice    float64   `json:"mid_price"`
	Spread      float64   `json:"spread"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Config controls book generation and simulation. Zero values are
// replaced by the reference defaults.
type Config struct {
	Levels           int     `toml:"levels"`             // levels per side
	PriceStep        float64 `toml:"price_step"`         // fractional step between levels
	DepthDecay       float64 `toml:"depth_decay"`        // exponential decay rate of level size
	LiquidityDivisor float64 `toml:"liquidity_divisor"`  // dailyVolume/price/divisor = touch size
	NotionalCapRatio float64 `toml:"notional_cap_ratio"` // market order sweep cap vs daily volume
	FillDecay        float64 `toml:"fill_decay"`         // fill-probability distance decay
}

func (c Config) withDefaults() Config {
	if c.Levels <= 0 {
		c.Levels = 10
	}
	if c.PriceStep <= 0 {
		c.PriceStep = 0.001
	}
	if c.DepthDecay <= 0 {
		c.DepthDecay = 0.3
	}
	if c.LiquidityDivisor <= 0 {
		c.LiquidityDivisor = 200
	}
	if c.NotionalCapRatio <= 0 {
		c.NotionalCapRatio = 0.001
	}
	if c.FillDecay <= 0 {
		c.FillDecay = 2.5
	}
	return c
}

// Simulator generates synthetic books and executes orders against
// them. The random source is injected so tests can seed it.
type Simulator struct {
	table *market.LiquidityTable
	cfg   Config
	rng   *rand.Rand
	now   func() time.Time
}

func NewSimulator(table *market.LiquidityTable, cfg Config, rng *rand.Rand) *Simulator {
	if table == nil {
		table = market.NewLiquidityTable()
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Simulator{table: table, cfg: cfg.withDefaults(), rng: rng, now: time.Now}
}

// SetClock overrides the snapshot timestamp source, for tests.
func (s *Simulator) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Generate builds a plausible, non-flat depth snapshot around the base
// price without needing a live feed: Levels price levels per side
// stepped PriceStep apart, sizes decaying exponentially off a touch
// size derived from daily volume, with seeded jitter.
func (s *Simulator) Generate(symbol string, basePrice float64) (*Book, error) {
	if basePrice <= 0 {
		return nil, fmt.Errorf("base price must be positive, got %v", basePrice)
	}
	liq, _ := s.table.Get(symbol)
	halfSpread := basePrice * liq.Spread / 2
	touchSize := liq.DailyVolume / basePrice / s.cfg.LiquidityDivisor

	b := &Book{
		Symbol:      symbol,
		Bids:        make([]Level, 0, s.cfg.Levels),
		Asks:        make([]Level, 0, s.cfg.Levels),
		GeneratedAt: s.now(),
	}
	for i := 0; i < s.cfg.Levels; i++ {
		step := basePrice * s.cfg.PriceStep * float64(i)
		size := touchSize * math.Exp(-float64(i)*s.cfg.DepthDecay)
		bidAmount := size * s.jitter()
		askAmount := size * s.jitter()
		bidPrice := basePrice - halfSpread - step
		askPrice := basePrice + halfSpread + step
		if bidPrice <= 0 {
			continue
		}
		b.Bids = append(b.Bids, Level{
			Price:  bidPrice,
			Amount: bidAmount,
			Total:  bidAmount * bidPrice,
			Orders: 1 + s.rng.Intn(8),
		})
		b.Asks = append(b.Asks, Level{
			Price:  askPrice,
			Amount: askAmount,
			Total:  askAmount * askPrice,
			Orders: 1 + s.rng.Intn(8),
		})
	}
	b.refresh()
	return b, nil
}

func (s *Simulator) jitter() float64 {
	return 0.8 + 0.4*s.rng.Float64()
}

// BestPrices returns the top of book. ok is false when either side is
// empty.
func (b *Book) BestPrices() (bestBid, bestAsk float64, ok bool) {
	if len(b.Bids) == 0 || len(b.Asks) == 0 {
		return 0, 0, false
	}
	return b.Bids[0].Price, b.Asks[0].Price, true
}

// Depth sums bid and ask liquidity (in units) within a fractional
// price band around mid.
func (b *Book) Depth(band float64) (bidUnits, askUnits float64) {
	if band <= 0 || b.MidPrice <= 0 {
		return 0, 0
	}
	lowCut := b.MidPrice * (1 - band)
	highCut := b.MidPrice * (1 + band)
	for _, lvl := range b.Bids {
		if lvl.Price < lowCut {
			break
		}
		bidUnits += lvl.Amount
	}
	for _, lvl := range b.Asks {
		if lvl.Price > highCut {
			break
		}
		askUnits += lvl.Amount
	}
	return bidUnits, askUnits
}

// consume deducts amount from the front of the given side, dropping
// levels that reach zero. Returns the units actually consumed.
func consume(levels *[]Level, amount float64) float64 {
	consumed := 0.0
	out := (*levels)[:0]
	for _, lvl := range *levels {
		if amount <= 1e-12 {
			out = append(out, lvl)
			continue
		}
		take := math.Min(amount, lvl.Amount)
		amount -= take
		consumed += take
		lvl.Amount -= take
		if lvl.Amount > 1e-12 {
			lvl.Total = lvl.Amount * lvl.Price
			out = append(out, lvl)
		}
	}
	*levels = out
	return consumed
}

// refresh recomputes spread and mid from the current top of book.
func (b *Book) refresh() {
	bid, ask, ok := b.BestPrices()
	if !ok {
		b.Spread = 0
		if len(b.Bids) > 0 {
			b.MidPrice = b.Bids[0].Price
		} else if len(b.Asks) > 0 {
			b.MidPrice = b.Asks[0].Price
		}
		return
	}
	b.Spread = ask - bid
	b.MidPrice = (ask + bid) / 2
}
