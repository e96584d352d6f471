package feed

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"

	"tradesim/internal/market"
	"tradesim/internal/pkg/circuit"
)

// BinanceConfig configures the live read-only price source.
type BinanceConfig struct {
	RESTBaseURL      string        `toml:"rest_base_url"`
	HTTPTimeout      time.Duration `toml:"http_timeout"`
	ProxyURL         string        `toml:"proxy_url"`
	QuoteAsset       string        `toml:"quote_asset"` // appended to bare symbols, default USDT
	BreakerThreshold int           `toml:"breaker_threshold"`
	BreakerTimeout   time.Duration `toml:"breaker_timeout"`
}

func (c BinanceConfig) withDefaults() BinanceConfig {
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = 10 * time.Second
	}
	if c.QuoteAsset == "" {
		c.QuoteAsset = "USDT"
	}
	if c.BreakerThreshold <= 0 {
		c.BreakerThreshold = 5
	}
	if c.BreakerTimeout <= 0 {
		c.BreakerTimeout = 30 * time.Second
	}
	return c
}

// Binance reads spot ticker prices through the public REST API. No
// keys and no order placement: this process never trades upstream.
type Binance struct {
	cfg     BinanceConfig
	client  *binance.Client
	breaker *circuit.Breaker
}

func NewBinance(cfg BinanceConfig) (*Binance, error) {
	final := cfg.withDefaults()
	client := binance.NewClient("", "")
	if final.RESTBaseURL != "" {
		client.BaseURL = strings.TrimSpace(final.RESTBaseURL)
	}
	httpClient := &http.Client{Timeout: final.HTTPTimeout}
	if final.ProxyURL != "" {
		proxyURL, err := url.Parse(final.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy url: %w", err)
		}
		baseTransport, ok := http.DefaultTransport.(*http.Transport)
		if !ok || baseTransport == nil {
			return nil, fmt.Errorf("http DefaultTransport is not *http.Transport")
		}
		transport := baseTransport.Clone()
		transport.Proxy = http.ProxyURL(proxyURL)
		httpClient.Transport = transport
	}
	client.HTTPClient = httpClient
	return &Binance{
		cfg:     final,
		client:  client,
		breaker: circuit.NewBreaker("binance-feed", final.BreakerThreshold, final.BreakerTimeout),
	}, nil
}

func (b *Binance) Price(ctx context.Context, symbol string) (float64, error) {
	if !b.breaker.Allow() {
		return 0, fmt.Errorf("binance feed breaker open, skipping %s", symbol)
	}
	pair := b.toPair(symbol)
	prices, err := b.client.NewListPricesService().Symbol(pair).Do(ctx)
	if err != nil {
		b.breaker.RecordFailure()
		return 0, fmt.Errorf("fetching %s price: %w", pair, err)
	}
	if len(prices) == 0 {
		b.breaker.RecordFailure()
		return 0, fmt.Errorf("no ticker returned for %s", pair)
	}
	price, err := strconv.ParseFloat(prices[0].Price, 64)
	if err != nil || price <= 0 {
		b.breaker.RecordFailure()
		return 0, fmt.Errorf("unusable ticker price %q for %s", prices[0].Price, pair)
	}
	b.breaker.RecordSuccess()
	return price, nil
}

// Candles fetches hourly OHLCV history for a symbol, oldest first.
func (b *Binance) Candles(ctx context.Context, symbol string, limit int) ([]market.Candle, error) {
	if limit <= 0 {
		limit = 50
	}
	if !b.breaker.Allow() {
		return nil, fmt.Errorf("binance feed breaker open, skipping %s", symbol)
	}
	pair := b.toPair(symbol)
	klines, err := b.client.NewKlinesService().Symbol(pair).Interval("1h").Limit(limit).Do(ctx)
	if err != nil {
		b.breaker.RecordFailure()
		return nil, fmt.Errorf("fetching %s klines: %w", pair, err)
	}
	candles := make([]market.Candle, 0, len(klines))
	for _, k := range klines {
		c, err := klineToCandle(k)
		if err != nil {
			b.breaker.RecordFailure()
			return nil, fmt.Errorf("unusable kline for %s: %w", pair, err)
		}
		candles = append(candles, c)
	}
	b.breaker.RecordSuccess()
	return candles, nil
}

func klineToCandle(k *binance.Kline) (market.Candle, error) {
	c := market.Candle{OpenTime: k.OpenTime, CloseTime: k.CloseTime}
	for _, field := range []struct {
		name string
		raw  string
		dst  *float64
	}{
		{"open", k.Open, &c.Open},
		{"high", k.High, &c.High},
		{"low", k.Low, &c.Low},
		{"close", k.Close, &c.Close},
		{"volume", k.Volume, &c.Volume},
	} {
		v, err := strconv.ParseFloat(field.raw, 64)
		if err != nil {
			return market.Candle{}, fmt.Errorf("parsing %s %q: %w", field.name, field.raw, err)
		}
		*field.dst = v
	}
	return c, nil
}

func (b *Binance) Close() error { return nil }

// toPair maps a bare asset symbol to the exchange pair, e.g.
// ETH -> ETHUSDT. Symbols already containing the quote pass through.
func (b *Binance) toPair(symbol string) string {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	sym = strings.ReplaceAll(sym, "/", "")
	if strings.HasSuffix(sym, b.cfg.QuoteAsset) {
		return sym
	}
	return sym + b.cfg.QuoteAsset
}
