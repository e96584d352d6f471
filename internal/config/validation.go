package config

import "fmt"

func validate(c *Config) error {
	switch c.Feed.Mode {
	case "static", "binance":
	default:
		return fmt.Errorf("feed.mode must be static or binance, got %q", c.Feed.Mode)
	}
	if c.Market.MaxSlippage <= 0 || c.Market.MaxSlippage > 1 {
		return fmt.Errorf("market.max_slippage must be in (0, 1], got %v", c.Market.MaxSlippage)
	}
	if c.Market.SlippageExponent <= 0 {
		return fmt.Errorf("market.slippage_exponent must be positive, got %v", c.Market.SlippageExponent)
	}
	if c.Book.Levels < 0 || c.Book.Levels > 200 {
		return fmt.Errorf("book.levels must be in [0, 200], got %d", c.Book.Levels)
	}
	if c.Store.Enabled && c.Store.Path == "" {
		return fmt.Errorf("store.path is required when the store is enabled")
	}
	for sym, price := range c.Feed.Prices {
		if price <= 0 {
			return fmt.Errorf("feed.prices[%s] must be positive, got %v", sym, price)
		}
	}
	return nil
}
