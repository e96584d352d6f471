package config

import (
	"time"

	"tradesim/internal/book"
	"tradesim/internal/feed"
	"tradesim/internal/market"
)

// Config is the full application configuration.
type Config struct {
	App       AppConfig       `toml:"app"`
	Market    market.Params   `toml:"market"`
	Book      book.Config     `toml:"book"`
	Engine    EngineConfig    `toml:"engine"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Feed      FeedConfig      `toml:"feed"`
	Store     StoreConfig     `toml:"store"`
	HTTP      HTTPConfig      `toml:"http"`
	Liquidity LiquidityConfig `toml:"liquidity"`
}

type AppConfig struct {
	LogLevel string `toml:"log_level"`
	LogPath  string `toml:"log_path"`
}

type EngineConfig struct {
	CleanupTTL time.Duration `toml:"cleanup_ttl"`
}

type SchedulerConfig struct {
	TickInterval    time.Duration `toml:"tick_interval"`
	SliceInterval   time.Duration `toml:"slice_interval"`
	CleanupInterval time.Duration `toml:"cleanup_interval"`
}

type FeedConfig struct {
	// Mode selects the price source: "static" (config-seeded, offline)
	// or "binance" (live read-only ticker).
	Mode    string             `toml:"mode"`
	Prices  map[string]float64 `toml:"prices"` // static mode seed
	Binance feed.BinanceConfig `toml:"binance"`
}

type StoreConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

type HTTPConfig struct {
	Enabled bool   `toml:"enabled"`
	Listen  string `toml:"listen"`
}

type LiquidityConfig struct {
	// File is an optional JSON liquidity table overriding the built-in
	// defaults; Watch reloads it on change.
	File  string `toml:"file"`
	Watch bool   `toml:"watch"`
}
