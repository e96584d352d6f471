package config

import (
	"time"

	"tradesim/internal/market"
)

func (c *Config) applyDefaults() {
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.Market == (market.Params{}) {
		c.Market = market.DefaultParams()
	}
	if c.Engine.CleanupTTL <= 0 {
		c.Engine.CleanupTTL = 24 * time.Hour
	}
	if c.Scheduler.TickInterval <= 0 {
		c.Scheduler.TickInterval = 2 * time.Second
	}
	if c.Scheduler.SliceInterval <= 0 {
		c.Scheduler.SliceInterval = 5 * time.Second
	}
	if c.Scheduler.CleanupInterval <= 0 {
		c.Scheduler.CleanupInterval = time.Hour
	}
	if c.Feed.Mode == "" {
		c.Feed.Mode = "static"
	}
	if c.Store.Path == "" {
		c.Store.Path = "data/tradesim.db"
	}
	if c.HTTP.Listen == "" {
		c.HTTP.Listen = ":8086"
	}
	// Book defaults are zero-value driven inside the book package.
}
