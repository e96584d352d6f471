package market

import (
	"fmt"
	"math"

	talib "github.com/markcheno/go-talib"
)

// periodsPerYear assumes hourly candles; callers sampling at another
// interval should scale accordingly.
const periodsPerYear = 24 * 365

// RealizedVolatility estimates annualized volatility from candle
// history as the standard deviation of log returns over the window.
// It needs at least window+1 candles.
func RealizedVolatility(candles []Candle, window int) (float64, error) {
	if window < 2 {
		return 0, fmt.Errorf("volatility window must be at least 2, got %d", window)
	}
	if len(candles) < window+1 {
		return 0, fmt.Errorf("need %d candles for a %d-period window, have %d", window+1, window, len(candles))
	}
	returns := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		prev, cur := candles[i-1].Close, candles[i].Close
		if prev <= 0 || cur <= 0 {
			return 0, fmt.Errorf("non-positive close at candle %d", i)
		}
		returns = append(returns, math.Log(cur/prev))
	}
	stddev := talib.StdDev(returns, window, 1.0)
	latest := stddev[len(stddev)-1]
	return latest * math.Sqrt(periodsPerYear), nil
}

// ATR returns the latest average true range over the period, a dollar
// measure of how far price moves per bar.
func ATR(candles []Candle, period int) (float64, error) {
	if period < 1 {
		return 0, fmt.Errorf("ATR period must be positive, got %d", period)
	}
	if len(candles) <= period {
		return 0, fmt.Errorf("need more than %d candles for ATR, have %d", period, len(candles))
	}
	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	closes := make([]float64, len(candles))
	for i, c := range candles {
		highs[i] = c.High
		lows[i] = c.Low
		closes[i] = c.Close
	}
	atr := talib.Atr(highs, lows, closes, period)
	return atr[len(atr)-1], nil
}

// TickVolatility converts annualized volatility to the per-tick price
// move scale used by the limit-order simulation.
func TickVolatility(annualized float64, tickSeconds float64) float64 {
	if annualized <= 0 || tickSeconds <= 0 {
		return 0
	}
	secondsPerYear := 365.0 * 24 * 3600
	return annualized * math.Sqrt(tickSeconds/secondsPerYear)
}
