package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOrder(t *testing.T) {
	now := time.Now()

	t.Run("valid order starts open", func(t *testing.T) {
		o, err := NewOrder("ETH", OrderTypeLimit, SideBuy, 5, now)
		require.NoError(t, err)
		assert.Equal(t, OrderStatusOpen, o.Status)
		assert.Equal(t, 5.0, o.Amount)
		assert.Equal(t, 5.0, o.Remaining)
		assert.Zero(t, o.Filled)
		assert.NotEmpty(t, o.ID)
	})

	t.Run("zero amount rejected", func(t *testing.T) {
		_, err := NewOrder("ETH", OrderTypeLimit, SideBuy, 0, now)
		assert.Error(t, err)
	})

	t.Run("bad side rejected", func(t *testing.T) {
		_, err := NewOrder("ETH", OrderTypeLimit, "hold", 1, now)
		assert.Error(t, err)
	})
}

func TestApplyFill(t *testing.T) {
	now := time.Now()

	t.Run("quantities stay consistent after every fill", func(t *testing.T) {
		o, err := NewOrder("ETH", OrderTypeMarket, SideBuy, 10, now)
		require.NoError(t, err)

		for _, amt := range []float64{2.5, 3, 1.5} {
			_, err := o.ApplyFill(amt, 100, 0.1, now)
			require.NoError(t, err)
			assert.InDelta(t, o.Amount, o.Filled+o.Remaining, 1e-9)
			assert.GreaterOrEqual(t, o.Remaining, 0.0)
		}
		assert.Equal(t, OrderStatusPartiallyFilled, o.Status)
		assert.InDelta(t, 7.0, o.Filled, 1e-9)
		assert.InDelta(t, 0.3, o.TotalFees, 1e-9)
		assert.Len(t, o.Fills, 3)
	})

	t.Run("average fill price is amount weighted", func(t *testing.T) {
		o, err := NewOrder("ETH", OrderTypeMarket, SideBuy, 10, now)
		require.NoError(t, err)
		_, err = o.ApplyFill(4, 100, 0, now)
		require.NoError(t, err)
		_, err = o.ApplyFill(6, 110, 0, now)
		require.NoError(t, err)
		// (4*100 + 6*110) / 10
		assert.InDelta(t, 106, o.AverageFillPrice, 1e-9)
		assert.Equal(t, OrderStatusFilled, o.Status)
	})

	t.Run("overfill rejected", func(t *testing.T) {
		o, err := NewOrder("ETH", OrderTypeMarket, SideBuy, 1, now)
		require.NoError(t, err)
		_, err = o.ApplyFill(2, 100, 0, now)
		assert.Error(t, err)
	})

	t.Run("fill on terminal order rejected", func(t *testing.T) {
		o, err := NewOrder("ETH", OrderTypeMarket, SideBuy, 1, now)
		require.NoError(t, err)
		require.True(t, o.Cancel(now))
		_, err = o.ApplyFill(1, 100, 0, now)
		assert.Error(t, err)
	})
}

func TestCancel(t *testing.T) {
	now := time.Now()

	t.Run("cancel is first writer wins", func(t *testing.T) {
		o, err := NewOrder("ETH", OrderTypeLimit, SideSell, 2, now)
		require.NoError(t, err)
		assert.True(t, o.Cancel(now))
		assert.False(t, o.Cancel(now))
		assert.Equal(t, OrderStatusCancelled, o.Status)
	})

	t.Run("filled order cannot be cancelled", func(t *testing.T) {
		o, err := NewOrder("ETH", OrderTypeMarket, SideBuy, 1, now)
		require.NoError(t, err)
		_, err = o.ApplyFill(1, 100, 0, now)
		require.NoError(t, err)
		assert.False(t, o.Cancel(now))
		assert.Equal(t, OrderStatusFilled, o.Status)
	})
}

func TestApplyLateFill(t *testing.T) {
	now := time.Now()
	o, err := NewOrder("ETH", OrderTypeTWAP, SideBuy, 10, now)
	require.NoError(t, err)
	_, err = o.ApplyFill(5, 100, 0, now)
	require.NoError(t, err)
	require.True(t, o.Cancel(now))

	// The in-flight execution completed after the cancel: quantities
	// update but the cancelled status stands.
	fill := o.ApplyLateFill(2, 101, 0, now)
	assert.NotEmpty(t, fill.ID)
	assert.Equal(t, OrderStatusCancelled, o.Status)
	assert.InDelta(t, 7, o.Filled, 1e-9)
	assert.InDelta(t, o.Amount, o.Filled+o.Remaining, 1e-9)
}
