package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradesim/internal/types"
)

func TestCreateTrailingStop(t *testing.T) {
	eng, _, _ := newTestEngine(t)

	t.Run("percent trail sets the initial stop", func(t *testing.T) {
		ts, err := eng.CreateTrailingStop(TrailingStopParams{
			Symbol: "ETH", Side: types.SideSell, Amount: 2, TrailPercent: 0.05, CurrentPrice: 100,
		})
		require.NoError(t, err)
		assert.InDelta(t, 95, ts.InitialStopPrice, 1e-9)
		assert.InDelta(t, 95, ts.CurrentStopPrice, 1e-9)
		assert.InDelta(t, 100, ts.PeakPrice, 1e-9)
		assert.Equal(t, types.OrderStatusOpen, ts.Order.Status)
	})

	t.Run("amount trail sets the initial stop", func(t *testing.T) {
		ts, err := eng.CreateTrailingStop(TrailingStopParams{
			Symbol: "ETH", Side: types.SideBuy, Amount: 2, TrailAmount: 3, CurrentPrice: 100,
		})
		require.NoError(t, err)
		// A buy-side stop trails above the trough.
		assert.InDelta(t, 103, ts.CurrentStopPrice, 1e-9)
	})

	t.Run("exactly one trail parameter required", func(t *testing.T) {
		_, err := eng.CreateTrailingStop(TrailingStopParams{
			Symbol: "ETH", Side: types.SideSell, Amount: 2, CurrentPrice: 100,
		})
		assert.ErrorIs(t, err, ErrValidation)

		_, err = eng.CreateTrailingStop(TrailingStopParams{
			Symbol: "ETH", Side: types.SideSell, Amount: 2, TrailAmount: 3, TrailPercent: 0.05, CurrentPrice: 100,
		})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("trail percent must stay below one", func(t *testing.T) {
		_, err := eng.CreateTrailingStop(TrailingStopParams{
			Symbol: "ETH", Side: types.SideSell, Amount: 2, TrailPercent: 1.5, CurrentPrice: 100,
		})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("missing price rejected", func(t *testing.T) {
		_, err := eng.CreateTrailingStop(TrailingStopParams{
			Symbol: "ETH", Side: types.SideSell, Amount: 2, TrailPercent: 0.05,
		})
		assert.ErrorIs(t, err, ErrValidation)
	})
}

func TestTrailingStopFollowsPeak(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ts, err := eng.CreateTrailingStop(TrailingStopParams{
		Symbol: "ETH", Side: types.SideSell, Amount: 1, TrailPercent: 0.05, CurrentPrice: 100,
	})
	require.NoError(t, err)

	// Rally, pull back, new high, crash. The stop only ever ratchets up.
	steps := []struct {
		price    float64
		peak     float64
		stop     float64
		breached bool
	}{
		{100, 100, 95, false},
		{105, 105, 99.75, false},
		{102, 105, 99.75, false},
		{108, 108, 102.6, false},
		{90, 108, 102.6, true},
	}
	for _, step := range steps {
		got, err := eng.UpdateTrailingStop(ts.ID, step.price)
		require.NoError(t, err)
		assert.InDelta(t, step.peak, got.PeakPrice, 1e-9, "price %v", step.price)
		assert.InDelta(t, step.stop, got.CurrentStopPrice, 1e-9, "price %v", step.price)
		assert.Equal(t, step.breached, got.Breached(step.price), "price %v", step.price)
	}

	trg, err := eng.TriggerTrailingStop(ts.ID, 90)
	require.NoError(t, err)
	assert.True(t, trg.Triggered)

	t.Run("triggered stop ignores further ticks", func(t *testing.T) {
		got, err := eng.UpdateTrailingStop(ts.ID, 200)
		require.NoError(t, err)
		assert.InDelta(t, 108, got.PeakPrice, 1e-9)
		assert.False(t, got.Breached(50))
	})

	t.Run("re-trigger is refused", func(t *testing.T) {
		_, err := eng.TriggerTrailingStop(ts.ID, 89)
		assert.ErrorIs(t, err, ErrExecution)
	})
}

func TestTrailingStopBuySide(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ts, err := eng.CreateTrailingStop(TrailingStopParams{
		Symbol: "ETH", Side: types.SideBuy, Amount: 1, TrailPercent: 0.1, CurrentPrice: 100,
	})
	require.NoError(t, err)
	assert.InDelta(t, 110, ts.CurrentStopPrice, 1e-9)

	// Price falling is favorable for a short; the stop ratchets down.
	got, err := eng.UpdateTrailingStop(ts.ID, 80)
	require.NoError(t, err)
	assert.InDelta(t, 80, got.PeakPrice, 1e-9)
	assert.InDelta(t, 88, got.CurrentStopPrice, 1e-9)

	// A bounce does not loosen the stop but can breach it.
	got, err = eng.UpdateTrailingStop(ts.ID, 85)
	require.NoError(t, err)
	assert.InDelta(t, 88, got.CurrentStopPrice, 1e-9)
	assert.False(t, got.Breached(85))
	assert.True(t, got.Breached(89))
}

func TestCancelTrailingStop(t *testing.T) {
	eng, _, sink := newTestEngine(t)
	ts, err := eng.CreateTrailingStop(TrailingStopParams{
		Symbol: "ETH", Side: types.SideSell, Amount: 1, TrailPercent: 0.05, CurrentPrice: 100,
	})
	require.NoError(t, err)

	cancelled, err := eng.CancelTrailingStop(ts.ID)
	require.NoError(t, err)
	assert.Equal(t, types.OrderStatusCancelled, cancelled.Order.Status)
	assert.Len(t, sink.ofType(EventCancelled), 1)

	t.Run("second cancel loses the race", func(t *testing.T) {
		_, err := eng.CancelTrailingStop(ts.ID)
		assert.ErrorIs(t, err, ErrExecution)
	})

	t.Run("cancelled stop cannot trigger", func(t *testing.T) {
		_, err := eng.TriggerTrailingStop(ts.ID, 50)
		assert.ErrorIs(t, err, ErrExecution)
	})
}
