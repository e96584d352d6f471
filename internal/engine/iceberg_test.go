package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradesim/internal/types"
)

func TestCreateIceberg(t *testing.T) {
	eng, _, _ := newTestEngine(t)

	t.Run("slice count rounds up", func(t *testing.T) {
		ice, err := eng.CreateIceberg(IcebergParams{
			Symbol: "ETH", Side: types.SideBuy, TotalSize: 100, DisplaySize: 15,
		})
		require.NoError(t, err)
		assert.Equal(t, 7, ice.SliceCount)
		assert.Zero(t, ice.ExecutedSize)
		assert.Zero(t, ice.CurrentSlice)
	})

	t.Run("display larger than total rejected", func(t *testing.T) {
		_, err := eng.CreateIceberg(IcebergParams{
			Symbol: "ETH", Side: types.SideBuy, TotalSize: 10, DisplaySize: 15,
		})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("sizes must be positive", func(t *testing.T) {
		_, err := eng.CreateIceberg(IcebergParams{Symbol: "ETH", Side: types.SideBuy, TotalSize: 0, DisplaySize: 1})
		assert.ErrorIs(t, err, ErrValidation)
		_, err = eng.CreateIceberg(IcebergParams{Symbol: "ETH", Side: types.SideBuy, TotalSize: 10, DisplaySize: 0})
		assert.ErrorIs(t, err, ErrValidation)
	})
}

func TestIcebergSliceFlow(t *testing.T) {
	eng, _, sink := newTestEngine(t)
	ice, err := eng.CreateIceberg(IcebergParams{
		Symbol: "ETH", Side: types.SideBuy, TotalSize: 100, DisplaySize: 15,
	})
	require.NoError(t, err)

	// Six full display slices.
	for i := 0; i < 6; i++ {
		next, err := eng.NextIcebergSlice(ice.ID)
		require.NoError(t, err)
		assert.InDelta(t, 15, next, 1e-9, "slice %d", i)
		_, err = eng.RecordIcebergFill(ice.ID, next, 100)
		require.NoError(t, err)
	}

	// The final slice is the remainder, never more than display size.
	next, err := eng.NextIcebergSlice(ice.ID)
	require.NoError(t, err)
	assert.InDelta(t, 10, next, 1e-9)
	got, err := eng.RecordIcebergFill(ice.ID, next, 100)
	require.NoError(t, err)
	assert.Equal(t, types.OrderStatusFilled, got.Order.Status)
	assert.InDelta(t, 100, got.ExecutedSize, 1e-9)
	assert.Equal(t, 7, got.CurrentSlice)

	t.Run("exhausted order exposes nothing", func(t *testing.T) {
		next, err := eng.NextIcebergSlice(ice.ID)
		require.NoError(t, err)
		assert.Zero(t, next)
	})

	t.Run("completion surfaces a filled event", func(t *testing.T) {
		assert.Len(t, sink.ofType(EventFilled), 1)
		assert.Len(t, sink.ofType(EventSliceExecuted), 6)
	})
}

func TestIcebergFillBounds(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ice, err := eng.CreateIceberg(IcebergParams{
		Symbol: "ETH", Side: types.SideBuy, TotalSize: 100, DisplaySize: 15,
	})
	require.NoError(t, err)

	_, err = eng.RecordIcebergFill(ice.ID, 16, 100)
	assert.ErrorIs(t, err, ErrExecution)

	_, err = eng.RecordIcebergFill(ice.ID, -1, 100)
	assert.ErrorIs(t, err, ErrValidation)

	// A partial slice fill is fine; the remainder shrinks accordingly.
	_, err = eng.RecordIcebergFill(ice.ID, 8, 100)
	require.NoError(t, err)
	next, err := eng.NextIcebergSlice(ice.ID)
	require.NoError(t, err)
	assert.InDelta(t, 15, next, 1e-9)
}

func TestCancelIceberg(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ice, err := eng.CreateIceberg(IcebergParams{
		Symbol: "ETH", Side: types.SideBuy, TotalSize: 100, DisplaySize: 15,
	})
	require.NoError(t, err)
	_, err = eng.RecordIcebergFill(ice.ID, 15, 100)
	require.NoError(t, err)

	got, err := eng.CancelIceberg(ice.ID)
	require.NoError(t, err)
	assert.Equal(t, types.OrderStatusCancelled, got.Order.Status)
	// Executed size is preserved; only the remainder is cancelled.
	assert.InDelta(t, 15, got.ExecutedSize, 1e-9)

	next, err := eng.NextIcebergSlice(ice.ID)
	require.NoError(t, err)
	assert.Zero(t, next)

	_, err = eng.CancelIceberg(ice.ID)
	assert.ErrorIs(t, err, ErrExecution)
}
