package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBreaker(t *testing.T) {
	t.Run("opens after threshold failures", func(t *testing.T) {
		b := NewBreaker("feed", 3, time.Minute)
		assert.True(t, b.Allow())
		b.RecordFailure()
		b.RecordFailure()
		assert.True(t, b.Allow())
		b.RecordFailure()
		assert.False(t, b.Allow())
	})

	t.Run("success resets the failure count", func(t *testing.T) {
		b := NewBreaker("feed", 3, time.Minute)
		b.RecordFailure()
		b.RecordFailure()
		b.RecordSuccess()
		b.RecordFailure()
		b.RecordFailure()
		assert.True(t, b.Allow())
	})

	t.Run("half open probe closes on success", func(t *testing.T) {
		b := NewBreaker("feed", 1, time.Millisecond)
		b.RecordFailure()
		assert.False(t, b.Allow())

		time.Sleep(5 * time.Millisecond)
		assert.True(t, b.Allow())
		b.RecordSuccess()
		assert.True(t, b.Allow())
	})

	t.Run("half open probe failure reopens", func(t *testing.T) {
		b := NewBreaker("feed", 1, time.Millisecond)
		b.RecordFailure()
		time.Sleep(5 * time.Millisecond)
		assert.True(t, b.Allow())
		b.RecordFailure()
		assert.False(t, b.Allow())
	})
}
