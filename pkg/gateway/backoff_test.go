package gateway

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffGrowsAndCaps(t *testing.T) {
	b := NewBackoff(ReconnectConfig{
		MaxAttempts:  6,
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     80 * time.Millisecond,
		Multiplier:   2,
	})

	want := []time.Duration{10, 20, 40, 80, 80, 80}
	for i, w := range want {
		d, ok := b.Next()
		assert.True(t, ok, "attempt %d", i+1)
		assert.Equal(t, w*time.Millisecond, d, "attempt %d", i+1)
	}

	_, ok := b.Next()
	assert.False(t, ok, "budget exhausted")
	assert.Equal(t, 7, b.Attempts())

	b.Reset()
	assert.Equal(t, 0, b.Attempts())
	d, ok := b.Next()
	assert.True(t, ok)
	assert.Equal(t, 10*time.Millisecond, d)
}

func TestBackoffJitterStaysInRange(t *testing.T) {
	b := NewBackoff(ReconnectConfig{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2,
		RandomFactor: 0.1,
	})

	for _, r := range []float64{0, 0.5, 0.999} {
		b.Reset()
		b.rand = func() float64 { return r }
		d, ok := b.Next()
		assert.True(t, ok)
		assert.GreaterOrEqual(t, d, 90*time.Millisecond)
		assert.LessOrEqual(t, d, 110*time.Millisecond)
	}
}

func TestBackoffUnlimited(t *testing.T) {
	b := NewBackoff(ReconnectConfig{
		InitialDelay: time.Millisecond,
		MaxDelay:     time.Millisecond,
		Multiplier:   2,
	})
	for i := 0; i < 100; i++ {
		_, ok := b.Next()
		assert.True(t, ok)
	}
}
