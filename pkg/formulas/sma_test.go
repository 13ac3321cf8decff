package formulas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMA_Series(t *testing.T) {
	closes := []float64{1, 2, 3, 4, 5}

	sma := SMA(closes, 3)
	require.Len(t, sma, 5)
	assert.InDelta(t, 2.0, sma[2], 1e-9)
	assert.InDelta(t, 3.0, sma[3], 1e-9)
	assert.InDelta(t, 4.0, sma[4], 1e-9)
}

func TestSMA_Empty(t *testing.T) {
	assert.Nil(t, SMA(nil, 3))
	assert.Nil(t, SMA([]float64{1, 2, 3}, 0))
}

func TestSMA_PeriodLongerThanSeries(t *testing.T) {
	assert.Nil(t, SMA([]float64{1, 2, 3}, 30))
}

func TestEMA_Series(t *testing.T) {
	closes := []float64{2, 2, 2, 2, 2}

	ema := EMA(closes, 3)
	require.Len(t, ema, 5)
	assert.InDelta(t, 2.0, ema[4], 1e-9)
}

func TestEMA_PeriodLongerThanSeries(t *testing.T) {
	assert.Nil(t, EMA([]float64{1, 2}, 5))
}

func TestCalculateSMA_Latest(t *testing.T) {
	closes := []float64{10, 20, 30, 40}

	sma := CalculateSMA(closes, 4)
	require.NotNil(t, sma)
	assert.InDelta(t, 25.0, *sma, 1e-9)
}

func TestCalculateSMA_InsufficientData(t *testing.T) {
	assert.Nil(t, CalculateSMA([]float64{10, 20}, 3))
}

func TestCrossedAbove(t *testing.T) {
	fast := []float64{0, 0, 1, 3, 5}
	slow := []float64{0, 0, 2, 2, 2}

	assert.False(t, CrossedAbove(fast, slow, 2, 1))
	assert.True(t, CrossedAbove(fast, slow, 3, 1))
	assert.False(t, CrossedAbove(fast, slow, 4, 1), "already above, no new cross")
}

func TestCrossedAbove_WarmupGuard(t *testing.T) {
	fast := []float64{0, 5}
	slow := []float64{0, 2}

	// Index inside the warmup window never reports a cross, even when the
	// raw values would.
	assert.False(t, CrossedAbove(fast, slow, 1, 1))
	assert.False(t, CrossedAbove(fast, slow, 0, 0))
	assert.False(t, CrossedAbove(fast, slow, 5, 0))
}
