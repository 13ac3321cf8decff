package formulas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateRSI_AllGains(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}

	rsi := CalculateRSI(closes, 14)
	require.NotNil(t, rsi)
	assert.InDelta(t, 100.0, *rsi, 1e-9)
}

func TestCalculateRSI_AllLosses(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 100 - float64(i)
	}

	rsi := CalculateRSI(closes, 14)
	require.NotNil(t, rsi)
	assert.InDelta(t, 0.0, *rsi, 1e-9)
}

func TestCalculateRSI_InsufficientData(t *testing.T) {
	closes := make([]float64, 14)
	assert.Nil(t, CalculateRSI(closes, 14))
}

func TestRSI_SeriesLength(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 100 + float64(i%5)
	}

	series := RSI(closes, 14)
	require.Len(t, series, 30)
	assert.Nil(t, RSI(closes[:10], 14))
}
