package formulas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMean(t *testing.T) {
	assert.InDelta(t, 2.5, Mean([]float64{1, 2, 3, 4}), 1e-9)
	assert.Equal(t, 0.0, Mean(nil))
}

func TestStdDev_Sample(t *testing.T) {
	// Sample variance of {1,2,3,4} is 5/3.
	assert.InDelta(t, 1.2909944487, StdDev([]float64{1, 2, 3, 4}), 1e-9)
	assert.Equal(t, 0.0, StdDev([]float64{5}))
}

func TestCalculateReturns(t *testing.T) {
	returns := CalculateReturns([]float64{100, 110, 99})
	require.Len(t, returns, 2)
	assert.InDelta(t, 0.10, returns[0], 1e-9)
	assert.InDelta(t, -0.10, returns[1], 1e-9)
}

func TestCalculateReturns_ZeroPriceBar(t *testing.T) {
	returns := CalculateReturns([]float64{100, 0, 50})
	require.Len(t, returns, 2)
	assert.Equal(t, -1.0, returns[0])
	// Division by a zero prior close is suppressed, not propagated.
	assert.Equal(t, 0.0, returns[1])
}

func TestCalculateReturns_TooShort(t *testing.T) {
	assert.Nil(t, CalculateReturns([]float64{100}))
}
