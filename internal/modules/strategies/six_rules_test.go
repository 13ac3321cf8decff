package strategies

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wayss/quantdesk/internal/domain"
)

// consolidationBars builds a gently rising series with a fixed candle range,
// the shape SixRules reads as a tight box.
func consolidationBars(code string, n int) []domain.Bar {
	closes := make([]float64, n)
	volumes := make([]float64, n)
	for i := range closes {
		closes[i] = 100 + 0.01*float64(i)
		volumes[i] = 1000
	}
	bars := syntheticBars(code, closes, volumes)
	for i := range bars {
		bars[i].Open = bars[i].Close - 0.05
		bars[i].High = bars[i].Close + 0.2
		bars[i].Low = bars[i].Close - 0.2
	}
	return bars
}

func TestSixRules_EntryOnBoxBreakout(t *testing.T) {
	bars := consolidationBars("000001.SZ", 40)
	// Final bar clears the box high on doubled volume and holds above EMA20.
	bars[39].Open = 100.9
	bars[39].High = 101.1
	bars[39].Low = 100.7
	bars[39].Close = 101
	bars[39].Volume = 2000

	ctx := SignalContext{
		Date:    bars[39].Date,
		History: map[string][]domain.Bar{"000001.SZ": bars},
		Params:  Params{},
	}

	signals, err := NewSixRules().GenerateSignals(ctx)
	require.NoError(t, err)
	require.Len(t, signals, 1)
	assert.Equal(t, domain.SignalEntry, signals[0].Type)
	assert.Equal(t, "000001.SZ", signals[0].Code)
}

func TestSixRules_NoEntryWithoutVolume(t *testing.T) {
	bars := consolidationBars("000001.SZ", 40)
	// Same breakout close, flat volume.
	bars[39].Open = 100.9
	bars[39].High = 101.1
	bars[39].Low = 100.7
	bars[39].Close = 101

	ctx := SignalContext{
		Date:    bars[39].Date,
		History: map[string][]domain.Bar{"000001.SZ": bars},
		Params:  Params{},
	}

	signals, err := NewSixRules().GenerateSignals(ctx)
	require.NoError(t, err)
	assert.Empty(t, signals)
}

func TestSixRules_InsufficientHistory(t *testing.T) {
	bars := consolidationBars("000001.SZ", 20)
	ctx := SignalContext{
		Date:    bars[19].Date,
		History: map[string][]domain.Bar{"000001.SZ": bars},
		Params:  Params{},
	}

	signals, err := NewSixRules().GenerateSignals(ctx)
	require.NoError(t, err)
	assert.Empty(t, signals)
}

func TestSixRules_ExitBelowStopAverage(t *testing.T) {
	bars := consolidationBars("000001.SZ", 40)
	bars[39].Close = 80
	bars[39].Low = 79.8
	bars[39].Open = 80.05
	bars[39].High = 80.2

	ctx := SignalContext{
		Date:    bars[39].Date,
		History: map[string][]domain.Bar{"000001.SZ": bars},
		Positions: map[string]domain.Position{
			"000001.SZ": {Code: "000001.SZ", Quantity: 100, AvgCost: 100},
		},
		Params: Params{},
	}

	signals, err := NewSixRules().GenerateSignals(ctx)
	require.NoError(t, err)
	require.Len(t, signals, 1)
	assert.Equal(t, domain.SignalExit, signals[0].Type)
}

func TestSixRules_ExitOnUpperShadowTrap(t *testing.T) {
	bars := consolidationBars("000001.SZ", 40)
	// Surge day: +25% close, long upper shadow, close well under the high.
	bars[39].Open = 124
	bars[39].Close = 125.38
	bars[39].High = 160
	bars[39].Low = 123

	ctx := SignalContext{
		Date:    bars[39].Date,
		History: map[string][]domain.Bar{"000001.SZ": bars},
		Positions: map[string]domain.Position{
			"000001.SZ": {Code: "000001.SZ", Quantity: 100, AvgCost: 100},
		},
		Params: Params{},
	}

	signals, err := NewSixRules().GenerateSignals(ctx)
	require.NoError(t, err)
	require.Len(t, signals, 1)
	assert.Equal(t, domain.SignalExit, signals[0].Type)
}

func TestSixRules_BoxBreakdownExit(t *testing.T) {
	bars := consolidationBars("000001.SZ", 40)
	closes, _ := closesAndVolumes(bars)

	assert.False(t, NewSixRules().shouldExit(bars, closes, 28, 20, 3, 5))

	// Close under the box low triggers the breakdown rule even when the
	// stop average cannot be computed.
	bars[39].Close = 99
	bars[39].Low = 98.9
	bars[39].Open = 99.1
	bars[39].High = 99.2
	closes, _ = closesAndVolumes(bars)
	assert.True(t, NewSixRules().shouldExit(bars, closes, 28, 20, 3, 120))
}

func TestSixRules_RiskReward(t *testing.T) {
	bars := consolidationBars("000001.SZ", 40)

	// Tight consolidation: the stop lands on the percentage stop and the
	// ratio sits exactly at the minimum.
	assert.True(t, riskRewardOK(bars, 101, 0.03, 3.0, 10))

	// A deep swing low widens the risk and fails the ratio.
	bars[35].Low = 90
	assert.False(t, riskRewardOK(bars, 101, 0.03, 3.0, 10))
}

func TestSixRules_UpperShadowTrap(t *testing.T) {
	trap := domain.Bar{Open: 124, Close: 125, High: 160, Low: 123}
	assert.True(t, upperShadowTrap(trap, 100))

	// Strong close near the high is not a trap.
	clean := domain.Bar{Open: 124, Close: 158, High: 160, Low: 123}
	assert.False(t, upperShadowTrap(clean, 100))

	// Modest gain never qualifies regardless of the shadow.
	mild := domain.Bar{Open: 100, Close: 101, High: 130, Low: 99}
	assert.False(t, upperShadowTrap(mild, 100))
}

func TestSixRules_HistogramNotShrinking(t *testing.T) {
	assert.True(t, histogramNotShrinking([]float64{-0.1, -0.2, -0.3}, 3))
	assert.False(t, histogramNotShrinking([]float64{-0.3, -0.2, -0.1}, 3), "shrinking magnitude")
	assert.False(t, histogramNotShrinking([]float64{-0.1, 0.2, -0.3}, 3), "positive bar breaks the run")
	assert.False(t, histogramNotShrinking([]float64{-0.1}, 3))
}
