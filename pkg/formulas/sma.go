package formulas

import (
	"github.com/markcheno/go-talib"
)

// SMA calculates the Simple Moving Average series.
// The returned slice has the same length as the input; entries before the
// warmup window (period-1 leading values) are zero and must not be read.
// Returns nil when the series is shorter than the period.
func SMA(closes []float64, period int) []float64 {
	if period <= 0 || len(closes) < period {
		return nil
	}
	return talib.Sma(closes, period)
}

// EMA calculates the Exponential Moving Average series, same length and
// warmup convention as SMA. Returns nil when the series is shorter than the
// period.
func EMA(closes []float64, period int) []float64 {
	if period <= 0 || len(closes) < period {
		return nil
	}
	return talib.Ema(closes, period)
}

// CalculateSMA calculates the latest Simple Moving Average value.
// Returns nil if there is insufficient data.
func CalculateSMA(closes []float64, period int) *float64 {
	if len(closes) < period || period <= 0 {
		return nil
	}

	sma := talib.Sma(closes, period)
	if len(sma) > 0 && !isNaN(sma[len(sma)-1]) {
		result := sma[len(sma)-1]
		return &result
	}

	return nil
}

// CrossedAbove reports whether the fast series crossed above the slow series
// at index i: fast was at or below slow on the prior bar and is above it now.
// Indexes below the warmup window of either series never report a cross.
func CrossedAbove(fast, slow []float64, i, warmup int) bool {
	if i <= 0 || i <= warmup || i >= len(fast) || i >= len(slow) {
		return false
	}
	return fast[i-1] <= slow[i-1] && fast[i] > slow[i]
}

// isNaN checks if a float64 is NaN
func isNaN(f float64) bool {
	return f != f
}
