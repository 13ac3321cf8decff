package formulas

import (
	"github.com/markcheno/go-talib"
)

// RSI calculates the Relative Strength Index series (Wilder's smoothing).
// Entries before the warmup window (period leading values) are zero.
func RSI(closes []float64, period int) []float64 {
	if len(closes) < period+1 || period <= 0 {
		return nil
	}
	return talib.Rsi(closes, period)
}

// CalculateRSI calculates the latest Relative Strength Index value.
//
// RSI Formula:
//
//	RSI = 100 - (100 / (1 + RS))
//	where RS = Average Gain / Average Loss over N periods
//
// Returns the current RSI value (0-100) or nil if insufficient data.
func CalculateRSI(closes []float64, period int) *float64 {
	if len(closes) < period+1 {
		return nil
	}

	rsi := talib.Rsi(closes, period)
	if len(rsi) > 0 && !isNaN(rsi[len(rsi)-1]) {
		result := rsi[len(rsi)-1]
		return &result
	}

	return nil
}
