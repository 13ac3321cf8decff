package formulas

import (
	"github.com/markcheno/go-talib"
)

// MACDResult holds the three MACD series. All slices share the input length;
// entries before the warmup window (slow+signal leading values) are zero.
type MACDResult struct {
	MACD      []float64
	Signal    []float64
	Histogram []float64
}

// MACD calculates Moving Average Convergence Divergence series.
//
//	MACD line  = EMA(fast) - EMA(slow)
//	Signal     = EMA(MACD line, signal period)
//	Histogram  = MACD line - Signal
func MACD(closes []float64, fast, slow, signal int) *MACDResult {
	if len(closes) < slow+signal || fast <= 0 || slow <= fast || signal <= 0 {
		return nil
	}

	macd, sig, hist := talib.Macd(closes, fast, slow, signal)
	return &MACDResult{
		MACD:      macd,
		Signal:    sig,
		Histogram: hist,
	}
}

// WeeklyCloses resamples a daily close series into week-end closes using the
// supplied ISO dates ("YYYY-MM-DD", ascending, same length as closes). The
// last close of each ISO week is kept, matching a W-FRI resample on trading
// calendars where Friday is the final session of the week.
func WeeklyCloses(dates []string, closes []float64) []float64 {
	if len(dates) != len(closes) || len(dates) == 0 {
		return nil
	}

	var weekly []float64
	prevWeek := ""
	for i := range dates {
		week := isoWeekKey(dates[i])
		if week != prevWeek && prevWeek != "" {
			// Week rolled over: previous bar closed the prior week.
			weekly = append(weekly, closes[i-1])
		}
		prevWeek = week
	}
	// The final bar always closes the last (possibly partial) week.
	weekly = append(weekly, closes[len(closes)-1])
	return weekly
}

// WeeklyLastIndices returns, for each resampled week produced by WeeklyCloses,
// the index of the daily bar that closed it.
func WeeklyLastIndices(dates []string) []int {
	if len(dates) == 0 {
		return nil
	}

	var indices []int
	prevWeek := ""
	for i := range dates {
		week := isoWeekKey(dates[i])
		if week != prevWeek && prevWeek != "" {
			indices = append(indices, i-1)
		}
		prevWeek = week
	}
	indices = append(indices, len(dates)-1)
	return indices
}
