package backtest

import (
	"math"

	"github.com/wayss/quantdesk/pkg/formulas"
)

const tradingDaysPerYear = 252

// computeMetrics derives performance metrics from an equity curve. Metrics
// that cannot be defined for the input stay nil.
func computeMetrics(values []float64, closed []ClosedTrade) Metrics {
	m := Metrics{TotalTrades: len(closed)}
	if len(values) == 0 || values[0] <= 0 {
		return m
	}

	total := values[len(values)-1]/values[0] - 1
	m.TotalReturn = &total

	if days := len(values) - 1; days > 0 {
		annual := math.Pow(1+total, tradingDaysPerYear/float64(days)) - 1
		m.AnnualReturn = &annual
	}

	maxDD := maxDrawdown(values)
	m.MaxDrawdown = &maxDD

	if sharpe := sharpeRatio(values); sharpe != nil {
		m.SharpeRatio = sharpe
	}

	if len(closed) > 0 {
		won := 0
		for _, t := range closed {
			if t.Profit > 0 {
				won++
			}
		}
		rate := float64(won) / float64(len(closed))
		m.WinRate = &rate
	}

	return m
}

// maxDrawdown is the largest (peak-value)/peak decline over the curve. The
// peak only ratchets upward.
func maxDrawdown(values []float64) float64 {
	peak := values[0]
	maxDD := 0.0
	for _, v := range values {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			if dd := (peak - v) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// sharpeRatio annualizes mean/stddev of the curve's daily returns. Nil when
// there are fewer than 2 returns or no variance.
func sharpeRatio(values []float64) *float64 {
	returns := formulas.CalculateReturns(values)
	if len(returns) < 2 {
		return nil
	}
	std := formulas.StdDev(returns)
	if std == 0 {
		return nil
	}
	sharpe := formulas.Mean(returns) / std * math.Sqrt(tradingDaysPerYear)
	return &sharpe
}
