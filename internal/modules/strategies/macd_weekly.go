package strategies

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/wayss/quantdesk/internal/domain"
	"github.com/wayss/quantdesk/pkg/formulas"
)

const (
	weeklyDifRangeLow  = -0.05
	weeklyDifRangeHigh = 0.15
	weeklyDifLookback  = 20
)

// WeeklyMACDFilter confirms trend on the weekly timeframe and times entries
// on the daily one. A week qualifies when its MACD line crosses above the
// signal line, sits inside a band around the zero axis, and is at or below
// the 20th percentile of the prior 20 weekly readings. The weekly signal
// stays valid for signal_valid_days daily sessions; within that window an
// entry fires when the daily close holds above SMA20 with volume above both
// its short and long averages. Exit when the close drops under SMA20.
type WeeklyMACDFilter struct{}

// NewWeeklyMACDFilter creates the strategy with its default parameters.
func NewWeeklyMACDFilter() *WeeklyMACDFilter { return &WeeklyMACDFilter{} }

func (s *WeeklyMACDFilter) Name() string { return "macd_weekly" }

func (s *WeeklyMACDFilter) Params() []ParamSpec {
	return []ParamSpec{
		{Name: "macd_fast", Type: ParamInt, Default: 12, Min: 2, Max: 60, Description: "weekly MACD fast EMA period"},
		{Name: "macd_slow", Type: ParamInt, Default: 26, Min: 5, Max: 120, Description: "weekly MACD slow EMA period"},
		{Name: "macd_signal", Type: ParamInt, Default: 9, Min: 2, Max: 60, Description: "weekly MACD signal period"},
		{Name: "price_sma", Type: ParamInt, Default: 20, Min: 5, Max: 120, Description: "daily price SMA filter and exit period"},
		{Name: "vol_ma_short", Type: ParamInt, Default: 3, Min: 1, Max: 30, Description: "short volume MA period"},
		{Name: "vol_ma_long", Type: ParamInt, Default: 18, Min: 2, Max: 60, Description: "long volume MA period"},
		{Name: "signal_valid_days", Type: ParamInt, Default: 3, Min: 1, Max: 10, Description: "daily sessions a weekly signal stays valid"},
	}
}

// lastWeeklySignalIndex returns the daily bar index that closed the most
// recent qualifying week, or -1 when no week qualifies.
func lastWeeklySignalIndex(dates []string, closes []float64, fast, slow, signal int) int {
	weekly := formulas.WeeklyCloses(dates, closes)
	weekIdx := formulas.WeeklyLastIndices(dates)
	res := formulas.MACD(weekly, fast, slow, signal)
	if res == nil {
		return -1
	}

	warmup := slow + signal
	last := -1
	for w := warmup; w < len(weekly); w++ {
		dif, dea := res.MACD[w], res.Signal[w]
		prevDif, prevDea := res.MACD[w-1], res.Signal[w-1]

		crossUp := prevDif <= prevDea && dif > dea
		inRange := dif >= weeklyDifRangeLow && dif <= weeklyDifRangeHigh
		if !crossUp || !inRange {
			continue
		}

		if w < warmup+weeklyDifLookback {
			continue
		}
		hist := make([]float64, weeklyDifLookback)
		copy(hist, res.MACD[w-weeklyDifLookback:w])
		sort.Float64s(hist)
		q20 := stat.Quantile(0.2, stat.Empirical, hist, nil)
		if dif > q20 {
			continue
		}

		last = weekIdx[w]
	}
	return last
}

func (s *WeeklyMACDFilter) GenerateSignals(ctx SignalContext) ([]domain.Signal, error) {
	specs := s.Params()
	fast := ctx.Params.Int(findSpec(specs, "macd_fast"))
	slow := ctx.Params.Int(findSpec(specs, "macd_slow"))
	signalPeriod := ctx.Params.Int(findSpec(specs, "macd_signal"))
	priceSMA := ctx.Params.Int(findSpec(specs, "price_sma"))
	volShort := ctx.Params.Int(findSpec(specs, "vol_ma_short"))
	volLong := ctx.Params.Int(findSpec(specs, "vol_ma_long"))
	validDays := ctx.Params.Int(findSpec(specs, "signal_valid_days"))
	if validDays < 1 {
		validDays = 1
	}

	codes := make([]string, 0, len(ctx.History))
	for code := range ctx.History {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	var signals []domain.Signal
	for _, code := range codes {
		bars := ctx.History[code]
		if !tradable(bars, ctx.Date) {
			continue
		}

		dates := make([]string, len(bars))
		for j, b := range bars {
			dates[j] = b.Date
		}
		closes, volumes := closesAndVolumes(bars)
		i := len(bars) - 1

		_, held := ctx.Positions[code]
		if held {
			if sma := formulas.SMA(closes, priceSMA); sma != nil && closes[i] < sma[i] {
				signals = append(signals, exitSignal(s.Name(), code, ctx.Date))
			}
			continue
		}

		if len(closes) < priceSMA || len(volumes) < volLong {
			continue
		}

		signalIdx := lastWeeklySignalIndex(dates, closes, fast, slow, signalPeriod)
		if signalIdx < 0 || i-signalIdx > validDays-1 {
			continue
		}

		sma := formulas.SMA(closes, priceSMA)
		volShortMA := formulas.SMA(volumes, volShort)
		volLongMA := formulas.SMA(volumes, volLong)
		if sma == nil || volShortMA == nil || volLongMA == nil {
			continue
		}

		priceOK := closes[i] > sma[i]
		volOK := volumes[i] > volShortMA[i] && volumes[i] > volLongMA[i]

		if priceOK && volOK {
			signals = append(signals, entrySignal(s.Name(), code, ctx.Date))
		}
	}

	return signals, nil
}
