package strategies

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/wayss/quantdesk/internal/domain"
	"github.com/wayss/quantdesk/pkg/formulas"
)

const (
	sixRulesMACDFast   = 12
	sixRulesMACDSlow   = 26
	sixRulesMACDSignal = 9
	sixRulesSlopeSpan  = 10

	// Candlestick thresholds for the trap and doji rules.
	trapGainMin      = 0.20
	trapShadowRatio  = 2.0
	trapCloseCeiling = 0.80
	dojiBodyMax      = 0.004
	dojiVolumeShrink = 0.5
)

// SixRules is a box-breakout entry hedged by candlestick risk filters:
//   - entry on a close above the prior n_box-bar box high with volume at
//     least vol_break_mult times yesterday's, standing firm above EMA(ema_len)
//     today and yesterday
//   - entry on a bottom doji: volume shrunk under half its 3-day mean, day
//     amplitude below doji_amplitude_max, near-zero candle body
//   - both entries require take-profit over stop-loss odds of at least
//     risk_reward_min, with the stop at the tighter of the percentage stop
//     and the recent swing low
//
// Held positions exit on a close under SMA(ma_stop), a close under the box
// low, a surge day closing far below its high on a long upper shadow, or
// red_soldiers_len straight up-candles inside a downtrend while the MACD
// histogram stays negative and is not shrinking.
type SixRules struct{}

// NewSixRules creates the strategy with its default parameters.
func NewSixRules() *SixRules { return &SixRules{} }

func (s *SixRules) Name() string { return "six_rules" }

func (s *SixRules) Params() []ParamSpec {
	return []ParamSpec{
		{Name: "n_box", Type: ParamInt, Default: 28, Min: 5, Max: 120, Description: "consolidation box lookback"},
		{Name: "vol_break_mult", Type: ParamFloat, Default: 2.0, Min: 1.0, Max: 10.0, Description: "breakout volume multiple of the prior day"},
		{Name: "ema_len", Type: ParamInt, Default: 20, Min: 5, Max: 120, Description: "stand-firm EMA period"},
		{Name: "red_soldiers_len", Type: ParamInt, Default: 3, Min: 2, Max: 10, Description: "consecutive up-candles for the false-rally filter"},
		{Name: "doji_amplitude_max", Type: ParamFloat, Default: 0.03, Min: 0.005, Max: 0.1, Description: "max day amplitude for a bottom doji"},
		{Name: "risk_reward_min", Type: ParamFloat, Default: 3.0, Min: 1.0, Max: 10.0, Description: "required reward-to-risk ratio"},
		{Name: "stop_loss_pct", Type: ParamFloat, Default: 0.03, Min: 0.005, Max: 0.2, Description: "percentage stop distance"},
		{Name: "swing_lookback", Type: ParamInt, Default: 10, Min: 2, Max: 60, Description: "swing-low lookback for the stop"},
		{Name: "ma_stop", Type: ParamInt, Default: 30, Min: 5, Max: 120, Description: "exit SMA period"},
	}
}

func (s *SixRules) GenerateSignals(ctx SignalContext) ([]domain.Signal, error) {
	specs := s.Params()
	nBox := ctx.Params.Int(findSpec(specs, "n_box"))
	volBreakMult := ctx.Params.Value(findSpec(specs, "vol_break_mult"))
	emaLen := ctx.Params.Int(findSpec(specs, "ema_len"))
	soldiers := ctx.Params.Int(findSpec(specs, "red_soldiers_len"))
	dojiAmplMax := ctx.Params.Value(findSpec(specs, "doji_amplitude_max"))
	rrMin := ctx.Params.Value(findSpec(specs, "risk_reward_min"))
	stopPct := ctx.Params.Value(findSpec(specs, "stop_loss_pct"))
	swingLookback := ctx.Params.Int(findSpec(specs, "swing_lookback"))
	maStop := ctx.Params.Int(findSpec(specs, "ma_stop"))

	minBars := nBox + 1
	if emaLen+2 > minBars {
		minBars = emaLen + 2
	}
	if minBars < 30 {
		minBars = 30
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
		closes, volumes := closesAndVolumes(bars)
		i := len(bars) - 1

		_, held := ctx.Positions[code]
		if held {
			if s.shouldExit(bars, closes, nBox, emaLen, soldiers, maStop) {
				signals = append(signals, exitSignal(s.Name(), code, ctx.Date))
			}
			continue
		}

		if len(bars) < minBars {
			continue
		}

		ema := formulas.EMA(closes, emaLen)
		if ema == nil {
			continue
		}

		// Box bounds come from the bars before today.
		_, boxHigh := boxRange(bars[:i], nBox)

		breakout := closes[i] > boxHigh && volumes[i] >= volumes[i-1]*volBreakMult
		standFirm := closes[i] > ema[i] && closes[i-1] > ema[i-1]
		if breakout && standFirm && riskRewardOK(bars, closes[i], stopPct, rrMin, swingLookback) {
			signals = append(signals, entrySignal(s.Name(), code, ctx.Date))
			continue
		}

		if bottomDoji(bars, volumes, dojiAmplMax) && riskRewardOK(bars, closes[i], stopPct, rrMin, swingLookback) {
			signals = append(signals, entrySignal(s.Name(), code, ctx.Date))
		}
	}

	return signals, nil
}

// shouldExit applies the risk rules to a held position, most specific guard
// first. Each rule checks its own data requirement so short histories stay
// silent.
func (s *SixRules) shouldExit(bars []domain.Bar, closes []float64, nBox, emaLen, soldiers, maStop int) bool {
	i := len(bars) - 1

	if stopSMA := formulas.SMA(closes, maStop); stopSMA != nil && closes[i] < stopSMA[i] {
		return true
	}

	if len(bars) >= nBox+1 {
		boxLow, _ := boxRange(bars[:i], nBox)
		if closes[i] < boxLow {
			return true
		}
	}

	if i >= 1 && upperShadowTrap(bars[i], closes[i-1]) {
		return true
	}

	if redSoldiers(bars, soldiers) && downtrend(closes, emaLen) {
		if res := formulas.MACD(closes, sixRulesMACDFast, sixRulesMACDSlow, sixRulesMACDSignal); res != nil {
			if histogramNotShrinking(res.Histogram, soldiers) {
				return true
			}
		}
	}

	return false
}

// boxRange returns the lowest low and highest high over the last n bars,
// clamped to the available history. bars must be non-empty.
func boxRange(bars []domain.Bar, n int) (float64, float64) {
	if n > len(bars) {
		n = len(bars)
	}
	window := bars[len(bars)-n:]
	lo, hi := window[0].Low, window[0].High
	for _, b := range window[1:] {
		if b.Low < lo {
			lo = b.Low
		}
		if b.High > hi {
			hi = b.High
		}
	}
	return lo, hi
}

// riskRewardOK derives the stop and target for an entry at the current close
// and checks the reward-to-risk ratio. The stop is the tighter of the
// percentage stop and the swing low of the last swingLookback bars, the
// target sits rrMin stop-distances above the entry.
func riskRewardOK(bars []domain.Bar, entry, stopPct, rrMin float64, swingLookback int) bool {
	n := swingLookback
	if n > len(bars) {
		n = len(bars)
	}
	swingLow := bars[len(bars)-n].Low
	for _, b := range bars[len(bars)-n:] {
		if b.Low < swingLow {
			swingLow = b.Low
		}
	}

	sl := math.Min(entry*(1-stopPct), swingLow)
	tp := entry * (1 + stopPct*rrMin)
	risk := math.Max(1e-8, entry-sl)
	// Tolerance keeps the ratio check stable when the stop lands exactly on
	// the percentage stop.
	return tp-entry >= rrMin*risk-1e-9
}

// bottomDoji detects a shrunk-volume, tiny-body, low-amplitude candle.
func bottomDoji(bars []domain.Bar, volumes []float64, amplMax float64) bool {
	i := len(bars) - 1
	if i < 3 {
		return false
	}

	mean3 := (volumes[i-3] + volumes[i-2] + volumes[i-1]) / 3
	if volumes[i] >= dojiVolumeShrink*mean3 {
		return false
	}

	ampl := dayAmplitude(bars[i-1].Close, bars[i].High, bars[i].Low)
	if ampl >= amplMax {
		return false
	}

	body := math.Abs(bars[i].Close - bars[i].Open)
	return body/math.Max(1e-8, bars[i].Close) < dojiBodyMax
}

// upperShadowTrap flags a surge day that closed far below its high under a
// long upper shadow.
func upperShadowTrap(bar domain.Bar, prevClose float64) bool {
	if prevClose <= 0 {
		return false
	}
	dayGain := (bar.Close - prevClose) / prevClose
	body := math.Abs(bar.Close - bar.Open)
	upperShadow := bar.High - math.Max(bar.Open, bar.Close)
	return dayGain >= trapGainMin && upperShadow >= trapShadowRatio*body && bar.Close < bar.High*trapCloseCeiling
}

// redSoldiers reports whether the last k candles all closed above their open.
func redSoldiers(bars []domain.Bar, k int) bool {
	if len(bars) < k {
		return false
	}
	for _, b := range bars[len(bars)-k:] {
		if b.Close <= b.Open {
			return false
		}
	}
	return true
}

// downtrend holds when the close sits under its EMA and the EMA slopes down
// over the last sixRulesSlopeSpan sessions.
func downtrend(closes []float64, emaLen int) bool {
	ema := formulas.EMA(closes, emaLen)
	if ema == nil || len(ema) < emaLen+sixRulesSlopeSpan-1 {
		return false
	}
	i := len(ema) - 1
	return closes[i] < ema[i] && trendSlope(ema[len(ema)-sixRulesSlopeSpan:]) < 0
}

// histogramNotShrinking holds when the last k histogram values are all
// negative and their magnitude is not decaying, the signature of a rally
// against an intact downtrend.
func histogramNotShrinking(hist []float64, k int) bool {
	if len(hist) < k {
		return false
	}
	mags := make([]float64, k)
	for j, v := range hist[len(hist)-k:] {
		if v >= 0 {
			return false
		}
		mags[j] = -v
	}
	return trendSlope(mags) >= 0
}

// trendSlope is the least-squares slope of y against its index.
func trendSlope(y []float64) float64 {
	if len(y) < 2 {
		return 0
	}
	x := make([]float64, len(y))
	for i := range x {
		x[i] = float64(i)
	}
	_, beta := stat.LinearRegression(x, y, nil, false)
	return beta
}

// dayAmplitude is the day's high-low range relative to the prior close,
// falling back to the day's midpoint when no prior close exists.
func dayAmplitude(prevClose, high, low float64) float64 {
	base := prevClose
	if base <= 0 {
		base = (high + low) / 2
	}
	if base == 0 {
		return 0
	}
	return (high - low) / base
}
