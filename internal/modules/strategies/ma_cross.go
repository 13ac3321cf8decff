package strategies

import (
	"sort"

	"github.com/wayss/quantdesk/internal/domain"
	"github.com/wayss/quantdesk/pkg/formulas"
)

// MACross enters on a fast/slow simple-moving-average golden cross confirmed
// by volume, and exits when the close drops under a stop average:
//   - entry: SMA(fast) crossed above SMA(slow) within the last
//     signal_valid_days sessions, today's close holds at or above SMA(fast),
//     and today's volume exceeds both its short and long volume averages
//   - exit: close < SMA(stop)
type MACross struct{}

// NewMACross creates the strategy with its default parameters.
func NewMACross() *MACross { return &MACross{} }

func (s *MACross) Name() string { return "ma_cross" }

func (s *MACross) Params() []ParamSpec {
	return []ParamSpec{
		{Name: "sma_fast", Type: ParamInt, Default: 20, Min: 2, Max: 120, Description: "fast SMA period"},
		{Name: "sma_slow", Type: ParamInt, Default: 120, Min: 10, Max: 250, Description: "slow SMA period"},
		{Name: "sma_stop", Type: ParamInt, Default: 30, Min: 5, Max: 120, Description: "exit SMA period"},
		{Name: "vol_ma_short", Type: ParamInt, Default: 3, Min: 1, Max: 30, Description: "short volume MA period"},
		{Name: "vol_ma_long", Type: ParamInt, Default: 18, Min: 2, Max: 60, Description: "long volume MA period"},
		{Name: "signal_valid_days", Type: ParamInt, Default: 3, Min: 1, Max: 10, Description: "sessions a cross stays valid"},
	}
}

func (s *MACross) GenerateSignals(ctx SignalContext) ([]domain.Signal, error) {
	specs := s.Params()
	fast := ctx.Params.Int(findSpec(specs, "sma_fast"))
	slow := ctx.Params.Int(findSpec(specs, "sma_slow"))
	stop := ctx.Params.Int(findSpec(specs, "sma_stop"))
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
		closes, volumes := closesAndVolumes(bars)
		i := len(bars) - 1

		_, held := ctx.Positions[code]
		if held {
			if stopSMA := formulas.SMA(closes, stop); stopSMA != nil && closes[i] < stopSMA[i] {
				signals = append(signals, exitSignal(s.Name(), code, ctx.Date))
			}
			continue
		}

		if len(closes) < slow+1 || len(volumes) < volLong {
			continue
		}

		fastSMA := formulas.SMA(closes, fast)
		slowSMA := formulas.SMA(closes, slow)
		volShortMA := formulas.SMA(volumes, volShort)
		volLongMA := formulas.SMA(volumes, volLong)
		if fastSMA == nil || slowSMA == nil || volShortMA == nil || volLongMA == nil {
			continue
		}

		recentCross := false
		for j := 0; j < validDays && i-j > 0; j++ {
			if formulas.CrossedAbove(fastSMA, slowSMA, i-j, slow) {
				recentCross = true
				break
			}
		}

		priceOK := closes[i] >= fastSMA[i]
		volOK := volumes[i] > volShortMA[i] && volumes[i] > volLongMA[i]

		if recentCross && priceOK && volOK {
			signals = append(signals, entrySignal(s.Name(), code, ctx.Date))
		}
	}

	return signals, nil
}
