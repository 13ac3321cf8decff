package strategies

import (
	"sort"

	"github.com/wayss/quantdesk/internal/domain"
	"github.com/wayss/quantdesk/pkg/formulas"
)

// FiveStep is a five-filter momentum entry:
//  1. the long (240-day) average is rising
//  2. price gained at least price_increase_factor over the long window
//  3. the 60-day or the 20-day average is rising
//  4. volume exceeds vol_multiplier times its 20-day average
//  5. RSI(13) above 50 and RSI(6) above 60
//
// Exit when the close drops under the 30-day average.
type FiveStep struct{}

// NewFiveStep creates the strategy with its default parameters.
func NewFiveStep() *FiveStep { return &FiveStep{} }

func (s *FiveStep) Name() string { return "five_step" }

func (s *FiveStep) Params() []ParamSpec {
	return []ParamSpec{
		{Name: "ma_long_period", Type: ParamInt, Default: 240, Min: 60, Max: 500, Description: "long trend SMA period"},
		{Name: "ma_short_period_1", Type: ParamInt, Default: 60, Min: 10, Max: 240, Description: "first short SMA period"},
		{Name: "ma_short_period_2", Type: ParamInt, Default: 20, Min: 5, Max: 120, Description: "second short SMA period"},
		{Name: "ma_stop", Type: ParamInt, Default: 30, Min: 5, Max: 120, Description: "exit SMA period"},
		{Name: "price_increase_factor", Type: ParamFloat, Default: 1.05, Min: 1.0, Max: 2.0, Description: "required gain over the long window"},
		{Name: "vol_multiplier", Type: ParamFloat, Default: 1.2, Min: 1.0, Max: 5.0, Description: "volume spike multiplier"},
		{Name: "rsi_period_1", Type: ParamInt, Default: 13, Min: 2, Max: 30, Description: "slow RSI period"},
		{Name: "rsi_period_2", Type: ParamInt, Default: 6, Min: 2, Max: 30, Description: "fast RSI period"},
		{Name: "rsi_buy_threshold_1", Type: ParamFloat, Default: 50, Min: 0, Max: 100, Description: "slow RSI floor"},
		{Name: "rsi_buy_threshold_2", Type: ParamFloat, Default: 60, Min: 0, Max: 100, Description: "fast RSI floor"},
	}
}

func (s *FiveStep) GenerateSignals(ctx SignalContext) ([]domain.Signal, error) {
	specs := s.Params()
	maLong := ctx.Params.Int(findSpec(specs, "ma_long_period"))
	maShort1 := ctx.Params.Int(findSpec(specs, "ma_short_period_1"))
	maShort2 := ctx.Params.Int(findSpec(specs, "ma_short_period_2"))
	maStop := ctx.Params.Int(findSpec(specs, "ma_stop"))
	priceFactor := ctx.Params.Value(findSpec(specs, "price_increase_factor"))
	volMult := ctx.Params.Value(findSpec(specs, "vol_multiplier"))
	rsiPeriod1 := ctx.Params.Int(findSpec(specs, "rsi_period_1"))
	rsiPeriod2 := ctx.Params.Int(findSpec(specs, "rsi_period_2"))
	rsiFloor1 := ctx.Params.Value(findSpec(specs, "rsi_buy_threshold_1"))
	rsiFloor2 := ctx.Params.Value(findSpec(specs, "rsi_buy_threshold_2"))

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
			if stopSMA := formulas.SMA(closes, maStop); stopSMA != nil && closes[i] < stopSMA[i] {
				signals = append(signals, exitSignal(s.Name(), code, ctx.Date))
			}
			continue
		}

		if len(closes) < maLong+1 {
			continue
		}

		longSMA := formulas.SMA(closes, maLong)
		sma1 := formulas.SMA(closes, maShort1)
		sma2 := formulas.SMA(closes, maShort2)
		volSMA := formulas.SMA(volumes, 20)
		rsiSlow := formulas.RSI(closes, rsiPeriod1)
		rsiFast := formulas.RSI(closes, rsiPeriod2)
		if longSMA == nil || sma1 == nil || sma2 == nil || volSMA == nil ||
			rsiSlow == nil || rsiFast == nil {
			continue
		}

		longRising := longSMA[i] > longSMA[i-1]
		base := closes[i-maLong]
		momentumOK := base > 0 && closes[i] >= base*priceFactor
		shortTrend := sma1[i] > sma1[i-1] || sma2[i] > sma2[i-1]
		volSpike := volSMA[i] > 0 && volumes[i] > volSMA[i]*volMult
		rsiOK := rsiSlow[i] > rsiFloor1 && rsiFast[i] > rsiFloor2

		if longRising && momentumOK && shortTrend && volSpike && rsiOK {
			signals = append(signals, entrySignal(s.Name(), code, ctx.Date))
		}
	}

	return signals, nil
}
