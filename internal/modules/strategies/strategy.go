// Package strategies holds the signal-generating strategy variants. Every
// strategy is a pure function of the context it is handed: as-of date, bar
// history per security, open positions and parameter values. No strategy
// keeps state across calls, so backtests replaying the same history produce
// identical signals.
package strategies

import (
	"github.com/wayss/quantdesk/internal/domain"
)

// ParamType describes the value kind of a strategy parameter.
type ParamType string

const (
	ParamInt   ParamType = "int"
	ParamFloat ParamType = "float"
)

// ParamSpec declares one tunable parameter: schema as data, so hosts can
// render configuration forms and validate values without knowing the
// strategy.
type ParamSpec struct {
	Name        string    `json:"name"`
	Type        ParamType `json:"type"`
	Default     float64   `json:"default"`
	Min         float64   `json:"min"`
	Max         float64   `json:"max"`
	Description string    `json:"description,omitempty"`
}

// Params holds parameter values keyed by spec name. Missing keys fall back
// to the spec default.
type Params map[string]float64

// Value resolves a parameter against its spec, clamping to the declared
// bounds.
func (p Params) Value(spec ParamSpec) float64 {
	v, ok := p[spec.Name]
	if !ok {
		return spec.Default
	}
	if v < spec.Min {
		return spec.Min
	}
	if v > spec.Max {
		return spec.Max
	}
	return v
}

// Int resolves a parameter as an integer.
func (p Params) Int(spec ParamSpec) int {
	return int(p.Value(spec))
}

// SignalContext is everything a strategy may look at for one evaluation.
// History carries bars up to and including Date, ascending; securities whose
// last bar is older than Date are suspended and not tradable that day.
type SignalContext struct {
	Date      string
	History   map[string][]domain.Bar
	Positions map[string]domain.Position
	Params    Params
}

// Strategy is the signal-generation capability. GenerateSignals returns
// entry signals for securities worth opening and exit signals for held
// positions that should close, all dated ctx.Date.
type Strategy interface {
	Name() string
	Params() []ParamSpec
	GenerateSignals(ctx SignalContext) ([]domain.Signal, error)
}

// findSpec looks up a spec by name; used by strategies resolving their own
// declared parameters.
func findSpec(specs []ParamSpec, name string) ParamSpec {
	for _, s := range specs {
		if s.Name == name {
			return s
		}
	}
	return ParamSpec{Name: name}
}

// closesAndVolumes splits a bar series into aligned close and volume slices.
func closesAndVolumes(bars []domain.Bar) ([]float64, []float64) {
	closes := make([]float64, len(bars))
	volumes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
		volumes[i] = b.Volume
	}
	return closes, volumes
}

// tradable reports whether the series has a bar exactly on the as-of date,
// i.e. the security actually traded that day.
func tradable(bars []domain.Bar, date string) bool {
	return len(bars) > 0 && bars[len(bars)-1].Date == date
}

func entrySignal(strategy, code, date string) domain.Signal {
	return domain.Signal{Strategy: strategy, Code: code, Date: date, Type: domain.SignalEntry}
}

func exitSignal(strategy, code, date string) domain.Signal {
	return domain.Signal{Strategy: strategy, Code: code, Date: date, Type: domain.SignalExit}
}
