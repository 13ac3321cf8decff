package backtest

import (
	"time"

	"github.com/wayss/quantdesk/internal/domain"
	"github.com/wayss/quantdesk/internal/modules/strategies"
)

// RunConfig describes one backtest request.
type RunConfig struct {
	Strategy     string            `json:"strategy"`
	Params       strategies.Params `json:"params,omitempty"`
	Codes        []string          `json:"codes"`
	Start        string            `json:"start"`
	End          string            `json:"end"`
	InitialCash  float64           `json:"initial_cash"`
	MaxPositions int               `json:"max_positions"`
	FeeRate      float64           `json:"fee_rate"`
	Benchmark    string            `json:"benchmark,omitempty"`
	MinBars      int               `json:"min_bars,omitempty"` // minimum bars a code needs to be included
}

// EquityPoint is one (date, total value) sample of the equity curve.
type EquityPoint struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// SkippedSignal records a signal that could not be turned into a trade. A
// skipped signal never aborts the run.
type SkippedSignal struct {
	Date   string            `json:"date"`
	Code   string            `json:"code"`
	Type   domain.SignalType `json:"signal_type"`
	Reason string            `json:"reason"`
}

// ClosedTrade is one completed round trip in the simulation.
type ClosedTrade struct {
	Code      string  `json:"code"`
	OpenDate  string  `json:"open_date"`
	CloseDate string  `json:"close_date"`
	Quantity  float64 `json:"quantity"`
	OpenPrice float64 `json:"open_price"`
	Profit    float64 `json:"profit"` // net of the closing fee
}

// Metrics summarizes a run. Pointer fields are nil when the metric is
// undefined for the run (empty calendar, no closed trades, zero variance);
// undefined is never reported as zero.
type Metrics struct {
	TotalReturn     *float64 `json:"total_return"`
	AnnualReturn    *float64 `json:"annual_return"`
	MaxDrawdown     *float64 `json:"max_drawdown"`
	SharpeRatio     *float64 `json:"sharpe_ratio"`
	WinRate         *float64 `json:"win_rate"`
	TotalTrades     int      `json:"total_trades"`
	BenchmarkReturn *float64 `json:"benchmark_return,omitempty"`
	ExcessReturn    *float64 `json:"excess_return,omitempty"`
}

// Run is the full result of one backtest.
type Run struct {
	ID             string          `json:"id"`
	Config         RunConfig       `json:"config"`
	EquityCurve    []EquityPoint   `json:"equity_curve"`
	BenchmarkCurve []EquityPoint   `json:"benchmark_curve,omitempty"`
	Trades         []domain.Trade  `json:"trades"`
	ClosedTrades   []ClosedTrade   `json:"closed_trades"`
	Skipped        []SkippedSignal `json:"skipped_signals"`
	IncludedCodes  []string        `json:"included_codes"`
	SkippedCodes   []string        `json:"skipped_codes"`
	Metrics        Metrics         `json:"metrics"`
	StartedAt      time.Time       `json:"started_at"`
	FinishedAt     time.Time       `json:"finished_at"`
}
