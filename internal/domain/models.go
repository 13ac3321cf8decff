// Package domain provides core domain models and types.
package domain

// CashCode is the reserved sentinel security code used by the persistence
// layer to store a portfolio's cash balance as a row in the portfolio table
// (qty fixed at 1, cost holds the balance). It is a storage convention only:
// the ledger API exposes cash as a scalar and never leaks this code.
const CashCode = "CASH"

// Side represents the direction of a trade.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// SignalType classifies a strategy signal.
type SignalType string

const (
	SignalEntry SignalType = "entry"
	SignalExit  SignalType = "exit"
	SignalAlert SignalType = "alert"
	SignalBuy   SignalType = "buy"
	SignalSell  SignalType = "sell"
)

// Security represents immutable reference data for a listed instrument.
// Code is the exchange-qualified identifier (e.g. "600519.SH").
type Security struct {
	Code     string `json:"code"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Industry string `json:"industry"`
	ListDate string `json:"list_date"`
	Region   string `json:"region"`
}

// Bar is one daily OHLCV observation. Date is "YYYY-MM-DD".
// (code, date) is unique per security; bars are ordered by date ascending.
type Bar struct {
	Code     string  `json:"code"`
	Date     string  `json:"date"`
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	Volume   float64 `json:"volume"`
	Turnover float64 `json:"turnover"`
}

// Position is an open holding in a portfolio. AvgCost is the volume-weighted
// average cost of the open quantity; it changes only on buys.
type Position struct {
	Portfolio   string   `json:"portfolio"`
	Code        string   `json:"code"`
	Quantity    float64  `json:"quantity"`
	AvgCost     float64  `json:"avg_cost"`
	TargetPrice *float64 `json:"target_price,omitempty"`
}

// Trade is one executed order. Trades are immutable once recorded and form
// an append-only log per portfolio.
type Trade struct {
	ID        int64   `json:"id"`
	Portfolio string  `json:"portfolio"`
	Code      string  `json:"code"`
	Date      string  `json:"date"`
	Side      Side    `json:"side"`
	Price     float64 `json:"price"`
	Quantity  float64 `json:"quantity"`
	Fee       float64 `json:"fee"`
}

// CashFlow is a deposit (positive) or withdrawal (negative). Append-only.
type CashFlow struct {
	ID        int64   `json:"id"`
	Portfolio string  `json:"portfolio"`
	Date      string  `json:"date"`
	Amount    float64 `json:"amount"`
	Note      string  `json:"note"`
}

// Snapshot is one net-asset-value point per (portfolio, date).
// TotalValue == Cash + InvestmentValue always.
type Snapshot struct {
	Portfolio       string  `json:"portfolio"`
	Date            string  `json:"date"`
	TotalValue      float64 `json:"total_value"`
	Cash            float64 `json:"cash"`
	InvestmentValue float64 `json:"investment_value"`
}

// Signal is one strategy emission, unique per (strategy, code, date, type).
type Signal struct {
	Strategy string     `json:"strategy"`
	Code     string     `json:"code"`
	Date     string     `json:"date"`
	Type     SignalType `json:"signal_type"`
}

// Valuation is a point-in-time portfolio valuation.
type Valuation struct {
	TotalValue      float64 `json:"total_value"`
	Cash            float64 `json:"cash"`
	InvestmentValue float64 `json:"investment_value"`
}

// BarProvider supplies materialized daily price history. Implementations are
// read-only from the core's perspective.
type BarProvider interface {
	// GetBars returns bars for a security ordered by date ascending,
	// restricted to [start, end] inclusive. Returns ErrNoData if the
	// security has no bars at all.
	GetBars(code, start, end string) ([]Bar, error)
}
