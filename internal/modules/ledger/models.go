package ledger

// PositionReport is a position enriched with live pricing for display.
type PositionReport struct {
	Code         string   `json:"code"`
	Name         string   `json:"name,omitempty"`
	Industry     string   `json:"industry,omitempty"`
	Quantity     float64  `json:"quantity"`
	AvgCost      float64  `json:"avg_cost"`
	CurrentPrice *float64 `json:"current_price,omitempty"`
	MarketValue  *float64 `json:"market_value,omitempty"`
	PnL          *float64 `json:"pnl,omitempty"`
	PnLPercent   *float64 `json:"pnl_percent,omitempty"`
	Weight       *float64 `json:"weight,omitempty"`
	TargetPrice  *float64 `json:"target_price,omitempty"`
	TrailingStop *float64 `json:"trailing_stop,omitempty"`
	MA20Stop     *float64 `json:"ma20_stop,omitempty"`
}

// Report is the full portfolio view: cash, valued positions and totals.
type Report struct {
	Portfolio       string           `json:"portfolio"`
	Cash            float64          `json:"cash"`
	InvestmentValue float64          `json:"investment_value"`
	TotalValue      float64          `json:"total_value"`
	Positions       []PositionReport `json:"positions"`
}
