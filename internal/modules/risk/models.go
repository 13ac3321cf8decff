package risk

// Violation is one breached risk rule. Violations are reported, never
// silently corrected.
type Violation struct {
	Rule     string  `json:"rule"`     // "single_position", "industry_exposure", "hhi"
	Entity   string  `json:"entity"`   // security code or industry name
	Observed float64 `json:"observed"` // the offending value
	Limit    float64 `json:"limit"`
}

// PositionExposure is one position's valuation slice fed into the analyzer.
type PositionExposure struct {
	Code        string  `json:"code"`
	Industry    string  `json:"industry,omitempty"`
	MarketValue float64 `json:"market_value"`
}

// Report is the risk analysis result. VaR/CVaR pointers are nil when the
// return window holds fewer than two observations; HHI is nil when nothing
// is invested. Undefined is never reported as zero.
type Report struct {
	Portfolio           string      `json:"portfolio"`
	Observations        int         `json:"observations"`
	InsufficientHistory bool        `json:"insufficient_history"`
	VaR95               *float64    `json:"var_95"`
	VaR99               *float64    `json:"var_99"`
	CVaR95              *float64    `json:"cvar_95"`
	HHI                 *float64    `json:"hhi"`
	Violations          []Violation `json:"violations"`
}
