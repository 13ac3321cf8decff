package risk

import (
	"math"
	"sort"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/wayss/quantdesk/internal/config"
	"github.com/wayss/quantdesk/internal/domain"
	"github.com/wayss/quantdesk/internal/modules/ledger"
	"github.com/wayss/quantdesk/internal/modules/snapshots"
)

// Analyzer computes portfolio risk: historical-simulation VaR and CVaR over
// the snapshot return series, concentration (HHI) and limit violations.
type Analyzer struct {
	ledger    *ledger.Service
	snapshots *snapshots.Repository
	limits    config.RiskLimits
	log       zerolog.Logger
}

// NewAnalyzer creates a new risk analyzer
func NewAnalyzer(ledgerSvc *ledger.Service, snapshotRepo *snapshots.Repository, limits config.RiskLimits, log zerolog.Logger) *Analyzer {
	return &Analyzer{
		ledger:    ledgerSvc,
		snapshots: snapshotRepo,
		limits:    limits,
		log:       log.With().Str("service", "risk").Logger(),
	}
}

// HistoricalVaR is the (1-confidence) empirical quantile of the return
// series, expressed as a positive loss magnitude. A window whose tail
// quantile is still a gain reports zero, never a negative loss. Nil with
// fewer than two observations.
func HistoricalVaR(returns []float64, confidence float64) *float64 {
	if len(returns) < 2 {
		return nil
	}
	sorted := append([]float64(nil), returns...)
	sort.Float64s(sorted)
	q := stat.Quantile(1-confidence, stat.Empirical, sorted, nil)
	loss := math.Max(0, -q)
	return &loss
}

// HistoricalCVaR is the mean of all returns at or below the VaR quantile,
// expressed as a positive loss magnitude and clamped at zero like
// HistoricalVaR. Nil with fewer than two observations.
func HistoricalCVaR(returns []float64, confidence float64) *float64 {
	if len(returns) < 2 {
		return nil
	}
	sorted := append([]float64(nil), returns...)
	sort.Float64s(sorted)
	q := stat.Quantile(1-confidence, stat.Empirical, sorted, nil)

	var tail []float64
	for _, r := range sorted {
		if r <= q {
			tail = append(tail, r)
		}
	}
	if len(tail) == 0 {
		return nil
	}
	loss := math.Max(0, -stat.Mean(tail, nil))
	return &loss
}

// HHI is the Herfindahl-Hirschman concentration index over the positions'
// shares of total investment value: sum of squared weights, in [0, 1]. A
// single-security portfolio scores 1. Nil when nothing is invested.
func HHI(positions []PositionExposure) *float64 {
	total := 0.0
	for _, p := range positions {
		total += p.MarketValue
	}
	if total <= 0 {
		return nil
	}

	hhi := 0.0
	for _, p := range positions {
		w := p.MarketValue / total
		hhi += w * w
	}
	return &hhi
}

// WeightedReturns builds the portfolio daily return series from per-security
// close series and held quantities. Each date's portfolio return is the sum
// of per-security returns weighted by the security's value share on the
// prior date, so weights never look ahead. Series must share an aligned
// date grid.
func WeightedReturns(history map[string][]domain.Bar, quantities map[string]float64) []float64 {
	n := 0
	for _, bars := range history {
		if n == 0 || len(bars) < n {
			n = len(bars)
		}
	}
	if n < 2 {
		return nil
	}

	returns := make([]float64, 0, n-1)
	for t := 1; t < n; t++ {
		prevTotal := 0.0
		for code, bars := range history {
			prevTotal += quantities[code] * bars[t-1].Close
		}
		if prevTotal <= 0 {
			returns = append(returns, 0)
			continue
		}

		r := 0.0
		for code, bars := range history {
			prev := bars[t-1].Close
			if prev <= 0 {
				continue
			}
			weight := quantities[code] * prev / prevTotal
			r += weight * (bars[t].Close/prev - 1)
		}
		returns = append(returns, r)
	}
	return returns
}

// snapshotReturns derives daily portfolio returns from the stored NAV
// series.
func snapshotReturns(snaps []domain.Snapshot) []float64 {
	var returns []float64
	for i := 1; i < len(snaps); i++ {
		prev := snaps[i-1].TotalValue
		if prev <= 0 {
			continue
		}
		returns = append(returns, snaps[i].TotalValue/prev-1)
	}
	return returns
}

// checkViolations compares position and industry weights of total portfolio
// value, plus the concentration index, against the configured limits.
func checkViolations(positions []PositionExposure, cash float64, hhi *float64, limits config.RiskLimits) []Violation {
	violations := []Violation{}

	totalValue := cash
	for _, p := range positions {
		totalValue += p.MarketValue
	}
	if totalValue <= 0 {
		return violations
	}

	industryValue := make(map[string]float64)
	for _, p := range positions {
		ratio := p.MarketValue / totalValue
		if ratio > limits.MaxSinglePosition {
			violations = append(violations, Violation{
				Rule:     "single_position",
				Entity:   p.Code,
				Observed: ratio,
				Limit:    limits.MaxSinglePosition,
			})
		}
		if p.Industry != "" {
			industryValue[p.Industry] += p.MarketValue
		}
	}

	industries := make([]string, 0, len(industryValue))
	for industry := range industryValue {
		industries = append(industries, industry)
	}
	sort.Strings(industries)
	for _, industry := range industries {
		ratio := industryValue[industry] / totalValue
		if ratio > limits.MaxIndustryExposure {
			violations = append(violations, Violation{
				Rule:     "industry_exposure",
				Entity:   industry,
				Observed: ratio,
				Limit:    limits.MaxIndustryExposure,
			})
		}
	}

	if hhi != nil && *hhi > limits.MaxHHI {
		violations = append(violations, Violation{
			Rule:     "hhi",
			Entity:   "portfolio",
			Observed: *hhi,
			Limit:    limits.MaxHHI,
		})
	}

	return violations
}

// AnalysisInput is a fully materialized analysis request: positions with
// valuations, cash, and the portfolio return window.
type AnalysisInput struct {
	Portfolio string
	Positions []PositionExposure
	Cash      float64
	Returns   []float64
}

// Analyze computes the risk report from explicit inputs. VaR/CVaR degrade to
// nil on insufficient history; HHI and violations are still computed.
func (a *Analyzer) Analyze(input AnalysisInput) *Report {
	report := &Report{
		Portfolio:    input.Portfolio,
		Observations: len(input.Returns),
	}

	if len(input.Returns) >= 2 {
		report.VaR95 = HistoricalVaR(input.Returns, 0.95)
		report.VaR99 = HistoricalVaR(input.Returns, 0.99)
		report.CVaR95 = HistoricalCVaR(input.Returns, 0.95)
	} else {
		report.InsufficientHistory = true
	}

	report.HHI = HHI(input.Positions)
	report.Violations = checkViolations(input.Positions, input.Cash, report.HHI, a.limits)
	return report
}

// AnalyzePortfolio assembles the analysis input for a live portfolio: the
// priced position report plus returns from the snapshot NAV series.
func (a *Analyzer) AnalyzePortfolio(portfolio string) (*Report, error) {
	pr, err := a.ledger.GetReport(portfolio)
	if err != nil {
		return nil, err
	}

	positions := make([]PositionExposure, 0, len(pr.Positions))
	for _, p := range pr.Positions {
		exp := PositionExposure{Code: p.Code, Industry: p.Industry}
		if p.MarketValue != nil {
			exp.MarketValue = *p.MarketValue
		}
		positions = append(positions, exp)
	}

	snaps, err := a.snapshots.Get(portfolio, "", "")
	if err != nil {
		return nil, err
	}

	report := a.Analyze(AnalysisInput{
		Portfolio: portfolio,
		Positions: positions,
		Cash:      pr.Cash,
		Returns:   snapshotReturns(snaps),
	})

	a.log.Info().Str("portfolio", portfolio).Int("observations", report.Observations).
		Int("violations", len(report.Violations)).Msg("Risk analysis complete")
	return report, nil
}
