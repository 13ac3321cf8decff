package ledger

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/wayss/quantdesk/internal/domain"
	"github.com/wayss/quantdesk/internal/modules/marketdata"
	"github.com/wayss/quantdesk/internal/modules/universe"
	"github.com/wayss/quantdesk/pkg/formulas"
)

const trailingStopRatio = 0.85

// Service is the persistent ledger: it keeps one Book per portfolio in
// memory, pushes every accepted mutation to storage in the same step, and
// serializes access so concurrent callers always observe a consistent book.
type Service struct {
	repo       *Repository
	bars       *marketdata.BarRepository
	securities *universe.SecurityRepository
	log        zerolog.Logger

	mu    sync.Mutex
	books map[string]*Book
}

// NewService creates a new ledger service
func NewService(repo *Repository, bars *marketdata.BarRepository, securities *universe.SecurityRepository, log zerolog.Logger) *Service {
	return &Service{
		repo:       repo,
		bars:       bars,
		securities: securities,
		log:        log.With().Str("service", "ledger").Logger(),
		books:      make(map[string]*Book),
	}
}

// book returns the cached in-memory book for a portfolio, loading it from
// storage on first access. Returns ErrNotInitialized when the portfolio has
// no cash row yet. Callers must hold s.mu.
func (s *Service) book(portfolio string) (*Book, error) {
	if b, ok := s.books[portfolio]; ok {
		return b, nil
	}

	state, err := s.repo.Load(portfolio)
	if err != nil {
		return nil, err
	}
	if state.Cash == nil {
		return nil, domain.ErrNotInitialized
	}

	b := NewBook(*state.Cash)
	for code, pos := range state.Positions {
		b.Positions[code] = pos
	}
	s.books[portfolio] = b
	return b, nil
}

// Initialize seeds a portfolio with starting capital, recorded as its first
// cash flow. Re-initializing an existing portfolio is rejected.
func (s *Service) Initialize(portfolio, date string, capital float64) error {
	if capital <= 0 {
		return fmt.Errorf("initial capital must be positive: %w", domain.ErrInvalidTrade)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.book(portfolio); err == nil {
		return fmt.Errorf("portfolio %s already initialized: %w", portfolio, domain.ErrInvalidTrade)
	} else if err != domain.ErrNotInitialized {
		return err
	}

	b := NewBook(capital)
	flow := domain.CashFlow{Portfolio: portfolio, Date: date, Amount: capital, Note: "initial capital"}
	if err := s.repo.SaveCashFlowAndState(flow, b.Cash, b.Positions); err != nil {
		return err
	}

	s.books[portfolio] = b
	s.log.Info().Str("portfolio", portfolio).Float64("capital", capital).Msg("Portfolio initialized")
	return nil
}

// ExecuteTrade validates and applies a trade, persisting the trade record and
// the resulting state atomically. On any failure the in-memory book is left
// exactly as it was.
func (s *Service) ExecuteTrade(portfolio, code, date string, side domain.Side, price, qty, fee float64) (domain.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.book(portfolio)
	if err != nil {
		return domain.Trade{}, err
	}

	candidate := b.Clone()
	trade, err := candidate.Apply(side, code, date, price, qty, fee)
	if err != nil {
		return domain.Trade{}, err
	}
	trade.Portfolio = portfolio

	if err := s.repo.SaveTradeAndState(trade, candidate.Cash, candidate.Positions); err != nil {
		return domain.Trade{}, err
	}

	s.books[portfolio] = candidate
	if side == domain.SideBuy {
		s.watchTraded(code)
	}
	s.log.Info().
		Str("portfolio", portfolio).
		Str("code", code).
		Str("side", string(side)).
		Float64("price", price).
		Float64("qty", qty).
		Msg("Trade executed")
	return trade, nil
}

// watchTraded adds a bought security to the watchlist so it keeps getting
// screened after entry. Failures are logged, never surfaced.
func (s *Service) watchTraded(code string) {
	name := code
	if sec, err := s.securities.GetByCode(code); err == nil && sec != nil {
		name = sec.Name
	}
	if err := s.securities.AddToWatchlist(code, name); err != nil {
		s.log.Warn().Err(err).Str("code", code).Msg("Failed to add traded security to watchlist")
	}
}

// RecordCashFlow applies a deposit (positive amount) or withdrawal (negative
// amount). Withdrawals exceeding the cash balance are rejected.
func (s *Service) RecordCashFlow(portfolio, date string, amount float64, note string) error {
	if date == "" {
		return domain.ErrInvalidTrade
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.book(portfolio)
	if err != nil {
		return err
	}

	candidate := b.Clone()
	if err := candidate.AddCash(amount); err != nil {
		return err
	}

	flow := domain.CashFlow{Portfolio: portfolio, Date: date, Amount: amount, Note: note}
	if err := s.repo.SaveCashFlowAndState(flow, candidate.Cash, candidate.Positions); err != nil {
		return err
	}

	s.books[portfolio] = candidate
	s.log.Info().Str("portfolio", portfolio).Float64("amount", amount).Msg("Cash flow recorded")
	return nil
}

// Cash returns the current cash balance.
func (s *Service) Cash(portfolio string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.book(portfolio)
	if err != nil {
		return 0, err
	}
	return b.Cash, nil
}

// Positions returns the open positions sorted by code.
func (s *Service) Positions(portfolio string) ([]domain.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.book(portfolio)
	if err != nil {
		return nil, err
	}

	positions := make([]domain.Position, 0, len(b.Positions))
	for _, pos := range b.Positions {
		pos.Portfolio = portfolio
		positions = append(positions, pos)
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i].Code < positions[j].Code })
	return positions, nil
}

// Value marks the portfolio at the supplied prices.
func (s *Service) Value(portfolio string, prices map[string]float64) (domain.Valuation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.book(portfolio)
	if err != nil {
		return domain.Valuation{}, err
	}
	return b.Value(prices)
}

// SetTargetPrice attaches a target price to an open position. A nil target
// clears it.
func (s *Service) SetTargetPrice(portfolio, code string, target *float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.book(portfolio)
	if err != nil {
		return err
	}

	pos, ok := b.Positions[code]
	if !ok {
		return domain.ErrInsufficientPosition
	}

	candidate := b.Clone()
	pos.TargetPrice = target
	candidate.Positions[code] = pos

	if err := s.repo.SaveState(portfolio, candidate.Cash, candidate.Positions); err != nil {
		return err
	}

	s.books[portfolio] = candidate
	return nil
}

// TradeHistory returns the trade log, newest first.
func (s *Service) TradeHistory(portfolio string, filter TradeFilter) ([]domain.Trade, error) {
	return s.repo.TradeHistory(portfolio, filter)
}

// CashFlows returns the cash-flow log, oldest first.
func (s *Service) CashFlows(portfolio string) ([]domain.CashFlow, error) {
	return s.repo.CashFlows(portfolio)
}

// Reset wipes all state for a portfolio.
func (s *Service) Reset(portfolio string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.Reset(portfolio); err != nil {
		return err
	}
	delete(s.books, portfolio)
	s.log.Warn().Str("portfolio", portfolio).Msg("Portfolio reset")
	return nil
}

// positionStartDate scans the trade log chronologically and returns the date
// the open position's cumulative quantity last crossed from zero to positive.
// Empty when the position is flat.
func (s *Service) positionStartDate(portfolio, code string) (string, error) {
	trades, err := s.repo.TradesAscending(portfolio)
	if err != nil {
		return "", err
	}

	cum := 0.0
	start := ""
	for _, t := range trades {
		if t.Code != code {
			continue
		}
		if t.Side == domain.SideBuy {
			prev := cum
			cum += t.Quantity
			if prev <= 1e-9 && cum > 0 {
				start = t.Date
			}
		} else {
			cum -= t.Quantity
			if cum <= 1e-9 {
				start = ""
			}
		}
	}
	return start, nil
}

// trailingStop is 15% below the highest close since the position opened.
func (s *Service) trailingStop(code, start, end string) *float64 {
	if start == "" || end == "" {
		return nil
	}
	maxClose, err := s.bars.MaxCloseBetween(code, start, end)
	if err != nil || maxClose == nil {
		return nil
	}
	stop := *maxClose * trailingStopRatio
	return &stop
}

// maStop is the latest 20-day simple moving average of closes up to end.
func (s *Service) maStop(code, end string) *float64 {
	if end == "" {
		return nil
	}
	bars, err := s.bars.GetBars(code, "", end)
	if err != nil || len(bars) == 0 {
		return nil
	}
	if len(bars) > 120 {
		bars = bars[len(bars)-120:]
	}
	closes := make([]float64, len(bars))
	for i, bar := range bars {
		closes[i] = bar.Close
	}
	return formulas.CalculateSMA(closes, 20)
}

// GetReport builds the full portfolio view: each position marked at its
// latest close with P&L, weight and stop reference prices. Positions whose
// security has no price data are reported unpriced rather than dropped.
func (s *Service) GetReport(portfolio string) (*Report, error) {
	positions, err := s.Positions(portfolio)
	if err != nil {
		return nil, err
	}

	cash, err := s.Cash(portfolio)
	if err != nil {
		return nil, err
	}

	report := &Report{Portfolio: portfolio, Cash: cash, Positions: make([]PositionReport, 0, len(positions))}
	if len(positions) == 0 {
		report.TotalValue = cash
		return report, nil
	}

	codes := make([]string, len(positions))
	for i, pos := range positions {
		codes[i] = pos.Code
	}

	closes, err := s.bars.LatestCloses(codes)
	if err != nil {
		return nil, err
	}
	latestDate, err := s.bars.LatestDate(codes)
	if err != nil {
		return nil, err
	}
	industries, err := s.securities.IndustryByCode(codes)
	if err != nil {
		return nil, err
	}

	for _, pos := range positions {
		pr := PositionReport{
			Code:        pos.Code,
			Industry:    industries[pos.Code],
			Quantity:    pos.Quantity,
			AvgCost:     pos.AvgCost,
			TargetPrice: pos.TargetPrice,
		}
		if sec, err := s.securities.GetByCode(pos.Code); err == nil && sec != nil {
			pr.Name = sec.Name
		}

		if price, ok := closes[pos.Code]; ok {
			mv := pos.Quantity * price
			pnl := (price - pos.AvgCost) * pos.Quantity
			pr.CurrentPrice = &price
			pr.MarketValue = &mv
			pr.PnL = &pnl
			if pos.AvgCost > 0 {
				pct := (price - pos.AvgCost) / pos.AvgCost
				pr.PnLPercent = &pct
			}
			report.InvestmentValue += mv
		}

		start, err := s.positionStartDate(portfolio, pos.Code)
		if err == nil {
			pr.TrailingStop = s.trailingStop(pos.Code, start, latestDate)
		}
		pr.MA20Stop = s.maStop(pos.Code, latestDate)

		report.Positions = append(report.Positions, pr)
	}

	report.TotalValue = report.Cash + report.InvestmentValue
	if report.TotalValue > 0 {
		for i := range report.Positions {
			if report.Positions[i].MarketValue != nil {
				w := *report.Positions[i].MarketValue / report.TotalValue
				report.Positions[i].Weight = &w
			}
		}
	}

	return report, nil
}
