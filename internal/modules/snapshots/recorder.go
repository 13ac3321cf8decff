package snapshots

import (
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/wayss/quantdesk/internal/domain"
	"github.com/wayss/quantdesk/internal/modules/ledger"
	"github.com/wayss/quantdesk/internal/modules/marketdata"
)

// Service records and rebuilds daily net-asset-value snapshots. Record marks
// the live book at the latest closes; Rebuild derives the whole history by
// replaying the trade and cash-flow logs against stored prices, so it is
// deterministic and safe to run any number of times.
type Service struct {
	repo   *Repository
	ledger *ledger.Service
	trades *ledger.Repository
	bars   *marketdata.BarRepository
	log    zerolog.Logger
}

// NewService creates a new snapshot service
func NewService(repo *Repository, ledgerSvc *ledger.Service, trades *ledger.Repository, bars *marketdata.BarRepository, log zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		ledger: ledgerSvc,
		trades: trades,
		bars:   bars,
		log:    log.With().Str("service", "snapshots").Logger(),
	}
}

// Record values the live book at the latest closes and writes one snapshot
// for the given date. Empty date defaults to today.
func (s *Service) Record(portfolio, date string) (*domain.Snapshot, error) {
	if date == "" {
		date = time.Now().Format("2006-01-02")
	}

	positions, err := s.ledger.Positions(portfolio)
	if err != nil {
		return nil, err
	}

	prices := make(map[string]float64)
	if len(positions) > 0 {
		codes := make([]string, len(positions))
		for i, pos := range positions {
			codes[i] = pos.Code
		}
		prices, err = s.bars.LatestCloses(codes)
		if err != nil {
			return nil, err
		}
	}

	valuation, err := s.ledger.Value(portfolio, prices)
	if err != nil {
		return nil, err
	}

	snap := domain.Snapshot{
		Portfolio:       portfolio,
		Date:            date,
		TotalValue:      valuation.TotalValue,
		Cash:            valuation.Cash,
		InvestmentValue: valuation.InvestmentValue,
	}
	if err := s.repo.Save(snap); err != nil {
		return nil, err
	}

	s.log.Info().Str("portfolio", portfolio).Str("date", date).
		Float64("total_value", snap.TotalValue).Msg("Snapshot recorded")
	return &snap, nil
}

// Rebuild regenerates snapshots for every trading date in [start, end] by
// replaying the logs. Existing rows for those dates are replaced. Returns the
// number of days written.
func (s *Service) Rebuild(portfolio, start, end string) (int, error) {
	trades, err := s.trades.TradesAscending(portfolio)
	if err != nil {
		return 0, err
	}
	if len(trades) == 0 {
		return 0, nil
	}

	flows, err := s.trades.CashFlows(portfolio)
	if err != nil {
		return 0, err
	}

	if start == "" {
		start = trades[0].Date
		if len(flows) > 0 && flows[0].Date < start {
			start = flows[0].Date
		}
	}
	if end == "" {
		end = time.Now().Format("2006-01-02")
	}

	codes := make(map[string]bool)
	for _, t := range trades {
		codes[t.Code] = true
	}

	// One price series per traded code, plus the union of their trading
	// dates as the snapshot calendar.
	series := make(map[string][]domain.Bar)
	dateSet := make(map[string]bool)
	for code := range codes {
		bars, err := s.bars.GetBars(code, "", end)
		if err != nil {
			return 0, err
		}
		series[code] = bars
		for _, bar := range bars {
			if bar.Date >= start && bar.Date <= end {
				dateSet[bar.Date] = true
			}
		}
	}
	if len(dateSet) == 0 {
		return 0, nil
	}

	dates := make([]string, 0, len(dateSet))
	for d := range dateSet {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	// Replay state.
	cash := 0.0
	positions := make(map[string]float64)
	cursor := make(map[string]int)
	lastClose := make(map[string]float64)
	tradeIdx, flowIdx := 0, 0

	// Apply everything dated before the first calendar day.
	applyThrough := func(date string) {
		for flowIdx < len(flows) && flows[flowIdx].Date <= date {
			cash += flows[flowIdx].Amount
			flowIdx++
		}
		for tradeIdx < len(trades) && trades[tradeIdx].Date <= date {
			t := trades[tradeIdx]
			if t.Side == domain.SideBuy {
				cash -= t.Price*t.Quantity + t.Fee
				positions[t.Code] += t.Quantity
			} else {
				cash += t.Price*t.Quantity - t.Fee
				positions[t.Code] -= t.Quantity
				if positions[t.Code] < 1e-9 {
					delete(positions, t.Code)
				}
			}
			tradeIdx++
		}
	}

	snaps := make([]domain.Snapshot, 0, len(dates))
	for _, date := range dates {
		applyThrough(date)

		// Advance each price cursor and carry the last known close
		// forward across gaps.
		for code, bars := range series {
			i := cursor[code]
			for i < len(bars) && bars[i].Date <= date {
				lastClose[code] = bars[i].Close
				i++
			}
			cursor[code] = i
		}

		investment := 0.0
		for code, qty := range positions {
			if price, ok := lastClose[code]; ok {
				investment += qty * price
			}
		}

		snaps = append(snaps, domain.Snapshot{
			Portfolio:       portfolio,
			Date:            date,
			TotalValue:      cash + investment,
			Cash:            cash,
			InvestmentValue: investment,
		})
	}

	if err := s.repo.SaveMany(snaps); err != nil {
		return 0, err
	}

	s.log.Info().Str("portfolio", portfolio).Int("days", len(snaps)).Msg("Snapshots rebuilt")
	return len(snaps), nil
}

// History returns stored snapshots ordered by date ascending.
func (s *Service) History(portfolio, start, end string) ([]domain.Snapshot, error) {
	return s.repo.Get(portfolio, start, end)
}

// Latest returns the most recent snapshot, or nil when none exist.
func (s *Service) Latest(portfolio string) (*domain.Snapshot, error) {
	return s.repo.Latest(portfolio)
}
