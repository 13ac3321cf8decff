package backtest

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/wayss/quantdesk/internal/domain"
	"github.com/wayss/quantdesk/internal/modules/ledger"
	"github.com/wayss/quantdesk/internal/modules/marketdata"
	"github.com/wayss/quantdesk/internal/modules/strategies"
)

// Simulator replays a strategy over stored daily history against a private
// ledger. Each run owns its ledger exclusively, so independent runs are safe
// to execute concurrently.
type Simulator struct {
	registry *strategies.Registry
	bars     *marketdata.BarRepository
	log      zerolog.Logger

	mu   sync.RWMutex
	runs map[string]*Run
}

// NewSimulator creates a new backtest simulator
func NewSimulator(registry *strategies.Registry, bars *marketdata.BarRepository, log zerolog.Logger) *Simulator {
	return &Simulator{
		registry: registry,
		bars:     bars,
		log:      log.With().Str("service", "backtest").Logger(),
		runs:     make(map[string]*Run),
	}
}

// Run executes one backtest and retains the result for later retrieval.
func (s *Simulator) Run(cfg RunConfig) (*Run, error) {
	strategy, err := s.registry.Get(cfg.Strategy)
	if err != nil {
		return nil, err
	}
	if cfg.InitialCash <= 0 {
		return nil, fmt.Errorf("initial cash must be positive: %w", domain.ErrInvalidTrade)
	}
	if cfg.MaxPositions <= 0 {
		return nil, fmt.Errorf("max positions must be positive: %w", domain.ErrInvalidTrade)
	}

	minBars := cfg.MinBars
	if minBars < 1 {
		minBars = 1
	}

	run := &Run{
		ID:        uuid.New().String(),
		Config:    cfg,
		StartedAt: time.Now(),
	}

	// Load history and exclude codes that cannot support the strategy's
	// indicator windows.
	series := make(map[string][]domain.Bar)
	for _, code := range cfg.Codes {
		bars, err := s.bars.GetBars(code, cfg.Start, cfg.End)
		if err == domain.ErrNoData {
			run.SkippedCodes = append(run.SkippedCodes, code)
			continue
		}
		if err != nil {
			return nil, err
		}
		if len(bars) < minBars {
			run.SkippedCodes = append(run.SkippedCodes, code)
			continue
		}
		series[code] = bars
		run.IncludedCodes = append(run.IncludedCodes, code)
	}
	sort.Strings(run.IncludedCodes)
	sort.Strings(run.SkippedCodes)

	calendar := tradingCalendar(series)
	if len(calendar) == 0 {
		run.EquityCurve = []EquityPoint{}
		run.FinishedAt = time.Now()
		s.store(run)
		s.log.Info().Str("run", run.ID).Str("strategy", cfg.Strategy).Msg("Backtest had no trading dates")
		return run, nil
	}

	book := ledger.NewBook(cfg.InitialCash)
	cursor := make(map[string]int)
	lastClose := make(map[string]float64)
	openDates := make(map[string]string)
	openPrices := make(map[string]float64)

	for _, date := range calendar {
		history := make(map[string][]domain.Bar, len(series))
		for _, code := range run.IncludedCodes {
			bars := series[code]
			i := cursor[code]
			for i < len(bars) && bars[i].Date <= date {
				lastClose[code] = bars[i].Close
				i++
			}
			cursor[code] = i
			history[code] = bars[:i]
		}

		ctx := strategies.SignalContext{
			Date:      date,
			History:   history,
			Positions: book.Positions,
			Params:    cfg.Params,
		}
		signals, err := strategy.GenerateSignals(ctx)
		if err != nil {
			return nil, fmt.Errorf("strategy %s failed on %s: %w", cfg.Strategy, date, err)
		}

		s.applySignals(run, book, signals, history, date, cfg, openDates, openPrices)

		valuation, err := book.Value(lastClose)
		if err != nil {
			return nil, err
		}
		run.EquityCurve = append(run.EquityCurve, EquityPoint{Date: date, Value: valuation.TotalValue})
	}

	s.finalize(run, cfg)
	run.FinishedAt = time.Now()
	s.store(run)

	s.log.Info().Str("run", run.ID).Str("strategy", cfg.Strategy).
		Int("trades", len(run.Trades)).Int("skipped_signals", len(run.Skipped)).
		Int("days", len(run.EquityCurve)).Msg("Backtest complete")
	return run, nil
}

// applySignals turns one date's signals into trades. Exits run first so
// freed slots and cash are available to entries; entries are processed in
// code order so capacity ties break deterministically.
func (s *Simulator) applySignals(run *Run, book *ledger.Book, signals []domain.Signal,
	history map[string][]domain.Bar, date string, cfg RunConfig,
	openDates map[string]string, openPrices map[string]float64) {

	var entries, exits []domain.Signal
	for _, sig := range signals {
		switch sig.Type {
		case domain.SignalEntry, domain.SignalBuy:
			entries = append(entries, sig)
		case domain.SignalExit, domain.SignalSell:
			exits = append(exits, sig)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Code < entries[j].Code })
	sort.Slice(exits, func(i, j int) bool { return exits[i].Code < exits[j].Code })

	for _, sig := range exits {
		pos, held := book.Positions[sig.Code]
		if !held {
			run.Skipped = append(run.Skipped, SkippedSignal{Date: date, Code: sig.Code, Type: sig.Type, Reason: "no open position"})
			continue
		}
		price, ok := closeOn(history[sig.Code], date)
		if !ok {
			run.Skipped = append(run.Skipped, SkippedSignal{Date: date, Code: sig.Code, Type: sig.Type, Reason: "no price on date"})
			continue
		}

		qty := pos.Quantity
		avgCost := pos.AvgCost
		fee := price * qty * cfg.FeeRate
		trade, err := book.Sell(sig.Code, date, price, qty, fee)
		if err != nil {
			run.Skipped = append(run.Skipped, SkippedSignal{Date: date, Code: sig.Code, Type: sig.Type, Reason: err.Error()})
			continue
		}
		run.Trades = append(run.Trades, trade)
		run.ClosedTrades = append(run.ClosedTrades, ClosedTrade{
			Code:      sig.Code,
			OpenDate:  openDates[sig.Code],
			CloseDate: date,
			Quantity:  qty,
			OpenPrice: openPrices[sig.Code],
			Profit:    (price-avgCost)*qty - fee,
		})
		delete(openDates, sig.Code)
		delete(openPrices, sig.Code)
	}

	for _, sig := range entries {
		if _, held := book.Positions[sig.Code]; held {
			run.Skipped = append(run.Skipped, SkippedSignal{Date: date, Code: sig.Code, Type: sig.Type, Reason: "already held"})
			continue
		}
		open := len(book.Positions)
		if open >= cfg.MaxPositions {
			run.Skipped = append(run.Skipped, SkippedSignal{Date: date, Code: sig.Code, Type: sig.Type, Reason: "max positions reached"})
			continue
		}
		price, ok := closeOn(history[sig.Code], date)
		if !ok {
			run.Skipped = append(run.Skipped, SkippedSignal{Date: date, Code: sig.Code, Type: sig.Type, Reason: "no price on date"})
			continue
		}

		// Remaining-cash-per-slot sizing, whole shares only.
		slots := cfg.MaxPositions - open
		cashPerSlot := book.Cash / float64(slots)
		qty := float64(int(cashPerSlot / price))
		if qty <= 0 {
			run.Skipped = append(run.Skipped, SkippedSignal{Date: date, Code: sig.Code, Type: sig.Type, Reason: "insufficient cash"})
			continue
		}

		fee := price * qty * cfg.FeeRate
		trade, err := book.Buy(sig.Code, date, price, qty, fee)
		if err != nil {
			run.Skipped = append(run.Skipped, SkippedSignal{Date: date, Code: sig.Code, Type: sig.Type, Reason: err.Error()})
			continue
		}
		run.Trades = append(run.Trades, trade)
		openDates[sig.Code] = date
		openPrices[sig.Code] = price
	}
}

// finalize computes metrics and the benchmark comparison.
func (s *Simulator) finalize(run *Run, cfg RunConfig) {
	values := make([]float64, len(run.EquityCurve))
	for i, p := range run.EquityCurve {
		values[i] = p.Value
	}
	run.Metrics = computeMetrics(values, run.ClosedTrades)

	if cfg.Benchmark == "" || len(run.EquityCurve) == 0 {
		return
	}

	first := run.EquityCurve[0].Date
	bench, err := s.bars.GetIndexBars(cfg.Benchmark, first, cfg.End)
	if err != nil || len(bench) == 0 {
		if err != nil && err != domain.ErrNoData {
			s.log.Warn().Err(err).Str("benchmark", cfg.Benchmark).Msg("Benchmark series unavailable")
		}
		return
	}

	base := bench[0].Close
	if base <= 0 {
		return
	}
	for _, bar := range bench {
		run.BenchmarkCurve = append(run.BenchmarkCurve, EquityPoint{
			Date:  bar.Date,
			Value: bar.Close / base * cfg.InitialCash,
		})
	}

	benchReturn := bench[len(bench)-1].Close/base - 1
	run.Metrics.BenchmarkReturn = &benchReturn
	if run.Metrics.TotalReturn != nil {
		excess := *run.Metrics.TotalReturn - benchReturn
		run.Metrics.ExcessReturn = &excess
	}
}

// RunMany executes independent backtests concurrently, one goroutine per
// run. Results (and per-run errors) come back in input order.
func (s *Simulator) RunMany(cfgs []RunConfig) ([]*Run, []error) {
	runs := make([]*Run, len(cfgs))
	errs := make([]error, len(cfgs))

	var wg sync.WaitGroup
	for i, cfg := range cfgs {
		wg.Add(1)
		go func(i int, cfg RunConfig) {
			defer wg.Done()
			runs[i], errs[i] = s.Run(cfg)
		}(i, cfg)
	}
	wg.Wait()

	return runs, errs
}

// Get returns a retained run by id, or nil.
func (s *Simulator) Get(id string) *Run {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.runs[id]
}

// List returns retained run ids, newest first.
func (s *Simulator) List() []*Run {
	s.mu.RLock()
	defer s.mu.RUnlock()
	runs := make([]*Run, 0, len(s.runs))
	for _, r := range s.runs {
		runs = append(runs, r)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].StartedAt.After(runs[j].StartedAt) })
	return runs
}

func (s *Simulator) store(run *Run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = run
}

// tradingCalendar is the sorted union of bar dates across all included
// series.
func tradingCalendar(series map[string][]domain.Bar) []string {
	set := make(map[string]bool)
	for _, bars := range series {
		for _, bar := range bars {
			set[bar.Date] = true
		}
	}
	dates := make([]string, 0, len(set))
	for d := range set {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates
}

// closeOn returns the closing price on exactly the given date. False means
// the security did not trade that day, and trading it is disallowed.
func closeOn(bars []domain.Bar, date string) (float64, bool) {
	if len(bars) == 0 {
		return 0, false
	}
	last := bars[len(bars)-1]
	if last.Date != date {
		return 0, false
	}
	return last.Close, true
}
