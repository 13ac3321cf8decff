package strategies

import (
	"github.com/rs/zerolog"

	"github.com/wayss/quantdesk/internal/domain"
	"github.com/wayss/quantdesk/internal/modules/marketdata"
	"github.com/wayss/quantdesk/internal/modules/universe"
)

// ScreenResult is one security that produced an entry signal on its latest
// bar.
type ScreenResult struct {
	Code       string `json:"code"`
	Name       string `json:"name,omitempty"`
	SignalDate string `json:"signal_date"`
}

// Service runs strategies over the watchlist for stock screening and
// archives what they emit.
type Service struct {
	registry   *Registry
	bars       *marketdata.BarRepository
	securities *universe.SecurityRepository
	signals    *SignalRepository
	minBars    int
	log        zerolog.Logger
}

// NewService creates a new screening service
func NewService(registry *Registry, bars *marketdata.BarRepository, securities *universe.SecurityRepository, signals *SignalRepository, minBars int, log zerolog.Logger) *Service {
	return &Service{
		registry:   registry,
		bars:       bars,
		securities: securities,
		signals:    signals,
		minBars:    minBars,
		log:        log.With().Str("service", "strategies").Logger(),
	}
}

// Registry returns the strategy registry.
func (s *Service) Registry() *Registry { return s.registry }

// Screen evaluates one strategy against each candidate code independently
// and returns those whose latest bar produced an entry signal. Codes with
// too little history are skipped, not failed.
func (s *Service) Screen(strategyName string, codes []string, params Params) ([]ScreenResult, error) {
	strategy, err := s.registry.Get(strategyName)
	if err != nil {
		return nil, err
	}

	results := make([]ScreenResult, 0)
	for _, code := range codes {
		bars, err := s.bars.GetBars(code, "", "")
		if err == domain.ErrNoData {
			continue
		}
		if err != nil {
			return nil, err
		}
		if len(bars) < s.minBars {
			continue
		}

		asOf := bars[len(bars)-1].Date
		ctx := SignalContext{
			Date:      asOf,
			History:   map[string][]domain.Bar{code: bars},
			Positions: nil,
			Params:    params,
		}

		signals, err := strategy.GenerateSignals(ctx)
		if err != nil {
			s.log.Warn().Err(err).Str("strategy", strategyName).Str("code", code).Msg("Screening failed")
			continue
		}

		for _, sig := range signals {
			if sig.Type != domain.SignalEntry {
				continue
			}
			result := ScreenResult{Code: code, SignalDate: asOf}
			if sec, err := s.securities.GetByCode(code); err == nil && sec != nil {
				result.Name = sec.Name
			}
			results = append(results, result)

			if err := s.signals.Save(sig); err != nil {
				s.log.Warn().Err(err).Str("code", code).Msg("Failed to archive signal")
			}
			break
		}
	}

	s.log.Info().Str("strategy", strategyName).Int("candidates", len(codes)).
		Int("selected", len(results)).Msg("Screening complete")
	return results, nil
}

// ScreenWatchlist screens every code on the watchlist.
func (s *Service) ScreenWatchlist(strategyName string, params Params) ([]ScreenResult, error) {
	codes, err := s.securities.Watchlist()
	if err != nil {
		return nil, err
	}
	return s.Screen(strategyName, codes, params)
}

// Signals returns archived signals for a strategy.
func (s *Service) Signals(strategy, start, end string) ([]domain.Signal, error) {
	return s.signals.Get(strategy, start, end)
}
