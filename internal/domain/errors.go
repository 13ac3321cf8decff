package domain

import "errors"

// Sentinel errors for the core engine. Callers match with errors.Is; the
// wrapped message carries the offending values.
var (
	// ErrInvalidTrade rejects malformed trade inputs: non-positive price or
	// quantity, or a negative fee.
	ErrInvalidTrade = errors.New("invalid trade")

	// ErrInsufficientCash rejects a buy whose total cost exceeds available cash.
	ErrInsufficientCash = errors.New("insufficient cash")

	// ErrInsufficientPosition rejects a sell of more quantity than held.
	ErrInsufficientPosition = errors.New("insufficient position")

	// ErrMissingPrice is returned by valuation when a held security has no
	// supplied price. Callers must provide full coverage.
	ErrMissingPrice = errors.New("missing price")

	// ErrNoData is returned when a requested security or date range has no bars.
	ErrNoData = errors.New("no data")

	// ErrInsufficientHistory is returned when a risk computation lacks enough
	// return observations.
	ErrInsufficientHistory = errors.New("insufficient history")

	// ErrNotInitialized is returned by ledger operations before the portfolio
	// has been seeded with cash.
	ErrNotInitialized = errors.New("portfolio not initialized")
)
