package ledger

import (
	"math"

	"github.com/wayss/quantdesk/internal/domain"
)

// Book is the in-memory ledger for one portfolio: a cash balance plus open
// positions keyed by security code. All mutations validate first, so a
// rejected operation leaves the book untouched. Book does no persistence and
// no locking; Service wraps it with both, and the backtest engine uses it
// bare as its private ledger.
type Book struct {
	Cash      float64
	Positions map[string]domain.Position
}

// NewBook creates a book seeded with an initial cash balance.
func NewBook(initialCash float64) *Book {
	return &Book{
		Cash:      initialCash,
		Positions: make(map[string]domain.Position),
	}
}

// validateTrade checks the fields every trade must satisfy regardless of side.
func validateTrade(code, date string, price, qty, fee float64) error {
	if code == "" || code == domain.CashCode {
		return domain.ErrInvalidTrade
	}
	if date == "" {
		return domain.ErrInvalidTrade
	}
	if price <= 0 || qty <= 0 || fee < 0 {
		return domain.ErrInvalidTrade
	}
	return nil
}

// Buy debits cash by price*qty+fee and blends the lot into the position at
// a volume-weighted average cost. The fee is not capitalized into avg cost.
func (b *Book) Buy(code, date string, price, qty, fee float64) (domain.Trade, error) {
	if err := validateTrade(code, date, price, qty, fee); err != nil {
		return domain.Trade{}, err
	}

	cost := price*qty + fee
	if b.Cash < cost {
		return domain.Trade{}, domain.ErrInsufficientCash
	}

	b.Cash -= cost
	pos, ok := b.Positions[code]
	if ok {
		totalQty := pos.Quantity + qty
		pos.AvgCost = (pos.AvgCost*pos.Quantity + price*qty) / totalQty
		pos.Quantity = totalQty
	} else {
		pos = domain.Position{Code: code, Quantity: qty, AvgCost: price}
	}
	b.Positions[code] = pos

	return domain.Trade{
		Code:     code,
		Date:     date,
		Side:     domain.SideBuy,
		Price:    price,
		Quantity: qty,
		Fee:      fee,
	}, nil
}

// Sell credits cash with price*qty-fee and reduces the position. Average
// cost is unchanged by sells; a position sold down to zero is removed.
func (b *Book) Sell(code, date string, price, qty, fee float64) (domain.Trade, error) {
	if err := validateTrade(code, date, price, qty, fee); err != nil {
		return domain.Trade{}, err
	}

	pos, ok := b.Positions[code]
	if !ok || pos.Quantity < qty {
		return domain.Trade{}, domain.ErrInsufficientPosition
	}

	b.Cash += price*qty - fee
	pos.Quantity -= qty
	if pos.Quantity <= 1e-9 {
		delete(b.Positions, code)
	} else {
		b.Positions[code] = pos
	}

	return domain.Trade{
		Code:     code,
		Date:     date,
		Side:     domain.SideSell,
		Price:    price,
		Quantity: qty,
		Fee:      fee,
	}, nil
}

// Apply routes a trade by side.
func (b *Book) Apply(side domain.Side, code, date string, price, qty, fee float64) (domain.Trade, error) {
	switch side {
	case domain.SideBuy:
		return b.Buy(code, date, price, qty, fee)
	case domain.SideSell:
		return b.Sell(code, date, price, qty, fee)
	default:
		return domain.Trade{}, domain.ErrInvalidTrade
	}
}

// AddCash applies a deposit (positive) or withdrawal (negative). A
// withdrawal larger than the balance is rejected.
func (b *Book) AddCash(amount float64) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return domain.ErrInvalidTrade
	}
	if b.Cash+amount < 0 {
		return domain.ErrInsufficientCash
	}
	b.Cash += amount
	return nil
}

// Value marks every position at the supplied prices. Every held code must be
// priced; a missing price fails the whole valuation rather than silently
// undercounting.
func (b *Book) Value(prices map[string]float64) (domain.Valuation, error) {
	investment := 0.0
	for code, pos := range b.Positions {
		price, ok := prices[code]
		if !ok {
			return domain.Valuation{}, domain.ErrMissingPrice
		}
		investment += pos.Quantity * price
	}
	return domain.Valuation{
		TotalValue:      b.Cash + investment,
		Cash:            b.Cash,
		InvestmentValue: investment,
	}, nil
}

// Clone returns a deep copy of the book.
func (b *Book) Clone() *Book {
	cp := NewBook(b.Cash)
	for code, pos := range b.Positions {
		cp.Positions[code] = pos
	}
	return cp
}
