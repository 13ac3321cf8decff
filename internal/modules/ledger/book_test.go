package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wayss/quantdesk/internal/domain"
)

func TestBook_BuyThenPartialSell(t *testing.T) {
	b := NewBook(100000)

	_, err := b.Buy("600519.SH", "2024-01-02", 50, 100, 5)
	require.NoError(t, err)
	assert.InDelta(t, 94995.0, b.Cash, 1e-9)
	require.Contains(t, b.Positions, "600519.SH")
	assert.Equal(t, 100.0, b.Positions["600519.SH"].Quantity)
	assert.Equal(t, 50.0, b.Positions["600519.SH"].AvgCost)

	_, err = b.Sell("600519.SH", "2024-01-03", 60, 40, 3)
	require.NoError(t, err)
	assert.InDelta(t, 97392.0, b.Cash, 1e-9)
	assert.Equal(t, 60.0, b.Positions["600519.SH"].Quantity)
	// Sells never move average cost
	assert.Equal(t, 50.0, b.Positions["600519.SH"].AvgCost)
}

func TestBook_BuyBlendsAverageCost(t *testing.T) {
	b := NewBook(100000)

	_, err := b.Buy("000001.SZ", "2024-01-02", 10, 100, 0)
	require.NoError(t, err)
	_, err = b.Buy("000001.SZ", "2024-01-03", 20, 100, 0)
	require.NoError(t, err)

	pos := b.Positions["000001.SZ"]
	assert.Equal(t, 200.0, pos.Quantity)
	assert.InDelta(t, 15.0, pos.AvgCost, 1e-9)
}

func TestBook_SellToZeroRemovesPosition(t *testing.T) {
	b := NewBook(10000)

	_, err := b.Buy("000001.SZ", "2024-01-02", 10, 100, 0)
	require.NoError(t, err)
	_, err = b.Sell("000001.SZ", "2024-01-03", 12, 100, 0)
	require.NoError(t, err)

	assert.NotContains(t, b.Positions, "000001.SZ")
	assert.InDelta(t, 10200.0, b.Cash, 1e-9)
}

func TestBook_RejectsInvalidTrades(t *testing.T) {
	tests := []struct {
		name  string
		code  string
		date  string
		price float64
		qty   float64
		fee   float64
	}{
		{"zero price", "000001.SZ", "2024-01-02", 0, 100, 0},
		{"negative price", "000001.SZ", "2024-01-02", -5, 100, 0},
		{"zero quantity", "000001.SZ", "2024-01-02", 10, 0, 0},
		{"negative fee", "000001.SZ", "2024-01-02", 10, 100, -1},
		{"empty code", "", "2024-01-02", 10, 100, 0},
		{"empty date", "000001.SZ", "", 10, 100, 0},
		{"cash sentinel code", "CASH", "2024-01-02", 10, 100, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBook(100000)
			_, err := b.Buy(tt.code, tt.date, tt.price, tt.qty, tt.fee)
			assert.ErrorIs(t, err, domain.ErrInvalidTrade)
			assert.Equal(t, 100000.0, b.Cash)
			assert.Empty(t, b.Positions)
		})
	}
}

func TestBook_RejectsOverdraft(t *testing.T) {
	b := NewBook(1000)

	_, err := b.Buy("000001.SZ", "2024-01-02", 50, 100, 5)
	assert.ErrorIs(t, err, domain.ErrInsufficientCash)
	assert.Equal(t, 1000.0, b.Cash)
	assert.Empty(t, b.Positions)
}

func TestBook_RejectsOverselling(t *testing.T) {
	b := NewBook(10000)

	_, err := b.Sell("000001.SZ", "2024-01-02", 10, 1, 0)
	assert.ErrorIs(t, err, domain.ErrInsufficientPosition)

	_, err = b.Buy("000001.SZ", "2024-01-02", 10, 100, 0)
	require.NoError(t, err)

	_, err = b.Sell("000001.SZ", "2024-01-03", 10, 101, 0)
	assert.ErrorIs(t, err, domain.ErrInsufficientPosition)
	assert.Equal(t, 100.0, b.Positions["000001.SZ"].Quantity)
}

func TestBook_AddCash(t *testing.T) {
	b := NewBook(1000)

	require.NoError(t, b.AddCash(500))
	assert.Equal(t, 1500.0, b.Cash)

	require.NoError(t, b.AddCash(-1500))
	assert.Equal(t, 0.0, b.Cash)

	err := b.AddCash(-1)
	assert.ErrorIs(t, err, domain.ErrInsufficientCash)
	assert.Equal(t, 0.0, b.Cash)
}

func TestBook_Value(t *testing.T) {
	b := NewBook(100000)
	_, err := b.Buy("000001.SZ", "2024-01-02", 10, 100, 0)
	require.NoError(t, err)
	_, err = b.Buy("600519.SH", "2024-01-02", 50, 10, 0)
	require.NoError(t, err)

	v, err := b.Value(map[string]float64{"000001.SZ": 12, "600519.SH": 55})
	require.NoError(t, err)
	assert.InDelta(t, 1200+550, v.InvestmentValue, 1e-9)
	assert.InDelta(t, b.Cash, v.Cash, 1e-9)
	assert.InDelta(t, v.Cash+v.InvestmentValue, v.TotalValue, 1e-9)
}

func TestBook_ValueMissingPrice(t *testing.T) {
	b := NewBook(100000)
	_, err := b.Buy("000001.SZ", "2024-01-02", 10, 100, 0)
	require.NoError(t, err)

	_, err = b.Value(map[string]float64{})
	assert.ErrorIs(t, err, domain.ErrMissingPrice)
}

func TestBook_ValueEmptyBook(t *testing.T) {
	b := NewBook(5000)

	v, err := b.Value(nil)
	require.NoError(t, err)
	assert.Equal(t, 5000.0, v.TotalValue)
	assert.Equal(t, 0.0, v.InvestmentValue)
}
