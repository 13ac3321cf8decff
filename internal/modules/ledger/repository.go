package ledger

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/wayss/quantdesk/internal/database"
	"github.com/wayss/quantdesk/internal/domain"
)

// Repository persists ledger state: position rows, the append-only trade and
// cash-flow logs. Cash is stored as a reserved sentinel row in the portfolio
// table (code=CASH, qty=1, cost=balance) — that convention stays inside this
// file; everything above it sees cash as a scalar.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new ledger repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "ledger").Logger(),
	}
}

// State is the persisted portfolio state as loaded from storage.
// Cash is nil when the portfolio has never been initialized.
type State struct {
	Cash      *float64
	Positions map[string]domain.Position
}

// Load reads the full position set for a portfolio, translating the CASH
// sentinel row back into a scalar balance.
func (r *Repository) Load(portfolio string) (*State, error) {
	rows, err := r.db.Query(`SELECT code, qty, cost, target_price
		FROM portfolio WHERE portfolio_name = ?`, portfolio)
	if err != nil {
		return nil, fmt.Errorf("failed to query portfolio %s: %w", portfolio, err)
	}
	defer rows.Close()

	state := &State{Positions: make(map[string]domain.Position)}
	for rows.Next() {
		var code string
		var qty, cost float64
		var target sql.NullFloat64
		if err := rows.Scan(&code, &qty, &cost, &target); err != nil {
			return nil, fmt.Errorf("failed to scan portfolio row: %w", err)
		}

		if code == domain.CashCode {
			balance := cost
			state.Cash = &balance
			continue
		}

		pos := domain.Position{
			Portfolio: portfolio,
			Code:      code,
			Quantity:  qty,
			AvgCost:   cost,
		}
		if target.Valid {
			t := target.Float64
			pos.TargetPrice = &t
		}
		state.Positions[code] = pos
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating portfolio rows: %w", err)
	}

	return state, nil
}

// replaceState rewrites all position rows for a portfolio inside tx,
// including the CASH sentinel row.
func replaceState(tx *sql.Tx, portfolio string, cash float64, positions map[string]domain.Position) error {
	if _, err := tx.Exec(`DELETE FROM portfolio WHERE portfolio_name = ?`, portfolio); err != nil {
		return fmt.Errorf("failed to clear portfolio rows: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO portfolio (portfolio_name, code, qty, cost, target_price)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare portfolio insert: %w", err)
	}
	defer stmt.Close()

	for code, pos := range positions {
		var target interface{}
		if pos.TargetPrice != nil {
			target = *pos.TargetPrice
		}
		if _, err := stmt.Exec(portfolio, code, pos.Quantity, pos.AvgCost, target); err != nil {
			return fmt.Errorf("failed to insert position %s: %w", code, err)
		}
	}

	// Cash sentinel row: qty fixed at 1, cost holds the balance.
	if _, err := stmt.Exec(portfolio, domain.CashCode, 1.0, cash, nil); err != nil {
		return fmt.Errorf("failed to insert cash row: %w", err)
	}

	return nil
}

// SaveState rewrites the portfolio state in one transaction.
func (r *Repository) SaveState(portfolio string, cash float64, positions map[string]domain.Position) error {
	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		return replaceState(tx, portfolio, cash, positions)
	})
}

// SaveTradeAndState appends a trade and rewrites the resulting state in the
// same transaction, so a crash can never leave the log and the state apart.
func (r *Repository) SaveTradeAndState(trade domain.Trade, cash float64, positions map[string]domain.Position) error {
	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`INSERT INTO trades (date, portfolio_name, code, side, price, qty, fee)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			trade.Date, trade.Portfolio, trade.Code, string(trade.Side), trade.Price, trade.Quantity, trade.Fee); err != nil {
			return fmt.Errorf("failed to append trade: %w", err)
		}
		return replaceState(tx, trade.Portfolio, cash, positions)
	})
}

// SaveCashFlowAndState appends a cash flow and rewrites the resulting state
// in the same transaction.
func (r *Repository) SaveCashFlowAndState(flow domain.CashFlow, cash float64, positions map[string]domain.Position) error {
	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`INSERT INTO cash_flows (portfolio_name, date, amount, note)
			VALUES (?, ?, ?, ?)`,
			flow.Portfolio, flow.Date, flow.Amount, flow.Note); err != nil {
			return fmt.Errorf("failed to append cash flow: %w", err)
		}
		return replaceState(tx, flow.Portfolio, cash, positions)
	})
}

// TradeFilter narrows TradeHistory results. Zero values mean "no filter".
type TradeFilter struct {
	Code  string
	Start string
	End   string
}

// TradeHistory returns the trade log for a portfolio, newest first.
func (r *Repository) TradeHistory(portfolio string, filter TradeFilter) ([]domain.Trade, error) {
	query := `SELECT trade_id, date, portfolio_name, code, side, price, qty, fee
		FROM trades WHERE portfolio_name = ?`
	args := []interface{}{portfolio}

	if filter.Code != "" {
		query += " AND code = ?"
		args = append(args, filter.Code)
	}
	if filter.Start != "" {
		query += " AND date >= ?"
		args = append(args, filter.Start)
	}
	if filter.End != "" {
		query += " AND date <= ?"
		args = append(args, filter.End)
	}
	query += " ORDER BY date DESC, trade_id DESC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	var trades []domain.Trade
	for rows.Next() {
		var t domain.Trade
		var side string
		if err := rows.Scan(&t.ID, &t.Date, &t.Portfolio, &t.Code, &side, &t.Price, &t.Quantity, &t.Fee); err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		t.Side = domain.Side(side)
		trades = append(trades, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trades: %w", err)
	}

	return trades, nil
}

// TradesAscending returns the full trade log oldest first, for replay.
func (r *Repository) TradesAscending(portfolio string) ([]domain.Trade, error) {
	rows, err := r.db.Query(`SELECT trade_id, date, portfolio_name, code, side, price, qty, fee
		FROM trades WHERE portfolio_name = ? ORDER BY date, trade_id`, portfolio)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	var trades []domain.Trade
	for rows.Next() {
		var t domain.Trade
		var side string
		if err := rows.Scan(&t.ID, &t.Date, &t.Portfolio, &t.Code, &side, &t.Price, &t.Quantity, &t.Fee); err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		t.Side = domain.Side(side)
		trades = append(trades, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trades: %w", err)
	}

	return trades, nil
}

// CashFlows returns all cash flows for a portfolio ordered by date ascending.
func (r *Repository) CashFlows(portfolio string) ([]domain.CashFlow, error) {
	rows, err := r.db.Query(`SELECT id, portfolio_name, date, amount, note
		FROM cash_flows WHERE portfolio_name = ? ORDER BY date, id`, portfolio)
	if err != nil {
		return nil, fmt.Errorf("failed to query cash flows: %w", err)
	}
	defer rows.Close()

	var flows []domain.CashFlow
	for rows.Next() {
		var f domain.CashFlow
		var note sql.NullString
		if err := rows.Scan(&f.ID, &f.Portfolio, &f.Date, &f.Amount, &note); err != nil {
			return nil, fmt.Errorf("failed to scan cash flow: %w", err)
		}
		f.Note = note.String
		flows = append(flows, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cash flows: %w", err)
	}

	return flows, nil
}

// Reset removes all state for a portfolio: positions, trades and cash flows.
func (r *Repository) Reset(portfolio string) error {
	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		for _, stmt := range []string{
			`DELETE FROM trades WHERE portfolio_name = ?`,
			`DELETE FROM cash_flows WHERE portfolio_name = ?`,
			`DELETE FROM portfolio WHERE portfolio_name = ?`,
		} {
			if _, err := tx.Exec(stmt, portfolio); err != nil {
				return fmt.Errorf("failed to reset portfolio %s: %w", portfolio, err)
			}
		}
		return nil
	})
}

// Portfolios lists the distinct portfolio names with any stored state.
func (r *Repository) Portfolios() ([]string, error) {
	rows, err := r.db.Query(`SELECT DISTINCT portfolio_name FROM portfolio ORDER BY portfolio_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query portfolio names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan portfolio name: %w", err)
		}
		names = append(names, name)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating portfolio names: %w", err)
	}

	return names, nil
}
