// Package marketdata provides read access to materialized daily price history.
package marketdata

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/wayss/quantdesk/internal/database"
	"github.com/wayss/quantdesk/internal/domain"
)

// BarRepository handles daily price data access for securities and indexes.
// It implements domain.BarProvider.
type BarRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewBarRepository creates a new bar repository
func NewBarRepository(db *sql.DB, log zerolog.Logger) *BarRepository {
	return &BarRepository{
		db:  db,
		log: log.With().Str("repo", "bars").Logger(),
	}
}

// SaveBars upserts a batch of bars inside one transaction.
// (code, date) is the primary key; re-imports replace existing rows.
func (r *BarRepository) SaveBars(bars []domain.Bar) error {
	return r.saveBars("daily_price", bars)
}

// SaveIndexBars upserts benchmark index bars.
func (r *BarRepository) SaveIndexBars(bars []domain.Bar) error {
	return r.saveBars("index_daily_price", bars)
}

func (r *BarRepository) saveBars(table string, bars []domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(fmt.Sprintf(`INSERT OR REPLACE INTO %s
			(code, date, open, high, low, close, volume, turnover)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, table))
		if err != nil {
			return fmt.Errorf("failed to prepare bar insert: %w", err)
		}
		defer stmt.Close()

		for _, b := range bars {
			if _, err := stmt.Exec(b.Code, b.Date, b.Open, b.High, b.Low, b.Close, b.Volume, b.Turnover); err != nil {
				return fmt.Errorf("failed to insert bar %s %s: %w", b.Code, b.Date, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.log.Debug().Int("bars", len(bars)).Str("table", table).Msg("Saved bars")
	return nil
}

// GetBars returns bars for a security in [start, end] ordered by date
// ascending. Returns domain.ErrNoData when the security has no bars at all.
func (r *BarRepository) GetBars(code, start, end string) ([]domain.Bar, error) {
	return r.getBars("daily_price", code, start, end)
}

// GetIndexBars returns benchmark index bars in [start, end] ordered by date.
func (r *BarRepository) GetIndexBars(code, start, end string) ([]domain.Bar, error) {
	return r.getBars("index_daily_price", code, start, end)
}

func (r *BarRepository) getBars(table, code, start, end string) ([]domain.Bar, error) {
	// Empty bounds leave that side of the range open.
	query := fmt.Sprintf(`SELECT code, date, open, high, low, close, volume, turnover
		FROM %s WHERE code = ?`, table)
	args := []interface{}{code}
	if start != "" {
		query += ` AND date >= ?`
		args = append(args, start)
	}
	if end != "" {
		query += ` AND date <= ?`
		args = append(args, end)
	}
	query += ` ORDER BY date`

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bars for %s: %w", code, err)
	}
	defer rows.Close()

	var bars []domain.Bar
	for rows.Next() {
		var b domain.Bar
		if err := rows.Scan(&b.Code, &b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume, &b.Turnover); err != nil {
			return nil, fmt.Errorf("failed to scan bar: %w", err)
		}
		bars = append(bars, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bars: %w", err)
	}

	if len(bars) == 0 {
		// Distinguish an unknown security from a quiet range: only a security
		// with zero bars anywhere is a data error.
		var count int
		if err := r.db.QueryRow(fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE code = ?`, table), code).Scan(&count); err != nil {
			return nil, fmt.Errorf("failed to count bars for %s: %w", code, err)
		}
		if count == 0 {
			return nil, fmt.Errorf("%w: no bars for %s", domain.ErrNoData, code)
		}
	}

	return bars, nil
}

// LatestDate returns the most recent trading date across the supplied codes,
// or "" when none of them have bars.
func (r *BarRepository) LatestDate(codes []string) (string, error) {
	if len(codes) == 0 {
		return "", nil
	}

	query := `SELECT MAX(date) FROM daily_price WHERE code IN (?` +
		repeatPlaceholder(len(codes)-1) + `)`
	args := make([]interface{}, len(codes))
	for i, c := range codes {
		args[i] = c
	}

	var maxDate sql.NullString
	if err := r.db.QueryRow(query, args...).Scan(&maxDate); err != nil {
		return "", fmt.Errorf("failed to query latest trading date: %w", err)
	}
	return maxDate.String, nil
}

// LatestCloses returns the most recent close per code. Codes with no bars
// are absent from the result.
func (r *BarRepository) LatestCloses(codes []string) (map[string]float64, error) {
	closes := make(map[string]float64, len(codes))
	for _, code := range codes {
		var close float64
		err := r.db.QueryRow(`SELECT close FROM daily_price WHERE code = ?
			ORDER BY date DESC LIMIT 1`, code).Scan(&close)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to query latest close for %s: %w", code, err)
		}
		closes[code] = close
	}
	return closes, nil
}

// MaxCloseBetween returns the highest close for a code in [start, end],
// or nil when the range holds no bars. Used for trailing-stop references.
func (r *BarRepository) MaxCloseBetween(code, start, end string) (*float64, error) {
	var maxClose sql.NullFloat64
	err := r.db.QueryRow(`SELECT MAX(close) FROM daily_price
		WHERE code = ? AND date BETWEEN ? AND ?`, code, start, end).Scan(&maxClose)
	if err != nil {
		return nil, fmt.Errorf("failed to query max close for %s: %w", code, err)
	}
	if !maxClose.Valid {
		return nil, nil
	}
	return &maxClose.Float64, nil
}

func repeatPlaceholder(n int) string {
	s := ""
	for i := 0; i < n; i++ {
		s += ",?"
	}
	return s
}
