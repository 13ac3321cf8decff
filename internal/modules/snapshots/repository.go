package snapshots

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/wayss/quantdesk/internal/database"
	"github.com/wayss/quantdesk/internal/domain"
)

// Repository persists daily net-asset-value snapshots. (portfolio, date) is
// the primary key and writes replace, so recording the same day twice is
// idempotent.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new snapshot repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "snapshots").Logger(),
	}
}

// Save writes one snapshot, replacing any existing row for the same day.
func (r *Repository) Save(snap domain.Snapshot) error {
	_, err := r.db.Exec(`INSERT OR REPLACE INTO portfolio_snapshots
		(portfolio_name, date, total_value, cash, investment_value)
		VALUES (?, ?, ?, ?, ?)`,
		snap.Portfolio, snap.Date, snap.TotalValue, snap.Cash, snap.InvestmentValue)
	if err != nil {
		return fmt.Errorf("failed to save snapshot %s/%s: %w", snap.Portfolio, snap.Date, err)
	}
	return nil
}

// SaveMany writes a batch of snapshots in one transaction.
func (r *Repository) SaveMany(snaps []domain.Snapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`INSERT OR REPLACE INTO portfolio_snapshots
			(portfolio_name, date, total_value, cash, investment_value)
			VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare snapshot insert: %w", err)
		}
		defer stmt.Close()

		for _, snap := range snaps {
			if _, err := stmt.Exec(snap.Portfolio, snap.Date, snap.TotalValue, snap.Cash, snap.InvestmentValue); err != nil {
				return fmt.Errorf("failed to insert snapshot %s: %w", snap.Date, err)
			}
		}
		return nil
	})
}

// Get returns snapshots for a portfolio ordered by date ascending, restricted
// to [start, end] when non-empty.
func (r *Repository) Get(portfolio, start, end string) ([]domain.Snapshot, error) {
	query := `SELECT portfolio_name, date, total_value, cash, investment_value
		FROM portfolio_snapshots WHERE portfolio_name = ?`
	args := []interface{}{portfolio}

	if start != "" {
		query += " AND date >= ?"
		args = append(args, start)
	}
	if end != "" {
		query += " AND date <= ?"
		args = append(args, end)
	}
	query += " ORDER BY date"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []domain.Snapshot
	for rows.Next() {
		var s domain.Snapshot
		if err := rows.Scan(&s.Portfolio, &s.Date, &s.TotalValue, &s.Cash, &s.InvestmentValue); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snaps = append(snaps, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}

	return snaps, nil
}

// Latest returns the most recent snapshot, or nil when none exist.
func (r *Repository) Latest(portfolio string) (*domain.Snapshot, error) {
	var s domain.Snapshot
	err := r.db.QueryRow(`SELECT portfolio_name, date, total_value, cash, investment_value
		FROM portfolio_snapshots WHERE portfolio_name = ? ORDER BY date DESC LIMIT 1`, portfolio).
		Scan(&s.Portfolio, &s.Date, &s.TotalValue, &s.Cash, &s.InvestmentValue)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest snapshot: %w", err)
	}
	return &s, nil
}
