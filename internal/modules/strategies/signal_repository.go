package strategies

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/wayss/quantdesk/internal/domain"
)

// SignalRepository archives emitted signals. (strategy, code, date, type) is
// the primary key; re-archiving an already-seen signal is a no-op.
type SignalRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewSignalRepository creates a new signal repository
func NewSignalRepository(db *sql.DB, log zerolog.Logger) *SignalRepository {
	return &SignalRepository{
		db:  db,
		log: log.With().Str("repo", "signals").Logger(),
	}
}

// Save archives one signal.
func (r *SignalRepository) Save(sig domain.Signal) error {
	_, err := r.db.Exec(`INSERT OR IGNORE INTO signals (strategy, code, date, signal_type)
		VALUES (?, ?, ?, ?)`,
		sig.Strategy, sig.Code, sig.Date, string(sig.Type))
	if err != nil {
		return fmt.Errorf("failed to save signal %s/%s/%s: %w", sig.Strategy, sig.Code, sig.Date, err)
	}
	return nil
}

// SaveMany archives a batch of signals.
func (r *SignalRepository) SaveMany(sigs []domain.Signal) error {
	for _, sig := range sigs {
		if err := r.Save(sig); err != nil {
			return err
		}
	}
	return nil
}

// Get returns archived signals for a strategy ordered by date descending,
// optionally restricted to a date range.
func (r *SignalRepository) Get(strategy, start, end string) ([]domain.Signal, error) {
	query := `SELECT strategy, code, date, signal_type FROM signals WHERE strategy = ?`
	args := []interface{}{strategy}

	if start != "" {
		query += " AND date >= ?"
		args = append(args, start)
	}
	if end != "" {
		query += " AND date <= ?"
		args = append(args, end)
	}
	query += " ORDER BY date DESC, code"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query signals: %w", err)
	}
	defer rows.Close()

	var sigs []domain.Signal
	for rows.Next() {
		var s domain.Signal
		var typ string
		if err := rows.Scan(&s.Strategy, &s.Code, &s.Date, &typ); err != nil {
			return nil, fmt.Errorf("failed to scan signal: %w", err)
		}
		s.Type = domain.SignalType(typ)
		sigs = append(sigs, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating signals: %w", err)
	}

	return sigs, nil
}
