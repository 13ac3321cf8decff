// Package universe manages security reference data and the watchlist.
package universe

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/wayss/quantdesk/internal/domain"
)

// SecurityRepository handles security reference data access
type SecurityRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewSecurityRepository creates a new security repository
func NewSecurityRepository(db *sql.DB, log zerolog.Logger) *SecurityRepository {
	return &SecurityRepository{
		db:  db,
		log: log.With().Str("repo", "security").Logger(),
	}
}

// Upsert inserts or replaces a security by code
func (r *SecurityRepository) Upsert(sec domain.Security) error {
	_, err := r.db.Exec(`INSERT INTO securities (code, symbol, name, industry, list_date, region)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(code) DO UPDATE SET
			symbol = excluded.symbol,
			name = excluded.name,
			industry = excluded.industry,
			list_date = excluded.list_date,
			region = excluded.region`,
		sec.Code, sec.Symbol, sec.Name, sec.Industry, sec.ListDate, sec.Region)
	if err != nil {
		return fmt.Errorf("failed to upsert security %s: %w", sec.Code, err)
	}
	return nil
}

// GetByCode returns a single security, or nil if unknown
func (r *SecurityRepository) GetByCode(code string) (*domain.Security, error) {
	row := r.db.QueryRow(`SELECT code, symbol, name, industry, list_date, region
		FROM securities WHERE code = ?`, code)

	var sec domain.Security
	var symbol, name, industry, listDate, region sql.NullString
	if err := row.Scan(&sec.Code, &symbol, &name, &industry, &listDate, &region); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query security %s: %w", code, err)
	}
	sec.Symbol = symbol.String
	sec.Name = name.String
	sec.Industry = industry.String
	sec.ListDate = listDate.String
	sec.Region = region.String

	return &sec, nil
}

// GetAll returns all securities ordered by code
func (r *SecurityRepository) GetAll() ([]domain.Security, error) {
	rows, err := r.db.Query(`SELECT code, symbol, name, industry, list_date, region
		FROM securities ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("failed to query securities: %w", err)
	}
	defer rows.Close()

	var securities []domain.Security
	for rows.Next() {
		var sec domain.Security
		var symbol, name, industry, listDate, region sql.NullString
		if err := rows.Scan(&sec.Code, &symbol, &name, &industry, &listDate, &region); err != nil {
			return nil, fmt.Errorf("failed to scan security: %w", err)
		}
		sec.Symbol = symbol.String
		sec.Name = name.String
		sec.Industry = industry.String
		sec.ListDate = listDate.String
		sec.Region = region.String
		securities = append(securities, sec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating securities: %w", err)
	}

	return securities, nil
}

// IndustryByCode returns a code -> industry lookup for the supplied codes.
// Codes with no reference row are absent from the result.
func (r *SecurityRepository) IndustryByCode(codes []string) (map[string]string, error) {
	result := make(map[string]string, len(codes))
	for _, code := range codes {
		sec, err := r.GetByCode(code)
		if err != nil {
			return nil, err
		}
		if sec != nil && sec.Industry != "" {
			result[code] = sec.Industry
		}
	}
	return result, nil
}

// AddToWatchlist adds a security to the watchlist if not already present
func (r *SecurityRepository) AddToWatchlist(code, name string) error {
	_, err := r.db.Exec(`INSERT OR IGNORE INTO watchlist (code, name, add_date, in_pool)
		VALUES (?, ?, ?, 0)`,
		code, name, time.Now().Format("2006-01-02"))
	if err != nil {
		return fmt.Errorf("failed to add %s to watchlist: %w", code, err)
	}
	return nil
}

// Watchlist returns all watchlist codes ordered by code
func (r *SecurityRepository) Watchlist() ([]string, error) {
	rows, err := r.db.Query(`SELECT code FROM watchlist ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("failed to query watchlist: %w", err)
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("failed to scan watchlist row: %w", err)
		}
		codes = append(codes, code)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating watchlist: %w", err)
	}

	return codes, nil
}
