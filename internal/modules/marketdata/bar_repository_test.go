package marketdata

import (
	"database/sql"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/wayss/quantdesk/internal/domain"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE daily_price (
			code TEXT NOT NULL,
			date TEXT NOT NULL,
			open REAL, high REAL, low REAL, close REAL,
			volume REAL, turnover REAL,
			PRIMARY KEY (code, date)
		);
		CREATE TABLE index_daily_price (
			code TEXT NOT NULL,
			date TEXT NOT NULL,
			open REAL, high REAL, low REAL, close REAL,
			volume REAL, turnover REAL,
			PRIMARY KEY (code, date)
		);
	`)
	require.NoError(t, err)
	return db
}

func newTestRepo(t *testing.T) (*BarRepository, *sql.DB) {
	t.Helper()
	db := setupTestDB(t)
	log := zerolog.New(nil).Level(zerolog.Disabled)
	return NewBarRepository(db, log), db
}

func bar(code, date string, close float64) domain.Bar {
	return domain.Bar{
		Code: code, Date: date,
		Open: close, High: close, Low: close, Close: close,
		Volume: 1000, Turnover: close * 1000,
	}
}

func TestBarRepository_SaveAndGet(t *testing.T) {
	repo, _ := newTestRepo(t)

	require.NoError(t, repo.SaveBars([]domain.Bar{
		bar("000001.SZ", "2024-01-02", 10),
		bar("000001.SZ", "2024-01-03", 11),
		bar("000001.SZ", "2024-01-04", 12),
	}))

	bars, err := repo.GetBars("000001.SZ", "2024-01-03", "2024-01-04")
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, "2024-01-03", bars[0].Date)
	assert.Equal(t, 12.0, bars[1].Close)
}

func TestBarRepository_OpenEndedRange(t *testing.T) {
	repo, _ := newTestRepo(t)

	require.NoError(t, repo.SaveBars([]domain.Bar{
		bar("000001.SZ", "2024-01-02", 10),
		bar("000001.SZ", "2024-01-03", 11),
	}))

	all, err := repo.GetBars("000001.SZ", "", "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	from, err := repo.GetBars("000001.SZ", "2024-01-03", "")
	require.NoError(t, err)
	assert.Len(t, from, 1)

	until, err := repo.GetBars("000001.SZ", "", "2024-01-02")
	require.NoError(t, err)
	assert.Len(t, until, 1)
}

func TestBarRepository_UnknownCodeIsNoData(t *testing.T) {
	repo, _ := newTestRepo(t)

	_, err := repo.GetBars("999999.SZ", "", "")
	assert.ErrorIs(t, err, domain.ErrNoData)
}

func TestBarRepository_QuietRangeIsNotNoData(t *testing.T) {
	repo, _ := newTestRepo(t)

	require.NoError(t, repo.SaveBars([]domain.Bar{bar("000001.SZ", "2024-01-02", 10)}))

	bars, err := repo.GetBars("000001.SZ", "2024-06-01", "2024-06-30")
	require.NoError(t, err)
	assert.Empty(t, bars)
}

func TestBarRepository_ReimportReplaces(t *testing.T) {
	repo, _ := newTestRepo(t)

	require.NoError(t, repo.SaveBars([]domain.Bar{bar("000001.SZ", "2024-01-02", 10)}))
	require.NoError(t, repo.SaveBars([]domain.Bar{bar("000001.SZ", "2024-01-02", 10.5)}))

	bars, err := repo.GetBars("000001.SZ", "", "")
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, 10.5, bars[0].Close)
}

func TestBarRepository_IndexBarsAreSeparate(t *testing.T) {
	repo, _ := newTestRepo(t)

	require.NoError(t, repo.SaveIndexBars([]domain.Bar{bar("000300.SH", "2024-01-02", 3500)}))

	idx, err := repo.GetIndexBars("000300.SH", "", "")
	require.NoError(t, err)
	require.Len(t, idx, 1)

	_, err = repo.GetBars("000300.SH", "", "")
	assert.ErrorIs(t, err, domain.ErrNoData)
}

func TestBarRepository_LatestDateAndCloses(t *testing.T) {
	repo, _ := newTestRepo(t)

	require.NoError(t, repo.SaveBars([]domain.Bar{
		bar("000001.SZ", "2024-01-02", 10),
		bar("000001.SZ", "2024-01-03", 11),
		bar("600519.SH", "2024-01-02", 1700),
	}))

	date, err := repo.LatestDate([]string{"000001.SZ", "600519.SH"})
	require.NoError(t, err)
	assert.Equal(t, "2024-01-03", date)

	closes, err := repo.LatestCloses([]string{"000001.SZ", "600519.SH", "999999.SZ"})
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"000001.SZ": 11, "600519.SH": 1700}, closes)

	date, err = repo.LatestDate(nil)
	require.NoError(t, err)
	assert.Equal(t, "", date)
}

func TestBarRepository_MaxCloseBetween(t *testing.T) {
	repo, _ := newTestRepo(t)

	require.NoError(t, repo.SaveBars([]domain.Bar{
		bar("000001.SZ", "2024-01-02", 10),
		bar("000001.SZ", "2024-01-03", 14),
		bar("000001.SZ", "2024-01-04", 12),
	}))

	max, err := repo.MaxCloseBetween("000001.SZ", "2024-01-02", "2024-01-04")
	require.NoError(t, err)
	require.NotNil(t, max)
	assert.Equal(t, 14.0, *max)

	none, err := repo.MaxCloseBetween("000001.SZ", "2025-01-01", "2025-12-31")
	require.NoError(t, err)
	assert.Nil(t, none)
}
