package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFileDB(t *testing.T, profile Profile) *DB {
	t.Helper()

	db, err := New(Config{
		Path:    filepath.Join(t.TempDir(), "test.db"),
		Profile: profile,
		Name:    "test",
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestNew_CreatesAndPings(t *testing.T) {
	db := newFileDB(t, ProfileLedger)

	assert.Equal(t, "test", db.Name())
	assert.True(t, filepath.IsAbs(db.Path()))
	require.NoError(t, db.Conn().Ping())
}

func TestMigrate_Idempotent(t *testing.T) {
	db := newFileDB(t, ProfileLedger)

	require.NoError(t, db.Migrate())
	require.NoError(t, db.Migrate())

	// Core tables exist after migration.
	for _, table := range []string{
		"securities", "daily_price", "index_daily_price", "watchlist",
		"portfolio", "trades", "cash_flows", "portfolio_snapshots", "signals",
	} {
		var name string
		err := db.QueryRow(
			`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		require.NoError(t, err, "table %s missing", table)
	}
}

func TestWithTransaction_CommitsOnSuccess(t *testing.T) {
	db := newFileDB(t, ProfileStandard)
	require.NoError(t, db.Migrate())

	err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO securities (code, name) VALUES ('000001.SZ', 'Ping An Bank')`)
		return err
	})
	require.NoError(t, err)

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM securities`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestWithTransaction_RollsBackOnError(t *testing.T) {
	db := newFileDB(t, ProfileStandard)
	require.NoError(t, db.Migrate())

	boom := errors.New("boom")
	err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		if _, err := tx.Exec(`INSERT INTO securities (code, name) VALUES ('000001.SZ', 'Ping An Bank')`); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM securities`).Scan(&count))
	assert.Equal(t, 0, count)
}

func TestWithTransaction_RecoversFromPanic(t *testing.T) {
	db := newFileDB(t, ProfileStandard)
	require.NoError(t, db.Migrate())

	err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		panic("unexpected")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic in transaction")
}

func TestWithTransaction_NilDB(t *testing.T) {
	err := WithTransaction(nil, func(tx *sql.Tx) error { return nil })
	assert.Error(t, err)
}

func TestHealthCheck(t *testing.T) {
	db := newFileDB(t, ProfileLedger)
	require.NoError(t, db.Migrate())

	require.NoError(t, db.HealthCheck(context.Background()))
}

func TestWALCheckpoint(t *testing.T) {
	db := newFileDB(t, ProfileLedger)
	require.NoError(t, db.Migrate())

	require.NoError(t, db.WALCheckpoint(""))
	require.NoError(t, db.WALCheckpoint("PASSIVE"))
}
