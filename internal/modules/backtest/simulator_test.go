package backtest

import (
	"database/sql"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"

	"github.com/wayss/quantdesk/internal/domain"
	"github.com/wayss/quantdesk/internal/modules/marketdata"
	"github.com/wayss/quantdesk/internal/modules/strategies"
)

// scriptedStrategy emits a fixed set of signals per date, for exercising the
// simulator without indicator math.
type scriptedStrategy struct {
	script map[string][]domain.Signal
}

func (s *scriptedStrategy) Name() string                     { return "scripted" }
func (s *scriptedStrategy) Params() []strategies.ParamSpec   { return nil }
func (s *scriptedStrategy) GenerateSignals(ctx strategies.SignalContext) ([]domain.Signal, error) {
	return s.script[ctx.Date], nil
}

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE daily_price (
			code TEXT NOT NULL, date TEXT NOT NULL,
			open REAL, high REAL, low REAL, close REAL, volume REAL, turnover REAL,
			PRIMARY KEY (code, date)
		);
		CREATE TABLE index_daily_price (
			code TEXT NOT NULL, date TEXT NOT NULL,
			open REAL, high REAL, low REAL, close REAL, volume REAL, turnover REAL,
			PRIMARY KEY (code, date)
		);
	`)
	require.NoError(t, err)
	return db
}

func insertBar(t *testing.T, db *sql.DB, table, code, date string, close float64) {
	_, err := db.Exec(`INSERT INTO `+table+` (code, date, open, high, low, close, volume, turnover)
		VALUES (?, ?, ?, ?, ?, ?, 1000, 0)`, code, date, close, close, close, close)
	require.NoError(t, err)
}

func newTestSimulator(t *testing.T, db *sql.DB, strategy strategies.Strategy) *Simulator {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	registry := strategies.NewRegistry()
	registry.Register(strategy)
	return NewSimulator(registry, marketdata.NewBarRepository(db, log), log)
}

func entry(code, date string) domain.Signal {
	return domain.Signal{Strategy: "scripted", Code: code, Date: date, Type: domain.SignalEntry}
}

func exit(code, date string) domain.Signal {
	return domain.Signal{Strategy: "scripted", Code: code, Date: date, Type: domain.SignalExit}
}

func TestRun_BuyHoldSell(t *testing.T) {
	db := setupTestDB(t)
	for _, d := range []struct {
		date  string
		close float64
	}{{"2024-01-02", 10}, {"2024-01-03", 11}, {"2024-01-04", 12}} {
		insertBar(t, db, "daily_price", "000001.SZ", d.date, d.close)
	}

	sim := newTestSimulator(t, db, &scriptedStrategy{script: map[string][]domain.Signal{
		"2024-01-02": {entry("000001.SZ", "2024-01-02")},
		"2024-01-04": {exit("000001.SZ", "2024-01-04")},
	}})

	run, err := sim.Run(RunConfig{
		Strategy:     "scripted",
		Codes:        []string{"000001.SZ"},
		Start:        "2024-01-01",
		End:          "2024-01-05",
		InitialCash:  10000,
		MaxPositions: 2,
		MinBars:      1,
	})
	require.NoError(t, err)
	require.NotEmpty(t, run.ID)
	require.Len(t, run.EquityCurve, 3)
	require.Len(t, run.Trades, 2)

	// Entry: cash/(2 slots)=5000, 500 shares at 10.
	assert.Equal(t, domain.SideBuy, run.Trades[0].Side)
	assert.Equal(t, 500.0, run.Trades[0].Quantity)

	// Day 1: 5000 cash + 500*10. Day 2: marked at 11.
	assert.InDelta(t, 10000.0, run.EquityCurve[0].Value, 1e-9)
	assert.InDelta(t, 10500.0, run.EquityCurve[1].Value, 1e-9)
	// Day 3: sold everything at 12.
	assert.InDelta(t, 11000.0, run.EquityCurve[2].Value, 1e-9)

	require.Len(t, run.ClosedTrades, 1)
	assert.InDelta(t, (12.0-10.0)*500, run.ClosedTrades[0].Profit, 1e-9)

	require.NotNil(t, run.Metrics.TotalReturn)
	assert.InDelta(t, 0.10, *run.Metrics.TotalReturn, 1e-9)
	require.NotNil(t, run.Metrics.WinRate)
	assert.Equal(t, 1.0, *run.Metrics.WinRate)
	assert.Equal(t, 1, run.Metrics.TotalTrades)

	// The simulator retains its runs.
	assert.Equal(t, run.ID, sim.Get(run.ID).ID)
}

func TestRun_MaxPositionsTieBreakByCode(t *testing.T) {
	db := setupTestDB(t)
	insertBar(t, db, "daily_price", "000002.SZ", "2024-01-02", 10)
	insertBar(t, db, "daily_price", "000001.SZ", "2024-01-02", 10)

	// Two simultaneous entries with room for one: the lower code wins.
	sim := newTestSimulator(t, db, &scriptedStrategy{script: map[string][]domain.Signal{
		"2024-01-02": {entry("000002.SZ", "2024-01-02"), entry("000001.SZ", "2024-01-02")},
	}})

	run, err := sim.Run(RunConfig{
		Strategy:     "scripted",
		Codes:        []string{"000001.SZ", "000002.SZ"},
		Start:        "2024-01-01",
		End:          "2024-01-03",
		InitialCash:  10000,
		MaxPositions: 1,
		MinBars:      1,
	})
	require.NoError(t, err)

	require.Len(t, run.Trades, 1)
	assert.Equal(t, "000001.SZ", run.Trades[0].Code)

	require.Len(t, run.Skipped, 1)
	assert.Equal(t, "000002.SZ", run.Skipped[0].Code)
	assert.Equal(t, "max positions reached", run.Skipped[0].Reason)
}

func TestRun_EmptyCalendar(t *testing.T) {
	db := setupTestDB(t)

	sim := newTestSimulator(t, db, &scriptedStrategy{})
	run, err := sim.Run(RunConfig{
		Strategy:     "scripted",
		Codes:        []string{"000001.SZ"},
		Start:        "2024-01-01",
		End:          "2024-01-05",
		InitialCash:  10000,
		MaxPositions: 1,
		MinBars:      1,
	})
	require.NoError(t, err)

	assert.Empty(t, run.EquityCurve)
	assert.Nil(t, run.Metrics.TotalReturn)
	assert.Nil(t, run.Metrics.AnnualReturn)
	assert.Nil(t, run.Metrics.MaxDrawdown)
	assert.Nil(t, run.Metrics.SharpeRatio)
	assert.Nil(t, run.Metrics.WinRate)
	assert.Equal(t, []string{"000001.SZ"}, run.SkippedCodes)
}

func TestRun_CarryForwardValuation(t *testing.T) {
	db := setupTestDB(t)
	insertBar(t, db, "daily_price", "000001.SZ", "2024-01-02", 10)
	insertBar(t, db, "daily_price", "000001.SZ", "2024-01-03", 12)
	// Second security keeps the calendar alive after 000001.SZ suspends.
	insertBar(t, db, "daily_price", "000002.SZ", "2024-01-02", 5)
	insertBar(t, db, "daily_price", "000002.SZ", "2024-01-03", 5)
	insertBar(t, db, "daily_price", "000002.SZ", "2024-01-04", 5)

	sim := newTestSimulator(t, db, &scriptedStrategy{script: map[string][]domain.Signal{
		"2024-01-02": {entry("000001.SZ", "2024-01-02")},
		// Exit attempt while suspended must be skipped, not executed.
		"2024-01-04": {exit("000001.SZ", "2024-01-04")},
	}})

	run, err := sim.Run(RunConfig{
		Strategy:     "scripted",
		Codes:        []string{"000001.SZ", "000002.SZ"},
		Start:        "2024-01-01",
		End:          "2024-01-05",
		InitialCash:  10000,
		MaxPositions: 1,
		MinBars:      1,
	})
	require.NoError(t, err)
	require.Len(t, run.EquityCurve, 3)

	// 1000 shares at 10 on day 1; day 3 still marked at the last close 12.
	assert.InDelta(t, 12000.0, run.EquityCurve[2].Value, 1e-9)

	require.Len(t, run.Trades, 1)
	require.Len(t, run.Skipped, 1)
	assert.Equal(t, "no price on date", run.Skipped[0].Reason)
}

func TestRun_InsufficientCashRecordedAsSkipped(t *testing.T) {
	db := setupTestDB(t)
	insertBar(t, db, "daily_price", "000001.SZ", "2024-01-02", 500)

	sim := newTestSimulator(t, db, &scriptedStrategy{script: map[string][]domain.Signal{
		"2024-01-02": {entry("000001.SZ", "2024-01-02")},
	}})

	run, err := sim.Run(RunConfig{
		Strategy:     "scripted",
		Codes:        []string{"000001.SZ"},
		Start:        "2024-01-01",
		End:          "2024-01-03",
		InitialCash:  100,
		MaxPositions: 1,
		MinBars:      1,
	})
	require.NoError(t, err)

	assert.Empty(t, run.Trades)
	require.Len(t, run.Skipped, 1)
	assert.Equal(t, "insufficient cash", run.Skipped[0].Reason)
	// The run itself still completes with a flat curve.
	require.Len(t, run.EquityCurve, 1)
	assert.Equal(t, 100.0, run.EquityCurve[0].Value)
}

func TestRun_FeesReduceCash(t *testing.T) {
	db := setupTestDB(t)
	insertBar(t, db, "daily_price", "000001.SZ", "2024-01-02", 10)

	sim := newTestSimulator(t, db, &scriptedStrategy{script: map[string][]domain.Signal{
		"2024-01-02": {entry("000001.SZ", "2024-01-02")},
	}})

	run, err := sim.Run(RunConfig{
		Strategy:     "scripted",
		Codes:        []string{"000001.SZ"},
		Start:        "2024-01-01",
		End:          "2024-01-03",
		InitialCash:  10000,
		MaxPositions: 1,
		FeeRate:      0.0003,
		MinBars:      1,
	})
	require.NoError(t, err)
	require.Len(t, run.Trades, 1)
	assert.InDelta(t, 10*run.Trades[0].Quantity*0.0003, run.Trades[0].Fee, 1e-9)
}

func TestRun_BenchmarkComparison(t *testing.T) {
	db := setupTestDB(t)
	insertBar(t, db, "daily_price", "000001.SZ", "2024-01-02", 10)
	insertBar(t, db, "daily_price", "000001.SZ", "2024-01-03", 11)
	insertBar(t, db, "index_daily_price", "000300.SH", "2024-01-02", 3000)
	insertBar(t, db, "index_daily_price", "000300.SH", "2024-01-03", 3150)

	sim := newTestSimulator(t, db, &scriptedStrategy{script: map[string][]domain.Signal{
		"2024-01-02": {entry("000001.SZ", "2024-01-02")},
	}})

	run, err := sim.Run(RunConfig{
		Strategy:     "scripted",
		Codes:        []string{"000001.SZ"},
		Start:        "2024-01-01",
		End:          "2024-01-04",
		InitialCash:  10000,
		MaxPositions: 1,
		Benchmark:    "000300.SH",
		MinBars:      1,
	})
	require.NoError(t, err)

	require.NotNil(t, run.Metrics.BenchmarkReturn)
	assert.InDelta(t, 0.05, *run.Metrics.BenchmarkReturn, 1e-9)
	require.NotNil(t, run.Metrics.ExcessReturn)
	assert.InDelta(t, *run.Metrics.TotalReturn-0.05, *run.Metrics.ExcessReturn, 1e-9)
	require.Len(t, run.BenchmarkCurve, 2)
	assert.InDelta(t, 10000.0, run.BenchmarkCurve[0].Value, 1e-9)
	assert.InDelta(t, 10500.0, run.BenchmarkCurve[1].Value, 1e-9)
}

func TestRun_MinBarsExcludesShortHistory(t *testing.T) {
	db := setupTestDB(t)
	insertBar(t, db, "daily_price", "000001.SZ", "2024-01-02", 10)

	sim := newTestSimulator(t, db, &scriptedStrategy{})
	run, err := sim.Run(RunConfig{
		Strategy:     "scripted",
		Codes:        []string{"000001.SZ"},
		Start:        "2024-01-01",
		End:          "2024-01-03",
		InitialCash:  10000,
		MaxPositions: 1,
		MinBars:      241,
	})
	require.NoError(t, err)
	assert.Empty(t, run.IncludedCodes)
	assert.Equal(t, []string{"000001.SZ"}, run.SkippedCodes)
	assert.Empty(t, run.EquityCurve)
}

func TestRunMany_Concurrent(t *testing.T) {
	db := setupTestDB(t)
	insertBar(t, db, "daily_price", "000001.SZ", "2024-01-02", 10)
	insertBar(t, db, "daily_price", "000001.SZ", "2024-01-03", 11)

	sim := newTestSimulator(t, db, &scriptedStrategy{script: map[string][]domain.Signal{
		"2024-01-02": {entry("000001.SZ", "2024-01-02")},
	}})

	cfg := RunConfig{
		Strategy:     "scripted",
		Codes:        []string{"000001.SZ"},
		Start:        "2024-01-01",
		End:          "2024-01-04",
		InitialCash:  10000,
		MaxPositions: 1,
		MinBars:      1,
	}

	runs, errs := sim.RunMany([]RunConfig{cfg, cfg, cfg})
	require.Len(t, runs, 3)
	for i := range runs {
		require.NoError(t, errs[i])
		require.NotNil(t, runs[i])
		require.NotNil(t, runs[i].Metrics.TotalReturn)
		assert.InDelta(t, *runs[0].Metrics.TotalReturn, *runs[i].Metrics.TotalReturn, 1e-12)
	}
}

func TestMaxDrawdown_PeakRatchet(t *testing.T) {
	// Peak 120 is reached after peak 110; the 110->90 decline is superseded.
	assert.InDelta(t, 1.0/3.0, maxDrawdown([]float64{100, 110, 90, 120, 80}), 1e-4)
	assert.Equal(t, 0.0, maxDrawdown([]float64{100, 110, 120}))
}

func TestComputeMetrics_SinglePoint(t *testing.T) {
	m := computeMetrics([]float64{100}, nil)
	require.NotNil(t, m.TotalReturn)
	assert.Equal(t, 0.0, *m.TotalReturn)
	assert.Nil(t, m.AnnualReturn)
	assert.Nil(t, m.SharpeRatio)
	assert.Nil(t, m.WinRate)
}
