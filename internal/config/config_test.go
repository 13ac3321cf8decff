package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("QUANTDESK_DATA_DIR", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8001, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "main", cfg.DefaultPortfolio)
	assert.Equal(t, "000300.SH", cfg.DefaultBenchmark)
	assert.Equal(t, 0.0003, cfg.BacktestFeeRate)
	assert.Equal(t, 10, cfg.MaxPositions)
	assert.Equal(t, 241, cfg.MinRequiredBars)
	assert.Equal(t, "0 30 18 * * *", cfg.SnapshotSchedule)
	assert.Equal(t, 0.2, cfg.Risk.MaxSinglePosition)
	assert.Equal(t, 0.4, cfg.Risk.MaxIndustryExposure)
	assert.Equal(t, 0.5, cfg.Risk.MaxHHI)
	assert.True(t, filepath.IsAbs(cfg.DataDir))
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("QUANTDESK_DATA_DIR", t.TempDir())
	t.Setenv("GO_PORT", "9090")
	t.Setenv("PORTFOLIO_NAME", "paper")
	t.Setenv("BACKTEST_MAX_POSITIONS", "5")
	t.Setenv("MAX_HHI", "0.3")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "paper", cfg.DefaultPortfolio)
	assert.Equal(t, 5, cfg.MaxPositions)
	assert.Equal(t, 0.3, cfg.Risk.MaxHHI)
}

func TestLoad_MalformedEnvFallsBack(t *testing.T) {
	t.Setenv("QUANTDESK_DATA_DIR", t.TempDir())
	t.Setenv("GO_PORT", "not-a-number")
	t.Setenv("BACKTEST_FEE_RATE", "lots")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8001, cfg.Port)
	assert.Equal(t, 0.0003, cfg.BacktestFeeRate)
}

func TestValidate_RejectsBadValues(t *testing.T) {
	t.Setenv("QUANTDESK_DATA_DIR", t.TempDir())
	t.Setenv("BACKTEST_FEE_RATE", "-0.01")

	_, err := Load()
	assert.Error(t, err)

	t.Setenv("BACKTEST_FEE_RATE", "0.0003")
	t.Setenv("BACKTEST_MAX_POSITIONS", "0")

	_, err = Load()
	assert.Error(t, err)
}
