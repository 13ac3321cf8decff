// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// RiskLimits holds the portfolio risk limits threaded into the risk analyzer.
// Values are fractions of total portfolio value in [0, 1].
type RiskLimits struct {
	MaxSinglePosition   float64 // max weight of any one security
	MaxIndustryExposure float64 // max combined weight of one industry
	MaxHHI              float64 // max concentration index
}

// Config holds application configuration
type Config struct {
	DataDir          string // Base directory for the database (always absolute)
	DataAPIToken     string // Market data provider token (used by import tooling)
	LogLevel         string
	Port             int
	DevMode          bool
	DefaultPortfolio string  // Portfolio name used when a request names none
	DefaultBenchmark string  // Benchmark index code for backtest comparison
	InitialCapital   float64 // Default paper-portfolio seed
	BacktestCapital  float64 // Default backtest seed
	BacktestFeeRate  float64 // Per-trade commission rate
	MaxPositions     int     // Default backtest position cap
	MinRequiredBars  int     // Minimum history a security needs to trade
	SnapshotSchedule string  // Cron spec for the nightly snapshot rebuild
	Risk             RiskLimits
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("QUANTDESK_DATA_DIR", "")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to determine home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".quantdesk")
	}

	// Always resolve to absolute path
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	// Ensure directory exists
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:          absDataDir,
		DataAPIToken:     getEnv("DATA_API_TOKEN", ""),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		Port:             getEnvAsInt("GO_PORT", 8001),
		DevMode:          getEnvAsBool("DEV_MODE", false),
		DefaultPortfolio: getEnv("PORTFOLIO_NAME", "main"),
		DefaultBenchmark: getEnv("DEFAULT_BENCHMARK", "000300.SH"),
		InitialCapital:   getEnvAsFloat("PORTFOLIO_INITIAL_CAPITAL", 1000000),
		BacktestCapital:  getEnvAsFloat("BACKTEST_INITIAL_CAPITAL", 300000),
		BacktestFeeRate:  getEnvAsFloat("BACKTEST_FEE_RATE", 0.0003),
		MaxPositions:     getEnvAsInt("BACKTEST_MAX_POSITIONS", 10),
		MinRequiredBars:  getEnvAsInt("MIN_REQUIRED_BARS", 241),
		SnapshotSchedule: getEnv("SNAPSHOT_SCHEDULE", "0 30 18 * * *"),
		Risk: RiskLimits{
			MaxSinglePosition:   getEnvAsFloat("MAX_SINGLE_POSITION_RATIO", 0.2),
			MaxIndustryExposure: getEnvAsFloat("MAX_INDUSTRY_EXPOSURE", 0.4),
			MaxHHI:              getEnvAsFloat("MAX_HHI", 0.5),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.BacktestFeeRate < 0 {
		return fmt.Errorf("BACKTEST_FEE_RATE must be non-negative, got %v", c.BacktestFeeRate)
	}
	if c.MaxPositions <= 0 {
		return fmt.Errorf("BACKTEST_MAX_POSITIONS must be positive, got %d", c.MaxPositions)
	}
	// Data API token is optional: the core runs fully offline against
	// already-imported history.
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
