package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/wayss/quantdesk/internal/config"
	"github.com/wayss/quantdesk/internal/database"
	"github.com/wayss/quantdesk/internal/modules/backtest"
	"github.com/wayss/quantdesk/internal/modules/ledger"
	"github.com/wayss/quantdesk/internal/modules/marketdata"
	"github.com/wayss/quantdesk/internal/modules/risk"
	"github.com/wayss/quantdesk/internal/modules/snapshots"
	"github.com/wayss/quantdesk/internal/modules/strategies"
	"github.com/wayss/quantdesk/internal/modules/universe"
	"github.com/wayss/quantdesk/internal/scheduler"
	"github.com/wayss/quantdesk/internal/server"
	"github.com/wayss/quantdesk/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Logger is not up yet.
		panic(err)
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Str("data_dir", cfg.DataDir).Msg("Starting QuantDesk")

	// Initialize database
	db, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "quantdesk.db"),
		Profile: database.ProfileLedger,
		Name:    "quantdesk",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	// Run migrations
	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	// Repositories
	conn := db.Conn()
	securityRepo := universe.NewSecurityRepository(conn, log)
	barRepo := marketdata.NewBarRepository(conn, log)
	ledgerRepo := ledger.NewRepository(conn, log)
	snapshotRepo := snapshots.NewRepository(conn, log)
	signalRepo := strategies.NewSignalRepository(conn, log)

	// Services
	ledgerService := ledger.NewService(ledgerRepo, barRepo, securityRepo, log)
	snapshotService := snapshots.NewService(snapshotRepo, ledgerService, ledgerRepo, barRepo, log)
	registry := strategies.NewDefaultRegistry()
	screener := strategies.NewService(registry, barRepo, securityRepo, signalRepo, cfg.MinRequiredBars, log)
	simulator := backtest.NewSimulator(registry, barRepo, log)
	analyzer := risk.NewAnalyzer(ledgerService, snapshotRepo, cfg.Risk, log)

	// Initialize scheduler
	sched := scheduler.New(log)
	snapshotJob := scheduler.NewSnapshotJob(snapshotService, ledgerRepo, log)
	if err := sched.AddJob(cfg.SnapshotSchedule, snapshotJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register snapshot job")
	}
	sched.Start()
	defer sched.Stop()

	// Initialize HTTP server
	srv := server.New(server.Config{
		Log:        log,
		Config:     cfg,
		DB:         db,
		Ledger:     ledgerService,
		Snapshots:  snapshotService,
		Strategies: screener,
		Simulator:  simulator,
		Risk:       analyzer,
		Securities: securityRepo,
		Bars:       barRepo,
	})

	// Start server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
