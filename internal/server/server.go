// Package server provides the HTTP server and routing for QuantDesk.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/wayss/quantdesk/internal/config"
	"github.com/wayss/quantdesk/internal/database"
	"github.com/wayss/quantdesk/internal/modules/backtest"
	backtesthandlers "github.com/wayss/quantdesk/internal/modules/backtest/handlers"
	"github.com/wayss/quantdesk/internal/modules/ledger"
	ledgerhandlers "github.com/wayss/quantdesk/internal/modules/ledger/handlers"
	"github.com/wayss/quantdesk/internal/modules/marketdata"
	marketdatahandlers "github.com/wayss/quantdesk/internal/modules/marketdata/handlers"
	"github.com/wayss/quantdesk/internal/modules/risk"
	riskhandlers "github.com/wayss/quantdesk/internal/modules/risk/handlers"
	"github.com/wayss/quantdesk/internal/modules/snapshots"
	snapshotshandlers "github.com/wayss/quantdesk/internal/modules/snapshots/handlers"
	"github.com/wayss/quantdesk/internal/modules/strategies"
	strategieshandlers "github.com/wayss/quantdesk/internal/modules/strategies/handlers"
	"github.com/wayss/quantdesk/internal/modules/universe"
	universehandlers "github.com/wayss/quantdesk/internal/modules/universe/handlers"
)

// Config holds server configuration
type Config struct {
	Log        zerolog.Logger
	Config     *config.Config
	DB         *database.DB
	Ledger     *ledger.Service
	Snapshots  *snapshots.Service
	Strategies *strategies.Service
	Simulator  *backtest.Simulator
	Risk       *risk.Analyzer
	Securities *universe.SecurityRepository
	Bars       *marketdata.BarRepository
}

// Server represents the HTTP server
type Server struct {
	router     *chi.Mux
	server     *http.Server
	log        zerolog.Logger
	cfg        *config.Config
	db         *database.DB
	ledger     *ledger.Service
	snapshots  *snapshots.Service
	strategies *strategies.Service
	simulator  *backtest.Simulator
	risk       *risk.Analyzer
	securities *universe.SecurityRepository
	bars       *marketdata.BarRepository
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:     chi.NewRouter(),
		log:        cfg.Log.With().Str("service", "server").Logger(),
		cfg:        cfg.Config,
		db:         cfg.DB,
		ledger:     cfg.Ledger,
		snapshots:  cfg.Snapshots,
		strategies: cfg.Strategies,
		simulator:  cfg.Simulator,
		risk:       cfg.Risk,
		securities: cfg.Securities,
		bars:       cfg.Bars,
	}

	s.setupMiddleware(cfg.Config.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Config.Port),
		Handler: s.router,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// Timeout
	s.router.Use(middleware.Timeout(60 * time.Second))

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Compress responses
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	portfolio := s.cfg.DefaultPortfolio

	ledgerH := ledgerhandlers.NewHandler(s.ledger, portfolio, s.log)
	snapshotsH := snapshotshandlers.NewHandler(s.snapshots, portfolio, s.log)
	strategiesH := strategieshandlers.NewHandler(s.strategies, s.log)
	backtestH := backtesthandlers.NewHandler(s.simulator, s.log)
	riskH := riskhandlers.NewHandler(s.risk, portfolio, s.log)
	universeH := universehandlers.NewHandler(s.securities, s.log)
	marketdataH := marketdatahandlers.NewHandler(s.bars, s.log)

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/portfolio", func(r chi.Router) {
			r.Get("/", ledgerH.HandleGetReport)
			r.Get("/positions", ledgerH.HandleGetPositions)
			r.Post("/initialize", ledgerH.HandleInitialize)
			r.Post("/reset", ledgerH.HandleReset)
			r.Put("/target-price", ledgerH.HandleSetTargetPrice)
			r.Post("/trades", ledgerH.HandleExecuteTrade)
			r.Get("/trades", ledgerH.HandleGetTrades)
			r.Post("/cash-flows", ledgerH.HandleRecordCashFlow)
			r.Get("/cash-flows", ledgerH.HandleGetCashFlows)
		})

		r.Route("/snapshots", func(r chi.Router) {
			r.Get("/", snapshotsH.HandleGetHistory)
			r.Get("/latest", snapshotsH.HandleGetLatest)
			r.Post("/record", snapshotsH.HandleRecord)
			r.Post("/rebuild", snapshotsH.HandleRebuild)
		})

		r.Route("/strategies", func(r chi.Router) {
			r.Get("/", strategiesH.HandleList)
			r.Get("/{name}/params", strategiesH.HandleGetParams)
			r.Get("/{name}/signals", strategiesH.HandleGetSignals)
			r.Post("/screen", strategiesH.HandleScreen)
		})

		r.Route("/backtests", func(r chi.Router) {
			r.Get("/", backtestH.HandleList)
			r.Post("/", backtestH.HandleRun)
			r.Post("/batch", backtestH.HandleRunMany)
			r.Get("/{id}", backtestH.HandleGet)
		})

		r.Get("/risk", riskH.HandleGetReport)

		r.Route("/securities", func(r chi.Router) {
			r.Get("/", universeH.HandleListSecurities)
			r.Post("/", universeH.HandleUpsertSecurity)
			r.Get("/{code}", universeH.HandleGetSecurity)
		})

		r.Route("/watchlist", func(r chi.Router) {
			r.Get("/", universeH.HandleGetWatchlist)
			r.Post("/", universeH.HandleAddToWatchlist)
		})

		r.Route("/prices", func(r chi.Router) {
			r.Post("/daily", marketdataH.HandleImportBars)
			r.Post("/index", marketdataH.HandleImportIndexBars)
			r.Get("/daily/{code}", marketdataH.HandleGetBars)
		})
	})
}

// handleHealth reports process and database health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ok"
	code := http.StatusOK
	if err := s.db.HealthCheck(ctx); err != nil {
		s.log.Error().Err(err).Msg("Health check failed")
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}
