// Package handlers provides HTTP handlers for running and inspecting
// backtests.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/wayss/quantdesk/internal/domain"
	"github.com/wayss/quantdesk/internal/modules/backtest"
)

// Handler handles backtest HTTP requests
type Handler struct {
	simulator *backtest.Simulator
	log       zerolog.Logger
}

// NewHandler creates a new backtest handler
func NewHandler(simulator *backtest.Simulator, log zerolog.Logger) *Handler {
	return &Handler{
		simulator: simulator,
		log:       log.With().Str("handler", "backtest").Logger(),
	}
}

// HandleRun executes one backtest synchronously and returns the full result.
func (h *Handler) HandleRun(w http.ResponseWriter, r *http.Request) {
	var cfg backtest.RunConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	run, err := h.simulator.Run(cfg)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTrade) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusCreated, run)
}

// HandleRunMany executes a batch of backtests concurrently, returning results
// in input order. Failed runs surface as null entries with their error
// message alongside.
func (h *Handler) HandleRunMany(w http.ResponseWriter, r *http.Request) {
	var cfgs []backtest.RunConfig
	if err := json.NewDecoder(r.Body).Decode(&cfgs); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(cfgs) == 0 {
		h.writeError(w, http.StatusBadRequest, "at least one run config is required")
		return
	}

	runs, errs := h.simulator.RunMany(cfgs)

	type batchItem struct {
		Run   *backtest.Run `json:"run"`
		Error string        `json:"error,omitempty"`
	}
	items := make([]batchItem, len(runs))
	for i, run := range runs {
		items[i].Run = run
		if errs[i] != nil {
			items[i].Error = errs[i].Error()
		}
	}
	h.writeJSON(w, http.StatusOK, items)
}

// HandleGet returns a stored run by ID.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	run := h.simulator.Get(id)
	if run == nil {
		h.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	h.writeJSON(w, http.StatusOK, run)
}

// HandleList returns stored runs, newest first.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.simulator.List())
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
