// Package handlers provides HTTP handlers for strategy screening and signals.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/wayss/quantdesk/internal/modules/strategies"
)

// Handler handles strategy HTTP requests
type Handler struct {
	service *strategies.Service
	log     zerolog.Logger
}

// NewHandler creates a new strategies handler
func NewHandler(service *strategies.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "strategies").Logger(),
	}
}

type strategyInfo struct {
	Name   string                 `json:"name"`
	Params []strategies.ParamSpec `json:"params"`
}

// HandleList returns the registered strategies with their parameter schemas.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	registry := h.service.Registry()

	infos := []strategyInfo{}
	for _, name := range registry.List() {
		strat, err := registry.Get(name)
		if err != nil {
			continue
		}
		infos = append(infos, strategyInfo{Name: name, Params: strat.Params()})
	}
	h.writeJSON(w, http.StatusOK, infos)
}

// HandleGetParams returns one strategy's parameter schema.
func (h *Handler) HandleGetParams(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	strat, err := h.service.Registry().Get(name)
	if err != nil {
		h.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, strat.Params())
}

type screenRequest struct {
	Strategy string             `json:"strategy"`
	Codes    []string           `json:"codes"`
	Params   map[string]float64 `json:"params"`
}

// HandleScreen runs a strategy over the given codes (or the watchlist when
// none are given) and returns securities with an entry signal at the latest
// bar.
func (h *Handler) HandleScreen(w http.ResponseWriter, r *http.Request) {
	var req screenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Strategy == "" {
		h.writeError(w, http.StatusBadRequest, "strategy is required")
		return
	}

	var (
		results []strategies.ScreenResult
		err     error
	)
	if len(req.Codes) == 0 {
		results, err = h.service.ScreenWatchlist(req.Strategy, req.Params)
	} else {
		results, err = h.service.Screen(req.Strategy, req.Codes, req.Params)
	}
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if results == nil {
		results = []strategies.ScreenResult{}
	}
	h.writeJSON(w, http.StatusOK, results)
}

// HandleGetSignals returns archived signals for a strategy. Supports
// start/end query filters.
func (h *Handler) HandleGetSignals(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	start := r.URL.Query().Get("start")
	end := r.URL.Query().Get("end")

	signals, err := h.service.Signals(name, start, end)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, signals)
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
