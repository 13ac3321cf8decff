// Package handlers provides HTTP handlers for importing and querying price
// bars.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/wayss/quantdesk/internal/domain"
	"github.com/wayss/quantdesk/internal/modules/marketdata"
)

// Handler handles market data HTTP requests
type Handler struct {
	bars *marketdata.BarRepository
	log  zerolog.Logger
}

// NewHandler creates a new market data handler
func NewHandler(bars *marketdata.BarRepository, log zerolog.Logger) *Handler {
	return &Handler{
		bars: bars,
		log:  log.With().Str("handler", "marketdata").Logger(),
	}
}

// HandleImportBars bulk-inserts daily bars.
func (h *Handler) HandleImportBars(w http.ResponseWriter, r *http.Request) {
	h.importBars(w, r, h.bars.SaveBars)
}

// HandleImportIndexBars bulk-inserts benchmark index bars.
func (h *Handler) HandleImportIndexBars(w http.ResponseWriter, r *http.Request) {
	h.importBars(w, r, h.bars.SaveIndexBars)
}

func (h *Handler) importBars(w http.ResponseWriter, r *http.Request, save func([]domain.Bar) error) {
	var bars []domain.Bar
	if err := json.NewDecoder(r.Body).Decode(&bars); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(bars) == 0 {
		h.writeError(w, http.StatusBadRequest, "at least one bar is required")
		return
	}

	if err := save(bars); err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]int{"imported": len(bars)})
}

// HandleGetBars returns the daily bars for one code, ascending by date.
// Supports start/end query filters.
func (h *Handler) HandleGetBars(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	start := r.URL.Query().Get("start")
	end := r.URL.Query().Get("end")

	bars, err := h.bars.GetBars(code, start, end)
	if err != nil {
		if errors.Is(err, domain.ErrNoData) {
			h.writeError(w, http.StatusNotFound, err.Error())
			return
		}
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, bars)
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
