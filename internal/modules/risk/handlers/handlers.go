// Package handlers provides HTTP handlers for portfolio risk reports.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/wayss/quantdesk/internal/domain"
	"github.com/wayss/quantdesk/internal/modules/risk"
)

// Handler handles risk HTTP requests
type Handler struct {
	analyzer  *risk.Analyzer
	portfolio string
	log       zerolog.Logger
}

// NewHandler creates a new risk handler
func NewHandler(analyzer *risk.Analyzer, portfolio string, log zerolog.Logger) *Handler {
	return &Handler{
		analyzer:  analyzer,
		portfolio: portfolio,
		log:       log.With().Str("handler", "risk").Logger(),
	}
}

// HandleGetReport computes VaR, CVaR, concentration and limit violations for
// the portfolio's current state.
func (h *Handler) HandleGetReport(w http.ResponseWriter, r *http.Request) {
	portfolio := r.URL.Query().Get("portfolio")
	if portfolio == "" {
		portfolio = h.portfolio
	}

	report, err := h.analyzer.AnalyzePortfolio(portfolio)
	if err != nil {
		if errors.Is(err, domain.ErrNotInitialized) {
			h.writeError(w, http.StatusNotFound, err.Error())
			return
		}
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, report)
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
