// Package handlers provides HTTP handlers for portfolio snapshots.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/wayss/quantdesk/internal/modules/snapshots"
)

// Handler handles snapshot HTTP requests
type Handler struct {
	service   *snapshots.Service
	portfolio string
	log       zerolog.Logger
}

// NewHandler creates a new snapshots handler
func NewHandler(service *snapshots.Service, portfolio string, log zerolog.Logger) *Handler {
	return &Handler{
		service:   service,
		portfolio: portfolio,
		log:       log.With().Str("handler", "snapshots").Logger(),
	}
}

func (h *Handler) portfolioName(r *http.Request) string {
	if name := r.URL.Query().Get("portfolio"); name != "" {
		return name
	}
	return h.portfolio
}

type recordRequest struct {
	Date string `json:"date"`
}

// HandleRecord marks the portfolio at the latest known closes and stores a
// snapshot for the given date (today when omitted).
func (h *Handler) HandleRecord(w http.ResponseWriter, r *http.Request) {
	var req recordRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	snap, err := h.service.Record(h.portfolioName(r), req.Date)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusCreated, snap)
}

type rebuildRequest struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// HandleRebuild replays trades and cash flows to recompute historical
// snapshots over a date range.
func (h *Handler) HandleRebuild(w http.ResponseWriter, r *http.Request) {
	var req rebuildRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	days, err := h.service.Rebuild(h.portfolioName(r), req.Start, req.End)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int{"days": days})
}

// HandleGetHistory returns stored snapshots ascending by date. Supports
// start/end query filters.
func (h *Handler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	start := r.URL.Query().Get("start")
	end := r.URL.Query().Get("end")

	history, err := h.service.History(h.portfolioName(r), start, end)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, history)
}

// HandleGetLatest returns the most recent snapshot, or 404 when none exist.
func (h *Handler) HandleGetLatest(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Latest(h.portfolioName(r))
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if snap == nil {
		h.writeError(w, http.StatusNotFound, "no snapshots recorded")
		return
	}
	h.writeJSON(w, http.StatusOK, snap)
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
