// Package handlers provides HTTP handlers for the security universe and
// watchlist.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/wayss/quantdesk/internal/domain"
	"github.com/wayss/quantdesk/internal/modules/universe"
)

// Handler handles universe HTTP requests
type Handler struct {
	securities *universe.SecurityRepository
	log        zerolog.Logger
}

// NewHandler creates a new universe handler
func NewHandler(securities *universe.SecurityRepository, log zerolog.Logger) *Handler {
	return &Handler{
		securities: securities,
		log:        log.With().Str("handler", "universe").Logger(),
	}
}

// HandleUpsertSecurity creates or updates one security record.
func (h *Handler) HandleUpsertSecurity(w http.ResponseWriter, r *http.Request) {
	var sec domain.Security
	if err := json.NewDecoder(r.Body).Decode(&sec); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if sec.Code == "" {
		h.writeError(w, http.StatusBadRequest, "code is required")
		return
	}

	if err := h.securities.Upsert(sec); err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusCreated, sec)
}

// HandleGetSecurity returns one security by code.
func (h *Handler) HandleGetSecurity(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	sec, err := h.securities.GetByCode(code)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if sec == nil {
		h.writeError(w, http.StatusNotFound, "security not found")
		return
	}
	h.writeJSON(w, http.StatusOK, sec)
}

// HandleListSecurities returns all securities ordered by code.
func (h *Handler) HandleListSecurities(w http.ResponseWriter, r *http.Request) {
	secs, err := h.securities.GetAll()
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if secs == nil {
		secs = []domain.Security{}
	}
	h.writeJSON(w, http.StatusOK, secs)
}

type watchRequest struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// HandleAddToWatchlist puts a code on the screening watchlist.
func (h *Handler) HandleAddToWatchlist(w http.ResponseWriter, r *http.Request) {
	var req watchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Code == "" {
		h.writeError(w, http.StatusBadRequest, "code is required")
		return
	}

	if err := h.securities.AddToWatchlist(req.Code, req.Name); err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]string{"status": "added"})
}

// HandleGetWatchlist returns watchlist codes ordered by code.
func (h *Handler) HandleGetWatchlist(w http.ResponseWriter, r *http.Request) {
	codes, err := h.securities.Watchlist()
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if codes == nil {
		codes = []string{}
	}
	h.writeJSON(w, http.StatusOK, codes)
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
