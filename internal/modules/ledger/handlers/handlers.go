// Package handlers provides HTTP handlers for portfolio ledger operations.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/wayss/quantdesk/internal/domain"
	"github.com/wayss/quantdesk/internal/modules/ledger"
)

// Handler handles ledger HTTP requests
type Handler struct {
	service   *ledger.Service
	portfolio string
	log       zerolog.Logger
}

// NewHandler creates a new ledger handler. The portfolio argument is the
// default portfolio name used when a request does not name one.
func NewHandler(service *ledger.Service, portfolio string, log zerolog.Logger) *Handler {
	return &Handler{
		service:   service,
		portfolio: portfolio,
		log:       log.With().Str("handler", "ledger").Logger(),
	}
}

func (h *Handler) portfolioName(r *http.Request) string {
	if name := r.URL.Query().Get("portfolio"); name != "" {
		return name
	}
	return h.portfolio
}

// HandleGetReport returns the full portfolio report with priced positions.
func (h *Handler) HandleGetReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.GetReport(h.portfolioName(r))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}

// HandleGetPositions returns the open positions.
func (h *Handler) HandleGetPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := h.service.Positions(h.portfolioName(r))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, positions)
}

type initializeRequest struct {
	Date    string  `json:"date"`
	Capital float64 `json:"capital"`
}

// HandleInitialize seeds a portfolio with starting capital.
func (h *Handler) HandleInitialize(w http.ResponseWriter, r *http.Request) {
	var req initializeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.service.Initialize(h.portfolioName(r), req.Date, req.Capital); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]string{"status": "initialized"})
}

type tradeRequest struct {
	Code     string  `json:"code"`
	Date     string  `json:"date"`
	Side     string  `json:"side"`
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
	Fee      float64 `json:"fee"`
}

// HandleExecuteTrade validates and applies one trade.
func (h *Handler) HandleExecuteTrade(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	trade, err := h.service.ExecuteTrade(h.portfolioName(r), req.Code, req.Date,
		domain.Side(req.Side), req.Price, req.Quantity, req.Fee)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, trade)
}

// HandleGetTrades returns the trade log, newest first. Supports code/start/end
// query filters.
func (h *Handler) HandleGetTrades(w http.ResponseWriter, r *http.Request) {
	filter := ledger.TradeFilter{
		Code:  r.URL.Query().Get("code"),
		Start: r.URL.Query().Get("start"),
		End:   r.URL.Query().Get("end"),
	}

	trades, err := h.service.TradeHistory(h.portfolioName(r), filter)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if trades == nil {
		trades = []domain.Trade{}
	}
	h.writeJSON(w, http.StatusOK, trades)
}

type cashFlowRequest struct {
	Date   string  `json:"date"`
	Amount float64 `json:"amount"`
	Note   string  `json:"note"`
}

// HandleRecordCashFlow applies a deposit or withdrawal.
func (h *Handler) HandleRecordCashFlow(w http.ResponseWriter, r *http.Request) {
	var req cashFlowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.service.RecordCashFlow(h.portfolioName(r), req.Date, req.Amount, req.Note); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]string{"status": "recorded"})
}

// HandleGetCashFlows returns the cash-flow log, oldest first.
func (h *Handler) HandleGetCashFlows(w http.ResponseWriter, r *http.Request) {
	flows, err := h.service.CashFlows(h.portfolioName(r))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if flows == nil {
		flows = []domain.CashFlow{}
	}
	h.writeJSON(w, http.StatusOK, flows)
}

type targetPriceRequest struct {
	Code   string   `json:"code"`
	Target *float64 `json:"target"`
}

// HandleSetTargetPrice attaches or clears a position's target price.
func (h *Handler) HandleSetTargetPrice(w http.ResponseWriter, r *http.Request) {
	var req targetPriceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.service.SetTargetPrice(h.portfolioName(r), req.Code, req.Target); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// HandleReset wipes all state for a portfolio.
func (h *Handler) HandleReset(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Reset(h.portfolioName(r)); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// writeDomainError maps domain errors onto HTTP statuses.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidTrade):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrInsufficientCash),
		errors.Is(err, domain.ErrInsufficientPosition):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrNotInitialized),
		errors.Is(err, domain.ErrNoData):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrMissingPrice):
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		h.writeError(w, http.StatusInternalServerError, err.Error())
	}
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
