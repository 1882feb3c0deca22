package handlers

import (
	"encoding/json"
	"net/http"

	"bankcards/internal/middleware"
	"bankcards/internal/services"

	"github.com/go-chi/chi/v5"
)

type transferRequest struct {
	FromCardID      int64   `json:"from_card_id"`
	ToCardID        int64   `json:"to_card_id"`
	Amount          string  `json:"amount"`
	Description     string  `json:"description"`
	ClientRequestID *string `json:"client_request_id"`
}

func (h *Handler) CreateTransfer(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.OwnerIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_amount")
		return
	}
	transfer, err := h.transfers.Execute(r.Context(), services.ExecuteRequest{
		OwnerID:         ownerID,
		FromCardID:      req.FromCardID,
		ToCardID:        req.ToCardID,
		Amount:          amount,
		Description:     req.Description,
		ClientRequestID: req.ClientRequestID,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, transferJSON(transfer))
}

func (h *Handler) ListTransfers(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.OwnerIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	limit, offset := parsePaging(r.URL.Query())
	transfers, err := h.transfers.GetHistory(r.Context(), ownerID, limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load transfers")
		return
	}
	normalized := make([]map[string]any, 0, len(transfers))
	for _, transfer := range transfers {
		normalized = append(normalized, transferJSON(transfer))
	}
	respondJSON(w, http.StatusOK, normalized)
}

func (h *Handler) GetTransfer(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.OwnerIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	transferID, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid transfer id")
		return
	}
	transfer, err := h.transfers.FindByID(r.Context(), ownerID, transferID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, transferJSON(transfer))
}

func (h *Handler) TransferStats(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.OwnerIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	stats, err := h.transfers.GetStats(r.Context(), ownerID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load stats")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"total_count":    stats.TotalCount,
		"total_amount":   stats.TotalAmount.StringFixed(2),
		"average_amount": stats.AverageAmount.StringFixed(2),
		"month_count":    stats.MonthCount,
		"month_amount":   stats.MonthAmount.StringFixed(2),
	})
}
