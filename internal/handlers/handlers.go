package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"bankcards/internal/services"
	"bankcards/internal/store"
	"bankcards/internal/validator"

	"github.com/lib/pq"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps the shared service error taxonomy to HTTP
// statuses. Endpoint-specific errors are handled before calling it.
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCardNotFound),
		errors.Is(err, services.ErrOwnerNotFound),
		errors.Is(err, services.ErrTransferNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrAccessDenied):
		respondError(w, http.StatusForbidden, "access_denied")
	case errors.Is(err, services.ErrAlreadyBlocked),
		errors.Is(err, services.ErrAlreadyActive),
		errors.Is(err, services.ErrCardExpired),
		errors.Is(err, services.ErrDuplicateCardNumber):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrInsufficientFunds),
		errors.Is(err, services.ErrCardNotUsable),
		errors.Is(err, services.ErrSameCardTransfer),
		errors.Is(err, services.ErrInvalidCardID),
		errors.Is(err, services.ErrInvalidAmount),
		errors.Is(err, services.ErrAmountPrecision),
		errors.Is(err, services.ErrAmountTooLarge),
		errors.Is(err, services.ErrInvalidValidThru),
		errors.Is(err, validator.ErrInvalidEmail),
		errors.Is(err, validator.ErrInvalidName),
		errors.Is(err, validator.ErrInvalidPassword),
		errors.Is(err, validator.ErrDescriptionTooLong),
		errors.Is(err, validator.ErrEmptyReason):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		if pgErr, ok := err.(*pq.Error); ok && pgErr.Code == "23505" {
			respondError(w, http.StatusConflict, "duplicate_request")
			return
		}
		respondError(w, http.StatusInternalServerError, "internal_error")
	}
}

func cardJSON(card store.Card) map[string]any {
	return map[string]any{
		"id":            card.ID,
		"masked_number": card.MaskedNumber,
		"owner_id":      card.OwnerID,
		"valid_thru":    card.ValidThru.Format("2006-01-02"),
		"status":        card.Status,
		"balance":       card.Balance.StringFixed(2),
		"created_at":    card.CreatedAt,
		"blocked_at":    card.BlockedAt,
		"block_reason":  card.BlockReason,
	}
}

func cardsJSON(cards []store.Card) []map[string]any {
	out := make([]map[string]any, 0, len(cards))
	for _, card := range cards {
		out = append(out, cardJSON(card))
	}
	return out
}

func transferJSON(transfer store.Transfer) map[string]any {
	return map[string]any{
		"id":                transfer.ID,
		"from_card_id":      transfer.FromCardID,
		"to_card_id":        transfer.ToCardID,
		"amount":            transfer.Amount.StringFixed(2),
		"description":       transfer.Description,
		"status":            transfer.Status,
		"created_at":        transfer.CreatedAt,
		"processed_at":      transfer.ProcessedAt,
		"error_message":     transfer.ErrorMessage,
		"client_request_id": transfer.ClientRequestID,
	}
}
