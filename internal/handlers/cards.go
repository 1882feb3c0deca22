package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"bankcards/internal/middleware"

	"github.com/go-chi/chi/v5"
)

type createCardRequest struct {
	OwnerEmail string `json:"owner_email"`
	ValidThru  string `json:"valid_thru"`
}

func (h *Handler) CreateCard(w http.ResponseWriter, r *http.Request) {
	var req createCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	validThru, err := parseDate(req.ValidThru)
	if err != nil {
		respondError(w, http.StatusBadRequest, "valid_thru must be YYYY-MM-DD")
		return
	}
	card, err := h.cards.Create(r.Context(), req.OwnerEmail, validThru)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, cardJSON(card))
}

func (h *Handler) ListCards(w http.ResponseWriter, r *http.Request) {
	filter, err := parseCardFilter(r.URL.Query())
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid status filter")
		return
	}
	limit, offset := parsePaging(r.URL.Query())
	cards, err := h.cards.ListAll(r.Context(), filter, limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load cards")
		return
	}
	respondJSON(w, http.StatusOK, cardsJSON(cards))
}

func (h *Handler) ListMyCards(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.OwnerIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	filter, err := parseCardFilter(r.URL.Query())
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid status filter")
		return
	}
	limit, offset := parsePaging(r.URL.Query())
	cards, err := h.cards.ListByOwner(r.Context(), ownerID, filter, limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load cards")
		return
	}
	respondJSON(w, http.StatusOK, cardsJSON(cards))
}

func (h *Handler) ListUsableCards(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.OwnerIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	cards, err := h.cards.FindActiveUsable(r.Context(), ownerID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load cards")
		return
	}
	respondJSON(w, http.StatusOK, cardsJSON(cards))
}

func (h *Handler) GetCard(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.OwnerIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	cardID, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid card id")
		return
	}
	card, err := h.cards.FindByID(r.Context(), cardID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if card.OwnerID != ownerID {
		admin, err := h.isAdmin(r)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "unable to check card")
			return
		}
		if !admin {
			respondError(w, http.StatusForbidden, "access_denied")
			return
		}
	}
	respondJSON(w, http.StatusOK, cardJSON(card))
}

type topUpRequest struct {
	Amount string `json:"amount"`
}

func (h *Handler) TopUpCard(w http.ResponseWriter, r *http.Request) {
	cardID, ok := h.manageableCardID(w, r)
	if !ok {
		return
	}
	var req topUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_amount")
		return
	}
	card, err := h.cards.TopUp(r.Context(), cardID, amount)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cardJSON(card))
}

type blockCardRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) BlockCard(w http.ResponseWriter, r *http.Request) {
	cardID, ok := h.manageableCardID(w, r)
	if !ok {
		return
	}
	var req blockCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	card, err := h.cards.Block(r.Context(), cardID, req.Reason)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cardJSON(card))
}

func (h *Handler) ActivateCard(w http.ResponseWriter, r *http.Request) {
	cardID, ok := h.manageableCardID(w, r)
	if !ok {
		return
	}
	card, err := h.cards.Activate(r.Context(), cardID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cardJSON(card))
}

func (h *Handler) DeleteCard(w http.ResponseWriter, r *http.Request) {
	cardID, ok := h.manageableCardID(w, r)
	if !ok {
		return
	}
	if err := h.cards.Delete(r.Context(), cardID); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) SweepCards(w http.ResponseWriter, r *http.Request) {
	count, err := h.cards.SweepExpired(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "sweep_failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"expired": count})
}

// manageableCardID extracts the card ID from the route and checks the caller
// either owns the card or is an admin.
func (h *Handler) manageableCardID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	ownerID, ok := middleware.OwnerIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return 0, false
	}
	cardID, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid card id")
		return 0, false
	}
	canManage, err := h.cards.CanManage(r.Context(), ownerID, cardID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to check card")
		return 0, false
	}
	if !canManage {
		admin, err := h.isAdmin(r)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "unable to check card")
			return 0, false
		}
		if !admin {
			respondError(w, http.StatusForbidden, "access_denied")
			return 0, false
		}
	}
	return cardID, true
}

func (h *Handler) isAdmin(r *http.Request) (bool, error) {
	ownerID, ok := middleware.OwnerIDFromContext(r.Context())
	if !ok {
		return false, nil
	}
	owner, err := h.owners.GetByID(r.Context(), ownerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return owner.IsAdmin, nil
}
