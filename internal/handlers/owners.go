package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"bankcards/internal/store"
	"bankcards/internal/validator"

	"github.com/go-chi/chi/v5"
	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"
)

type registerOwnerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) RegisterOwner(w http.ResponseWriter, r *http.Request) {
	var req registerOwnerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if err := validator.ValidateName(req.Name); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validator.ValidateEmail(req.Email); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validator.ValidatePassword(req.Password); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to register")
		return
	}
	owner, err := h.owners.Create(r.Context(), req.Name, req.Email, string(hash))
	if err != nil {
		if pgErr, ok := err.(*pq.Error); ok && pgErr.Code == "23505" {
			respondError(w, http.StatusConflict, "email already registered")
			return
		}
		respondError(w, http.StatusInternalServerError, "unable to register")
		return
	}
	respondJSON(w, http.StatusCreated, ownerJSON(owner))
}

func (h *Handler) GetOwner(w http.ResponseWriter, r *http.Request) {
	ownerID, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid owner id")
		return
	}
	owner, err := h.owners.GetByID(r.Context(), ownerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusNotFound, "owner not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "unable to load owner")
		return
	}
	respondJSON(w, http.StatusOK, ownerJSON(owner))
}

func ownerJSON(owner store.Owner) map[string]any {
	return map[string]any{
		"id":         owner.ID,
		"name":       owner.Name,
		"email":      owner.Email,
		"is_admin":   owner.IsAdmin,
		"created_at": owner.CreatedAt,
	}
}
