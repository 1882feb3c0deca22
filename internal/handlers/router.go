package handlers

import (
	"context"
	"net/http"

	"bankcards/internal/config"
	"bankcards/internal/middleware"
	"bankcards/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type AuditLister interface {
	List(ctx context.Context, limit, offset int) ([]map[string]any, error)
}

type Handler struct {
	cfg       config.Config
	cards     CardManager
	transfers TransferManager
	owners    OwnerStore
	audit     AuditLister
	hub       *websocket.Hub
}

func New(cfg config.Config, cards CardManager, transfers TransferManager, owners OwnerStore, audit AuditLister, hub *websocket.Hub) *Handler {
	return &Handler{
		cfg:       cfg,
		cards:     cards,
		transfers: transfers,
		owners:    owners,
		audit:     audit,
		hub:       hub,
	}
}

func (h *Handler) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.Logger)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{h.cfg.AllowedOrigins},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Owner-ID", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Post("/owners", h.RegisterOwner)
	router.With(middleware.Owner).Get("/owners/{id}", h.GetOwner)

	router.Route("/cards", func(r chi.Router) {
		r.Use(middleware.Owner)
		r.With(middleware.RequireAdmin(h.owners)).Post("/", h.CreateCard)
		r.With(middleware.RequireAdmin(h.owners)).Get("/", h.ListCards)
		r.Get("/mine", h.ListMyCards)
		r.Get("/mine/usable", h.ListUsableCards)
		r.Get("/{id}", h.GetCard)
		r.Post("/{id}/topup", h.TopUpCard)
		r.Post("/{id}/block", h.BlockCard)
		r.Post("/{id}/activate", h.ActivateCard)
		r.Delete("/{id}", h.DeleteCard)
	})

	router.Route("/transfers", func(r chi.Router) {
		r.Use(middleware.Owner)
		r.Post("/", h.CreateTransfer)
		r.Get("/", h.ListTransfers)
		r.Get("/stats", h.TransferStats)
		r.Get("/{id}", h.GetTransfer)
	})

	router.Route("/admin", func(r chi.Router) {
		r.Use(middleware.Owner)
		r.Use(middleware.RequireAdmin(h.owners))
		r.Post("/cards/sweep", h.SweepCards)
		r.Get("/audit", h.ListAuditLogs)
	})

	router.With(middleware.Owner).Get("/ws/balances", h.WSBalances)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return router
}

func (h *Handler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePaging(r.URL.Query())
	logs, err := h.audit.List(r.Context(), limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load audit logs")
		return
	}
	respondJSON(w, http.StatusOK, logs)
}

func (h *Handler) WSBalances(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.OwnerIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	websocket.ServeWS(w, r, h.hub, ownerID)
}
