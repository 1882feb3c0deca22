package handlers

import (
	"context"
	"time"

	"bankcards/internal/config"
	"bankcards/internal/services"
	"bankcards/internal/store"
	"bankcards/internal/websocket"

	"github.com/shopspring/decimal"
)

type stubCardManager struct {
	createFn           func(ctx context.Context, ownerEmail string, validThru time.Time) (store.Card, error)
	topUpFn            func(ctx context.Context, cardID int64, amount decimal.Decimal) (store.Card, error)
	blockFn            func(ctx context.Context, cardID int64, reason string) (store.Card, error)
	activateFn         func(ctx context.Context, cardID int64) (store.Card, error)
	deleteFn           func(ctx context.Context, cardID int64) error
	canManageFn        func(ctx context.Context, ownerID, cardID int64) (bool, error)
	findByIDFn         func(ctx context.Context, cardID int64) (store.Card, error)
	listByOwnerFn      func(ctx context.Context, ownerID int64, filter store.CardFilter, limit, offset int) ([]store.Card, error)
	listAllFn          func(ctx context.Context, filter store.CardFilter, limit, offset int) ([]store.Card, error)
	findActiveUsableFn func(ctx context.Context, ownerID int64) ([]store.Card, error)
	sweepFn            func(ctx context.Context) (int, error)
}

func (s stubCardManager) Create(ctx context.Context, ownerEmail string, validThru time.Time) (store.Card, error) {
	if s.createFn == nil {
		return store.Card{}, nil
	}
	return s.createFn(ctx, ownerEmail, validThru)
}

func (s stubCardManager) TopUp(ctx context.Context, cardID int64, amount decimal.Decimal) (store.Card, error) {
	if s.topUpFn == nil {
		return store.Card{}, nil
	}
	return s.topUpFn(ctx, cardID, amount)
}

func (s stubCardManager) Block(ctx context.Context, cardID int64, reason string) (store.Card, error) {
	if s.blockFn == nil {
		return store.Card{}, nil
	}
	return s.blockFn(ctx, cardID, reason)
}

func (s stubCardManager) Activate(ctx context.Context, cardID int64) (store.Card, error) {
	if s.activateFn == nil {
		return store.Card{}, nil
	}
	return s.activateFn(ctx, cardID)
}

func (s stubCardManager) Delete(ctx context.Context, cardID int64) error {
	if s.deleteFn == nil {
		return nil
	}
	return s.deleteFn(ctx, cardID)
}

func (s stubCardManager) CanManage(ctx context.Context, ownerID, cardID int64) (bool, error) {
	if s.canManageFn == nil {
		return true, nil
	}
	return s.canManageFn(ctx, ownerID, cardID)
}

func (s stubCardManager) FindByID(ctx context.Context, cardID int64) (store.Card, error) {
	if s.findByIDFn == nil {
		return store.Card{}, nil
	}
	return s.findByIDFn(ctx, cardID)
}

func (s stubCardManager) ListByOwner(ctx context.Context, ownerID int64, filter store.CardFilter, limit, offset int) ([]store.Card, error) {
	if s.listByOwnerFn == nil {
		return nil, nil
	}
	return s.listByOwnerFn(ctx, ownerID, filter, limit, offset)
}

func (s stubCardManager) ListAll(ctx context.Context, filter store.CardFilter, limit, offset int) ([]store.Card, error) {
	if s.listAllFn == nil {
		return nil, nil
	}
	return s.listAllFn(ctx, filter, limit, offset)
}

func (s stubCardManager) FindActiveUsable(ctx context.Context, ownerID int64) ([]store.Card, error) {
	if s.findActiveUsableFn == nil {
		return nil, nil
	}
	return s.findActiveUsableFn(ctx, ownerID)
}

func (s stubCardManager) SweepExpired(ctx context.Context) (int, error) {
	if s.sweepFn == nil {
		return 0, nil
	}
	return s.sweepFn(ctx)
}

type stubTransferManager struct {
	executeFn    func(ctx context.Context, req services.ExecuteRequest) (store.Transfer, error)
	getHistoryFn func(ctx context.Context, ownerID int64, limit, offset int) ([]store.Transfer, error)
	findByIDFn   func(ctx context.Context, ownerID, transferID int64) (store.Transfer, error)
	getStatsFn   func(ctx context.Context, ownerID int64) (services.TransferStats, error)
}

func (s stubTransferManager) Execute(ctx context.Context, req services.ExecuteRequest) (store.Transfer, error) {
	if s.executeFn == nil {
		return store.Transfer{}, nil
	}
	return s.executeFn(ctx, req)
}

func (s stubTransferManager) GetHistory(ctx context.Context, ownerID int64, limit, offset int) ([]store.Transfer, error) {
	if s.getHistoryFn == nil {
		return nil, nil
	}
	return s.getHistoryFn(ctx, ownerID, limit, offset)
}

func (s stubTransferManager) FindByID(ctx context.Context, ownerID, transferID int64) (store.Transfer, error) {
	if s.findByIDFn == nil {
		return store.Transfer{}, nil
	}
	return s.findByIDFn(ctx, ownerID, transferID)
}

func (s stubTransferManager) GetStats(ctx context.Context, ownerID int64) (services.TransferStats, error) {
	if s.getStatsFn == nil {
		return services.TransferStats{}, nil
	}
	return s.getStatsFn(ctx, ownerID)
}

type stubOwnerStore struct {
	createFn     func(ctx context.Context, name, email, passwordHash string) (store.Owner, error)
	getByIDFn    func(ctx context.Context, ownerID int64) (store.Owner, error)
	getByEmailFn func(ctx context.Context, email string) (store.Owner, error)
}

func (s stubOwnerStore) Create(ctx context.Context, name, email, passwordHash string) (store.Owner, error) {
	if s.createFn == nil {
		return store.Owner{}, nil
	}
	return s.createFn(ctx, name, email, passwordHash)
}

func (s stubOwnerStore) GetByID(ctx context.Context, ownerID int64) (store.Owner, error) {
	if s.getByIDFn == nil {
		return store.Owner{ID: ownerID}, nil
	}
	return s.getByIDFn(ctx, ownerID)
}

func (s stubOwnerStore) GetByEmail(ctx context.Context, email string) (store.Owner, error) {
	if s.getByEmailFn == nil {
		return store.Owner{}, nil
	}
	return s.getByEmailFn(ctx, email)
}

type stubAuditLister struct {
	listFn func(ctx context.Context, limit, offset int) ([]map[string]any, error)
}

func (s stubAuditLister) List(ctx context.Context, limit, offset int) ([]map[string]any, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, limit, offset)
}

func newTestHandler(cards CardManager, transfers TransferManager, owners OwnerStore, audit AuditLister) *Handler {
	cfg := config.Config{
		AppEnv:         "test",
		Port:           "0",
		AllowedOrigins: "*",
	}
	return New(cfg, cards, transfers, owners, audit, websocket.NewHub())
}
