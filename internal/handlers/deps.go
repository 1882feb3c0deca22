package handlers

import (
	"context"
	"time"

	"bankcards/internal/services"
	"bankcards/internal/store"

	"github.com/shopspring/decimal"
)

type CardManager interface {
	Create(ctx context.Context, ownerEmail string, validThru time.Time) (store.Card, error)
	TopUp(ctx context.Context, cardID int64, amount decimal.Decimal) (store.Card, error)
	Block(ctx context.Context, cardID int64, reason string) (store.Card, error)
	Activate(ctx context.Context, cardID int64) (store.Card, error)
	Delete(ctx context.Context, cardID int64) error
	CanManage(ctx context.Context, ownerID, cardID int64) (bool, error)
	FindByID(ctx context.Context, cardID int64) (store.Card, error)
	ListByOwner(ctx context.Context, ownerID int64, filter store.CardFilter, limit, offset int) ([]store.Card, error)
	ListAll(ctx context.Context, filter store.CardFilter, limit, offset int) ([]store.Card, error)
	FindActiveUsable(ctx context.Context, ownerID int64) ([]store.Card, error)
	SweepExpired(ctx context.Context) (int, error)
}

type TransferManager interface {
	Execute(ctx context.Context, req services.ExecuteRequest) (store.Transfer, error)
	GetHistory(ctx context.Context, ownerID int64, limit, offset int) ([]store.Transfer, error)
	FindByID(ctx context.Context, ownerID, transferID int64) (store.Transfer, error)
	GetStats(ctx context.Context, ownerID int64) (services.TransferStats, error)
}

type OwnerStore interface {
	Create(ctx context.Context, name, email, passwordHash string) (store.Owner, error)
	GetByID(ctx context.Context, ownerID int64) (store.Owner, error)
	GetByEmail(ctx context.Context, email string) (store.Owner, error)
}
