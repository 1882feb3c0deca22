package services

import (
	"context"
	"time"

	"bankcards/internal/store"
	"bankcards/internal/websocket"

	"github.com/shopspring/decimal"
)

type CardStore interface {
	Create(ctx context.Context, tx store.Getter, input store.CardInput) (store.Card, error)
	GetByID(ctx context.Context, cardID int64) (store.Card, error)
	GetForUpdate(ctx context.Context, tx store.Getter, cardID int64) (store.Card, error)
	UpdateBalance(ctx context.Context, tx store.Execer, cardID int64, balance decimal.Decimal) error
	SetBlocked(ctx context.Context, tx store.Execer, cardID int64, reason string, at time.Time) error
	SetActive(ctx context.Context, tx store.Execer, cardID int64) error
	MarkExpired(ctx context.Context, cardID int64) (bool, error)
	Delete(ctx context.Context, cardID int64) (bool, error)
	ExistsByNumber(ctx context.Context, encryptedNumber string) (bool, error)
	ListByOwner(ctx context.Context, ownerID int64, filter store.CardFilter, limit, offset int) ([]store.Card, error)
	ListAll(ctx context.Context, filter store.CardFilter, limit, offset int) ([]store.Card, error)
	FindActiveUsable(ctx context.Context, ownerID int64, today time.Time) ([]store.Card, error)
	FindExpired(ctx context.Context, today time.Time) ([]store.Card, error)
}

type TransferStore interface {
	Create(ctx context.Context, tx store.Getter, input store.TransferInput) (int64, error)
	MarkCompleted(ctx context.Context, tx store.Execer, transferID int64, processedAt time.Time) error
	RecordFailure(ctx context.Context, input store.TransferInput, message string, processedAt time.Time) (int64, error)
	GetByID(ctx context.Context, transferID int64) (store.Transfer, error)
	ListByOwner(ctx context.Context, ownerID int64, limit, offset int) ([]store.Transfer, error)
	StatsByOwner(ctx context.Context, ownerID int64, startOfMonth time.Time) (store.TransferStatsRow, error)
}

type OwnerStore interface {
	GetByID(ctx context.Context, ownerID int64) (store.Owner, error)
	GetByEmail(ctx context.Context, email string) (store.Owner, error)
}

type AuditStore interface {
	Log(ctx context.Context, tx store.Execer, actorOwnerID int64, action, entityType string, entityID int64, data string) error
}

type BalanceHub interface {
	BroadcastBalance(ownerID int64, update websocket.BalanceUpdate)
}
