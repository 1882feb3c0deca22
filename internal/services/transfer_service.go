package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"bankcards/internal/clock"
	"bankcards/internal/db"
	"bankcards/internal/store"
	"bankcards/internal/validator"
	"bankcards/internal/websocket"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// ExecuteRequest carries one transfer attempt between two cards of the same
// owner. ClientRequestID is optional; when set it deduplicates retries of the
// same logical transfer.
type ExecuteRequest struct {
	OwnerID         int64
	FromCardID      int64
	ToCardID        int64
	Amount          decimal.Decimal
	Description     string
	ClientRequestID *string
}

// TransferStats is the aggregate view of an owner's transfer activity.
// Counts cover every recorded attempt; amounts cover COMPLETED transfers.
type TransferStats struct {
	TotalCount    int64
	TotalAmount   decimal.Decimal
	AverageAmount decimal.Decimal
	MonthCount    int64
	MonthAmount   decimal.Decimal
}

// TransferService moves funds between cards. Each transfer debits and
// credits inside a single transaction with both card rows locked, so a
// failure at any point leaves both balances untouched.
type TransferService struct {
	txRunner  db.TxRunner
	cards     CardStore
	transfers TransferStore
	audit     AuditStore
	clock     clock.Clock
	hub       BalanceHub
	maxAmount decimal.Decimal
	log       *logrus.Logger
}

func NewTransferService(txRunner db.TxRunner, cards CardStore, transfers TransferStore, audit AuditStore, clk clock.Clock, hub BalanceHub, maxAmount decimal.Decimal, log *logrus.Logger) *TransferService {
	return &TransferService{
		txRunner:  txRunner,
		cards:     cards,
		transfers: transfers,
		audit:     audit,
		clock:     clk,
		hub:       hub,
		maxAmount: maxAmount,
		log:       log,
	}
}

// Execute runs a transfer end to end. Input, ownership, usability and
// sufficiency violations return before any record exists. Failures after the
// attempt is recorded roll the transaction back and then record a terminal
// FAILED transfer carrying the failure message.
func (s *TransferService) Execute(ctx context.Context, req ExecuteRequest) (store.Transfer, error) {
	if req.FromCardID <= 0 || req.ToCardID <= 0 {
		return store.Transfer{}, ErrInvalidCardID
	}
	if req.FromCardID == req.ToCardID {
		return store.Transfer{}, ErrSameCardTransfer
	}
	if err := validateAmount(req.Amount, s.maxAmount); err != nil {
		return store.Transfer{}, err
	}
	if err := validator.ValidateDescription(req.Description); err != nil {
		return store.Transfer{}, err
	}
	if err := s.checkOwnership(ctx, req.OwnerID, req.FromCardID); err != nil {
		return store.Transfer{}, err
	}
	if err := s.checkOwnership(ctx, req.OwnerID, req.ToCardID); err != nil {
		return store.Transfer{}, err
	}

	input := store.TransferInput{
		FromCardID:      req.FromCardID,
		ToCardID:        req.ToCardID,
		Amount:          req.Amount,
		Description:     req.Description,
		ClientRequestID: req.ClientRequestID,
	}

	var (
		transferID int64
		from, to   store.Card
		attempted  bool
	)
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		attempted = false
		var err error
		from, to, err = s.lockTwoCards(ctx, tx, req.FromCardID, req.ToCardID)
		if err != nil {
			return err
		}
		if err := s.checkUsable(from, "sender"); err != nil {
			return err
		}
		if err := s.checkUsable(to, "recipient"); err != nil {
			return err
		}
		if from.Balance.LessThan(req.Amount) {
			return &InsufficientFundsError{Available: from.Balance, Requested: req.Amount}
		}

		transferID, err = s.transfers.Create(ctx, tx, input)
		if err != nil {
			return err
		}
		attempted = true

		from.Balance = from.Balance.Sub(req.Amount)
		to.Balance = to.Balance.Add(req.Amount)
		if err := s.cards.UpdateBalance(ctx, tx, from.ID, from.Balance); err != nil {
			return err
		}
		if err := s.cards.UpdateBalance(ctx, tx, to.ID, to.Balance); err != nil {
			return err
		}
		if err := s.transfers.MarkCompleted(ctx, tx, transferID, s.clock.Now()); err != nil {
			return err
		}
		return s.audit.Log(ctx, tx, req.OwnerID, "transfer_completed", "transfer", transferID, "{}")
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrCardNotFound
		}
		if attempted {
			return s.recordFailure(ctx, input, err)
		}
		return store.Transfer{}, err
	}

	transfer, err := s.transfers.GetByID(ctx, transferID)
	if err != nil {
		return store.Transfer{}, err
	}
	s.log.WithFields(logrus.Fields{
		"transfer_id": transfer.ID,
		"from_card":   from.ID,
		"to_card":     to.ID,
		"amount":      req.Amount.StringFixed(2),
	}).Info("transfer completed")
	s.hub.BroadcastBalance(from.OwnerID, websocket.BalanceUpdate{
		CardID:       from.ID,
		MaskedNumber: from.MaskedNumber,
		Balance:      from.Balance.StringFixed(2),
	})
	s.hub.BroadcastBalance(to.OwnerID, websocket.BalanceUpdate{
		CardID:       to.ID,
		MaskedNumber: to.MaskedNumber,
		Balance:      to.Balance.StringFixed(2),
	})
	return transfer, nil
}

// recordFailure writes the terminal FAILED transfer after the attempt's
// transaction has rolled back, then returns the original failure.
func (s *TransferService) recordFailure(ctx context.Context, input store.TransferInput, cause error) (store.Transfer, error) {
	failedID, recErr := s.transfers.RecordFailure(ctx, input, cause.Error(), s.clock.Now())
	if recErr != nil {
		s.log.WithError(recErr).WithFields(logrus.Fields{
			"from_card": input.FromCardID,
			"to_card":   input.ToCardID,
		}).Error("failed to record transfer failure")
		return store.Transfer{}, cause
	}
	s.log.WithFields(logrus.Fields{
		"transfer_id": failedID,
		"from_card":   input.FromCardID,
		"to_card":     input.ToCardID,
		"reason":      cause.Error(),
	}).Warn("transfer failed")
	return store.Transfer{}, cause
}

// lockTwoCards takes FOR UPDATE locks on both card rows in ascending ID
// order so concurrent transfers over the same pair cannot deadlock.
func (s *TransferService) lockTwoCards(ctx context.Context, tx *sqlx.Tx, firstID, secondID int64) (store.Card, store.Card, error) {
	lowID, highID := firstID, secondID
	if lowID > highID {
		lowID, highID = highID, lowID
	}
	low, err := s.cards.GetForUpdate(ctx, tx, lowID)
	if err != nil {
		return store.Card{}, store.Card{}, err
	}
	high, err := s.cards.GetForUpdate(ctx, tx, highID)
	if err != nil {
		return store.Card{}, store.Card{}, err
	}
	if low.ID == firstID {
		return low, high, nil
	}
	return high, low, nil
}

func (s *TransferService) checkOwnership(ctx context.Context, ownerID, cardID int64) error {
	card, err := s.cards.GetByID(ctx, cardID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrCardNotFound
		}
		return err
	}
	if card.OwnerID != ownerID {
		return ErrAccessDenied
	}
	return nil
}

func (s *TransferService) checkUsable(card store.Card, side string) error {
	today := dateOnly(s.clock.Now())
	if card.ValidThru.Before(today) {
		return &CardNotUsableError{CardID: card.ID, Mask: card.MaskedNumber, Side: side, Reason: "card is expired"}
	}
	if card.Status != store.CardStatusActive {
		return &CardNotUsableError{CardID: card.ID, Mask: card.MaskedNumber, Side: side, Reason: "card is not active"}
	}
	return nil
}

// GetHistory returns the owner's transfers, both sent and received, newest
// first.
func (s *TransferService) GetHistory(ctx context.Context, ownerID int64, limit, offset int) ([]store.Transfer, error) {
	return s.transfers.ListByOwner(ctx, ownerID, limit, offset)
}

// FindByID returns a transfer only when one of its legs belongs to the
// owner. Transfers of other owners are indistinguishable from missing ones.
func (s *TransferService) FindByID(ctx context.Context, ownerID, transferID int64) (store.Transfer, error) {
	transfer, err := s.transfers.GetByID(ctx, transferID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Transfer{}, ErrTransferNotFound
		}
		return store.Transfer{}, err
	}
	owns, err := s.ownsLeg(ctx, ownerID, transfer.FromCardID)
	if err != nil {
		return store.Transfer{}, err
	}
	if !owns {
		owns, err = s.ownsLeg(ctx, ownerID, transfer.ToCardID)
		if err != nil {
			return store.Transfer{}, err
		}
	}
	if !owns {
		return store.Transfer{}, ErrTransferNotFound
	}
	return transfer, nil
}

func (s *TransferService) ownsLeg(ctx context.Context, ownerID, cardID int64) (bool, error) {
	card, err := s.cards.GetByID(ctx, cardID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return card.OwnerID == ownerID, nil
}

// GetStats aggregates the owner's transfer activity. The average is over all
// recorded attempts, matching how the totals are counted.
func (s *TransferService) GetStats(ctx context.Context, ownerID int64) (TransferStats, error) {
	now := s.clock.Now().UTC()
	startOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	row, err := s.transfers.StatsByOwner(ctx, ownerID, startOfMonth)
	if err != nil {
		return TransferStats{}, err
	}
	stats := TransferStats{
		TotalCount:  row.TotalCount,
		TotalAmount: row.TotalAmount,
		MonthCount:  row.MonthCount,
		MonthAmount: row.MonthAmount,
	}
	if row.TotalCount > 0 {
		stats.AverageAmount = row.TotalAmount.Div(decimal.NewFromInt(row.TotalCount)).Round(2)
	}
	return stats, nil
}
