package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"bankcards/internal/cardnumber"
	"bankcards/internal/clock"
	"bankcards/internal/db"
	"bankcards/internal/store"
	"bankcards/internal/validator"
	"bankcards/internal/websocket"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// createAttempts bounds internal regeneration when a generated number's
// ciphertext collides with an existing card.
const createAttempts = 3

const maxValidThruYears = 10

// CardService owns the card ledger: creation, the status state machine,
// balance top-ups and the expiration sweep.
type CardService struct {
	txRunner  db.TxRunner
	cards     CardStore
	owners    OwnerStore
	audit     AuditStore
	cipher    *cardnumber.Cipher
	clock     clock.Clock
	hub       BalanceHub
	maxAmount decimal.Decimal
	log       *logrus.Logger
}

func NewCardService(txRunner db.TxRunner, cards CardStore, owners OwnerStore, audit AuditStore, cipher *cardnumber.Cipher, clk clock.Clock, hub BalanceHub, maxAmount decimal.Decimal, log *logrus.Logger) *CardService {
	return &CardService{
		txRunner:  txRunner,
		cards:     cards,
		owners:    owners,
		audit:     audit,
		cipher:    cipher,
		clock:     clk,
		hub:       hub,
		maxAmount: maxAmount,
		log:       log,
	}
}

// Create issues a new ACTIVE card with a zero balance for the owner resolved
// by email. The generated number is Luhn-validated, encrypted for storage and
// regenerated a bounded number of times on ciphertext collision.
func (s *CardService) Create(ctx context.Context, ownerEmail string, validThru time.Time) (store.Card, error) {
	if err := validator.ValidateEmail(ownerEmail); err != nil {
		return store.Card{}, err
	}
	today := dateOnly(s.clock.Now())
	thru := dateOnly(validThru)
	if thru.Before(today) || thru.After(today.AddDate(maxValidThruYears, 0, 0)) {
		return store.Card{}, ErrInvalidValidThru
	}

	owner, err := s.owners.GetByEmail(ctx, ownerEmail)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Card{}, ErrOwnerNotFound
		}
		return store.Card{}, err
	}

	for attempt := 0; attempt < createAttempts; attempt++ {
		number, err := cardnumber.GenerateValid()
		if err != nil {
			return store.Card{}, err
		}
		encrypted, err := s.cipher.Encrypt(number)
		if err != nil {
			return store.Card{}, err
		}
		exists, err := s.cards.ExistsByNumber(ctx, encrypted)
		if err != nil {
			return store.Card{}, err
		}
		if exists {
			continue
		}

		var card store.Card
		err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
			created, err := s.cards.Create(ctx, tx, store.CardInput{
				CardNumber:   encrypted,
				MaskedNumber: cardnumber.Mask(number),
				OwnerID:      owner.ID,
				ValidThru:    thru,
			})
			if err != nil {
				return err
			}
			card = created
			data, _ := json.Marshal(map[string]string{"masked_number": card.MaskedNumber})
			return s.audit.Log(ctx, tx, owner.ID, "card_created", "card", card.ID, string(data))
		})
		if err != nil {
			// The unique index can still fire between the existence check
			// and the insert; regenerate like any other collision.
			if isUniqueViolation(err) {
				continue
			}
			return store.Card{}, err
		}
		s.log.WithFields(logrus.Fields{"card_id": card.ID, "owner_id": owner.ID}).Info("card created")
		return card, nil
	}
	return store.Card{}, ErrDuplicateCardNumber
}

// TopUp adds amount to an ACTIVE, unexpired card's balance.
func (s *CardService) TopUp(ctx context.Context, cardID int64, amount decimal.Decimal) (store.Card, error) {
	if cardID <= 0 {
		return store.Card{}, ErrInvalidCardID
	}
	if err := validateAmount(amount, s.maxAmount); err != nil {
		return store.Card{}, err
	}

	var card store.Card
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		locked, err := s.cards.GetForUpdate(ctx, tx, cardID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrCardNotFound
			}
			return err
		}
		if err := s.checkUsable(locked, ""); err != nil {
			return err
		}
		locked.Balance = locked.Balance.Add(amount)
		if err := s.cards.UpdateBalance(ctx, tx, locked.ID, locked.Balance); err != nil {
			return err
		}
		data, _ := json.Marshal(map[string]string{"amount": amount.StringFixed(2)})
		if err := s.audit.Log(ctx, tx, locked.OwnerID, "card_topup", "card", locked.ID, string(data)); err != nil {
			return err
		}
		card = locked
		return nil
	})
	if err != nil {
		return store.Card{}, err
	}
	s.hub.BroadcastBalance(card.OwnerID, websocket.BalanceUpdate{
		CardID:       card.ID,
		MaskedNumber: card.MaskedNumber,
		Balance:      card.Balance.StringFixed(2),
	})
	return card, nil
}

// Block transitions ACTIVE -> BLOCKED. Blocking an already-blocked card is a
// state conflict; EXPIRED is terminal.
func (s *CardService) Block(ctx context.Context, cardID int64, reason string) (store.Card, error) {
	if cardID <= 0 {
		return store.Card{}, ErrInvalidCardID
	}
	if err := validator.ValidateReason(reason); err != nil {
		return store.Card{}, err
	}

	var card store.Card
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		locked, err := s.cards.GetForUpdate(ctx, tx, cardID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrCardNotFound
			}
			return err
		}
		switch locked.Status {
		case store.CardStatusBlocked:
			return ErrAlreadyBlocked
		case store.CardStatusExpired:
			return ErrCardExpired
		}
		blockedAt := s.clock.Now()
		if err := s.cards.SetBlocked(ctx, tx, locked.ID, reason, blockedAt); err != nil {
			return err
		}
		locked.Status = store.CardStatusBlocked
		locked.BlockedAt = &blockedAt
		locked.BlockReason = &reason
		card = locked
		data, _ := json.Marshal(map[string]string{"reason": reason})
		return s.audit.Log(ctx, tx, locked.OwnerID, "card_blocked", "card", locked.ID, string(data))
	})
	if err != nil {
		return store.Card{}, err
	}
	return card, nil
}

// Activate transitions BLOCKED -> ACTIVE. EXPIRED cards have no recovery
// path.
func (s *CardService) Activate(ctx context.Context, cardID int64) (store.Card, error) {
	if cardID <= 0 {
		return store.Card{}, ErrInvalidCardID
	}

	var card store.Card
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		locked, err := s.cards.GetForUpdate(ctx, tx, cardID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrCardNotFound
			}
			return err
		}
		switch locked.Status {
		case store.CardStatusActive:
			return ErrAlreadyActive
		case store.CardStatusExpired:
			return ErrCardExpired
		}
		if err := s.cards.SetActive(ctx, tx, locked.ID); err != nil {
			return err
		}
		locked.Status = store.CardStatusActive
		locked.BlockedAt = nil
		locked.BlockReason = nil
		card = locked
		return s.audit.Log(ctx, tx, locked.OwnerID, "card_activated", "card", locked.ID, "{}")
	})
	if err != nil {
		return store.Card{}, err
	}
	return card, nil
}

// Delete removes a card unconditionally. Transfers referencing it keep
// their card IDs.
func (s *CardService) Delete(ctx context.Context, cardID int64) error {
	if cardID <= 0 {
		return ErrInvalidCardID
	}
	deleted, err := s.cards.Delete(ctx, cardID)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrCardNotFound
	}
	return nil
}

// CanManage reports whether the card exists and belongs to the owner.
func (s *CardService) CanManage(ctx context.Context, ownerID, cardID int64) (bool, error) {
	card, err := s.cards.GetByID(ctx, cardID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return card.OwnerID == ownerID, nil
}

func (s *CardService) FindByID(ctx context.Context, cardID int64) (store.Card, error) {
	card, err := s.cards.GetByID(ctx, cardID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Card{}, ErrCardNotFound
		}
		return store.Card{}, err
	}
	return card, nil
}

func (s *CardService) ListByOwner(ctx context.Context, ownerID int64, filter store.CardFilter, limit, offset int) ([]store.Card, error) {
	return s.cards.ListByOwner(ctx, ownerID, filter, limit, offset)
}

func (s *CardService) ListAll(ctx context.Context, filter store.CardFilter, limit, offset int) ([]store.Card, error) {
	return s.cards.ListAll(ctx, filter, limit, offset)
}

// FindActiveUsable returns the owner's cards eligible as transfer legs.
func (s *CardService) FindActiveUsable(ctx context.Context, ownerID int64) ([]store.Card, error) {
	return s.cards.FindActiveUsable(ctx, ownerID, dateOnly(s.clock.Now()))
}

// SweepExpired transitions every ACTIVE card past its valid-thru date to
// EXPIRED and returns how many cards changed. Each transition commits
// independently; a failure on one card is logged and the batch continues.
func (s *CardService) SweepExpired(ctx context.Context) (int, error) {
	today := dateOnly(s.clock.Now())
	expired, err := s.cards.FindExpired(ctx, today)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, card := range expired {
		changed, err := s.cards.MarkExpired(ctx, card.ID)
		if err != nil {
			s.log.WithError(err).WithField("card_id", card.ID).Warn("failed to expire card")
			continue
		}
		if changed {
			count++
		}
	}
	return count, nil
}

func (s *CardService) checkUsable(card store.Card, side string) error {
	today := dateOnly(s.clock.Now())
	if card.ValidThru.Before(today) {
		return &CardNotUsableError{CardID: card.ID, Mask: card.MaskedNumber, Side: side, Reason: "card is expired"}
	}
	if card.Status != store.CardStatusActive {
		return &CardNotUsableError{CardID: card.ID, Mask: card.MaskedNumber, Side: side, Reason: "card is not active"}
	}
	return nil
}

func dateOnly(t time.Time) time.Time {
	year, month, day := t.UTC().Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
