package services

import (
	"context"
	"database/sql"
	"strconv"
	"sync"
	"time"

	"bankcards/internal/cardnumber"
	"bankcards/internal/clock"
	"bankcards/internal/store"
	"bankcards/internal/websocket"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// memStore is an in-memory stand-in for the card, transfer, owner and audit
// stores. memTxRunner snapshots it before each transaction and restores the
// snapshot on failure, so the services' rollback behavior is observable.
type memStore struct {
	mu             sync.Mutex
	cards          map[int64]store.Card
	transfers      map[int64]store.Transfer
	owners         map[int64]store.Owner
	auditActions   []string
	nextCardID     int64
	nextTransferID int64

	// failBalanceCard injects a write failure when the balance of the given
	// card is updated.
	failBalanceCard int64
	failBalanceErr  error
}

func newMemStore() *memStore {
	return &memStore{
		cards:          make(map[int64]store.Card),
		transfers:      make(map[int64]store.Transfer),
		owners:         make(map[int64]store.Owner),
		nextCardID:     1,
		nextTransferID: 1,
	}
}

type memSnapshot struct {
	cards          map[int64]store.Card
	transfers      map[int64]store.Transfer
	auditActions   []string
	nextCardID     int64
	nextTransferID int64
}

func (m *memStore) snapshot() memSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := memSnapshot{
		cards:          make(map[int64]store.Card, len(m.cards)),
		transfers:      make(map[int64]store.Transfer, len(m.transfers)),
		auditActions:   append([]string(nil), m.auditActions...),
		nextCardID:     m.nextCardID,
		nextTransferID: m.nextTransferID,
	}
	for id, card := range m.cards {
		snap.cards[id] = card
	}
	for id, transfer := range m.transfers {
		snap.transfers[id] = transfer
	}
	return snap
}

func (m *memStore) restore(snap memSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cards = snap.cards
	m.transfers = snap.transfers
	m.auditActions = snap.auditActions
	m.nextCardID = snap.nextCardID
	m.nextTransferID = snap.nextTransferID
}

func (m *memStore) addOwner(name, email string) store.Owner {
	m.mu.Lock()
	defer m.mu.Unlock()
	owner := store.Owner{ID: int64(len(m.owners) + 1), Name: name, Email: email}
	m.owners[owner.ID] = owner
	return owner
}

func (m *memStore) addCard(ownerID int64, balance decimal.Decimal, status store.CardStatus, validThru time.Time) store.Card {
	m.mu.Lock()
	defer m.mu.Unlock()
	card := store.Card{
		ID:           m.nextCardID,
		CardNumber:   "enc-" + strconv.FormatInt(m.nextCardID, 10),
		MaskedNumber: "**** **** **** 0366",
		OwnerID:      ownerID,
		ValidThru:    validThru,
		Status:       status,
		Balance:      balance,
	}
	m.nextCardID++
	m.cards[card.ID] = card
	return card
}

func (m *memStore) cardBalance(cardID int64) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cards[cardID].Balance
}

func (m *memStore) transfersByStatus(status store.TransferStatus) []store.Transfer {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.Transfer
	for _, transfer := range m.transfers {
		if transfer.Status == status {
			out = append(out, transfer)
		}
	}
	return out
}

// CardStore

func (m *memStore) Create(_ context.Context, _ store.Getter, input store.CardInput) (store.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, card := range m.cards {
		if card.CardNumber == input.CardNumber {
			return store.Card{}, &pq.Error{Code: "23505"}
		}
	}
	card := store.Card{
		ID:           m.nextCardID,
		CardNumber:   input.CardNumber,
		MaskedNumber: input.MaskedNumber,
		OwnerID:      input.OwnerID,
		ValidThru:    input.ValidThru,
		Status:       store.CardStatusActive,
		Balance:      decimal.Zero,
	}
	m.nextCardID++
	m.cards[card.ID] = card
	return card, nil
}

func (m *memStore) GetByID(_ context.Context, cardID int64) (store.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	card, ok := m.cards[cardID]
	if !ok {
		return store.Card{}, sql.ErrNoRows
	}
	return card, nil
}

func (m *memStore) GetForUpdate(ctx context.Context, _ store.Getter, cardID int64) (store.Card, error) {
	return m.GetByID(ctx, cardID)
}

func (m *memStore) UpdateBalance(_ context.Context, _ store.Execer, cardID int64, balance decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failBalanceCard == cardID && m.failBalanceErr != nil {
		return m.failBalanceErr
	}
	card, ok := m.cards[cardID]
	if !ok {
		return sql.ErrNoRows
	}
	card.Balance = balance
	m.cards[cardID] = card
	return nil
}

func (m *memStore) SetBlocked(_ context.Context, _ store.Execer, cardID int64, reason string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	card := m.cards[cardID]
	card.Status = store.CardStatusBlocked
	card.BlockedAt = &at
	card.BlockReason = &reason
	m.cards[cardID] = card
	return nil
}

func (m *memStore) SetActive(_ context.Context, _ store.Execer, cardID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	card := m.cards[cardID]
	card.Status = store.CardStatusActive
	card.BlockedAt = nil
	card.BlockReason = nil
	m.cards[cardID] = card
	return nil
}

func (m *memStore) MarkExpired(_ context.Context, cardID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	card, ok := m.cards[cardID]
	if !ok || card.Status != store.CardStatusActive {
		return false, nil
	}
	card.Status = store.CardStatusExpired
	m.cards[cardID] = card
	return true, nil
}

func (m *memStore) Delete(_ context.Context, cardID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.cards[cardID]; !ok {
		return false, nil
	}
	delete(m.cards, cardID)
	return true, nil
}

func (m *memStore) ExistsByNumber(_ context.Context, encryptedNumber string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, card := range m.cards {
		if card.CardNumber == encryptedNumber {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) ListByOwner(_ context.Context, ownerID int64, filter store.CardFilter, _, _ int) ([]store.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.Card
	for _, card := range m.cards {
		if card.OwnerID != ownerID {
			continue
		}
		if filter.Status != nil && card.Status != *filter.Status {
			continue
		}
		out = append(out, card)
	}
	return out, nil
}

func (m *memStore) ListAll(_ context.Context, filter store.CardFilter, _, _ int) ([]store.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.Card
	for _, card := range m.cards {
		if filter.Status != nil && card.Status != *filter.Status {
			continue
		}
		out = append(out, card)
	}
	return out, nil
}

func (m *memStore) FindActiveUsable(_ context.Context, ownerID int64, today time.Time) ([]store.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.Card
	for _, card := range m.cards {
		if card.OwnerID == ownerID && card.Status == store.CardStatusActive && !card.ValidThru.Before(today) {
			out = append(out, card)
		}
	}
	return out, nil
}

func (m *memStore) FindExpired(_ context.Context, today time.Time) ([]store.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.Card
	for _, card := range m.cards {
		if card.Status == store.CardStatusActive && card.ValidThru.Before(today) {
			out = append(out, card)
		}
	}
	return out, nil
}

// TransferStore

func (m *memStore) CreateTransfer(_ context.Context, _ store.Getter, input store.TransferInput) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	transfer := store.Transfer{
		ID:              m.nextTransferID,
		FromCardID:      input.FromCardID,
		ToCardID:        input.ToCardID,
		Amount:          input.Amount,
		Description:     input.Description,
		Status:          store.TransferStatusPending,
		ClientRequestID: input.ClientRequestID,
	}
	m.nextTransferID++
	m.transfers[transfer.ID] = transfer
	return transfer.ID, nil
}

func (m *memStore) MarkCompleted(_ context.Context, _ store.Execer, transferID int64, processedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	transfer := m.transfers[transferID]
	transfer.Status = store.TransferStatusCompleted
	transfer.ProcessedAt = &processedAt
	m.transfers[transferID] = transfer
	return nil
}

func (m *memStore) RecordFailure(_ context.Context, input store.TransferInput, message string, processedAt time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	transfer := store.Transfer{
		ID:              m.nextTransferID,
		FromCardID:      input.FromCardID,
		ToCardID:        input.ToCardID,
		Amount:          input.Amount,
		Description:     input.Description,
		Status:          store.TransferStatusFailed,
		ProcessedAt:     &processedAt,
		ErrorMessage:    &message,
		ClientRequestID: input.ClientRequestID,
	}
	m.nextTransferID++
	m.transfers[transfer.ID] = transfer
	return transfer.ID, nil
}

func (m *memStore) GetTransferByID(_ context.Context, transferID int64) (store.Transfer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	transfer, ok := m.transfers[transferID]
	if !ok {
		return store.Transfer{}, sql.ErrNoRows
	}
	return transfer, nil
}

func (m *memStore) ListTransfersByOwner(_ context.Context, ownerID int64, _, _ int) ([]store.Transfer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.Transfer
	for _, transfer := range m.transfers {
		if m.ownsTransferLocked(ownerID, transfer) {
			out = append(out, transfer)
		}
	}
	return out, nil
}

func (m *memStore) StatsByOwner(_ context.Context, ownerID int64, startOfMonth time.Time) (store.TransferStatsRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row := store.TransferStatsRow{TotalAmount: decimal.Zero, MonthAmount: decimal.Zero}
	for _, transfer := range m.transfers {
		if !m.ownsTransferLocked(ownerID, transfer) {
			continue
		}
		row.TotalCount++
		if transfer.Status == store.TransferStatusCompleted {
			row.TotalAmount = row.TotalAmount.Add(transfer.Amount)
		}
		if !transfer.CreatedAt.Before(startOfMonth) {
			row.MonthCount++
			if transfer.Status == store.TransferStatusCompleted {
				row.MonthAmount = row.MonthAmount.Add(transfer.Amount)
			}
		}
	}
	return row, nil
}

func (m *memStore) ownsTransferLocked(ownerID int64, transfer store.Transfer) bool {
	if from, ok := m.cards[transfer.FromCardID]; ok && from.OwnerID == ownerID {
		return true
	}
	if to, ok := m.cards[transfer.ToCardID]; ok && to.OwnerID == ownerID {
		return true
	}
	return false
}

// OwnerStore

func (m *memStore) GetOwnerByID(_ context.Context, ownerID int64) (store.Owner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	owner, ok := m.owners[ownerID]
	if !ok {
		return store.Owner{}, sql.ErrNoRows
	}
	return owner, nil
}

func (m *memStore) GetOwnerByEmail(_ context.Context, email string) (store.Owner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, owner := range m.owners {
		if owner.Email == email {
			return owner, nil
		}
	}
	return store.Owner{}, sql.ErrNoRows
}

// AuditStore

func (m *memStore) Log(_ context.Context, _ store.Execer, _ int64, action, _ string, _ int64, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.auditActions = append(m.auditActions, action)
	return nil
}

// Adapter types pin the memStore methods onto the per-store interfaces,
// since the real stores use overlapping method names.

type memCards struct{ *memStore }

type memTransfers struct{ *memStore }

func (m memTransfers) Create(ctx context.Context, tx store.Getter, input store.TransferInput) (int64, error) {
	return m.CreateTransfer(ctx, tx, input)
}

func (m memTransfers) GetByID(ctx context.Context, transferID int64) (store.Transfer, error) {
	return m.GetTransferByID(ctx, transferID)
}

func (m memTransfers) ListByOwner(ctx context.Context, ownerID int64, limit, offset int) ([]store.Transfer, error) {
	return m.ListTransfersByOwner(ctx, ownerID, limit, offset)
}

type memOwners struct{ *memStore }

func (m memOwners) GetByID(ctx context.Context, ownerID int64) (store.Owner, error) {
	return m.GetOwnerByID(ctx, ownerID)
}

func (m memOwners) GetByEmail(ctx context.Context, email string) (store.Owner, error) {
	return m.GetOwnerByEmail(ctx, email)
}

// memTxRunner serializes transactions over the memStore and rolls back by
// restoring a snapshot when the transaction function fails.
type memTxRunner struct {
	mem  *memStore
	txMu sync.Mutex
}

func (r *memTxRunner) WithTx(_ context.Context, fn func(*sqlx.Tx) error) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()
	snap := r.mem.snapshot()
	if err := fn(nil); err != nil {
		r.mem.restore(snap)
		return err
	}
	return nil
}

// captureHub records balance broadcasts instead of pushing them to sockets.
type captureHub struct {
	mu      sync.Mutex
	updates []websocket.BalanceUpdate
}

func (h *captureHub) BroadcastBalance(_ int64, update websocket.BalanceUpdate) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.updates = append(h.updates, update)
}

func (h *captureHub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.updates)
}

type fixture struct {
	mem       *memStore
	hub       *captureHub
	clock     clock.Clock
	cards     *CardService
	transfers *TransferService
}

var testNow = time.Date(2025, time.March, 15, 12, 0, 0, 0, time.UTC)

func newFixture() *fixture {
	mem := newMemStore()
	hub := &captureHub{}
	clk := clock.Fixed(testNow)
	runner := &memTxRunner{mem: mem}
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	cipher, err := cardnumber.NewCipher([]byte("0123456789abcdef"))
	if err != nil {
		panic(err)
	}
	maxAmount := decimal.NewFromInt(1000000)
	cards := NewCardService(runner, memCards{mem}, memOwners{mem}, mem, cipher, clk, hub, maxAmount, log)
	transfers := NewTransferService(runner, memCards{mem}, memTransfers{mem}, mem, clk, hub, maxAmount, log)
	return &fixture{mem: mem, hub: hub, clock: clk, cards: cards, transfers: transfers}
}

func dec(value string) decimal.Decimal {
	d, err := decimal.NewFromString(value)
	if err != nil {
		panic(err)
	}
	return d
}
