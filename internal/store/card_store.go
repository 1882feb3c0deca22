package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type CardStatus string

const (
	CardStatusActive  CardStatus = "ACTIVE"
	CardStatusBlocked CardStatus = "BLOCKED"
	CardStatusExpired CardStatus = "EXPIRED"
)

// CardFilter narrows card listings. Validated once at the API boundary; raw
// query strings never reach this layer.
type CardFilter struct {
	Status *CardStatus
	Search string
}

type Card struct {
	ID           int64           `db:"id"`
	CardNumber   string          `db:"card_number"`
	MaskedNumber string          `db:"masked_number"`
	OwnerID      int64           `db:"owner_id"`
	ValidThru    time.Time       `db:"valid_thru"`
	Status       CardStatus      `db:"status"`
	Balance      decimal.Decimal `db:"balance"`
	CreatedAt    time.Time       `db:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at"`
	BlockedAt    *time.Time      `db:"blocked_at"`
	BlockReason  *string         `db:"block_reason"`
}

type CardInput struct {
	CardNumber   string
	MaskedNumber string
	OwnerID      int64
	ValidThru    time.Time
}

type CardStore struct {
	db DB
}

func NewCardStore(db DB) *CardStore {
	return &CardStore{db: db}
}

const cardColumns = `id, card_number, masked_number, owner_id, valid_thru, status, balance,
	       created_at, updated_at, blocked_at, block_reason`

func (s *CardStore) Create(ctx context.Context, tx Getter, input CardInput) (Card, error) {
	var row Card
	err := tx.GetContext(ctx, &row, `
		INSERT INTO cards (card_number, masked_number, owner_id, valid_thru, status, balance)
		VALUES ($1, $2, $3, $4, 'ACTIVE', 0)
		RETURNING `+cardColumns+`
	`, input.CardNumber, input.MaskedNumber, input.OwnerID, input.ValidThru)
	if err != nil {
		return Card{}, err
	}
	return row, nil
}

func (s *CardStore) GetByID(ctx context.Context, cardID int64) (Card, error) {
	var row Card
	err := s.db.GetContext(ctx, &row, `
		SELECT `+cardColumns+`
		FROM cards
		WHERE id = $1
	`, cardID)
	if err != nil {
		return Card{}, err
	}
	return row, nil
}

func (s *CardStore) GetForUpdate(ctx context.Context, tx Getter, cardID int64) (Card, error) {
	var row Card
	err := tx.GetContext(ctx, &row, `
		SELECT `+cardColumns+`
		FROM cards
		WHERE id = $1
		FOR UPDATE
	`, cardID)
	if err != nil {
		return Card{}, err
	}
	return row, nil
}

func (s *CardStore) UpdateBalance(ctx context.Context, tx Execer, cardID int64, balance decimal.Decimal) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE cards
		SET balance = $1, updated_at = NOW()
		WHERE id = $2
	`, balance, cardID)
	return err
}

func (s *CardStore) SetBlocked(ctx context.Context, tx Execer, cardID int64, reason string, at time.Time) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE cards
		SET status = 'BLOCKED', blocked_at = $2, block_reason = $3, updated_at = NOW()
		WHERE id = $1
	`, cardID, at, reason)
	return err
}

func (s *CardStore) SetActive(ctx context.Context, tx Execer, cardID int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE cards
		SET status = 'ACTIVE', blocked_at = NULL, block_reason = NULL, updated_at = NOW()
		WHERE id = $1
	`, cardID)
	return err
}

// MarkExpired transitions a card to EXPIRED. The status guard makes the
// update idempotent under overlapping sweeps.
func (s *CardStore) MarkExpired(ctx context.Context, cardID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE cards
		SET status = 'EXPIRED', updated_at = NOW()
		WHERE id = $1 AND status = 'ACTIVE'
	`, cardID)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (s *CardStore) Delete(ctx context.Context, cardID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM cards WHERE id = $1`, cardID)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (s *CardStore) ExistsByNumber(ctx context.Context, encryptedNumber string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, `
		SELECT EXISTS(SELECT 1 FROM cards WHERE card_number = $1)
	`, encryptedNumber)
	return exists, err
}

func (s *CardStore) ListByOwner(ctx context.Context, ownerID int64, filter CardFilter, limit, offset int) ([]Card, error) {
	query := `
		SELECT ` + cardColumns + `
		FROM cards
		WHERE owner_id = $1
	`
	args := []any{ownerID}
	query, args = appendFilter(query, args, filter)
	query += ` ORDER BY created_at DESC LIMIT $` + itoa(len(args)+1) + ` OFFSET $` + itoa(len(args)+2)
	args = append(args, limit, offset)
	var rows []Card
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *CardStore) ListAll(ctx context.Context, filter CardFilter, limit, offset int) ([]Card, error) {
	query := `
		SELECT ` + cardColumns + `
		FROM cards
		WHERE TRUE
	`
	args := []any{}
	query, args = appendFilter(query, args, filter)
	query += ` ORDER BY created_at DESC LIMIT $` + itoa(len(args)+1) + ` OFFSET $` + itoa(len(args)+2)
	args = append(args, limit, offset)
	var rows []Card
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	return rows, nil
}

// FindActiveUsable returns the owner's cards eligible as a transfer leg.
func (s *CardStore) FindActiveUsable(ctx context.Context, ownerID int64, today time.Time) ([]Card, error) {
	var rows []Card
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+cardColumns+`
		FROM cards
		WHERE owner_id = $1 AND status = 'ACTIVE' AND valid_thru >= $2
		ORDER BY created_at DESC
	`, ownerID, today)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// FindExpired returns ACTIVE cards whose validity period has elapsed.
func (s *CardStore) FindExpired(ctx context.Context, today time.Time) ([]Card, error) {
	var rows []Card
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+cardColumns+`
		FROM cards
		WHERE status = 'ACTIVE' AND valid_thru < $1
		ORDER BY id
	`, today)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func appendFilter(query string, args []any, filter CardFilter) (string, []any) {
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		query += ` AND status = $` + itoa(len(args))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		query += ` AND masked_number LIKE $` + itoa(len(args))
	}
	return query, args
}
