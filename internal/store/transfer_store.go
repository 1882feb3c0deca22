package store

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type TransferStatus string

const (
	TransferStatusPending   TransferStatus = "PENDING"
	TransferStatusCompleted TransferStatus = "COMPLETED"
	TransferStatusFailed    TransferStatus = "FAILED"
	TransferStatusCancelled TransferStatus = "CANCELLED"
)

type Transfer struct {
	ID              int64           `db:"id"`
	FromCardID      int64           `db:"from_card_id"`
	ToCardID        int64           `db:"to_card_id"`
	Amount          decimal.Decimal `db:"amount"`
	Description     string          `db:"description"`
	Status          TransferStatus  `db:"status"`
	CreatedAt       time.Time       `db:"created_at"`
	ProcessedAt     *time.Time      `db:"processed_at"`
	ErrorMessage    *string         `db:"error_message"`
	ClientRequestID *string         `db:"client_request_id"`
}

type TransferInput struct {
	FromCardID      int64
	ToCardID        int64
	Amount          decimal.Decimal
	Description     string
	ClientRequestID *string
}

// TransferStatsRow is the raw aggregate projection for an owner's transfers.
type TransferStatsRow struct {
	TotalCount  int64           `db:"total_count"`
	TotalAmount decimal.Decimal `db:"total_amount"`
	MonthCount  int64           `db:"month_count"`
	MonthAmount decimal.Decimal `db:"month_amount"`
}

type TransferStore struct {
	db DB
}

func NewTransferStore(db DB) *TransferStore {
	return &TransferStore{db: db}
}

const transferColumns = `id, from_card_id, to_card_id, amount, description, status,
	       created_at, processed_at, error_message, client_request_id`

// Create inserts a PENDING transfer inside the caller's transaction and
// returns its assigned ID.
func (s *TransferStore) Create(ctx context.Context, tx Getter, input TransferInput) (int64, error) {
	var id int64
	err := tx.GetContext(ctx, &id, `
		INSERT INTO transfers (from_card_id, to_card_id, amount, description, status, client_request_id)
		VALUES ($1, $2, $3, $4, 'PENDING', $5)
		RETURNING id
	`, input.FromCardID, input.ToCardID, input.Amount, input.Description, input.ClientRequestID)
	return id, err
}

func (s *TransferStore) MarkCompleted(ctx context.Context, tx Execer, transferID int64, processedAt time.Time) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE transfers
		SET status = 'COMPLETED', processed_at = $2
		WHERE id = $1
	`, transferID, processedAt)
	return err
}

// RecordFailure writes a terminal FAILED transfer outside any transaction.
// The attempt's own transaction has already rolled back; the failure record
// must survive independently.
func (s *TransferStore) RecordFailure(ctx context.Context, input TransferInput, message string, processedAt time.Time) (int64, error) {
	var id int64
	err := s.db.GetContext(ctx, &id, `
		INSERT INTO transfers (from_card_id, to_card_id, amount, description, status, processed_at, error_message, client_request_id)
		VALUES ($1, $2, $3, $4, 'FAILED', $5, $6, $7)
		RETURNING id
	`, input.FromCardID, input.ToCardID, input.Amount, input.Description, processedAt, message, input.ClientRequestID)
	return id, err
}

func (s *TransferStore) GetByID(ctx context.Context, transferID int64) (Transfer, error) {
	var row Transfer
	err := s.db.GetContext(ctx, &row, `
		SELECT `+transferColumns+`
		FROM transfers
		WHERE id = $1
	`, transferID)
	if err != nil {
		return Transfer{}, err
	}
	return row, nil
}

// ListByOwner returns transfers touching any card of the owner, newest first.
func (s *TransferStore) ListByOwner(ctx context.Context, ownerID int64, limit, offset int) ([]Transfer, error) {
	var rows []Transfer
	err := s.db.SelectContext(ctx, &rows, `
		SELECT t.id, t.from_card_id, t.to_card_id, t.amount, t.description, t.status,
		       t.created_at, t.processed_at, t.error_message, t.client_request_id
		FROM transfers t
		JOIN cards fc ON fc.id = t.from_card_id
		JOIN cards tc ON tc.id = t.to_card_id
		WHERE fc.owner_id = $1 OR tc.owner_id = $1
		ORDER BY t.created_at DESC
		LIMIT $2 OFFSET $3
	`, ownerID, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// StatsByOwner aggregates the owner's transfer activity. Sums cover only
// COMPLETED transfers; counts cover every attempt.
func (s *TransferStore) StatsByOwner(ctx context.Context, ownerID int64, startOfMonth time.Time) (TransferStatsRow, error) {
	var row TransferStatsRow
	err := s.db.GetContext(ctx, &row, `
		SELECT COUNT(*) AS total_count,
		       COALESCE(SUM(t.amount) FILTER (WHERE t.status = 'COMPLETED'), 0) AS total_amount,
		       COUNT(*) FILTER (WHERE t.created_at >= $2) AS month_count,
		       COALESCE(SUM(t.amount) FILTER (WHERE t.status = 'COMPLETED' AND t.created_at >= $2), 0) AS month_amount
		FROM transfers t
		JOIN cards fc ON fc.id = t.from_card_id
		JOIN cards tc ON tc.id = t.to_card_id
		WHERE fc.owner_id = $1 OR tc.owner_id = $1
	`, ownerID, startOfMonth)
	if err != nil {
		return TransferStatsRow{}, err
	}
	return row, nil
}

func itoa(value int) string {
	return fmt.Sprintf("%d", value)
}
