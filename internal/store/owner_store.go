package store

import (
	"context"
	"time"
)

// Owner is an account directory entry. Cards reference owners by ID only;
// the ledger never follows lazy object graphs.
type Owner struct {
	ID           int64     `db:"id"`
	Name         string    `db:"name"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	IsAdmin      bool      `db:"is_admin"`
	CreatedAt    time.Time `db:"created_at"`
}

type OwnerStore struct {
	db DB
}

func NewOwnerStore(db DB) *OwnerStore {
	return &OwnerStore{db: db}
}

func (s *OwnerStore) Create(ctx context.Context, name, email, passwordHash string) (Owner, error) {
	var row Owner
	err := s.db.GetContext(ctx, &row, `
		INSERT INTO owners (name, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING id, name, email, password_hash, is_admin, created_at
	`, name, email, passwordHash)
	if err != nil {
		return Owner{}, err
	}
	return row, nil
}

func (s *OwnerStore) GetByID(ctx context.Context, ownerID int64) (Owner, error) {
	var row Owner
	err := s.db.GetContext(ctx, &row, `
		SELECT id, name, email, password_hash, is_admin, created_at
		FROM owners
		WHERE id = $1
	`, ownerID)
	if err != nil {
		return Owner{}, err
	}
	return row, nil
}

func (s *OwnerStore) GetByEmail(ctx context.Context, email string) (Owner, error) {
	var row Owner
	err := s.db.GetContext(ctx, &row, `
		SELECT id, name, email, password_hash, is_admin, created_at
		FROM owners
		WHERE email = $1
	`, email)
	if err != nil {
		return Owner{}, err
	}
	return row, nil
}
