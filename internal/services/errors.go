package services

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrCardNotFound        = errors.New("card not found")
	ErrOwnerNotFound       = errors.New("owner not found")
	ErrTransferNotFound    = errors.New("transfer not found")
	ErrAlreadyBlocked      = errors.New("card is already blocked")
	ErrAlreadyActive       = errors.New("card is already active")
	ErrCardExpired         = errors.New("card is expired")
	ErrAccessDenied        = errors.New("card does not belong to owner")
	ErrSameCardTransfer    = errors.New("cannot transfer to the same card")
	ErrInvalidCardID       = errors.New("card id must be positive")
	ErrInvalidAmount       = errors.New("amount must be greater than zero")
	ErrAmountPrecision     = errors.New("amount cannot have more than 2 decimal places")
	ErrAmountTooLarge      = errors.New("amount exceeds the configured maximum")
	ErrInvalidValidThru    = errors.New("valid-thru date must be in the future and within 10 years")
	ErrDuplicateCardNumber = errors.New("card number already exists")

	// ErrInsufficientFunds and ErrCardNotUsable are matched via errors.Is
	// against their typed counterparts below.
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrCardNotUsable     = errors.New("card cannot be used")
)

// InsufficientFundsError carries the balances needed for caller display.
type InsufficientFundsError struct {
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: available %s, requested %s",
		e.Available.StringFixed(2), e.Requested.StringFixed(2))
}

func (e *InsufficientFundsError) Is(target error) bool {
	return target == ErrInsufficientFunds
}

// CardNotUsableError names which card failed a usability check and why.
type CardNotUsableError struct {
	CardID int64
	Mask   string
	Side   string // "sender" or "recipient" for transfer legs, "" otherwise
	Reason string
}

func (e *CardNotUsableError) Error() string {
	if e.Side != "" {
		return fmt.Sprintf("%s card %s cannot be used: %s", e.Side, e.Mask, e.Reason)
	}
	return fmt.Sprintf("card %s cannot be used: %s", e.Mask, e.Reason)
}

func (e *CardNotUsableError) Is(target error) bool {
	return target == ErrCardNotUsable
}

// validateAmount enforces the shared money rules: positive, at most two
// decimal places, and below the configured ceiling.
func validateAmount(amount, max decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}
	if amount.Exponent() < -2 {
		return ErrAmountPrecision
	}
	if amount.GreaterThan(max) {
		return ErrAmountTooLarge
	}
	return nil
}
