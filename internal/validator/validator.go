package validator

import (
	"errors"
	"regexp"
	"strings"
)

const maxDescriptionLength = 500

var (
	ErrInvalidEmail       = errors.New("invalid email")
	ErrInvalidName        = errors.New("invalid name")
	ErrInvalidPassword    = errors.New("invalid password")
	ErrDescriptionTooLong = errors.New("description exceeds 500 characters")
	ErrEmptyReason        = errors.New("reason is required")
)

var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

func ValidateEmail(email string) error {
	if !emailRegex.MatchString(email) {
		return ErrInvalidEmail
	}
	return nil
}

func ValidateName(name string) error {
	trimmed := strings.TrimSpace(name)
	if len(trimmed) < 2 || len(trimmed) > 50 {
		return ErrInvalidName
	}
	return nil
}

func ValidatePassword(password string) error {
	if len(password) < 6 || len(password) > 100 {
		return ErrInvalidPassword
	}
	return nil
}

// ValidateDescription bounds free-text fields attached to transfers and
// block operations.
func ValidateDescription(description string) error {
	if len(description) > maxDescriptionLength {
		return ErrDescriptionTooLong
	}
	return nil
}

// ValidateReason is ValidateDescription plus a non-empty requirement.
func ValidateReason(reason string) error {
	if strings.TrimSpace(reason) == "" {
		return ErrEmptyReason
	}
	return ValidateDescription(reason)
}
