package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/clubdesk/clubdesk/internal/shared"
)

// DefaultCost matches the bcrypt work factor accounts have always used.
const DefaultCost = 10

// PasswordHasher hashes and verifies account passwords.
type PasswordHasher struct {
	cost int
}

// NewPasswordHasher clamps cost into bcrypt's accepted range.
func NewPasswordHasher(cost int) PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return PasswordHasher{cost: cost}
}

// Hash returns a salted bcrypt hash of plaintext.
func (h PasswordHasher) Hash(plaintext string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", shared.ValidationErrors{"password": "must be at most 72 bytes"}
	}
	if err != nil {
		return "", fmt.Errorf("auth: hash password: %w", err)
	}
	return string(hashed), nil
}

// Verify reports whether plaintext matches hashed. Malformed hashes never match.
func (h PasswordHasher) Verify(plaintext, hashed string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plaintext)) == nil
}
