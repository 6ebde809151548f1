package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// defaultCost is the bcrypt work factor used in production.
const defaultCost = 12

// Password length bounds. bcrypt truncates input past 72 bytes, so longer
// passwords are rejected instead of silently shortened.
const (
	MinPasswordLength = 6
	MaxPasswordBytes  = 72
)

// ErrInvalidPassword is returned by Verify when the password doesn't match.
var ErrInvalidPassword = errors.New("auth: invalid password")

// PasswordService provides bcrypt hashing and verification.
//
// The cost is a field so tests can run at bcrypt.MinCost.
type PasswordService struct {
	cost int
}

// NewPasswordService creates a PasswordService with the default cost (12).
func NewPasswordService() *PasswordService {
	return &PasswordService{cost: defaultCost}
}

// NewPasswordServiceForTest creates a PasswordService with a custom cost.
// Use 4 (bcrypt.MinCost) in tests of other packages. Never in production.
func NewPasswordServiceForTest(cost int) *PasswordService {
	return &PasswordService{cost: cost}
}

// Hash hashes the given plaintext password with bcrypt.
//
// The output is a self-contained string like:
//
//	$2a$12$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy
//
// It embeds the salt and cost, so it is stored as-is.
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if len(plaintext) > MaxPasswordBytes {
		return "", fmt.Errorf("auth: password must be %d bytes or fewer", MaxPasswordBytes)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}

	return string(hashed), nil
}

// Verify checks whether a plaintext password matches a stored bcrypt hash.
// A mismatch returns ErrInvalidPassword. An empty hash (a GitHub-only
// account) never matches.
func (p *PasswordService) Verify(hash, plaintext string) error {
	if hash == "" {
		return ErrInvalidPassword
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrInvalidPassword
		}
		return fmt.Errorf("auth: comparing password hash: %w", err)
	}
	return nil
}
