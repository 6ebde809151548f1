// Package auth provides sessions, password hashing, GitHub OAuth, and the
// middleware that turns a session into a user ID on the request context.
//
// AUTHENTICATION FLOW OVERVIEW:
//  1. User signs up or logs in with email/password (POST /auth/signup, /auth/login)
//     or through GitHub (/auth/github/login → /auth/github/callback)
//  2. The service creates the account if it doesn't exist yet
//  3. Server issues a JWT session token and stores it in an HttpOnly cookie
//  4. On subsequent API calls, middleware reads the cookie (or an
//     Authorization: Bearer header), validates the JWT, and sets the userID
//     in the request context
//
// JWT STRUCTURE (three base64-encoded parts separated by dots):
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header: algorithm + token type → {"alg":"HS256","typ":"JWT"}
//	- Payload: claims (data) → {"sub":"userID","exp":1234567890}
//	- Signature: HMAC-SHA256(header+"."+payload, secretKey)
//
// The server can verify the signature without any DB lookup, only the secret.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Issuer is the "iss" claim on every session token.
const Issuer = "excuse-me"

// SessionDuration is how long a session token stays valid.
const SessionDuration = 7 * 24 * time.Hour

// TokenService handles JWT creation and validation.
//
// It holds the HMAC secret key used to sign and verify tokens.
type TokenService struct {
	secret []byte
}

// NewTokenService creates a TokenService with the given secret.
// Example: JWT_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret)}, nil
}

// claims is the JWT payload. "sub" (Subject) holds the internal user ID.
type claims struct {
	jwt.RegisteredClaims
}

// Generate signs a session token for userID valid for SessionDuration.
func (s *TokenService) Generate(userID string) (string, error) {
	return s.GenerateWithDuration(userID, SessionDuration)
}

// GenerateWithDuration creates a token with a custom expiry duration.
// Used in tests to mint already-expired tokens.
func (s *TokenService) GenerateWithDuration(userID string, d time.Duration) (string, error) {
	now := time.Now()

	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    Issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Validate parses and verifies a JWT string.
// Returns the userID (stored in the "sub" claim) if the token is valid.
//
// VALIDATION CHECKS (performed by the jwt library):
//   - Signature is valid (wasn't tampered with)
//   - Token is not expired (ExpiresAt is in the future)
//   - Issuer matches Issuer
//   - Algorithm is HS256, so "alg":"none" tokens are rejected
func (s *TokenService) Validate(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			// Reject tokens that aren't signed with HS256
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		// Translate jwt library errors into cleaner messages
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("auth: token expired")
		}
		return "", fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("auth: invalid token claims")
	}

	userID := c.Subject
	if userID == "" {
		return "", fmt.Errorf("auth: token has no subject")
	}

	return userID, nil
}
