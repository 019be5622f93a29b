package account

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultAuthTTL bounds how long a login token stays valid.
const DefaultAuthTTL = 24 * time.Hour

// resetTTL bounds the password reset window.
const resetTTL = 5 * time.Minute

// Claims is the authenticated identity carried on every request.
type Claims struct {
	Role         string `json:"role"`
	Organization string `json:"org"`
	Email        string `json:"email"`
	jwt.RegisteredClaims
}

// newEmailToken returns the email verification token: 64 random bytes, hex
// encoded, stored on the account until the link is followed.
func newEmailToken() (string, error) {
	buf := make([]byte, 64)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate email token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// issueAuthToken signs the login JWT.
func (s *Service) issueAuthToken(id, role, org, email string) (string, error) {
	now := s.now()
	claims := Claims{
		Role:         role,
		Organization: org,
		Email:        email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.authTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.secret))
}

// VerifyAuthToken parses and validates a login JWT.
func (s *Service) VerifyAuthToken(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.NewParser(jwt.WithValidMethods([]string{"HS256"})).
		ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
			return []byte(s.secret), nil
		})
	if err != nil {
		return nil, ErrInvalidAuthToken
	}
	return claims, nil
}

// issueResetToken signs a short-lived reset JWT with the secret concatenated
// with the account's current password hash. Resetting changes the hash, so a
// used token can never verify again.
func (s *Service) issueResetToken(id, passwordHash string) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   id,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(resetTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).
		SignedString([]byte(s.secret + passwordHash))
}

// parseResetToken extracts the subject without verification, looks up that
// account's current hash through lookup, then verifies the signature against
// secret+hash.
func (s *Service) parseResetToken(raw string, lookup func(id string) (string, error)) (string, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{"HS256"}))

	unverified := &jwt.RegisteredClaims{}
	if _, _, err := parser.ParseUnverified(raw, unverified); err != nil {
		return "", ErrInvalidResetToken
	}
	if unverified.Subject == "" {
		return "", ErrInvalidResetToken
	}

	hash, err := lookup(unverified.Subject)
	if err != nil {
		return "", ErrInvalidResetToken
	}

	claims := &jwt.RegisteredClaims{}
	if _, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(s.secret + hash), nil
	}); err != nil {
		return "", ErrInvalidResetToken
	}
	return claims.Subject, nil
}
