package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// HS256Signer signs and verifies access tokens with a shared secret. Only the
// development backend holds the secret; the console never verifies tokens.
type HS256Signer struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// SignerOption configures an HS256Signer.
type SignerOption func(*HS256Signer)

// WithClock replaces time.Now when checking expiry in Verify.
func WithClock(now func() time.Time) SignerOption {
	return func(s *HS256Signer) { s.now = now }
}

// NewHS256Signer returns a signer for issuer using secret.
func NewHS256Signer(secret []byte, issuer string, opts ...SignerOption) (*HS256Signer, error) {
	if len(secret) < 32 {
		return nil, errors.New("jwtx: HS256 secret must be at least 32 bytes")
	}
	s := &HS256Signer{secret: secret, issuer: issuer, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Issuer returns the configured iss claim.
func (s *HS256Signer) Issuer() string { return s.issuer }

// Sign serializes claims into a compact JWS.
func (s *HS256Signer) Sign(claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token produced by Sign.
func (s *HS256Signer) Verify(raw string) (*Claims, error) {
	claims := &Claims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)

	_, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return nil, ErrSignature
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if err := claims.ValidateIssuer(s.issuer); err != nil {
		return nil, err
	}
	if err := claims.ValidateExpiryWithLeeway(s.now(), 5*time.Second); err != nil {
		return nil, err
	}

	return claims, nil
}
