package jwtx

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Peek decodes the claims of a token WITHOUT verifying its signature.
// The console uses it for display only (e.g. showing when the access token
// expires); it must never gate authentication decisions.
func Peek(raw string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return claims, nil
}
