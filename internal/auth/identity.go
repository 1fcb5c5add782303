package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/gosuda/boardsync/internal/domain"
)

// TokenIdentity answers "who is signed in" on the client from the bearer
// token it was configured with. The client cannot verify the signature, so
// it only decodes the claims and checks expiry; the server re-validates
// every request.
type TokenIdentity struct {
	token string
}

func NewTokenIdentity(token string) *TokenIdentity {
	return &TokenIdentity{token: token}
}

// Token returns the raw bearer token.
func (i *TokenIdentity) Token() string { return i.token }

// CurrentUser returns the token's user id, or domain.ErrUnauthenticated
// when there is no usable token.
func (i *TokenIdentity) CurrentUser() (string, error) {
	if i.token == "" {
		return "", fmt.Errorf("auth.TokenIdentity.CurrentUser: %w", domain.ErrUnauthenticated)
	}

	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(i.token, claims); err != nil {
		return "", fmt.Errorf("auth.TokenIdentity.CurrentUser: %w", errors.Join(domain.ErrUnauthenticated, err))
	}
	if err := jwt.NewValidator().Validate(claims); err != nil {
		return "", fmt.Errorf("auth.TokenIdentity.CurrentUser: %w", errors.Join(domain.ErrUnauthenticated, err))
	}
	if claims.UserID == "" {
		return "", fmt.Errorf("auth.TokenIdentity.CurrentUser: %w", domain.ErrUnauthenticated)
	}

	return claims.UserID, nil
}
