package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Board roles carried in the "role" claim.
const (
	RoleOwner        = "owner"
	RoleCollaborator = "collaborator"
	RoleViewer       = "viewer"
)

// Claims holds the JWT token payload. Field types and JSON tags are compatible
// with the middleware's claims so tokens issued here are parsed correctly.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"uid"`
	Role   string `json:"role"`
}

// ErrInvalidToken is returned when a JWT cannot be parsed or has expired.
var ErrInvalidToken = errors.New("auth: invalid or expired token") //nolint:gochecknoglobals // sentinel error

// ValidRole reports whether role is one of the board roles.
func ValidRole(role string) bool {
	switch role {
	case RoleOwner, RoleCollaborator, RoleViewer:
		return true
	}
	return false
}

// IssueToken creates a signed HS256 token for userID.
func IssueToken(secret, userID, role string, ttl time.Duration) (string, error) {
	if userID == "" {
		return "", errors.New("auth.IssueToken: empty user id")
	}
	if !ValidRole(role) {
		return "", fmt.Errorf("auth.IssueToken: unknown role %q", role)
	}

	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    "boardsync",
		},
		UserID: userID,
		Role:   role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("auth.IssueToken: %w", err)
	}

	return signed, nil
}

// ValidateToken parses and validates a JWT token string. Returns the embedded claims.
func ValidateToken(secret, tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, fmt.Errorf("auth.ValidateToken: %w", ErrInvalidToken)
	}

	if !token.Valid || claims.UserID == "" {
		return nil, fmt.Errorf("auth.ValidateToken: %w", ErrInvalidToken)
	}

	return claims, nil
}

// CanWrite reports whether role may modify board objects.
func CanWrite(role string) bool {
	return role == RoleOwner || role == RoleCollaborator
}
