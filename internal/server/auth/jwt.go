// Package auth verifies the bearer tokens issued by the external identity
// provider. The token subject is the user id.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/piggysync/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the registered claims plus the legacy user_id claim some
// issuers still send instead of sub.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id,omitempty"`
}

// GenerateToken signs an HS256 token for userID. Used by tooling and tests;
// production tokens come from the identity provider.
func GenerateToken(userID string, secretKey []byte, validityDuration time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validityDuration)),
		},
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// GetUserIDFromToken validates tokenString and returns its user id.
// Expired tokens yield common.ErrTokenExpired, anything else that fails
// verification common.ErrInvalidToken.
func GetUserIDFromToken(tokenString string, secretKey []byte) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", common.ErrTokenExpired
		}
		return "", fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}

	if !token.Valid {
		return "", common.ErrInvalidToken
	}

	userID := claims.Subject
	if userID == "" {
		userID = claims.UserID
	}
	if userID == "" {
		return "", fmt.Errorf("%w: no subject", common.ErrInvalidToken)
	}

	return userID, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	if !strings.HasPrefix(header, common.BearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, common.BearerPrefix))
	return token, token != ""
}
