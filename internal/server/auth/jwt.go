// Package auth validates bearer tokens minted by the external auth service.
// Session issuance itself happens outside this system; the server only
// checks the HS256 signature and reads the owner from the subject claim.
package auth

import (
	"time"

	"github.com/avolkov/snapsync/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// OwnerFromToken verifies the token and returns the owner it was issued to.
func OwnerFromToken(tokenString string, secretKey []byte) (string, error) {
	claims := &jwt.RegisteredClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	})
	if err != nil {
		return "", err
	}

	if !token.Valid || claims.Subject == "" {
		return "", common.ErrInvalidToken
	}

	return claims.Subject, nil
}

// GenerateToken mints a token the way the external auth service does. Used
// by tests and local tooling.
func GenerateToken(owner string, secretKey []byte, validity time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   owner,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(validity)),
	})

	return token.SignedString(secretKey)
}
