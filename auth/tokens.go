package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// GenerateAccessToken issues an HS256 token for an API client. The client
// name travels in "sub"; "iat" records when it was minted.
func GenerateAccessToken(hmacSecret []byte, subject string, expiration time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(expiration),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(hmacSecret)
}
