package server

import (
	"fmt"
	"time"

	"github.com/desertthunder/wrapped/internal/shared"
	"github.com/golang-jwt/jwt/v5"
)

// Claims identifies the logged-in profile.
type Claims struct {
	jwt.RegisteredClaims
	ProfileID string `json:"profile_id"`
}

// GenerateToken signs an HS256 token for profileID that expires after ttl.
func GenerateToken(profileID string, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    "wrapped",
		},
		ProfileID: profileID,
	})

	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ProfileIDFromToken validates tokenString and returns the profile it was issued for.
func ProfileIDFromToken(tokenString string, secret []byte) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrInvalidToken, err)
	}
	if !token.Valid || claims.ProfileID == "" {
		return "", shared.ErrInvalidToken
	}
	return claims.ProfileID, nil
}
