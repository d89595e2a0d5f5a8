// Package auth issues and verifies the bearer tokens that tie a
// websocket connection to a player identity. Reconnection relies on
// the token's player claim matching the prior membership.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is the token payload.
type Claims struct {
	PlayerID   uuid.UUID `json:"playerId"`
	PlayerName string    `json:"playerName"`
}

// IssueToken signs a player token valid for 24 hours.
func IssueToken(secret string, playerID uuid.UUID, playerName string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  playerID.String(),
		"name": playerName,
		"iat":  time.Now().Unix(),
		"exp":  time.Now().Add(24 * time.Hour).Unix(),
	})
	return token.SignedString([]byte(secret))
}

// VerifyToken parses and validates a player token.
func VerifyToken(secret, tokenString string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	sub, _ := claims["sub"].(string)
	playerID, err := uuid.Parse(sub)
	if err != nil {
		return nil, fmt.Errorf("invalid player id in token: %w", err)
	}
	name, _ := claims["name"].(string)
	return &Claims{PlayerID: playerID, PlayerName: name}, nil
}
