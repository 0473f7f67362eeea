package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

var ErrInvalidToken = errors.New("invalid player token")

// PlayerClaims ties a bearer to one seat in one match.
type PlayerClaims struct {
	MatchID  string `json:"match_id"`
	PlayerID string `json:"player_id"`
	Faction  string `json:"faction"`
	jwt.RegisteredClaims
}

// IssuePlayerToken signs an HS256 token for a seat, valid for ttl.
func IssuePlayerToken(secret, matchID, playerID, faction string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := PlayerClaims{
		MatchID:  matchID,
		PlayerID: playerID,
		Faction:  faction,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   playerID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign player token: %w", err)
	}
	return signed, nil
}

// ParsePlayerToken verifies signature, algorithm and expiry.
func ParsePlayerToken(secret, token string) (*PlayerClaims, error) {
	claims := &PlayerClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method %s", t.Method.Alg())
		}
		return []byte(secret), nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.MatchID == "" || claims.PlayerID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
