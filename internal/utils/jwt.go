package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid session token")

// GenerateSessionToken mints the per-participant token handed out on match.
// The relay requires it before bridging a socket onto a session channel.
func GenerateSessionToken(sessionID, userID string, jwtSecret []byte) (string, error) {
	claims := jwt.MapClaims{
		"sessionId": sessionID,
		"userId":    userID,
		"exp":       time.Now().Add(24 * time.Hour).Unix(),
		"iat":       time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}

// VerifySessionToken checks the token signature and that it was minted for
// the given session, returning the participant's user id.
func VerifySessionToken(tokenString, sessionID string, jwtSecret []byte) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}
	if sid, _ := claims["sessionId"].(string); sid != sessionID {
		return "", ErrInvalidToken
	}
	userID, _ := claims["userId"].(string)
	if userID == "" {
		return "", ErrInvalidToken
	}
	return userID, nil
}
