package session

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenExpiry извлекает exp-claim access-токена без проверки подписи.
// Секрет подписи клиенту неизвестен: claim используется только для
// планирования обновления, источником истины остаётся сервер.
func tokenExpiry(token string) (time.Time, error) {
	const op = "session.token.tokenExpiry"

	var claims jwt.RegisteredClaims

	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", op, err)
	}

	if claims.ExpiresAt == nil {
		return time.Time{}, fmt.Errorf("%s: token has no exp claim", op)
	}

	return claims.ExpiresAt.Time.UTC(), nil
}

// newCSRFToken генерирует криптослучайный CSRF-токен (256 бит энтропии).
func newCSRFToken() (string, error) {
	const op = "session.token.newCSRFToken"

	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return base64.RawURLEncoding.EncodeToString(b), nil
}
