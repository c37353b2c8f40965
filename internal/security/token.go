package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// RoleAdmin задаёт роль администратора в токене.
const RoleAdmin = "admin"

// ErrInvalidToken возвращается для поддельного, просроченного или чужого токена.
var ErrInvalidToken = errors.New("invalid token")

// AdminClaims описывает содержимое токена администратора.
type AdminClaims struct {
	Login string `json:"login"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// TokenManager выпускает и проверяет HS256-токены администратора.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenManager создаёт TokenManager. При ttl <= 0 токен живёт 12 часов.
func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl}
}

// Issue выпускает токен для администратора login.
func (m *TokenManager) Issue(login string) (string, time.Time, error) {
	now := time.Now().UTC()
	expires := now.Add(m.ttl)

	claims := AdminClaims{
		Login: login,
		Role:  RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   login,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign jwt: %w", err)
	}
	return signed, expires, nil
}

// Parse проверяет подпись и срок токена и возвращает его claims.
func (m *TokenManager) Parse(tokenString string) (AdminClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AdminClaims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	})
	if err != nil {
		return AdminClaims{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(*AdminClaims)
	if !ok || !token.Valid || claims.Role != RoleAdmin {
		return AdminClaims{}, ErrInvalidToken
	}
	return *claims, nil
}
